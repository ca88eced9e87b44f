package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/recordqa/internal/core"
	"github.com/go-chi/chi/v5"
)

// maxPageSize caps the records page endpoint.
const maxPageSize = 1000

// recordsRequest carries records for the stateless endpoints and sheet
// creation. Blueprint is optional for /plan.
type recordsRequest struct {
	Blueprint string             `json:"blueprint"`
	Records   []core.RecordInput `json:"records"`
	Exempt    []string           `json:"exempt"`
}

// decodeJSON reads a size-limited JSON body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// handleHealth reports liveness and job capacity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"jobs":   s.runner.Status(),
	})
}

// handleListBlueprints returns every registered blueprint.
func (s *Server) handleListBlueprints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.All())
}

func (s *Server) handleGetBlueprint(w http.ResponseWriter, r *http.Request) {
	bp, err := s.registry.Get(chi.URLParam(r, "key"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bp)
}

// handlePlan computes a merge plan for posted records without storing
// anything.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req recordsRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	records, err := core.RecordsFromInputs(req.Records)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	opts := []core.PlannerOption{core.WithExemptKeys(s.cfg.Merge.ExemptKeys...), core.WithExemptKeys(req.Exempt...)}
	if req.Blueprint != "" {
		bp, err := s.registry.Get(req.Blueprint)
		if err != nil {
			respondError(w, r, err)
			return
		}
		opts = append(opts, core.WithSchema(bp.Schema))
	}

	plan, err := core.NewMergePlanner(opts...).Plan(records)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// validateResponse is the body of /api/validate.
type validateResponse struct {
	Summary core.ValidationSummary `json:"summary"`
	Records []*core.Record         `json:"records"`
}

// handleValidate annotates posted records against a blueprint without
// storing anything.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req recordsRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	bp, err := s.registry.Get(req.Blueprint)
	if err != nil {
		respondError(w, r, err)
		return
	}

	records, err := core.RecordsFromInputs(req.Records)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	summary := s.service.Validate(records, bp.Schema)
	writeJSON(w, http.StatusOK, validateResponse{Summary: summary, Records: records})
}

// handleCreateSheet stores posted records as a new sheet shaped by a
// blueprint.
func (s *Server) handleCreateSheet(w http.ResponseWriter, r *http.Request) {
	var req recordsRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	bp, err := s.registry.Get(req.Blueprint)
	if err != nil {
		respondError(w, r, err)
		return
	}

	records := make([]*core.Record, len(req.Records))
	for i, in := range req.Records {
		records[i] = in.Record()
	}

	s.createSheet(w, r, bp, records)
}

// handleImportSheet stores a CSV body as a new sheet. The blueprint is
// chosen with ?blueprint= and record ids come from ?idColumn= when set.
func (s *Server) handleImportSheet(w http.ResponseWriter, r *http.Request) {
	bp, err := s.registry.Get(r.URL.Query().Get("blueprint"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)
	records, err := core.ReadCSVRecords(r.Body, bp.Schema, core.CSVOptions{
		IDColumn: r.URL.Query().Get("idColumn"),
	})
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	s.createSheet(w, r, bp, records)
}

func (s *Server) createSheet(w http.ResponseWriter, r *http.Request, bp core.Blueprint, records []*core.Record) {
	id, err := s.service.CreateSheet(withRequester(r), bp.Schema, records)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"sheetId":   id,
		"blueprint": bp.Key,
		"records":   len(records),
	})
}

// recordsPage is the body of the records listing.
type recordsPage struct {
	SheetID  string         `json:"sheetId"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	Total    int            `json:"total"`
	Records  []*core.Record `json:"records"`
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	sheetID := chi.URLParam(r, "sheetID")
	page := parseIntParam(r, "page", 1)
	pageSize := min(parseIntParam(r, "pageSize", 100), maxPageSize)

	records, total, err := s.service.ListRecords(r.Context(), sheetID, page, pageSize)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if records == nil {
		records = []*core.Record{}
	}

	writeJSON(w, http.StatusOK, recordsPage{
		SheetID:  sheetID,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Records:  records,
	})
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
