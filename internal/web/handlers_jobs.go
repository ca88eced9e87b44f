package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/recordqa/internal/core"
	"github.com/JonMunkholm/recordqa/internal/jobs"
	"github.com/go-chi/chi/v5"
)

// Job kinds reported in job status.
const (
	KindMergeAll        = "merge-all"
	KindMergeSelected   = "merge-selected"
	KindMergeDuplicates = "merge-duplicates"
	KindValidate        = "validate"
	KindSnapshot        = "snapshot"
)

// jobRequest is the optional body of the sheet job endpoints.
type jobRequest struct {
	IDs   []string `json:"ids"`
	Key   string   `json:"key"`
	Label string   `json:"label"`
}

// decodeOptionalJSON is decodeJSON that accepts an empty body.
func (s *Server) decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) error {
	err := s.decodeJSON(w, r, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// submit acknowledges a job with 202 and its status URL.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, kind string, fn jobs.Func) {
	sheetID := chi.URLParam(r, "sheetID")
	job := s.runner.Submit(withRequester(r), kind, sheetID, fn)

	w.Header().Set("Location", "/api/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleMergeAll(w http.ResponseWriter, r *http.Request) {
	sheetID := chi.URLParam(r, "sheetID")
	s.submit(w, r, KindMergeAll, func(ctx context.Context) (any, error) {
		return s.service.MergeAll(ctx, sheetID)
	})
}

func (s *Server) handleMergeSelected(w http.ResponseWriter, r *http.Request) {
	sheetID := chi.URLParam(r, "sheetID")

	var req jobRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if len(req.IDs) == 0 {
		respondError(w, r, core.ErrEmptyInput)
		return
	}

	s.submit(w, r, KindMergeSelected, func(ctx context.Context) (any, error) {
		return s.service.MergeSelected(ctx, sheetID, req.IDs)
	})
}

func (s *Server) handleMergeDuplicates(w http.ResponseWriter, r *http.Request) {
	sheetID := chi.URLParam(r, "sheetID")

	var req jobRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if req.Key == "" {
		badRequest(w, r, "key is required")
		return
	}

	s.submit(w, r, KindMergeDuplicates, func(ctx context.Context) (any, error) {
		plans, err := s.service.MergeDuplicates(ctx, sheetID, req.Key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"groups": len(plans), "plans": plans}, nil
	})
}

func (s *Server) handleValidateSheet(w http.ResponseWriter, r *http.Request) {
	sheetID := chi.URLParam(r, "sheetID")
	s.submit(w, r, KindValidate, func(ctx context.Context) (any, error) {
		return s.service.ValidateSheet(ctx, sheetID)
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sheetID := chi.URLParam(r, "sheetID")

	var req jobRequest
	if err := s.decodeOptionalJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	s.submit(w, r, KindSnapshot, func(ctx context.Context) (any, error) {
		return s.service.CreateSnapshot(ctx, sheetID, req.Label)
	})
}

// handleGetJob returns a job's current state.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.runner.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleJobQueueStatus returns the current state of the job limiter.
func (s *Server) handleJobQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Status())
}

// handleJobEvents streams job updates as Server-Sent Events until the job
// finishes. The final event is "complete" or "failed" and carries the job.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	updates, stop, err := s.runner.Subscribe(chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer stop()

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	seq := 0
	for {
		select {
		case job, ok := <-updates:
			if !ok {
				return
			}
			seq++

			event := "progress"
			switch job.State {
			case jobs.StateCompleted:
				event = "complete"
			case jobs.StateFailed:
				event = "failed"
			}

			data, _ := json.Marshal(job)
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, event, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
