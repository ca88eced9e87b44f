package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JonMunkholm/recordqa/internal/core"
	"github.com/JonMunkholm/recordqa/internal/reference"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// blueprintFile is the YAML layout of a blueprint:
//
//	key: contractors
//	label: Contractors
//	fields:
//	  - key: email
//	    type: string
//	    constraints: [required, unique]
//	  - key: country
//	    type: enum
//	    options:
//	      - {value: US, label: United States}
type blueprintFile struct {
	Key    string      `koanf:"key"`
	Label  string      `koanf:"label"`
	Fields []fieldFile `koanf:"fields"`
}

type fieldFile struct {
	Key         string             `koanf:"key"`
	Label       string             `koanf:"label"`
	Type        string             `koanf:"type"`
	Constraints []string           `koanf:"constraints"`
	Options     []reference.Option `koanf:"options"`
	MergeExempt bool               `koanf:"merge_exempt"`
	DependsOn   string             `koanf:"depends_on"`
}

// LoadFile reads one blueprint from a YAML file. A missing key defaults to
// the file name without its extension.
func LoadFile(path string) (core.Blueprint, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return core.Blueprint{}, fmt.Errorf("load blueprint %s: %w", path, err)
	}

	var bf blueprintFile
	if err := k.Unmarshal("", &bf); err != nil {
		return core.Blueprint{}, fmt.Errorf("decode blueprint %s: %w", path, err)
	}
	if bf.Key == "" {
		bf.Key = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	bp, err := bf.blueprint()
	if err != nil {
		return core.Blueprint{}, fmt.Errorf("blueprint %s: %w", path, err)
	}
	return bp, nil
}

// LoadDir reads every .yaml and .yml file in dir, sorted by name.
func LoadDir(dir string) ([]core.Blueprint, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read blueprint dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	blueprints := make([]core.Blueprint, 0, len(names))
	for _, name := range names {
		bp, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		blueprints = append(blueprints, bp)
	}
	return blueprints, nil
}

// NewRegistry returns the built-in blueprints plus any found in dir.
// An empty dir loads only the built-ins.
func NewRegistry(dir string) (*core.Registry, error) {
	reg, err := Default()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return reg, nil
	}

	loaded, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, bp := range loaded {
		if err := reg.Register(bp); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (bf blueprintFile) blueprint() (core.Blueprint, error) {
	fields := make([]core.FieldSpec, len(bf.Fields))
	for i, f := range bf.Fields {
		spec, err := f.spec()
		if err != nil {
			return core.Blueprint{}, err
		}
		fields[i] = spec
	}

	schema, err := core.NewSchema(fields...)
	if err != nil {
		return core.Blueprint{}, err
	}

	label := bf.Label
	if label == "" {
		label = bf.Key
	}
	return core.Blueprint{Key: bf.Key, Label: label, Schema: schema}, nil
}

// spec converts a field entry. Unrecognized types load as FieldUnknown,
// which validation skips.
func (f fieldFile) spec() (core.FieldSpec, error) {
	spec := core.FieldSpec{
		Key:         f.Key,
		Label:       f.Label,
		Type:        core.ParseFieldType(f.Type),
		Options:     f.Options,
		MergeExempt: f.MergeExempt,
		DependsOn:   f.DependsOn,
	}

	for _, c := range f.Constraints {
		switch con := core.Constraint(strings.ToLower(strings.TrimSpace(c))); con {
		case core.ConstraintRequired, core.ConstraintUnique, core.ConstraintComputed:
			spec.Constraints = append(spec.Constraints, con)
		default:
			return core.FieldSpec{}, fmt.Errorf("%w: field %q has unknown constraint %q", core.ErrInvalidSchema, f.Key, c)
		}
	}
	return spec, nil
}
