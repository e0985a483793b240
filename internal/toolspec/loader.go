package toolspec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadCatalog reads a tool catalog from a YAML or JSON file. A missing
// catalog name defaults to the file's base name.
func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("toolspec: read %q: %w", path, err)
	}

	var cat Catalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cat); err != nil {
			return nil, fmt.Errorf("toolspec: parse %q: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cat); err != nil {
			return nil, fmt.Errorf("toolspec: parse %q: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("toolspec: unsupported extension %q", filepath.Ext(path))
	}

	if strings.TrimSpace(cat.Name) == "" {
		cat.Name = baseName(path)
	}

	if err := Validate(&cat); err != nil {
		return nil, fmt.Errorf("toolspec: validate %q: %w", path, err)
	}
	return &cat, nil
}

// LoadCatalogDir loads every catalog file in dir, sorted by filename.
func LoadCatalogDir(dir string) ([]*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("toolspec: read dir %q: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	out := make([]*Catalog, 0, len(paths))
	for _, p := range paths {
		cat, err := LoadCatalog(p)
		if err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, nil
}

// Validate checks tool and parameter names and types. Duplicate tool names
// would make scored results ambiguous, so they are rejected.
func Validate(cat *Catalog) error {
	if cat == nil {
		return fmt.Errorf("nil catalog")
	}
	if strings.TrimSpace(cat.Name) == "" {
		return fmt.Errorf("missing catalog name")
	}
	if len(cat.Tools) == 0 {
		return fmt.Errorf("no tools")
	}

	seen := make(map[string]bool, len(cat.Tools))
	for i := range cat.Tools {
		d := &cat.Tools[i]
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			return fmt.Errorf("tools[%d]: missing name", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("tools[%d] (%s): duplicate name", i, d.Name)
		}
		seen[d.Name] = true

		params := make(map[string]bool, len(d.Params))
		for j := range d.Params {
			p := &d.Params[j]
			p.Name = strings.TrimSpace(p.Name)
			if p.Name == "" {
				return fmt.Errorf("tools[%d] (%s): params[%d]: missing name", i, d.Name, j)
			}
			if params[p.Name] {
				return fmt.Errorf("tools[%d] (%s): params[%d] (%s): duplicate name", i, d.Name, j, p.Name)
			}
			params[p.Name] = true
			if err := validateParamType(p); err != nil {
				return fmt.Errorf("tools[%d] (%s): params[%d] (%s): %w", i, d.Name, j, p.Name, err)
			}
		}
	}
	return nil
}

func validateParamType(p *Param) error {
	p.Type = strings.ToLower(strings.TrimSpace(p.Type))
	if p.Type == "" {
		p.Type = "object"
	}
	if !validParamTypes[p.Type] {
		return fmt.Errorf("unknown type %q", p.Type)
	}
	if p.Items != nil {
		if err := validateParamType(p.Items); err != nil {
			return fmt.Errorf("items: %w", err)
		}
	}
	return nil
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
