package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// JSONL lines are usually short queries; generated corpora can carry long
// passages, so the scanner buffer leaves room for them.
const (
	scanBufInitial = 64 * 1024
	scanBufMax     = 2 * 1024 * 1024
)

// LoadFromFile loads and validates a labeled dataset. The format follows the
// extension: .yaml/.yml and .json hold a whole Dataset (or a bare query
// list), .jsonl holds one query object per line.
func LoadFromFile(path string) (*Dataset, error) {
	var (
		ds  *Dataset
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		ds, err = loadYAML(path)
	case ".json":
		ds, err = loadJSON(path)
	case ".jsonl":
		ds, err = loadJSONL(path)
	default:
		return nil, fmt.Errorf("dataset: unsupported extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(ds.Name) == "" {
		ds.Name = baseName(path)
	}
	if err := Validate(ds); err != nil {
		return nil, fmt.Errorf("dataset: validate %q: %w", path, err)
	}
	return ds, nil
}

// LoadFromDir loads and validates every dataset file in a directory.
func LoadFromDir(dir string) ([]*Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: read dir %q: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json", ".jsonl":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	out := make([]*Dataset, 0, len(paths))
	for _, path := range paths {
		ds, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}

// Validate checks a dataset for consistency and normalizes expected sets in
// place: entries are trimmed, blanks dropped, duplicates collapsed. An empty
// expected set is legal and means no result is correct for that query.
func Validate(ds *Dataset) error {
	if ds == nil {
		return fmt.Errorf("nil dataset")
	}
	if strings.TrimSpace(ds.Name) == "" {
		return fmt.Errorf("dataset: missing name")
	}
	if len(ds.Queries) == 0 {
		return fmt.Errorf("dataset: no queries")
	}

	seenIDs := make(map[string]struct{}, len(ds.Queries))
	for i := range ds.Queries {
		q := &ds.Queries[i]
		q.ID = strings.TrimSpace(q.ID)
		if q.ID == "" {
			return fmt.Errorf("queries[%d]: missing id", i)
		}
		if _, ok := seenIDs[q.ID]; ok {
			return fmt.Errorf("queries[%d] (%s): duplicate id", i, q.ID)
		}
		seenIDs[q.ID] = struct{}{}

		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("queries[%d] (%s): missing query text", i, q.ID)
		}
		q.Expected = normalizeExpected(q.Expected)
		q.Category = strings.TrimSpace(q.Category)
	}
	return nil
}

// queryRecord is the on-disk shape. Hand-written files use "expected";
// generated ones may carry a single "expected_id" instead.
type queryRecord struct {
	ID         string   `json:"id" yaml:"id"`
	Text       string   `json:"query" yaml:"query"`
	Expected   []string `json:"expected" yaml:"expected"`
	ExpectedID string   `json:"expected_id" yaml:"expected_id"`
	Category   string   `json:"category" yaml:"category"`
}

func (r queryRecord) toQuery() Query {
	expected := r.Expected
	if v := strings.TrimSpace(r.ExpectedID); v != "" {
		expected = append(append([]string(nil), expected...), v)
	}
	return Query{
		ID:       r.ID,
		Text:     r.Text,
		Expected: expected,
		Category: r.Category,
	}
}

type datasetFile struct {
	Name    string        `json:"name" yaml:"name"`
	Queries []queryRecord `json:"queries" yaml:"queries"`
}

func loadYAML(path string) (*Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %q: %w", path, err)
	}

	var f datasetFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("dataset: parse %q: %w", path, err)
	}
	if len(f.Queries) == 0 {
		// Bare list form without the wrapping document.
		var records []queryRecord
		if err := yaml.Unmarshal(b, &records); err == nil {
			f.Queries = records
		}
	}
	return fromRecords(f.Name, f.Queries), nil
}

func loadJSON(path string) (*Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %q: %w", path, err)
	}

	var f datasetFile
	if err := json.Unmarshal(b, &f); err != nil || len(f.Queries) == 0 {
		var records []queryRecord
		if arrErr := json.Unmarshal(b, &records); arrErr != nil {
			if err != nil {
				return nil, fmt.Errorf("dataset: parse %q: %w", path, err)
			}
			return nil, fmt.Errorf("dataset: parse %q: %w", path, arrErr)
		}
		f.Queries = records
	}
	return fromRecords(f.Name, f.Queries), nil
}

func loadJSONL(path string) (*Dataset, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %q: %w", path, err)
	}
	defer fh.Close()

	var records []queryRecord
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 0, scanBufInitial), scanBufMax)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var r queryRecord
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("dataset: parse %q line %d: %w", path, line, err)
		}
		records = append(records, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("dataset: scan %q: %w", path, err)
	}
	return fromRecords("", records), nil
}

func fromRecords(name string, records []queryRecord) *Dataset {
	ds := &Dataset{Name: name, Queries: make([]Query, 0, len(records))}
	for _, r := range records {
		ds.Queries = append(ds.Queries, r.toQuery())
	}
	return ds
}

func normalizeExpected(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
