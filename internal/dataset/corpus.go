package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadCorpus loads and validates a document corpus. Supported formats match
// the dataset loader: YAML/JSON documents and JSONL with one document per
// line.
func LoadCorpus(path string) (*Corpus, error) {
	var (
		c   *Corpus
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		c, err = loadCorpusYAML(path)
	case ".json":
		c, err = loadCorpusJSON(path)
	case ".jsonl":
		c, err = loadCorpusJSONL(path)
	default:
		return nil, fmt.Errorf("dataset: unsupported corpus extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(c.Name) == "" {
		c.Name = baseName(path)
	}
	if err := ValidateCorpus(c); err != nil {
		return nil, fmt.Errorf("dataset: validate corpus %q: %w", path, err)
	}
	return c, nil
}

// ValidateCorpus checks document identifiers and text, rejecting duplicates.
func ValidateCorpus(c *Corpus) error {
	if c == nil {
		return fmt.Errorf("nil corpus")
	}
	if len(c.Documents) == 0 {
		return fmt.Errorf("corpus: no documents")
	}

	seen := make(map[string]struct{}, len(c.Documents))
	for i := range c.Documents {
		d := &c.Documents[i]
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return fmt.Errorf("documents[%d]: missing id", i)
		}
		if _, ok := seen[d.ID]; ok {
			return fmt.Errorf("documents[%d] (%s): duplicate id", i, d.ID)
		}
		seen[d.ID] = struct{}{}

		if strings.TrimSpace(d.SearchText()) == "" {
			return fmt.Errorf("documents[%d] (%s): missing text", i, d.ID)
		}
	}
	return nil
}

func loadCorpusYAML(path string) (*Corpus, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %q: %w", path, err)
	}

	var c Corpus
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("dataset: parse %q: %w", path, err)
	}
	if len(c.Documents) == 0 {
		var docs []Document
		if err := yaml.Unmarshal(b, &docs); err == nil {
			c.Documents = docs
		}
	}
	return &c, nil
}

func loadCorpusJSON(path string) (*Corpus, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %q: %w", path, err)
	}

	var c Corpus
	if err := json.Unmarshal(b, &c); err != nil || len(c.Documents) == 0 {
		var docs []Document
		if arrErr := json.Unmarshal(b, &docs); arrErr != nil {
			if err != nil {
				return nil, fmt.Errorf("dataset: parse %q: %w", path, err)
			}
			return nil, fmt.Errorf("dataset: parse %q: %w", path, arrErr)
		}
		c.Documents = docs
	}
	return &c, nil
}

func loadCorpusJSONL(path string) (*Corpus, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %q: %w", path, err)
	}
	defer fh.Close()

	var c Corpus
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 0, scanBufInitial), scanBufMax)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var d Document
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("dataset: parse %q line %d: %w", path, line, err)
		}
		c.Documents = append(c.Documents, d)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("dataset: scan %q: %w", path, err)
	}
	return &c, nil
}
