// Package app wires configuration, datasets, and retrieval components into
// runnable evaluations. The CLI and the API server share this assembly layer.
package app

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stellarlinkco/rag-eval/internal/dataset"
	"github.com/stellarlinkco/rag-eval/internal/toolspec"
)

func LoadDatasets(dir string) ([]*dataset.Dataset, error) {
	return dataset.LoadFromDir(dir)
}

func LoadCatalogs(dir string) ([]*toolspec.Catalog, error) {
	return toolspec.LoadCatalogDir(dir)
}

// LoadCorpora loads every corpus file under dir, recursing into
// subdirectories, in sorted path order.
func LoadCorpora(dir string) ([]*dataset.Corpus, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".yaml", ".yml", ".json", ".jsonl":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dataset: walk dir %q: %w", dir, err)
	}
	sort.Strings(paths)

	out := make([]*dataset.Corpus, 0, len(paths))
	for _, path := range paths {
		c, err := dataset.LoadCorpus(path)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// FindDataset selects a dataset by name. An empty name is accepted when
// exactly one dataset is loaded.
func FindDataset(datasets []*dataset.Dataset, name string) (*dataset.Dataset, error) {
	name = strings.TrimSpace(name)

	var match *dataset.Dataset
	for _, ds := range datasets {
		if ds == nil {
			continue
		}
		if name != "" && strings.TrimSpace(ds.Name) != name {
			continue
		}
		if match != nil {
			if name == "" {
				return nil, fmt.Errorf("dataset: name required, loaded: %s", strings.Join(datasetNames(datasets), ", "))
			}
			return nil, fmt.Errorf("dataset: multiple matches for %q", name)
		}
		match = ds
	}
	if match == nil {
		if name == "" {
			return nil, fmt.Errorf("dataset: no datasets loaded")
		}
		return nil, fmt.Errorf("dataset: unknown dataset %q", name)
	}
	return match, nil
}

// FindCorpus selects a corpus by name, with the same single-corpus fallback
// as FindDataset.
func FindCorpus(corpora []*dataset.Corpus, name string) (*dataset.Corpus, error) {
	name = strings.TrimSpace(name)

	var match *dataset.Corpus
	for _, c := range corpora {
		if c == nil {
			continue
		}
		if name != "" && strings.TrimSpace(c.Name) != name {
			continue
		}
		if match != nil {
			if name == "" {
				return nil, fmt.Errorf("dataset: corpus name required, loaded: %s", strings.Join(corpusNames(corpora), ", "))
			}
			return nil, fmt.Errorf("dataset: multiple matches for corpus %q", name)
		}
		match = c
	}
	if match == nil {
		if name == "" {
			return nil, fmt.Errorf("dataset: no corpora loaded")
		}
		return nil, fmt.Errorf("dataset: unknown corpus %q", name)
	}
	return match, nil
}

// FindCatalog selects a tool catalog by name, with the same single-catalog
// fallback as FindDataset.
func FindCatalog(catalogs []*toolspec.Catalog, name string) (*toolspec.Catalog, error) {
	name = strings.TrimSpace(name)

	var match *toolspec.Catalog
	for _, cat := range catalogs {
		if cat == nil {
			continue
		}
		if name != "" && strings.TrimSpace(cat.Name) != name {
			continue
		}
		if match != nil {
			if name == "" {
				return nil, fmt.Errorf("toolspec: catalog name required, loaded: %s", strings.Join(catalogNames(catalogs), ", "))
			}
			return nil, fmt.Errorf("toolspec: multiple matches for catalog %q", name)
		}
		match = cat
	}
	if match == nil {
		if name == "" {
			return nil, fmt.Errorf("toolspec: no catalogs loaded")
		}
		return nil, fmt.Errorf("toolspec: unknown catalog %q", name)
	}
	return match, nil
}

// FilterQueries narrows a dataset to one query category. An empty category
// returns the dataset unchanged. A category nothing matches yields a dataset
// with no queries, which the harness rejects before running.
func FilterQueries(ds *dataset.Dataset, category string) *dataset.Dataset {
	category = strings.TrimSpace(category)
	if ds == nil || category == "" {
		return ds
	}

	out := &dataset.Dataset{Name: ds.Name}
	for _, q := range ds.Queries {
		if q.Category != category {
			continue
		}
		out.Queries = append(out.Queries, q)
	}
	return out
}

// MissingExpected lists expected identifiers absent from the retrievable item
// set, in first-appearance order. A label outside the corpus can never be
// retrieved, so it caps recall below 1.0 for every strategy.
func MissingExpected(ds *dataset.Dataset, known []string) []string {
	if ds == nil {
		return nil
	}
	knownSet := make(map[string]struct{}, len(known))
	for _, id := range known {
		knownSet[id] = struct{}{}
	}

	var out []string
	seen := make(map[string]struct{})
	for _, q := range ds.Queries {
		for _, id := range q.Expected {
			if _, ok := knownSet[id]; ok {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func datasetNames(datasets []*dataset.Dataset) []string {
	out := make([]string, 0, len(datasets))
	for _, ds := range datasets {
		if ds == nil {
			continue
		}
		out = append(out, ds.Name)
	}
	return out
}

func corpusNames(corpora []*dataset.Corpus) []string {
	out := make([]string, 0, len(corpora))
	for _, c := range corpora {
		if c == nil {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}

func catalogNames(catalogs []*toolspec.Catalog) []string {
	out := make([]string, 0, len(catalogs))
	for _, cat := range catalogs {
		if cat == nil {
			continue
		}
		out = append(out, cat.Name)
	}
	return out
}
