package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stellarlinkco/rag-eval/internal/config"
	"github.com/stellarlinkco/rag-eval/internal/dataset"
	"github.com/stellarlinkco/rag-eval/internal/embed"
	"github.com/stellarlinkco/rag-eval/internal/index"
	"github.com/stellarlinkco/rag-eval/internal/llm"
	"github.com/stellarlinkco/rag-eval/internal/strategy"
	"github.com/stellarlinkco/rag-eval/internal/toolspec"
)

// Remote embedders cap request sizes, so corpus ingestion embeds in batches.
const embedBatchSize = 64

// Builder assembles retrieval strategies from configuration. Components are
// built lazily and cached: semantic, lexical, and hybrid share one embedder,
// one vector index, and one BM25 index, and the corpus is embedded and
// ingested once per builder.
type Builder struct {
	Config   *config.Config
	Corpus   *dataset.Corpus
	Catalog  *toolspec.Catalog
	Provider llm.Provider

	// HybridOptions override the default reciprocal rank fusion.
	HybridOptions []strategy.HybridOption

	embedder embed.Embedder
	vector   index.VectorIndex
	bm25     *index.BM25
}

func NewBuilder(cfg *config.Config, corpus *dataset.Corpus) *Builder {
	return &Builder{Config: cfg, Corpus: corpus}
}

// Build constructs the named strategies and registers them in request order.
// Names are case-insensitive; blanks are skipped.
func (b *Builder) Build(ctx context.Context, names []string) (*strategy.Registry, error) {
	if b == nil {
		return nil, errors.New("run: nil builder")
	}
	if b.Config == nil {
		return nil, errors.New("run: nil config")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	reg := strategy.NewRegistry()
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}

		var (
			s   strategy.Strategy
			err error
		)
		switch name {
		case "semantic":
			s, err = b.buildSemantic(ctx)
		case "lexical":
			s, err = b.buildLexical()
		case "hybrid":
			s, err = b.buildHybrid(ctx)
		case "toolselect":
			s, err = b.buildToolSelect()
		default:
			return nil, fmt.Errorf("run: unknown strategy %q", raw)
		}
		if err != nil {
			return nil, err
		}
		if err := reg.Register(s); err != nil {
			return nil, err
		}
	}

	if reg.Len() == 0 {
		return nil, errors.New("run: no strategies requested")
	}
	return reg, nil
}

// Close releases the vector index connection if one was opened.
func (b *Builder) Close() error {
	if b == nil || b.vector == nil {
		return nil
	}
	err := b.vector.Close()
	b.vector = nil
	return err
}

func (b *Builder) buildSemantic(ctx context.Context) (strategy.Strategy, error) {
	idx, err := b.VectorIndex(ctx)
	if err != nil {
		return nil, err
	}
	return strategy.NewSemantic(b.embedder, idx), nil
}

func (b *Builder) buildLexical() (strategy.Strategy, error) {
	idx, err := b.BM25()
	if err != nil {
		return nil, err
	}
	return strategy.NewLexical(idx), nil
}

func (b *Builder) buildHybrid(ctx context.Context) (strategy.Strategy, error) {
	sem, err := b.buildSemantic(ctx)
	if err != nil {
		return nil, err
	}
	lex, err := b.buildLexical()
	if err != nil {
		return nil, err
	}
	return strategy.NewHybrid(sem, lex, b.HybridOptions...), nil
}

func (b *Builder) buildToolSelect() (strategy.Strategy, error) {
	if b.Catalog == nil || len(b.Catalog.Tools) == 0 {
		return nil, errors.New("run: toolselect requires a tool catalog")
	}
	if b.Provider == nil {
		return nil, errors.New("run: toolselect requires an llm provider")
	}
	return strategy.NewToolSelect(b.Provider, b.Catalog.Tools), nil
}

// Embedder returns the configured embedder, fitting the TF-IDF vocabulary to
// the corpus on first use.
func (b *Builder) Embedder() (embed.Embedder, error) {
	if b == nil {
		return nil, errors.New("run: nil builder")
	}
	if b.Config == nil {
		return nil, errors.New("run: nil config")
	}
	if b.embedder != nil {
		return b.embedder, nil
	}

	ecfg := b.Config.Embedding
	switch strings.ToLower(strings.TrimSpace(ecfg.Provider)) {
	case "", "tfidf":
		if err := b.requireCorpus(); err != nil {
			return nil, err
		}
		e := embed.NewTFIDF()
		if err := e.Fit(searchTexts(b.Corpus)); err != nil {
			return nil, fmt.Errorf("run: fit tfidf embedder: %w", err)
		}
		b.embedder = e
	case "openai":
		b.embedder = embed.NewOpenAIEmbedder(ecfg.APIKey, ecfg.BaseURL, ecfg.Model)
	default:
		return nil, fmt.Errorf("run: unknown embedding provider %q", ecfg.Provider)
	}
	return b.embedder, nil
}

// VectorIndex builds the configured vector index and ingests the corpus into
// it. Repeated calls return the already ingested index.
func (b *Builder) VectorIndex(ctx context.Context) (index.VectorIndex, error) {
	if b == nil {
		return nil, errors.New("run: nil builder")
	}
	if b.vector != nil {
		return b.vector, nil
	}
	if err := b.requireCorpus(); err != nil {
		return nil, err
	}
	embedder, err := b.Embedder()
	if err != nil {
		return nil, err
	}

	icfg := b.Config.Index
	var idx index.VectorIndex
	switch strings.ToLower(strings.TrimSpace(icfg.Type)) {
	case "", "memory":
		idx, err = index.NewMemory(embedder.Dimension())
	case "qdrant":
		idx, err = index.NewQdrant(ctx, index.QdrantConfig{
			Host:       icfg.Qdrant.Host,
			Port:       icfg.Qdrant.Port,
			Collection: icfg.Qdrant.Collection,
			VectorSize: uint64(embedder.Dimension()),
			APIKey:     icfg.Qdrant.APIKey,
			UseTLS:     icfg.Qdrant.UseTLS,
		})
	default:
		return nil, fmt.Errorf("run: unknown index type %q", icfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("run: vector index: %w", err)
	}

	if err := ingestCorpus(ctx, embedder, idx, b.Corpus); err != nil {
		_ = idx.Close()
		return nil, err
	}
	b.vector = idx
	return idx, nil
}

// BM25 returns the lexical index, built from the corpus on first call.
func (b *Builder) BM25() (*index.BM25, error) {
	if b == nil {
		return nil, errors.New("run: nil builder")
	}
	if b.bm25 != nil {
		return b.bm25, nil
	}
	if err := b.requireCorpus(); err != nil {
		return nil, err
	}

	idx := index.NewBM25()
	for _, d := range b.Corpus.Documents {
		if err := idx.Add(d.ID, d.SearchText()); err != nil {
			return nil, fmt.Errorf("run: index corpus %q: %w", b.Corpus.Name, err)
		}
	}
	b.bm25 = idx
	return idx, nil
}

func (b *Builder) requireCorpus() error {
	if b.Corpus == nil || len(b.Corpus.Documents) == 0 {
		return errors.New("run: empty corpus")
	}
	return nil
}

func ingestCorpus(ctx context.Context, embedder embed.Embedder, idx index.VectorIndex, corpus *dataset.Corpus) error {
	docs := corpus.Documents
	for start := 0; start < len(docs); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		texts := make([]string, 0, len(batch))
		for _, d := range batch {
			texts = append(texts, d.SearchText())
		}
		vecs, err := embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("run: embed corpus %q: %w", corpus.Name, err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("run: embed corpus %q: %d vectors for %d documents", corpus.Name, len(vecs), len(batch))
		}

		entries := make([]index.Entry, 0, len(batch))
		for i, d := range batch {
			fields := make(map[string]string, 2)
			if d.Title != "" {
				fields["title"] = d.Title
			}
			if d.Category != "" {
				fields["category"] = d.Category
			}
			if len(fields) == 0 {
				fields = nil
			}
			entries = append(entries, index.Entry{ID: d.ID, Vector: vecs[i], Fields: fields})
		}
		if err := idx.Upsert(ctx, entries); err != nil {
			return fmt.Errorf("run: ingest corpus %q: %w", corpus.Name, err)
		}
	}
	return nil
}

func searchTexts(corpus *dataset.Corpus) []string {
	out := make([]string, 0, len(corpus.Documents))
	for _, d := range corpus.Documents {
		out = append(out, d.SearchText())
	}
	return out
}
