package api

import (
	"context"

	"github.com/stellarlinkco/rag-eval/internal/llm"
	"github.com/stellarlinkco/rag-eval/internal/store"
)

type fakeStore struct {
	SaveRunFunc     func(ctx context.Context, run *store.RunRecord) error
	SaveRowsFunc    func(ctx context.Context, rows []*store.RowRecord) error
	GetRunFunc      func(ctx context.Context, id string) (*store.RunRecord, error)
	ListRunsFunc    func(ctx context.Context, filter store.RunFilter) ([]*store.RunRecord, error)
	GetRowsFunc     func(ctx context.Context, runID string) ([]*store.RowRecord, error)
	HistoryFunc     func(ctx context.Context, filter store.HistoryFilter) ([]*store.HistoryPoint, error)
	CompareRunsFunc func(ctx context.Context, baselineID, candidateID string, epsilon float64) (*store.RunComparison, error)
	CloseFunc       func() error
}

func (s *fakeStore) SaveRun(ctx context.Context, run *store.RunRecord) error {
	if s.SaveRunFunc != nil {
		return s.SaveRunFunc(ctx, run)
	}
	return nil
}

func (s *fakeStore) SaveRows(ctx context.Context, rows []*store.RowRecord) error {
	if s.SaveRowsFunc != nil {
		return s.SaveRowsFunc(ctx, rows)
	}
	return nil
}

func (s *fakeStore) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	if s.GetRunFunc != nil {
		return s.GetRunFunc(ctx, id)
	}
	return nil, nil
}

func (s *fakeStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.RunRecord, error) {
	if s.ListRunsFunc != nil {
		return s.ListRunsFunc(ctx, filter)
	}
	return nil, nil
}

func (s *fakeStore) GetRows(ctx context.Context, runID string) ([]*store.RowRecord, error) {
	if s.GetRowsFunc != nil {
		return s.GetRowsFunc(ctx, runID)
	}
	return nil, nil
}

func (s *fakeStore) History(ctx context.Context, filter store.HistoryFilter) ([]*store.HistoryPoint, error) {
	if s.HistoryFunc != nil {
		return s.HistoryFunc(ctx, filter)
	}
	return nil, nil
}

func (s *fakeStore) CompareRuns(ctx context.Context, baselineID, candidateID string, epsilon float64) (*store.RunComparison, error) {
	if s.CompareRunsFunc != nil {
		return s.CompareRunsFunc(ctx, baselineID, candidateID, epsilon)
	}
	return nil, nil
}

func (s *fakeStore) Close() error {
	if s.CloseFunc != nil {
		return s.CloseFunc()
	}
	return nil
}

type fakeProvider struct {
	CompleteFunc          func(ctx context.Context, req *llm.Request) (*llm.Response, error)
	CompleteWithToolsFunc func(ctx context.Context, req *llm.Request) (*llm.CallResult, error)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if p.CompleteFunc != nil {
		return p.CompleteFunc(ctx, req)
	}
	return &llm.Response{Content: []llm.ContentBlock{{Type: "text", Text: ""}}}, nil
}

func (p *fakeProvider) CompleteWithTools(ctx context.Context, req *llm.Request) (*llm.CallResult, error) {
	if p.CompleteWithToolsFunc != nil {
		return p.CompleteWithToolsFunc(ctx, req)
	}
	return &llm.CallResult{}, nil
}
