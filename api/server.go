// Package api exposes the evaluation harness over HTTP: browsing datasets,
// corpora, and tool catalogs, starting runs, and querying stored results.
package api

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stellarlinkco/rag-eval/internal/config"
	"github.com/stellarlinkco/rag-eval/internal/leaderboard"
	"github.com/stellarlinkco/rag-eval/internal/llm"
	"github.com/stellarlinkco/rag-eval/internal/logging"
	"github.com/stellarlinkco/rag-eval/internal/store"
)

type Server struct {
	router   *gin.Engine
	store    store.Store
	provider llm.Provider
	config   *config.Config
	lbStore  *leaderboard.Store
	log      *slog.Logger
}

// NewServer wires middleware and routes. provider may be nil when the
// toolselect strategy and dataset generation are not needed.
func NewServer(cfg *config.Config, st store.Store, provider llm.Provider, lbStore *leaderboard.Store) (*Server, error) {
	r := gin.New()
	s := &Server{
		router:   r,
		store:    st,
		provider: provider,
		config:   cfg,
		lbStore:  lbStore,
		log:      logging.New(),
	}
	s.registerMiddleware()
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Run(addr string) error {
	if s == nil || s.router == nil {
		return errors.New("api: nil server")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = ":8080"
	}
	return s.router.Run(addr)
}
