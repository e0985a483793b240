package api

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerRoutes() error {
	if s == nil || s.router == nil {
		return nil
	}

	api := s.router.Group("/api")
	apiKey := ""
	if s.config != nil {
		apiKey = strings.TrimSpace(s.config.Server.APIKey)
	}
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("RAG_EVAL_API_KEY"))
	}
	if apiKey != "" {
		api.Use(apiKeyAuthMiddleware(apiKey))
	} else if strings.EqualFold(strings.TrimSpace(os.Getenv("RAG_EVAL_DISABLE_AUTH")), "true") {
		// Explicitly allow unauthenticated access.
	} else {
		return errors.New("api: missing auth configuration: set RAG_EVAL_API_KEY or set RAG_EVAL_DISABLE_AUTH=true")
	}

	api.GET("/health", s.handleHealth)

	api.GET("/datasets", s.handleListDatasets)
	api.GET("/datasets/:name", s.handleGetDataset)

	api.GET("/corpora", s.handleListCorpora)
	api.GET("/corpora/:name", s.handleGetCorpus)

	api.GET("/tools", s.handleListToolCatalogs)
	api.GET("/tools/:name", s.handleGetToolCatalog)

	api.POST("/runs", s.handleStartRun)
	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleGetRun)
	api.GET("/runs/:id/rows", s.handleGetRunRows)
	api.GET("/runs/:id/breakdown", s.handleGetRunBreakdown)

	api.GET("/history/:dataset", s.handleGetDatasetHistory)
	api.POST("/compare", s.handleCompareRuns)

	api.GET("/leaderboard", s.handleGetLeaderboard)
	api.GET("/leaderboard/history", s.handleGetStrategyHistory)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return nil
}
