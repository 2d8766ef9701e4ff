// Package server exposes pipelines, executions and the AI collaborator over
// an HTTP JSON API built on gin.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/artifacts"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/assist"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/connectors"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/logger"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/store"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// Runner executes a stored pipeline.
type Runner interface {
	Run(ctx context.Context, pipelineID string) (*connector.Execution, error)
}

// ScheduleSync keeps the scheduler in step with pipeline edits.
type ScheduleSync interface {
	Refresh(p connector.Pipeline)
	Unregister(pipelineID string) error
}

// SheetsClient is the direct spreadsheet access behind POST /api/sheets.
type SheetsClient interface {
	Read(ctx context.Context, cfg connectors.SourceConfig) (*connectors.ReadResult, error)
	Metadata(ctx context.Context, spreadsheetID, credentialsPath string) (*connectors.SpreadsheetMetadata, error)
}

// Deps are the collaborators of the API. AI and Scheduler may be nil.
type Deps struct {
	Store     *store.Repository
	Runner    Runner
	Artifacts *artifacts.Layout
	Sheets    SheetsClient
	AI        assist.Client
	Scheduler ScheduleSync
}

// Server holds the API state.
type Server struct {
	deps     Deps
	validate *validator.Validate
	engine   *gin.Engine
}

// New creates the server and registers its routes.
func New(deps Deps) *Server {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	s := &Server{deps: deps, validate: v}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), requestLogger())
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	r := s.engine
	r.GET("/health", s.health)

	api := r.Group("/api")
	api.GET("/pipelines", s.listPipelines)
	api.POST("/pipelines", s.createPipeline)
	api.GET("/pipelines/:id", s.getPipeline)
	api.PUT("/pipelines/:id", s.updatePipeline)
	api.DELETE("/pipelines/:id", s.deletePipeline)
	api.POST("/pipelines/:id/execute", s.executePipeline)
	api.GET("/pipelines/:id/config", s.pipelineConfig)
	api.GET("/pipelines/:id/checks", s.pipelineChecks)

	api.GET("/executions", s.listExecutions)
	api.GET("/executions/:id", s.getExecution)

	api.POST("/connectors/recommend", s.recommend)
	api.POST("/sheets", s.sheets)

	api.POST("/ai/assist", s.assist)
	api.POST("/ai/generate-pipeline", s.generatePipeline)

	api.GET("/audit", s.listAudit)
	api.POST("/audit", s.createAudit)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// audit records an action. Persistence failures are swallowed by the store.
func (s *Server) audit(c *gin.Context, action string, target connector.AuditTarget, targetID string, details any) {
	s.deps.Store.AppendAudit(c.Request.Context(), connector.AuditEntry{
		UserEmail:  c.GetHeader("X-User-Email"),
		Action:     action,
		TargetType: target,
		TargetID:   targetID,
		Details:    details,
	})
}
