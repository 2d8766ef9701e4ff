package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/assist"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/connectors"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/errhandling"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

func (s *Server) listExecutions(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Store.ListExecutions(c.Query("pipelineId")))
}

func (s *Server) getExecution(c *gin.Context) {
	e, ok := s.deps.Store.GetExecution(c.Param("id"))
	if !ok {
		respondError(c, errhandling.NotFound("server.execution", "Not found"))
		return
	}
	c.JSON(http.StatusOK, e)
}

type recommendRequest struct {
	Step *connector.Step `json:"step" validate:"required"`
}

func (s *Server) recommend(c *gin.Context) {
	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Step == nil {
		badRequest(c, "Missing step")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": connectors.Recommend(*req.Step)})
}

type sheetsRequest struct {
	Action string         `json:"action" validate:"required"`
	Config map[string]any `json:"config"`
}

func (s *Server) sheets(c *gin.Context) {
	var req sheetsRequest
	if !s.bind(c, &req) {
		return
	}
	if s.deps.Sheets == nil {
		respondError(c, errhandling.Connector("server.sheets", "spreadsheet connector is not configured", nil))
		return
	}
	switch req.Action {
	case "fetch":
		cfg, err := connectors.DecodeSourceConfig(connectors.KindGoogleSheets, req.Config)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := s.deps.Sheets.Read(c.Request.Context(), cfg)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	case "metadata":
		id, _ := req.Config["spreadsheetId"].(string)
		if strings.TrimSpace(id) == "" {
			badRequest(c, "spreadsheetId is required")
			return
		}
		cred, _ := req.Config["credentialsPath"].(string)
		meta, err := s.deps.Sheets.Metadata(c.Request.Context(), id, cred)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, meta)
	default:
		badRequest(c, `Invalid action. Use "fetch" or "metadata"`)
	}
}

type assistRequest struct {
	Prompt   string              `json:"prompt" validate:"required"`
	Pipeline *connector.Pipeline `json:"pipeline"`
}

func (s *Server) assist(c *gin.Context) {
	var req assistRequest
	if !s.bind(c, &req) {
		return
	}
	if !s.aiReady(c) {
		return
	}
	text, err := assist.Assist(c.Request.Context(), s.deps.AI, req.Prompt, req.Pipeline)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

func (s *Server) generatePipeline(c *gin.Context) {
	var req assist.GenerateRequest
	if !s.bind(c, &req) {
		return
	}
	if !s.aiReady(c) {
		return
	}
	g, err := assist.Generate(c.Request.Context(), s.deps.AI, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) aiReady(c *gin.Context) bool {
	if s.deps.AI == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "AI provider is not configured"})
		return false
	}
	return true
}

type auditRequest struct {
	UserEmail  string                `json:"userEmail"`
	Action     string                `json:"action" validate:"required"`
	TargetType connector.AuditTarget `json:"targetType" validate:"required,oneof=pipeline execution system"`
	TargetID   string                `json:"targetId"`
	Details    any                   `json:"details"`
}

func (s *Server) listAudit(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Store.ListAudit())
}

func (s *Server) createAudit(c *gin.Context) {
	var req auditRequest
	if !s.bind(c, &req) {
		return
	}
	entry := s.deps.Store.AppendAudit(c.Request.Context(), connector.AuditEntry{
		UserEmail:  req.UserEmail,
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Details:    req.Details,
	})
	c.JSON(http.StatusCreated, entry)
}
