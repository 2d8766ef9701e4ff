package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/artifacts"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/config"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/errhandling"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/logger"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/scheduler"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/validation"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

type createPipelineRequest struct {
	Name        string                    `json:"name" validate:"required,max=200"`
	Description string                    `json:"description"`
	OwnerEmail  string                    `json:"ownerEmail" validate:"omitempty,email"`
	Trigger     connector.Trigger         `json:"trigger" validate:"omitempty,oneof=manual scheduled event"`
	Schedule    string                    `json:"schedule"`
	Steps       []connector.Step          `json:"steps"`
	Artifacts   *connector.ArtifactBundle `json:"artifacts"`
}

// updatePipelineRequest only carries the fields present in the body.
type updatePipelineRequest struct {
	Name        *string                   `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string                   `json:"description"`
	OwnerEmail  *string                   `json:"ownerEmail" validate:"omitempty,email"`
	Status      *connector.PipelineStatus `json:"status" validate:"omitempty,oneof=draft running active succeeded failed deployed archived"`
	Trigger     *connector.Trigger        `json:"trigger" validate:"omitempty,oneof=manual scheduled event"`
	Schedule    *string                   `json:"schedule"`
	Steps       *[]connector.Step         `json:"steps"`
}

func (s *Server) listPipelines(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Store.List())
}

func (s *Server) getPipeline(c *gin.Context) {
	p, ok := s.deps.Store.Get(c.Param("id"))
	if !ok {
		respondError(c, errhandling.NotFound("server.pipeline", "Not found"))
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) createPipeline(c *gin.Context) {
	var req createPipelineRequest
	if !s.bind(c, &req) {
		return
	}
	p := connector.Pipeline{
		Name:        req.Name,
		Description: req.Description,
		OwnerEmail:  req.OwnerEmail,
		Status:      connector.StatusDraft,
		Trigger:     req.Trigger,
		Schedule:    req.Schedule,
		Steps:       req.Steps,
	}
	if p.OwnerEmail == "" {
		p.OwnerEmail = config.DefaultOwner
	}
	if p.Trigger == "" {
		p.Trigger = connector.TriggerManual
	}
	if p.Steps == nil {
		p.Steps = []connector.Step{}
	}
	if err := checkPipeline(p); err != nil {
		respondError(c, err)
		return
	}

	saved := s.deps.Store.Save(c.Request.Context(), p)
	if req.Artifacts != nil && s.deps.Artifacts != nil {
		if err := s.deps.Artifacts.Save(saved.ID, *req.Artifacts); err != nil {
			logger.Error("failed to save pipeline artifacts",
				slog.String("pipeline_id", saved.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	s.refreshSchedule(saved)
	s.audit(c, "created pipeline", connector.AuditPipeline, saved.ID, gin.H{"name": saved.Name})
	c.JSON(http.StatusCreated, saved)
}

func (s *Server) updatePipeline(c *gin.Context) {
	existing, ok := s.deps.Store.Get(c.Param("id"))
	if !ok {
		respondError(c, errhandling.NotFound("server.pipeline", "Not found"))
		return
	}
	var req updatePipelineRequest
	if !s.bind(c, &req) {
		return
	}

	p := existing
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.OwnerEmail != nil {
		p.OwnerEmail = *req.OwnerEmail
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	if req.Trigger != nil {
		p.Trigger = *req.Trigger
	}
	if req.Schedule != nil {
		p.Schedule = *req.Schedule
	}
	if req.Steps != nil {
		p.Steps = *req.Steps
	}
	if err := checkPipeline(p); err != nil {
		respondError(c, err)
		return
	}

	saved := s.deps.Store.Save(c.Request.Context(), p)
	s.refreshSchedule(saved)
	s.audit(c, "updated pipeline", connector.AuditPipeline, saved.ID, gin.H{"version": saved.Version})
	c.JSON(http.StatusOK, saved)
}

func (s *Server) deletePipeline(c *gin.Context) {
	id := c.Param("id")
	if !s.deps.Store.Delete(c.Request.Context(), id) {
		respondError(c, errhandling.NotFound("server.pipeline", "Not found"))
		return
	}
	if s.deps.Scheduler != nil {
		_ = s.deps.Scheduler.Unregister(id)
	}
	s.audit(c, "deleted pipeline", connector.AuditPipeline, id, nil)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) executePipeline(c *gin.Context) {
	id := c.Param("id")
	exec, err := s.deps.Runner.Run(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	s.audit(c, "executed pipeline", connector.AuditExecution, exec.ID, gin.H{
		"pipelineId": id,
		"status":     exec.Status,
		"strategy":   exec.Strategy,
	})
	c.JSON(http.StatusCreated, exec)
}

func (s *Server) pipelineConfig(c *gin.Context) {
	if s.deps.Artifacts == nil {
		respondError(c, errhandling.NotFound("server.config", "No config found"))
		return
	}
	summary, err := s.deps.Artifacts.ConfigSummary(c.Param("id"))
	if err != nil {
		if errhandling.IsNotFound(err) {
			respondError(c, errhandling.NotFound("server.config", "No config found"))
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) pipelineChecks(c *gin.Context) {
	p, ok := s.deps.Store.Get(c.Param("id"))
	if !ok {
		respondError(c, errhandling.NotFound("server.checks", "Not found"))
		return
	}
	c.JSON(http.StatusOK, validation.Checklist(p, s.configSummary(p.ID)))
}

func (s *Server) configSummary(id string) *artifacts.ConfigSummary {
	if s.deps.Artifacts == nil {
		return nil
	}
	summary, err := s.deps.Artifacts.ConfigSummary(id)
	if err != nil {
		return nil
	}
	return summary
}

func (s *Server) refreshSchedule(p connector.Pipeline) {
	if s.deps.Scheduler != nil {
		s.deps.Scheduler.Refresh(p)
	}
}

// checkPipeline validates the step configurations and the schedule.
func checkPipeline(p connector.Pipeline) error {
	if err := validation.ValidateSteps(p.Steps); err != nil {
		return err
	}
	if p.Trigger == connector.TriggerScheduled && p.Schedule != "" {
		if err := scheduler.ValidateCronExpression(p.Schedule); err != nil {
			return errhandling.Validation("server.pipeline", "invalid schedule", err)
		}
	}
	return nil
}
