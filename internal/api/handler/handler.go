package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/swim4love/swim4love/internal/api/auth"
	"github.com/swim4love/swim4love/internal/api/models"
	"github.com/swim4love/swim4love/internal/config"
	"github.com/swim4love/swim4love/internal/engine"
	"github.com/swim4love/swim4love/internal/scheduler"
)

// JobRunner reports the state of background jobs and triggers them on demand.
type JobRunner interface {
	GetJobs() []scheduler.JobInfo
	RunJobNow(id string) error
}

type Handler struct {
	engine *engine.Engine
	config *config.Config
	auth   *auth.Provider
	jobs   JobRunner
}

// New creates the handler. jobs may be nil.
func New(eng *engine.Engine, cfg *config.Config, authProvider *auth.Provider, jobs JobRunner) *Handler {
	return &Handler{
		engine: eng,
		config: cfg,
		auth:   authProvider,
		jobs:   jobs,
	}
}

// swimmerRequest is the input of the swimmer data routes. Form and JSON bodies are accepted.
type swimmerRequest struct {
	ID   string `form:"id" json:"id"`
	Name string `form:"name" json:"name"`
}

func (h *Handler) bindSwimmer(c *gin.Context) (swimmerRequest, bool) {
	var req swimmerRequest
	if err := c.ShouldBind(&req); err != nil {
		h.Fail(c, engine.ErrMalformed)
		return req, false
	}
	req.ID = strings.TrimSpace(req.ID)
	return req, true
}

// user returns the signed in user. Only valid behind an auth guard.
func (h *Handler) user(c *gin.Context) *models.User {
	return auth.CurrentUser(c)
}

func (h *Handler) actor(c *gin.Context) engine.Actor {
	if user := h.user(c); user != nil {
		return user.Actor()
	}
	return engine.Actor{}
}
