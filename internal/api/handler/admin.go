package handler

import (
	"strconv"
	"strings"

	"github.com/ccoveille/go-safecast"
	"github.com/gin-gonic/gin"
	"github.com/swim4love/swim4love/internal/engine"
)

type volunteerRequest struct {
	ID       string `form:"id" json:"id"`
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
	IsAdmin  bool   `form:"is_admin" json:"is_admin"`
}

func parseUintParam(param string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(param), 10, 64)
	if err != nil {
		return 0, err
	}
	return safecast.ToUint(id)
}

// Volunteers lists all volunteer accounts.
func (h *Handler) Volunteers(c *gin.Context) {
	volunteers, err := h.engine.Volunteers(c.Request.Context())
	if err != nil {
		h.Fail(c, err)
		return
	}
	h.ok(c, volunteers)
}

// AddVolunteer registers a volunteer account.
func (h *Handler) AddVolunteer(c *gin.Context) {
	var req volunteerRequest
	if err := c.ShouldBind(&req); err != nil {
		h.Fail(c, engine.ErrMalformed)
		return
	}
	volunteer, err := h.engine.RegisterVolunteer(c.Request.Context(), h.actor(c), req.Username, req.Password, req.IsAdmin)
	if err != nil {
		h.Fail(c, err)
		return
	}
	h.ok(c, volunteer)
}

// DeleteVolunteer removes a volunteer account.
func (h *Handler) DeleteVolunteer(c *gin.Context) {
	var req volunteerRequest
	if err := c.ShouldBind(&req); err != nil {
		h.Fail(c, engine.ErrMalformed)
		return
	}
	id, err := parseUintParam(req.ID)
	if err != nil {
		h.Fail(c, engine.ErrMalformed)
		return
	}
	if err := h.engine.DeleteVolunteer(c.Request.Context(), h.actor(c), id); err != nil {
		h.Fail(c, err)
		return
	}
	h.ok(c, nil)
}
