package handler

import (
	"github.com/gin-gonic/gin"
)

// AllSwimmers returns the full standings.
func (h *Handler) AllSwimmers(c *gin.Context) {
	standings, err := h.engine.Standings(c.Request.Context())
	if err != nil {
		h.Fail(c, err)
		return
	}
	h.ok(c, standings)
}

// SwimmerInfo returns a single swimmer.
func (h *Handler) SwimmerInfo(c *gin.Context) {
	swimmer, err := h.engine.GetSwimmer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Fail(c, err)
		return
	}
	h.ok(c, swimmer)
}

// SwimmerAchievement returns rank and distance of a swimmer.
func (h *Handler) SwimmerAchievement(c *gin.Context) {
	achievement, err := h.engine.Achievement(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Fail(c, err)
		return
	}
	h.ok(c, achievement)
}

func (h *Handler) AddLap(c *gin.Context) {
	req, ok := h.bindSwimmer(c)
	if !ok {
		return
	}
	swimmer, err := h.engine.AddLap(c.Request.Context(), h.actor(c), req.ID)
	if err != nil {
		h.Fail(c, err)
		return
	}
	h.ok(c, swimmer)
}

func (h *Handler) SubLap(c *gin.Context) {
	req, ok := h.bindSwimmer(c)
	if !ok {
		return
	}
	swimmer, err := h.engine.SubLap(c.Request.Context(), h.actor(c), req.ID)
	if err != nil {
		h.Fail(c, err)
		return
	}
	h.ok(c, swimmer)
}

func (h *Handler) AddSwimmer(c *gin.Context) {
	req, ok := h.bindSwimmer(c)
	if !ok {
		return
	}
	swimmer, err := h.engine.AddSwimmer(c.Request.Context(), h.actor(c), req.ID, req.Name)
	if err != nil {
		h.Fail(c, err)
		return
	}
	h.ok(c, swimmer)
}

func (h *Handler) DeleteSwimmer(c *gin.Context) {
	req, ok := h.bindSwimmer(c)
	if !ok {
		return
	}
	if err := h.engine.DeleteSwimmer(c.Request.Context(), h.actor(c), req.ID); err != nil {
		h.Fail(c, err)
		return
	}
	h.ok(c, nil)
}

func (h *Handler) RenameSwimmer(c *gin.Context) {
	req, ok := h.bindSwimmer(c)
	if !ok {
		return
	}
	swimmer, err := h.engine.RenameSwimmer(c.Request.Context(), h.actor(c), req.ID, req.Name)
	if err != nil {
		h.Fail(c, err)
		return
	}
	h.ok(c, swimmer)
}
