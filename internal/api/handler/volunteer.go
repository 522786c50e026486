package handler

import (
	"github.com/gin-gonic/gin"
)

// Me returns the signed in volunteer.
func (h *Handler) Me(c *gin.Context) {
	user := h.user(c)
	h.ok(c, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"is_admin": user.IsAdmin,
	})
}

// VolunteerSwimmers returns the swimmers linked to the signed in volunteer.
func (h *Handler) VolunteerSwimmers(c *gin.Context) {
	swimmers, err := h.engine.LinkedSwimmers(c.Request.Context(), h.user(c).ID)
	if err != nil {
		h.Fail(c, err)
		return
	}
	h.ok(c, swimmers)
}

func (h *Handler) LinkSwimmer(c *gin.Context) {
	req, ok := h.bindSwimmer(c)
	if !ok {
		return
	}
	swimmer, err := h.engine.LinkSwimmer(c.Request.Context(), h.actor(c), req.ID)
	if err != nil {
		h.Fail(c, err)
		return
	}
	h.ok(c, swimmer)
}

func (h *Handler) UnlinkSwimmer(c *gin.Context) {
	req, ok := h.bindSwimmer(c)
	if !ok {
		return
	}
	if err := h.engine.UnlinkSwimmer(c.Request.Context(), h.actor(c), req.ID); err != nil {
		h.Fail(c, err)
		return
	}
	h.ok(c, nil)
}
