package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/swim4love/swim4love/internal/engine"
	"github.com/swim4love/swim4love/internal/scheduler"
)

type skippedRow struct {
	Line int         `json:"line"`
	ID   string      `json:"id,omitempty"`
	Code engine.Code `json:"code"`
	Msg  string      `json:"msg"`
}

// ImportSwimmers registers the swimmers of an uploaded CSV file (form field "file").
func (h *Handler) ImportSwimmers(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		h.Fail(c, engine.ErrMalformed)
		return
	}
	file, err := header.Open()
	if err != nil {
		h.Fail(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	result, err := h.engine.ImportSwimmers(c.Request.Context(), h.actor(c), file)
	if err != nil {
		h.Fail(c, err)
		return
	}

	skipped := make([]skippedRow, 0, len(result.Skipped))
	for _, row := range result.Skipped {
		code := engine.ErrorCode(row.Err)
		skipped = append(skipped, skippedRow{
			Line: row.Line,
			ID:   row.ID,
			Code: code,
			Msg:  code.Message(h.config.Locale, row.ID),
		})
	}
	added := result.Added
	if added == nil {
		added = []string{}
	}
	h.ok(c, gin.H{
		"added":   added,
		"skipped": skipped,
	})
}

// RunJob triggers a background job immediately.
func (h *Handler) RunJob(c *gin.Context) {
	id := c.PostForm("id")
	if id == "" {
		h.Fail(c, engine.ErrMalformed)
		return
	}
	if h.jobs == nil {
		h.Fail(c, engine.ErrNotFound)
		return
	}
	if err := h.jobs.RunJobNow(id); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			h.Fail(c, engine.ErrNotFound)
			return
		}
		h.Fail(c, err)
		return
	}
	h.ok(c, gin.H{"id": id})
}
