package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/swim4love/swim4love/internal/api/models"
	"github.com/swim4love/swim4love/internal/engine"
)

func (h *Handler) ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, models.Success(h.config.Locale, data))
}

// Fail writes err as a structured response. Internal errors get a diagnostic id that is also logged.
func (h *Handler) Fail(c *gin.Context, err error) {
	resp := models.Failure(h.config.Locale, err)
	if resp.Code == engine.CodeInternal {
		resp.ErrorID = uuid.New().String()
		log.Error("Request failed", "path", c.FullPath(), "error_id", resp.ErrorID, "error", err)
	}
	c.AbortWithStatusJSON(resp.Code.HTTPStatus(), resp)
}

// Recovery turns panics into an internal error response.
func (h *Handler) Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		resp := models.Response{
			Code:    engine.CodeInternal,
			Msg:     engine.CodeInternal.Message(h.config.Locale, ""),
			ErrorID: uuid.New().String(),
		}
		log.Error("Recovered from panic", "path", c.Request.URL.Path, "error_id", resp.ErrorID, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
	})
}
