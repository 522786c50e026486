package handler

import (
	"github.com/gin-gonic/gin"
)

// Health reports that the server is up together with a few runtime counters.
func (h *Handler) Health(c *gin.Context) {
	cacheType, hits, misses := h.engine.CacheStats()
	data := gin.H{
		"status":  "ok",
		"viewers": h.engine.Viewers(),
		"cache": gin.H{
			"type":   cacheType,
			"hits":   hits,
			"misses": misses,
		},
	}
	if h.jobs != nil {
		data["jobs"] = h.jobs.GetJobs()
	}
	h.ok(c, data)
}
