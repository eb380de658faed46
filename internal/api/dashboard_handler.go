package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// getDashboard returns the combined monitor snapshot.
// GET /api/v1/dashboard
func (r *Router) getDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"imports":       r.tracker.Snapshot(),
		"events":        r.chart.Snapshot(),
		"term":          r.terms.Snapshot(),
		"canvas_status": r.canvas.Snapshot(),
	})
}

// getImports returns the import tracker snapshot only.
// GET /api/v1/dashboard/imports
func (r *Router) getImports(c *gin.Context) {
	c.JSON(http.StatusOK, r.tracker.Snapshot())
}

// getEvents returns the chart/gauge snapshot. `min` and `max`
// (millisecond epoch) restrict the running-total overlay to a visible
// window; `reset=true` restores the full history first.
// GET /api/v1/dashboard/events?min=...&max=...
func (r *Router) getEvents(c *gin.Context) {
	if c.Query("reset") == "true" {
		r.chart.ResetVisibleRange()
	}

	minParam, maxParam := c.Query("min"), c.Query("max")
	if minParam != "" || maxParam != "" {
		minMs, errMin := strconv.ParseInt(minParam, 10, 64)
		maxMs, errMax := strconv.ParseInt(maxParam, 10, 64)
		if errMin != nil || errMax != nil || maxMs < minMs {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "min and max must both be millisecond timestamps with min <= max",
			})
			return
		}
		r.chart.SetVisibleRange(time.UnixMilli(minMs), time.UnixMilli(maxMs))
	}

	c.JSON(http.StatusOK, r.chart.Snapshot())
}
