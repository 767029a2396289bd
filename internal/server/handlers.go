package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"flight-price-checker/internal/models"
	"flight-price-checker/internal/monitor"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type handler struct {
	deps Deps
}

type monitorResponse struct {
	ID            string            `json:"id"`
	OwnerID       int64             `json:"owner_id"`
	Origin        string            `json:"origin"`
	Destination   string            `json:"destination"`
	DepartDate    string            `json:"depart_date"`
	ReturnDate    string            `json:"return_date"`
	Filter        models.TimeFilter `json:"time_filter"`
	LowestPrice   *int64            `json:"lowest_price"`
	OverallLowest *int64            `json:"overall_lowest_price"`
	Status        models.Status     `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	LastCheckedAt *time.Time        `json:"last_checked_at,omitempty"`
	EndedAt       *time.Time        `json:"ended_at,omitempty"`
}

func toResponse(m *models.Monitor) monitorResponse {
	return monitorResponse{
		ID:            m.ID,
		OwnerID:       m.OwnerID,
		Origin:        m.Origin,
		Destination:   m.Destination,
		DepartDate:    m.DepartDate,
		ReturnDate:    m.ReturnDate,
		Filter:        m.Filter,
		LowestPrice:   m.LowestPrice,
		OverallLowest: m.OverallLowest,
		Status:        m.Status,
		CreatedAt:     m.CreatedAt,
		LastCheckedAt: m.LastCheckedAt,
		EndedAt:       m.EndedAt,
	}
}

func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.deps.Checks))
	for name := range h.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := make(gin.H, len(names))
	for _, name := range names {
		if err := h.deps.Checks[name].Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

// GET /api/v1/monitors?owner_id=
func (h *handler) listMonitors(c *gin.Context) {
	ownerID := monitor.AllOwners
	if raw := c.Query("owner_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id must be a positive integer"})
			return
		}
		ownerID = id
	}

	monitors, err := h.deps.Registry.ListActive(c.Request.Context(), ownerID)
	if err != nil {
		h.deps.Logger.Error("failed to list monitors", zap.Int64("owner_id", ownerID), zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list monitors"})
		return
	}

	out := make([]monitorResponse, 0, len(monitors))
	for i := range monitors {
		out = append(out, toResponse(&monitors[i]))
	}
	c.JSON(http.StatusOK, gin.H{"monitors": out, "count": len(out)})
}

// GET /api/v1/monitors/:id
func (h *handler) getMonitor(c *gin.Context) {
	id := c.Param("id")

	m, err := h.deps.Registry.Get(c.Request.Context(), id)
	switch {
	case errors.Is(err, monitor.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "monitor not found"})
		return
	case err != nil:
		h.deps.Logger.Error("failed to get monitor", zap.String("monitor_id", id), zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get monitor"})
		return
	}

	c.JSON(http.StatusOK, toResponse(m))
}

// GET /api/v1/scheduler
func (h *handler) schedulerStatus(c *gin.Context) {
	if h.deps.Scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not running"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"phase":      h.deps.Scheduler.Phase().String(),
		"last_cycle": h.deps.Scheduler.Stats(),
	})
}
