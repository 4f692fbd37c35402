// Package api exposes the thin HTTP surface of SPEC_FULL.md §6: read-only
// dataset queries and sync/doctor trigger endpoints, all routed through
// the same repositories and runtime the CLI and scheduler use — nothing
// here talks to *gorm.DB directly. Grounded on the teacher's
// Handler/RegisterRoutes/Response shape (internal/api/hander.go), trimmed
// to this module's actual surface.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"leeksaver/internal/doctor"
	"leeksaver/internal/jobrun"
	"leeksaver/internal/repository"
	"leeksaver/internal/syncer"
	"leeksaver/internal/syncstatus"
)

// Response is the uniform envelope every endpoint returns, matching the
// teacher's {code, message, data} shape.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Handler wires the HTTP surface to the runtime pieces it reads from.
type Handler struct {
	symbols  *repository.SymbolRepository
	bars     *repository.DailyBarRepository
	status   syncstatus.Store
	runtime  *jobrun.Runtime
	registry syncer.Registry
	doc      *doctor.Doctor
	logger   *zap.Logger
}

func NewHandler(symbols *repository.SymbolRepository, bars *repository.DailyBarRepository, status syncstatus.Store, runtime *jobrun.Runtime, reg syncer.Registry, doc *doctor.Doctor, logger *zap.Logger) *Handler {
	return &Handler{symbols: symbols, bars: bars, status: status, runtime: runtime, registry: reg, doc: doc, logger: logger}
}

// RegisterRoutes mounts the /api/v1 group.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", h.HealthCheck)

		data := v1.Group("/data")
		{
			data.GET("/symbols", h.ListSymbols)
			data.GET("/symbols/:code/daily-bars", h.DailyBars)
		}

		sync := v1.Group("/sync")
		{
			sync.GET("/status", h.SyncStatusAll)
			sync.GET("/status/:task", h.SyncStatusOne)
			sync.POST("/trigger/:task", h.SyncTrigger)
		}

		v1.POST("/doctor/run", h.DoctorRun)
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "OK", Data: gin.H{"status": "healthy"}})
}

func (h *Handler) ListSymbols(c *gin.Context) {
	symbols, err := h.symbols.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Code: 1, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 0, Message: "OK", Data: symbols})
}

func (h *Handler) DailyBars(c *gin.Context) {
	code := c.Param("code")
	start, end := parseDateRange(c.Query("start"), c.Query("end"))

	bars, err := h.bars.RangeByCode(c.Request.Context(), code, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Code: 1, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 0, Message: "OK", Data: bars})
}

func (h *Handler) SyncStatusAll(c *gin.Context) {
	snaps, err := h.status.All(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Code: 1, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 0, Message: "OK", Data: snaps})
}

func (h *Handler) SyncStatusOne(c *gin.Context) {
	snap, ok, err := h.status.Get(c.Request.Context(), c.Param("task"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Code: 1, Message: err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, Response{Code: 1, Message: "no status recorded for task"})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 0, Message: "OK", Data: snap})
}

type triggerRequest struct {
	Code string `json:"code"`
	Date string `json:"date"`
}

func (h *Handler) SyncTrigger(c *gin.Context) {
	name := c.Param("task")
	s, err := h.registry.Get(name)
	if err != nil {
		c.JSON(http.StatusNotFound, Response{Code: 1, Message: err.Error()})
		return
	}

	var req triggerRequest
	_ = c.ShouldBindJSON(&req)

	scope := syncer.Scope{Date: req.Date}
	if req.Code != "" {
		scope.Codes = []string{req.Code}
	}

	dedupKey := fmt.Sprintf("trigger:%s:%s", name, req.Code)
	submitted := h.runtime.Submit(&jobrun.Job{
		Name:     name,
		DedupKey: dedupKey,
		Deadline: 10 * time.Minute,
		Run: func(ctx context.Context) error {
			_, runErr := s.Run(ctx, scope)
			return runErr
		},
	})
	if !submitted {
		c.JSON(http.StatusConflict, Response{Code: 1, Message: "task already running"})
		return
	}
	c.JSON(http.StatusAccepted, Response{Code: 0, Message: "triggered"})
}

func (h *Handler) DoctorRun(c *gin.Context) {
	report, err := h.doc.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Code: 1, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 0, Message: "OK", Data: report})
}

func parseDateRange(startStr, endStr string) (time.Time, time.Time) {
	end := time.Now()
	if endStr != "" {
		if t, err := time.Parse("2006-01-02", endStr); err == nil {
			end = t
		}
	}
	start := end.AddDate(0, -1, 0)
	if startStr != "" {
		if t, err := time.Parse("2006-01-02", startStr); err == nil {
			start = t
		}
	}
	return start, end
}
