package handler

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/erp/backoffice/internal/interfaces/http/dto"
	"github.com/erp/backoffice/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// StatsSource reports runtime figures for one dependency
type StatsSource func() (any, error)

// SystemHandler serves health and build information
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	checks    map[string]HealthCheck
	stats     map[string]StatsSource
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name, version string) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]HealthCheck),
		stats:     make(map[string]StatsSource),
	}
}

// AddCheck registers a dependency probe reported by Health
func (h *SystemHandler) AddCheck(name string, check HealthCheck) *SystemHandler {
	h.checks[name] = check
	return h
}

// AddStats registers a source included in the system info response
func (h *SystemHandler) AddStats(name string, source StatsSource) *SystemHandler {
	h.stats[name] = source
	return h
}

// Routes builds the /health and /system groups
func (h *SystemHandler) Routes() []*router.DomainGroup {
	health := router.NewDomainGroup("health", "/health")
	health.GET("", h.Health)

	system := router.NewDomainGroup("system", "/system")
	system.GET("/info", h.GetSystemInfo)
	return []*router.DomainGroup{health, system}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string         `json:"name"`
	Version   string         `json:"version"`
	GoVersion string         `json:"go_version"`
	Uptime    string         `json:"uptime"`
	Stats     map[string]any `json:"stats,omitempty"`
}

// GetSystemInfo godoc
// @Summary  Get build and uptime information
// @Tags     system
// @Router   /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if len(h.stats) > 0 {
		info.Stats = make(map[string]any, len(h.stats))
		for name, source := range h.stats {
			v, err := source()
			if err != nil {
				info.Stats[name] = map[string]string{"error": err.Error()}
				continue
			}
			info.Stats[name] = v
		}
	}
	h.Success(c, info)
}

// HealthResponse reports overall and per-dependency status
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health godoc
// @Summary  Report service health; 503 when any dependency probe fails
// @Tags     system
// @Router   /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	for _, name := range names {
		if err := h.checks[name](c.Request.Context()); err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	if resp.Status != "ok" {
		c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
		return
	}
	h.Success(c, resp)
}
