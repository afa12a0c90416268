package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/GigaElk/schedfleet/internal/correlation"
	"github.com/GigaElk/schedfleet/internal/domain"
	"github.com/GigaElk/schedfleet/internal/fleet"
	"github.com/GigaElk/schedfleet/internal/readiness"
	"github.com/gin-gonic/gin"
)

const defaultTailLimit = 50

// FleetHandler exposes the administrative surface: health and metrics
// reads, lifecycle commands, observability tails, and the readiness
// report. Every mutation is idempotent; re-starting a healthy scheduler
// is a logged no-op inside the engine.
type FleetHandler struct {
	fleet     *fleet.Fleet
	validator *readiness.Validator
	logger    *slog.Logger
}

func NewFleetHandler(f *fleet.Fleet, validator *readiness.Validator, logger *slog.Logger) *FleetHandler {
	return &FleetHandler{
		fleet:     f,
		validator: validator,
		logger:    logger.With("component", "fleet_handler"),
	}
}

func (h *FleetHandler) ListHealth(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"schedulers": h.fleet.AllHealth()})
}

func (h *FleetHandler) GetHealth(ctx *gin.Context) {
	name := ctx.Param("name")
	health, err := h.fleet.Health(name)
	if err != nil {
		h.writeError(ctx, name, "get health", err)
		return
	}
	ctx.JSON(http.StatusOK, health)
}

func (h *FleetHandler) GetMetrics(ctx *gin.Context) {
	name := ctx.Param("name")
	m, err := h.fleet.Metrics(name)
	if err != nil {
		h.writeError(ctx, name, "get metrics", err)
		return
	}
	ctx.JSON(http.StatusOK, m)
}

func (h *FleetHandler) ListMetrics(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"schedulers": h.fleet.AllMetrics()})
}

func (h *FleetHandler) Start(ctx *gin.Context) {
	name := ctx.Param("name")
	if err := h.fleet.StartScheduler(ctx.Request.Context(), name); err != nil {
		h.writeError(ctx, name, "start scheduler", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"scheduler": name, "action": "start"})
}

func (h *FleetHandler) Stop(ctx *gin.Context) {
	name := ctx.Param("name")
	if err := h.fleet.StopScheduler(ctx.Request.Context(), name); err != nil {
		h.writeError(ctx, name, "stop scheduler", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"scheduler": name, "action": "stop"})
}

func (h *FleetHandler) Restart(ctx *gin.Context) {
	name := ctx.Param("name")
	if err := h.fleet.RestartScheduler(ctx.Request.Context(), name); err != nil {
		h.writeError(ctx, name, "restart scheduler", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"scheduler": name, "action": "restart"})
}

func (h *FleetHandler) Recover(ctx *gin.Context) {
	name := ctx.Param("name")
	if err := h.fleet.Recover(ctx.Request.Context(), name); err != nil {
		h.writeError(ctx, name, "recover scheduler", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"scheduler": name, "action": "recover"})
}

// StartAll kicks off fleet startup and returns immediately: staggered
// startup can span many phases and inter-phase delays, far beyond what a
// request should block on. The detached context keeps the correlation ID
// so the phases remain traceable to this command.
func (h *FleetHandler) StartAll(ctx *gin.Context) {
	bg := correlation.WithID(context.Background(), correlation.FromContext(ctx.Request.Context()))
	go h.fleet.StartAll(bg)
	ctx.JSON(http.StatusAccepted, gin.H{"action": "start_all"})
}

func (h *FleetHandler) StopAll(ctx *gin.Context) {
	bg := correlation.WithID(context.Background(), correlation.FromContext(ctx.Request.Context()))
	go h.fleet.StopAll(bg)
	ctx.JSON(http.StatusAccepted, gin.H{"action": "stop_all"})
}

func (h *FleetHandler) Events(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"events": h.fleet.Events(tailLimit(ctx))})
}

func (h *FleetHandler) RecoveryHistory(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"actions": h.fleet.RecoveryHistory(tailLimit(ctx))})
}

func (h *FleetHandler) Readiness(ctx *gin.Context) {
	report := h.validator.RunAll(ctx.Request.Context())
	code := http.StatusOK
	if report.Status == readiness.LevelCritical {
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, report)
}

func (h *FleetHandler) ExportSnapshot(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.fleet.ExportSnapshot())
}

func (h *FleetHandler) ImportSnapshot(ctx *gin.Context) {
	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidSnapshot})
		return
	}
	snap, err := fleet.UnmarshalSnapshot(body)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidSnapshot})
		return
	}
	if err := h.fleet.ImportSnapshot(snap); err != nil {
		if errors.Is(err, domain.ErrSchedulerNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errSchedulerNotFound})
			return
		}
		h.logger.Error("import snapshot", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"action": "import_snapshot"})
}

// writeError maps domain errors to structured responses naming the
// scheduler and reason.
func (h *FleetHandler) writeError(ctx *gin.Context, name, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrSchedulerNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": errSchedulerNotFound, "scheduler": name})
	case errors.Is(err, domain.ErrDependencyNotHealthy):
		ctx.JSON(http.StatusConflict, gin.H{"error": errDependencyNotHealthy, "scheduler": name, "reason": err.Error()})
	case errors.Is(err, domain.ErrSchedulerStopping):
		ctx.JSON(http.StatusConflict, gin.H{"error": errSchedulerStopping, "scheduler": name})
	default:
		h.logger.Error(op, "scheduler", name, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer, "scheduler": name})
	}
}

func tailLimit(ctx *gin.Context) int {
	if raw := ctx.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return defaultTailLimit
}
