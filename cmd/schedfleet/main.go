package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GigaElk/schedfleet/config"
	"github.com/GigaElk/schedfleet/internal/alert"
	"github.com/GigaElk/schedfleet/internal/domain"
	"github.com/GigaElk/schedfleet/internal/fleet"
	"github.com/GigaElk/schedfleet/internal/health"
	"github.com/GigaElk/schedfleet/internal/lifecycle"
	ctxlog "github.com/GigaElk/schedfleet/internal/log"
	"github.com/GigaElk/schedfleet/internal/metrics"
	"github.com/GigaElk/schedfleet/internal/readiness"
	httptransport "github.com/GigaElk/schedfleet/internal/transport/http"
	"github.com/GigaElk/schedfleet/internal/transport/http/handler"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profile := cfg.FleetProfile()
	logger.Info("fleet profile selected", "profile", profile.Name, "startup_mode", profile.StartupMode)

	alerts := alert.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)

	fl := fleet.New(fleet.Options{
		Profile: profile,
		Logger:  logger,
		Alerts:  alerts,
		AlertTo: cfg.AlertTo,
	})

	if err := registerSchedulers(fl, logger); err != nil {
		log.Fatalf("register schedulers: %v", err)
	}

	validator := newValidator(fl, cfg, logger)
	report := validator.RunAll(ctx)
	if report.Status == readiness.LevelCritical {
		for _, rec := range report.Recommendations {
			logger.Error("startup validation", "recommendation", rec)
		}
		log.Fatalf("startup validation failed: %s", report.Status)
	}

	metrics.Register()
	metrics.FleetStartTime.SetToCurrentTime()
	checker := health.NewChecker(fl, logger, prometheus.DefaultRegisterer)

	fleetHandler := handler.NewFleetHandler(fl, validator, logger)
	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, fleetHandler, []byte(cfg.JWTSecret)),
	}
	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("admin server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("admin server: %v", err)
		}
	}()
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	go fl.Monitor().Start(ctx)
	if recovery := fl.RecoveryLoop(); recovery != nil {
		go recovery.Start(ctx)
	} else {
		logger.Info("automated recovery disabled by profile", "profile", profile.Name)
	}

	fl.StartAll(ctx)

	<-ctx.Done()
	stop()

	shutdown := lifecycle.NewSequencer(logger).
		Add(lifecycle.Phase{
			// Stops accepting new admin requests and drains in-flight ones.
			Name:    "drain_admin_server",
			Timeout: 10 * time.Second,
			Run:     srv.Shutdown,
		}).
		Add(lifecycle.Phase{
			Name:     "stop_schedulers",
			Timeout:  2 * time.Minute,
			Required: true,
			Run: func(phaseCtx context.Context) error {
				fl.StopAll(phaseCtx)
				return nil
			},
		}).
		Add(lifecycle.Phase{
			Name:    "stop_metrics_server",
			Timeout: 10 * time.Second,
			Run:     metricsSrv.Shutdown,
		}).
		Add(lifecycle.Phase{
			Name:    "final_cleanup",
			Timeout: 5 * time.Second,
			Run: func(context.Context) error {
				fl.Close()
				return nil
			},
		})

	if err := shutdown.Run(context.Background()); err != nil {
		logger.Error("graceful shutdown aborted, terminating", "error", err)
		os.Exit(1)
	}

	logger.Info("schedfleet shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}

// registerSchedulers installs the built-in housekeeping schedulers.
// Deployment-specific jobs register here through the same contract.
func registerSchedulers(fl *fleet.Fleet, logger *slog.Logger) error {
	if err := fl.Register(domain.SchedulerConfig{
		Name:     "heartbeat",
		Schedule: domain.Every(30 * time.Second),
		Enabled:  true,
		Timeout:  5 * time.Second,
		Priority: 10,
	}, &heartbeatJob{logger: logger}); err != nil {
		return err
	}

	return fl.Register(domain.SchedulerConfig{
		Name:         "fleet-digest",
		Schedule:     domain.Cron("*/5 * * * *"),
		Enabled:      true,
		Timeout:      30 * time.Second,
		Priority:     5,
		Dependencies: []string{"heartbeat"},
	}, &digestJob{fleet: fl, logger: logger})
}

func newValidator(fl *fleet.Fleet, cfg *config.Config, logger *slog.Logger) *readiness.Validator {
	v := readiness.NewValidator(logger)

	v.Register(readiness.Check{
		Name:     "schedulers_registered",
		Critical: true,
		Hint:     "register at least one scheduler before starting the fleet",
		Run: func(context.Context) readiness.Outcome {
			n := len(fl.AllHealth())
			return readiness.Outcome{
				Success:  n > 0,
				Message:  fmt.Sprintf("%d schedulers registered", n),
				Metadata: map[string]any{"count": n},
			}
		},
	})

	v.Register(readiness.Check{
		Name:     "dependency_graph",
		Critical: true,
		Hint:     "a scheduler lists a dependency that is not registered",
		Run: func(context.Context) readiness.Outcome {
			registered := make(map[string]bool)
			for _, h := range fl.AllHealth() {
				registered[h.Name] = true
			}
			for _, h := range fl.AllHealth() {
				c, err := fl.Config(h.Name)
				if err != nil {
					continue
				}
				for _, dep := range c.Dependencies {
					if !registered[dep] {
						return readiness.Outcome{
							Success: false,
							Message: fmt.Sprintf("%s depends on unregistered scheduler %s", h.Name, dep),
						}
					}
				}
			}
			return readiness.Outcome{Success: true, Message: "all dependencies resolve"}
		},
	})

	v.Register(readiness.Check{
		Name: "alerting_configured",
		Hint: "set ALERT_TO to receive fail-stop notifications",
		Run: func(context.Context) readiness.Outcome {
			if cfg.Env != "local" && cfg.AlertTo == "" {
				return readiness.Outcome{Success: false, Message: "no alert recipient configured"}
			}
			return readiness.Outcome{Success: true}
		},
	})

	return v
}

type heartbeatJob struct {
	fleet.NoopHooks
	logger *slog.Logger
}

func (j *heartbeatJob) Execute(ctx context.Context) error {
	j.logger.DebugContext(ctx, "heartbeat")
	return nil
}

// digestJob periodically summarizes fleet state into the log so an
// operator tailing it sees the shape of the fleet without the API.
type digestJob struct {
	fleet.NoopHooks
	fleet  *fleet.Fleet
	logger *slog.Logger
}

func (j *digestJob) Execute(ctx context.Context) error {
	byStatus := make(map[domain.Status]int)
	for _, h := range j.fleet.AllHealth() {
		byStatus[h.Status]++
	}
	j.logger.InfoContext(ctx, "fleet digest",
		"healthy", byStatus[domain.StatusHealthy],
		"degraded", byStatus[domain.StatusDegraded],
		"unhealthy", byStatus[domain.StatusUnhealthy],
		"stopped", byStatus[domain.StatusStopped],
		"events", len(j.fleet.Events(0)),
	)
	return nil
}
