// Package readiness validates startup preconditions: a registry of named
// checks, each critical or not, run in sequence to classify whether the
// process is fit to serve.
package readiness

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type Level string

const (
	LevelHealthy   Level = "healthy"
	LevelDegraded  Level = "degraded"
	LevelUnhealthy Level = "unhealthy"
	LevelCritical  Level = "critical"
)

// Outcome is what a check function reports back.
type Outcome struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Check is one named validation. Recoverable marks a failure the process
// can heal from on its own (classified unhealthy rather than degraded).
type Check struct {
	Name        string
	Critical    bool
	Recoverable bool
	Timeout     time.Duration
	Hint        string // appended to the recommendation when the check fails
	Run         func(ctx context.Context) Outcome
}

// Result is one check's outcome in the report.
type Result struct {
	Name     string         `json:"name"`
	Critical bool           `json:"critical"`
	Success  bool           `json:"success"`
	Message  string         `json:"message,omitempty"`
	Duration time.Duration  `json:"duration"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Report classifies overall readiness and carries per-check results plus
// textual recommendations derived from what failed.
type Report struct {
	Status          Level     `json:"status"`
	GeneratedAt     time.Time `json:"generated_at"`
	Checks          []Result  `json:"checks"`
	Recommendations []string  `json:"recommendations,omitempty"`
}

type Validator struct {
	logger *slog.Logger
	checks []Check
}

func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{logger: logger.With("component", "readiness")}
}

func (v *Validator) Register(c Check) {
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	v.checks = append(v.checks, c)
}

// RunAll executes every registered check in sequence and classifies the
// result: any critical failure is critical, any recoverable failure with
// no critical one is unhealthy, any other failure is degraded.
func (v *Validator) RunAll(ctx context.Context) Report {
	report := Report{GeneratedAt: time.Now()}

	var criticalFailed, recoverableFailed, anyFailed bool
	for _, c := range v.checks {
		res := v.runOne(ctx, c)
		report.Checks = append(report.Checks, res)

		if res.Success {
			continue
		}
		anyFailed = true
		if c.Critical {
			criticalFailed = true
		}
		if c.Recoverable {
			recoverableFailed = true
		}

		rec := fmt.Sprintf("check %q failed: %s", c.Name, res.Message)
		if c.Hint != "" {
			rec += " — " + c.Hint
		}
		report.Recommendations = append(report.Recommendations, rec)
		v.logger.Warn("readiness check failed", "check", c.Name, "critical", c.Critical, "message", res.Message)
	}

	switch {
	case criticalFailed:
		report.Status = LevelCritical
	case recoverableFailed:
		report.Status = LevelUnhealthy
	case anyFailed:
		report.Status = LevelDegraded
	default:
		report.Status = LevelHealthy
	}

	v.logger.Info("readiness validated", "status", report.Status, "checks", len(report.Checks))
	return report
}

func (v *Validator) runOne(ctx context.Context, c Check) Result {
	checkCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Outcome{Success: false, Message: fmt.Sprintf("check panicked: %v", r)}
			}
		}()
		done <- c.Run(checkCtx)
	}()

	var out Outcome
	select {
	case out = <-done:
	case <-checkCtx.Done():
		out = Outcome{Success: false, Message: fmt.Sprintf("timed out after %s", c.Timeout)}
	}

	return Result{
		Name:     c.Name,
		Critical: c.Critical,
		Success:  out.Success,
		Message:  out.Message,
		Duration: time.Since(start),
		Metadata: out.Metadata,
	}
}
