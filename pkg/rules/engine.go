package rules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// Engine runs the registered detectors over a snapshot pair. A misbehaving
// rule (error or panic) is logged and skipped; it never aborts the cycle or
// suppresses other rules' alerts.
type Engine struct {
	rules  []Definition
	cfg    EngineConfig
	logger *slog.Logger
}

// NewEngine builds an engine over the given detector table. A nil logger
// falls back to slog.Default.
func NewEngine(rules []Definition, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{rules: rules, cfg: cfg, logger: logger}
}

// Evaluate applies every enabled rule to (current, previous) and aggregates
// the alerts. PauseSignal is raised when any alert escalates to HIGH or
// CRITICAL.
func (e *Engine) Evaluate(ctx context.Context, current, previous *Record) model.RulesResult {
	var result model.RulesResult
	if current == nil {
		return result
	}

	for _, def := range e.rules {
		log := e.logger.With("rule", def.Key, "scope", current.Scope)
		if !e.cfg.ruleEnabled(def.Key) {
			log.Debug("rule evaluated", "status", "skipped")
			continue
		}

		alerts, err := runIsolated(ctx, def, current, previous, e.cfg.ruleConfig(def.Key))
		if err != nil {
			log.Error("rule evaluated", "status", "error", "error", err)
			continue
		}

		for i := range alerts {
			if alerts[i].Rule == "" {
				alerts[i].Rule = def.Key
			}
			if alerts[i].Scope == "" {
				alerts[i].Scope = current.Scope
			}
			result.Alerts = append(result.Alerts, alerts[i])
			if alerts[i].Severity.Escalates() {
				result.CriticalAlerts = append(result.CriticalAlerts, alerts[i])
			}
		}
		log.Info("rule evaluated", "status", "ok", "alerts", len(alerts))
	}

	result.PauseSignal = len(result.CriticalAlerts) > 0
	if result.PauseSignal {
		e.logger.Warn("pause signal raised",
			"scope", current.Scope,
			"critical_alerts", len(result.CriticalAlerts))
	}
	return result
}

func runIsolated(ctx context.Context, def Definition, current, previous *Record, cfg Config) (alerts []model.Alert, err error) {
	defer func() {
		if r := recover(); r != nil {
			alerts = nil
			err = fmt.Errorf("rule %s panicked: %v", def.Key, r)
		}
	}()
	return def.Run(ctx, current, previous, cfg), nil
}
