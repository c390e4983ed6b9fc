// Package monitoring - alerts.go flags anomalies and errors.
//
// DESIGN: AlertManager logs notable events at appropriate levels:
//   - FlagSlowRun:           Warn when a run takes longer than the threshold
//   - FlagRunFailure:        Error when a run ends Failed
//   - FlagWidgetUnavailable: Warn when the chat widget API is missing
//   - FlagInvalidRequest:    Debug on rejected HTTP input
//   - FlagPanic:             Error on recovered panics
package monitoring

import "time"

// AlertManager flags anomalies and errors.
type AlertManager struct {
	logger           *Logger
	slowRunThreshold time.Duration
}

// NewAlertManager creates a new alert manager.
func NewAlertManager(logger *Logger, cfg AlertConfig) *AlertManager {
	threshold := cfg.SlowRunThreshold
	if threshold == 0 {
		threshold = 5 * time.Second
	}
	return &AlertManager{logger: logger, slowRunThreshold: threshold}
}

// FlagSlowRun logs when a run's latency exceeds the threshold.
func (am *AlertManager) FlagSlowRun(runID, configName string, latency time.Duration) {
	if latency < am.slowRunThreshold {
		return
	}
	am.logger.Warn().
		Str("run_id", runID).
		Str("config", configName).
		Dur("latency", latency).
		Msg("slow_run")
}

// FlagRunFailure logs a run that ended Failed.
func (am *AlertManager) FlagRunFailure(runID, configName, kind string, err error) {
	am.logger.Error().
		Str("run_id", runID).
		Str("config", configName).
		Str("kind", kind).
		Err(err).
		Msg("run_failed")
}

// FlagWidgetUnavailable logs a degraded widget interaction.
func (am *AlertManager) FlagWidgetUnavailable(runID, op string, err error) {
	am.logger.Warn().
		Str("run_id", runID).
		Str("op", op).
		Err(err).
		Msg("widget_unavailable")
}

// FlagInvalidRequest logs invalid request.
func (am *AlertManager) FlagInvalidRequest(requestID, reason string) {
	am.logger.Debug().
		Str("request_id", requestID).
		Str("reason", reason).
		Msg("invalid_request")
}

// FlagPanic logs recovered panic.
func (am *AlertManager) FlagPanic(requestID string, panicValue interface{}, stack string) {
	am.logger.Error().
		Str("request_id", requestID).
		Interface("panic", panicValue).
		Str("stack", stack).
		Msg("panic_recovered")
}
