package tools

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/amparo-ai/amparo/pkg/backend/realtime"
	"github.com/amparo-ai/amparo/pkg/core/types"
)

// AlertSink records a safety alert and notifies whoever is configured to
// hear about it.
type AlertSink interface {
	Raise(ctx context.Context, alert types.Alert) (types.Alert, error)
}

type raiseSafetyAlert struct {
	alerts AlertSink
	logger *slog.Logger
}

// NewRaiseSafetyAlert builds the raise_safety_alert executor.
func NewRaiseSafetyAlert(alerts AlertSink, logger *slog.Logger) Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &raiseSafetyAlert{alerts: alerts, logger: logger}
}

func (e *raiseSafetyAlert) Name() string { return "raise_safety_alert" }

func (e *raiseSafetyAlert) Definition() realtime.ToolDef {
	return realtime.ToolDef{
		Type:        "function",
		Name:        e.Name(),
		Description: "Raise an alert to caregivers when the user reports a fall, pain, confusion, distress or another safety concern.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"severity": {"type": "string", "enum": ["info", "warning", "critical"]},
				"description": {"type": "string", "description": "What happened, in the user's own words where possible"}
			},
			"required": ["severity", "description"]
		}`),
	}
}

func (e *raiseSafetyAlert) Execute(ctx context.Context, env Env, input map[string]any) Result {
	severity := stringArg(input, "severity")
	description := stringArg(input, "description")
	if description == "" {
		return failure("missing_required_field")
	}
	switch severity {
	case "info", "warning", "critical":
	default:
		severity = "warning"
	}

	alert, err := e.alerts.Raise(ctx, types.Alert{
		UserID:      env.UserID,
		Severity:    severity,
		Description: description,
	})
	if err != nil {
		e.logger.Error("failed to raise safety alert", "session_id", env.SessionID, "severity", severity, "error", err)
		return failure("alert_failed")
	}

	e.logger.Warn("safety alert raised", "session_id", env.SessionID, "alert_id", alert.ID, "severity", severity)
	return Result{
		Success: true,
		Payload: map[string]any{"alertId": alert.ID, "severity": severity, "notified": alert.Notified},
	}
}
