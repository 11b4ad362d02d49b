package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/amparo-ai/amparo/pkg/core"
	"github.com/amparo-ai/amparo/pkg/core/types"
)

const webhookTimeout = 5 * time.Second

// AlertStore persists safety alerts and notifies the caregiver webhook.
// Persistence is the contract; notification is best effort.
type AlertStore struct {
	store      *Store
	webhookURL string
	httpClient *http.Client
}

func (a *AlertStore) Raise(ctx context.Context, alert types.Alert) (types.Alert, error) {
	alert.ID = uuid.NewString()
	alert.CreatedAt = time.Now().UTC()

	_, err := a.store.pool.Exec(ctx,
		`INSERT INTO alerts (id, user_id, severity, description, notified, created_at)
		 VALUES ($1, $2, $3, $4, FALSE, $5)`,
		alert.ID, alert.UserID, alert.Severity, alert.Description, alert.CreatedAt)
	if err != nil {
		return types.Alert{}, core.NewCollaboratorError("alert-store", err)
	}

	if a.webhookURL != "" {
		if err := a.notify(ctx, alert); err != nil {
			a.store.logger.Error("alert webhook delivery failed", "alert_id", alert.ID, "error", err)
			return alert, nil
		}
		alert.Notified = true
		if _, err := a.store.pool.Exec(ctx, `UPDATE alerts SET notified = TRUE WHERE id = $1`, alert.ID); err != nil {
			a.store.logger.Warn("failed to record alert notification", "alert_id", alert.ID, "error", err)
		}
	}
	return alert, nil
}

func (a *AlertStore) notify(ctx context.Context, alert types.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := a.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
