package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertModelFailureRate AlertType = "model_failure_rate"
	AlertCostOverrun      AlertType = "cost_overrun"
	AlertCacheErrors      AlertType = "cache_errors"
	AlertLeadBacklog      AlertType = "lead_backlog"
)

// minCallsForRate is the number of model calls needed before the failure
// rate is meaningful.
const minCallsForRate = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if m := snap.Model; m != nil {
		if m.Calls >= minCallsForRate && snap.ModelFailRate > a.cfg.FailureRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertModelFailureRate,
				Severity: "high",
				Message: fmt.Sprintf(
					"Model failure rate %.1f%% exceeds threshold %.1f%% (%d unavailable, %d rejected, %d invalid of %d calls, breaker %s)",
					snap.ModelFailRate*100, a.cfg.FailureRateThreshold*100,
					m.Unavailable, m.Rejected, m.InvalidOutput, m.Calls, m.Breaker,
				),
				Details: map[string]any{
					"failure_rate":   snap.ModelFailRate,
					"threshold":      a.cfg.FailureRateThreshold,
					"unavailable":    m.Unavailable,
					"rejected":       m.Rejected,
					"invalid_output": m.InvalidOutput,
					"calls":          m.Calls,
					"provider":       m.Provider,
				},
				Timestamp: now,
			})
		}

		if a.cfg.CostThresholdUSD > 0 && m.CostUSD > a.cfg.CostThresholdUSD {
			alerts = append(alerts, Alert{
				Type:     AlertCostOverrun,
				Severity: "high",
				Message: fmt.Sprintf(
					"Model cost $%.2f exceeds threshold $%.2f",
					m.CostUSD, a.cfg.CostThresholdUSD,
				),
				Details: map[string]any{
					"cost_usd":      m.CostUSD,
					"threshold_usd": a.cfg.CostThresholdUSD,
					"calls":         m.Calls,
				},
				Timestamp: now,
			})
		}
	}

	if c := snap.Cache; c != nil && c.Errors > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertCacheErrors,
			Severity: "medium",
			Message:  fmt.Sprintf("%d %s cache error(s); lookups are falling through to the model", c.Errors, c.Backend),
			Details: map[string]any{
				"backend":  c.Backend,
				"errors":   c.Errors,
				"hit_rate": c.HitRate,
			},
			Timestamp: now,
		})
	}

	if a.cfg.BacklogThreshold > 0 && snap.Leads != nil {
		if n := snap.Leads.ByStatus[model.StatusNew]; n > a.cfg.BacklogThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertLeadBacklog,
				Severity: "low",
				Message:  fmt.Sprintf("%d leads awaiting first contact (threshold %d)", n, a.cfg.BacklogThreshold),
				Details: map[string]any{
					"new":       n,
					"threshold": a.cfg.BacklogThreshold,
					"red_hot":   snap.Leads.ByBucket[model.BucketRedHot],
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
