package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"walletd/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// webhookPublisher delivers session events as HTTP POSTs to a local endpoint,
// for desktop shells and dev tooling that want push instead of polling the
// control surface. The snapshot's JSON encoding excludes the access token, so
// nothing secret crosses the wire.
type webhookPublisher struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// webhookEnvelope wraps the event with delivery metadata.
type webhookEnvelope struct {
	EventID     string                `json:"eventId"`
	PublishedAt string                `json:"publishedAt"`
	Event       *service.SessionEvent `json:"event"`
}

// NewWebhookPublisher is the constructor for webhookPublisher.
func NewWebhookPublisher(endpoint string, logger *slog.Logger) service.SessionEventPublisher {
	return &webhookPublisher{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// PublishSessionChanged posts the event envelope to the configured endpoint.
func (p *webhookPublisher) PublishSessionChanged(ctx context.Context, event *service.SessionEvent) error {
	envelope := webhookEnvelope{
		EventID:     uuid.New().String(),
		PublishedAt: time.Now().UTC().Format(time.RFC3339),
		Event:       event,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to deliver session event")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("webhook endpoint returned status %s", resp.Status)
	}

	p.logger.Debug("Delivered session event",
		slog.String("event_id", envelope.EventID),
		slog.String("state", string(event.State)),
	)

	return nil
}

func (p *webhookPublisher) Close() error {
	p.httpClient.CloseIdleConnections()

	return nil
}
