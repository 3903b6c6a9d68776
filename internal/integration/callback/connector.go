// Package callback notifies callers of asynchronous document ingestion.
package callback

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/futig/admissions-assistant/internal/config"
	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/integration/common"
	pkghttp "github.com/futig/admissions-assistant/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Connector struct {
	config    config.CallbackConnectorConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(
	cfg config.CallbackConnectorConfig,
	logger *zap.Logger,
) *Connector {
	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		config:    cfg,
		logger:    logger,
	}
}

// SendDocumentIndexed reports a finished ingestion to the callback URL
func (c *Connector) SendDocumentIndexed(ctx context.Context, callbackURL, requestID string, data *entity.IngestDocumentResponse) {
	err := c.Send(ctx, callbackURL, requestID, &entity.CallbackEvent{
		Event: entity.CallbackEventTypeDocumentIndexed,
		Data:  data,
	})
	if err != nil {
		ctxzap.Error(ctx, "failed to send document indexed callback", zap.Error(err))
	}
}

// SendError sends an error event to the specified callback URL
func (c *Connector) SendError(ctx context.Context, callbackURL, requestID, message string, details map[string]any) {
	err := c.Send(ctx, callbackURL, requestID, &entity.CallbackEvent{
		Event: entity.CallbackEventTypeError,
		Data: &entity.CallbackErrorData{
			Error: entity.CallbackErrorDetails{
				Message: message,
				Details: details,
			},
		},
	})
	if err != nil {
		ctxzap.Error(ctx, "failed to send error callback", zap.Error(err))
	}
}

// Send posts the event, retrying transient failures per the connector's retry policy
func (c *Connector) Send(ctx context.Context, callbackURL, requestID string, event *entity.CallbackEvent) error {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	ctxzap.Debug(ctx, "sending callback event",
		zap.String("event_type", string(event.Event)),
		zap.String("callback_url", callbackURL),
		zap.String("request_id", requestID),
		zap.String("timestamp", event.Timestamp),
	)

	opts := []pkghttp.RequestOpt{
		pkghttp.WithHeader("X-Request-ID", requestID),
		pkghttp.WithURL(callbackURL),
	}

	err := c.config.Retry.Do(ctx, func() error {
		return c.connector.DoRequest(ctx, http.MethodPost, "", event, nil, opts...)
	}, pkghttp.IsRetryable)
	if err != nil {
		return fmt.Errorf("send callback, event_type: %s, url: %s: %w", event.Event, callbackURL, err)
	}

	ctxzap.Info(ctx, "callback sent successfully",
		zap.String("event_type", string(event.Event)),
		zap.String("callback_url", callbackURL),
		zap.String("request_id", requestID),
	)
	return nil
}
