package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"union-data/internal/metrics"
)

// Template codes registered with the message gateway.
const (
	TemplateApproved = "UNION_APPROVED"
	TemplateRejected = "UNION_REJECTED"
	TemplateInvite   = "UNION_INVITE"
)

// Notifier sends templated messages (AlimTalk/SMS). Failures are reported
// to the caller but never roll back the state change that triggered them.
type Notifier interface {
	SendTemplate(ctx context.Context, templateCode, phone string, vars map[string]string) error
}

// notifyRequest gateway API request body.
type notifyRequest struct {
	TemplateCode string            `json:"template_code"`
	Sender       string            `json:"sender"`
	Recipient    string            `json:"recipient"`
	Variables    map[string]string `json:"variables,omitempty"`
}

// notifyResponse gateway API response body.
type notifyResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NotifyClient talks to the message gateway over HTTP.
type NotifyClient struct {
	httpClient *resty.Client
	sender     string
	logger     *zap.Logger
}

func NewNotifyClient(baseURL, apiKey, sender string, logger *zap.Logger) *NotifyClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", "Bearer "+apiKey)

	return &NotifyClient{httpClient: client, sender: sender, logger: logger}
}

func (c *NotifyClient) SendTemplate(ctx context.Context, templateCode, phone string, vars map[string]string) error {
	if phone == "" {
		return fmt.Errorf("recipient phone is required")
	}

	var response notifyResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(notifyRequest{
			TemplateCode: templateCode,
			Sender:       c.sender,
			Recipient:    phone,
			Variables:    vars,
		}).
		SetResult(&response).
		Post("/v1/messages/send")

	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(templateCode, "error").Inc()
		c.logger.Error("notification send failed",
			zap.String("template_code", templateCode),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send notification: %w", err)
	}
	if resp.IsError() || response.Code != 0 {
		metrics.NotificationsTotal.WithLabelValues(templateCode, "error").Inc()
		c.logger.Error("notification rejected by gateway",
			zap.String("template_code", templateCode),
			zap.Int("http_status", resp.StatusCode()),
			zap.Int("gateway_code", response.Code),
			zap.String("gateway_message", response.Message),
		)
		return fmt.Errorf("notification rejected: %s", response.Message)
	}

	metrics.NotificationsTotal.WithLabelValues(templateCode, "ok").Inc()
	return nil
}
