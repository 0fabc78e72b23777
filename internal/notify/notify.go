// Package notify sends outbound customer email through the notification
// bridge and optional ops push alerts. Everything here is fire-and-forget,
// failures are logged by the caller and never reach the grading path.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gradehaus/gradeflow/internal/conf"
	"github.com/gradehaus/gradeflow/internal/errors"
	"github.com/gradehaus/gradeflow/internal/logging"
)

const requestTimeout = 10 * time.Second

// TemplateSuborderGraded is the customer email sent when every job under a
// suborder has been graded.
const TemplateSuborderGraded = "suborder-graded"

// EmailRequest is a templated email send.
type EmailRequest struct {
	Recipients   []string          `json:"recipients"`
	TemplateName string            `json:"templateName"`
	TemplateData map[string]string `json:"templateData"`
}

// SuborderGradedEmail builds the suborder-graded notification for a customer.
func SuborderGradedEmail(recipient, firstName, submissionID, invoiceNo string) EmailRequest {
	return EmailRequest{
		Recipients:   []string{recipient},
		TemplateName: TemplateSuborderGraded,
		TemplateData: map[string]string{
			"firstName":    firstName,
			"submissionId": submissionID,
			"invoiceNo":    invoiceNo,
		},
	}
}

// Client talks to the notification bridge.
type Client struct {
	settings *conf.NotificationSettings
	client   *http.Client
	logger   *slog.Logger
}

// NewClient creates a notification client from settings.
func NewClient(settings *conf.NotificationSettings) *Client {
	return &Client{
		settings: settings,
		client:   &http.Client{Timeout: requestTimeout},
		logger:   logging.ForService("notify"),
	}
}

// SendEmail posts a templated email to the bridge. The returned error is for
// the caller's log only, email is never part of the grading transaction.
func (c *Client) SendEmail(ctx context.Context, req EmailRequest) error {
	if !c.settings.Enabled {
		c.logger.Debug("notifications disabled, skipping email", "template", req.TemplateName)
		return nil
	}
	if len(req.Recipients) == 0 {
		return errors.Newf("email request has no recipients").
			Component("notify").
			Category(errors.CategoryValidation).
			Build()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding email request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.APIURL+"/emails/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating email request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.settings.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.settings.BearerToken)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return errors.New(fmt.Errorf("email request failed: %w", err)).
			Component("notify").
			Category(errors.CategoryIntegration).
			Context("template", req.TemplateName).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.New(fmt.Errorf("notification bridge returned status %d: %s", resp.StatusCode, snippet)).
			Component("notify").
			Category(errors.CategoryIntegration).
			Context("template", req.TemplateName).
			Build()
	}

	c.logger.Info("email queued", "template", req.TemplateName, "recipients", len(req.Recipients))
	return nil
}
