// Package crm synchronizes grading progress to the external CRM by moving
// deals through their pipeline stages. Sync is best effort, callers run it
// off the critical path and drop failures after logging.
package crm

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

// DealStage is a CRM pipeline stage for a grading deal.
type DealStage string

const (
	// StageL1Graded marks the deal after the junior grading pass.
	StageL1Graded DealStage = "L1_GRADED"
	// StageGraded marks the deal once every job under it is finalized.
	StageGraded DealStage = "GRADED"
)

// Client talks to the CRM deal-stage endpoint.
type Client struct {
	settings *conf.CRMSettings
	client   *http.Client
	logger   *slog.Logger
}

// NewClient creates a CRM client from settings.
func NewClient(settings *conf.CRMSettings) *Client {
	return &Client{
		settings: settings,
		client:   &http.Client{Timeout: requestTimeout},
		logger:   logging.ForService("crm"),
	}
}

type stageUpdate struct {
	DealID string `json:"dealId"`
	Stage  string `json:"stage"`
}

// UpdateDealStage moves the deal identified by dealID to the given stage.
// Returns an error for the caller to log, sync failures must never reach
// the grading path.
func (c *Client) UpdateDealStage(ctx context.Context, dealID string, stage DealStage) error {
	if !c.settings.Enabled {
		c.logger.Debug("crm sync disabled, skipping", "deal_id", dealID, "stage", stage)
		return nil
	}
	if dealID == "" {
		return errors.Newf("deal id is empty").
			Component("crm").
			Category(errors.CategoryValidation).
			Build()
	}

	body, err := json.Marshal(stageUpdate{DealID: dealID, Stage: string(stage)})
	if err != nil {
		return fmt.Errorf("encoding stage update: %w", err)
	}

	url := c.settings.APIURL + "/deals/" + dealID + "/stage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating stage update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.settings.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.settings.BearerToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.New(fmt.Errorf("crm request failed: %w", err)).
			Component("crm").
			Category(errors.CategoryIntegration).
			Context("deal_id", dealID).
			Context("stage", string(stage)).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.New(fmt.Errorf("crm returned status %d: %s", resp.StatusCode, snippet)).
			Component("crm").
			Category(errors.CategoryIntegration).
			Context("deal_id", dealID).
			Context("stage", string(stage)).
			Build()
	}

	c.logger.Info("deal stage updated", "deal_id", dealID, "stage", stage)
	return nil
}
