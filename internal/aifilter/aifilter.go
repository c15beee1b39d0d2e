// Package aifilter is the client for the optional AI advisory service that
// vets live signals before they reach the caller. The filter is strictly
// advisory: any transport or service failure degrades to "proceed with the
// original signal", never to a blocked decision.
package aifilter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tradecore/internal/model"
)

// Request carries one signal for advisory review.
type Request struct {
	Pair       string             `json:"pair"`
	Exchange   string             `json:"exchange"`
	Signal     model.Signal       `json:"signal"`
	Price      float64            `json:"price"`
	Snapshot   map[string]float64 `json:"indicator_snapshot,omitempty"`
	LastSignal model.Signal       `json:"last_signal,omitempty"`
	Timeframe  string             `json:"timeframe"`
}

// Verdict is the advisory service's answer.
type Verdict struct {
	Confirmed           bool     `json:"confirmed"`
	Confidence          float64  `json:"confidence"`
	Action              string   `json:"action,omitempty"`
	Reasoning           string   `json:"reasoning,omitempty"`
	RiskLevel           string   `json:"risk_level,omitempty"`
	SuggestedStopLoss   *float64 `json:"suggested_stop_loss,omitempty"`
	SuggestedTakeProfit *float64 `json:"suggested_take_profit,omitempty"`
}

// Filter is what the live executor depends on.
type Filter interface {
	// Analyze submits a fired signal for review.
	Analyze(ctx context.Context, req Request) (*Verdict, error)

	// Enabled reports whether the filter should be consulted at all.
	Enabled() bool
}

// Client is an HTTP implementation of Filter.
type Client struct {
	url     string
	enabled bool
	client  *http.Client
}

// NewClient creates a filter client. An empty url yields a disabled client.
func NewClient(url string, enabled bool) *Client {
	return &Client{
		url:     url,
		enabled: enabled && url != "",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) Enabled() bool { return c.enabled }

func (c *Client) Analyze(ctx context.Context, req Request) (*Verdict, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("aifilter: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("aifilter: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("aifilter: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("aifilter: unexpected status %d", resp.StatusCode)
	}

	var v Verdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("aifilter: decode: %w", err)
	}
	return &v, nil
}
