// Package ai is a thin client for the content-classification model API. The
// service is opaque: we post text, it returns a category and safety flags.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const classifyTimeout = 10 * time.Second

// Classification is the model's verdict on a task brief.
type Classification struct {
	Category   string   `json:"category"`
	Flags      []string `json:"flags"`
	Confidence float64  `json:"confidence"`
}

// Flagged reports whether any safety flag was raised.
func (c Classification) Flagged() bool {
	return len(c.Flags) > 0
}

// Client calls the classification endpoint.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: classifyTimeout},
	}
}

type classifyRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ClassifyTask posts the task brief and returns the verdict.
func (c *Client) ClassifyTask(ctx context.Context, title, description string) (*Classification, error) {
	body, err := json.Marshal(classifyRequest{Title: title, Description: description})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classify request: status %d", resp.StatusCode)
	}

	var result Classification
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("classify response: %w", err)
	}
	return &result, nil
}
