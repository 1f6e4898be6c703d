// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package caseboard is the client for the practice-management API that backs
// both the case registry search and task creation. Authentication uses OAuth2
// client credentials.
package caseboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/anaislegal/intake/internal/config"
	"github.com/anaislegal/intake/internal/models"
)

// Client calls the caseboard API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a caseboard client whose HTTP client refreshes OAuth2
// tokens automatically.
func NewClient(ctx context.Context, cfg config.CaseboardConfig) *Client {
	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}

	httpClient := creds.Client(ctx)
	httpClient.Timeout = cfg.Timeout

	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
	}
}

// SearchCases queries the case registry for records whose stored identifier
// relates to the given token.
func (c *Client) SearchCases(ctx context.Context, token string) ([]models.CaseRecord, error) {
	u := fmt.Sprintf("%s/v1/cases?identifier=%s", c.baseURL, url.QueryEscape(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build case search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search cases: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("case search returned HTTP %d", resp.StatusCode)
	}

	var result struct {
		Cases []models.CaseRecord `json:"cases"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode case search response: %w", err)
	}

	return result.Cases, nil
}

// CreateTask persists one task record and returns its identifier.
func (c *Client) CreateTask(ctx context.Context, task *models.TaskRecord) (string, error) {
	body, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("marshal task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tasks", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build create task request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("create task returned HTTP %d: %s", resp.StatusCode, detail)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode create task response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("create task response missing id")
	}

	return result.ID, nil
}
