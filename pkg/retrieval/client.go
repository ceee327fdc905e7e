// Package retrieval is the client for the reference-lookup webhooks the
// Generation stage may call. The backend is stateless and retryable; each
// registered tool maps to one webhook URL.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"workflow-agent-be/pkg/store"
)

// Registered tool names. These are the only tools the Generation stage may
// request; an unknown name is a caller error, not a retryable failure.
const (
	ToolWorkflowsSearch    = "workflows_search"
	ToolCoreSearch         = "core_search"
	ToolManagementSearch   = "management_search"
	ToolIntegrationsSearch = "integrations_search"
)

type Client struct {
	endpoints map[string]string
	client    *http.Client
}

// NewClient builds a retrieval client from a tool-name -> webhook URL map.
func NewClient(endpoints map[string]string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoints: endpoints,
		client:    &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	Query      string                 `json:"query"`
	MaxResults int                    `json:"max_results"`
	Filters    map[string]interface{} `json:"filters,omitempty"`
}

type searchResponse struct {
	Results []store.Snippet `json:"results"`
}

// Search executes one retrieval lookup. The returned snippets are ranked by
// the backend; an empty slice is a valid answer.
func (c *Client) Search(ctx context.Context, req store.ToolCallRequest) ([]store.Snippet, error) {
	url, ok := c.endpoints[req.Tool]
	if !ok || url == "" {
		return nil, fmt.Errorf("unknown retrieval tool: %s", req.Tool)
	}

	payload, err := json.Marshal(searchRequest{
		Query:      req.Query,
		MaxResults: req.MaxResults,
		Filters:    req.Filters,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("retrieval request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("retrieval error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var parsed searchResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return parsed.Results, nil
}

// Tools lists the registered tool names.
func (c *Client) Tools() []string {
	names := make([]string, 0, len(c.endpoints))
	for name := range c.endpoints {
		names = append(names, name)
	}
	return names
}
