package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"workflow-agent-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchPostsPayloadAndParsesResults(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []store.Snippet{
				{Title: "RSS to Slack", Content: "example workflow", Score: 0.92},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(map[string]string{ToolWorkflowsSearch: srv.URL}, time.Second)

	snippets, err := client.Search(context.Background(), store.ToolCallRequest{
		Tool:       ToolWorkflowsSearch,
		Query:      "rss slack",
		MaxResults: 3,
		Filters:    map[string]interface{}{"category": "communication"},
	})

	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "RSS to Slack", snippets[0].Title)

	assert.Equal(t, "rss slack", got.Query)
	assert.Equal(t, 3, got.MaxResults)
	assert.Equal(t, "communication", got.Filters["category"])
}

func TestSearchEmptyResultsIsValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	client := NewClient(map[string]string{ToolCoreSearch: srv.URL}, time.Second)

	snippets, err := client.Search(context.Background(), store.ToolCallRequest{Tool: ToolCoreSearch, Query: "expressions"})

	require.NoError(t, err)
	assert.Empty(t, snippets)
}

func TestSearchUnknownTool(t *testing.T) {
	client := NewClient(map[string]string{}, time.Second)

	_, err := client.Search(context.Background(), store.ToolCallRequest{Tool: "nonexistent_search", Query: "x"})

	assert.ErrorContains(t, err, "unknown retrieval tool")
}

func TestSearchNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(map[string]string{ToolManagementSearch: srv.URL}, time.Second)

	_, err := client.Search(context.Background(), store.ToolCallRequest{Tool: ToolManagementSearch, Query: "scaling"})

	assert.ErrorContains(t, err, "status 502")
}
