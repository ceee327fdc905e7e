// Command simulate drives a workflow-generation conversation against a
// running server, printing each turn. Useful for eyeballing pipeline behavior
// without a frontend.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

var baseURL = envOr("SIMULATE_BASE_URL", "http://localhost:3000/api/chat/v1")

// Simplified DTOs for the script
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type chatResponse struct {
	SessionID            string          `json:"session_id"`
	Message              string          `json:"message"`
	ConversationComplete bool            `json:"conversation_complete"`
	CurrentStage         string          `json:"current_stage"`
	CurrentAgent         string          `json:"current_agent"`
	FinalArtifact        json.RawMessage `json:"final_artifact"`
	FailureReason        string          `json:"failure_reason"`
}

func main() {
	header := color.New(color.FgCyan, color.Bold)
	agent := color.New(color.FgYellow)
	success := color.New(color.FgGreen, color.Bold)
	failure := color.New(color.FgRed, color.Bold)

	header.Println("=== Workflow Generation Simulation Client ===")

	turns := []string{
		"I want to automate posting a daily summary of my RSS feeds to Slack",
		"Every morning at 8am, the #news channel, just the titles and links",
		"Yes, that covers it, go ahead",
	}

	resp, err := post("/start", map[string]string{"query": turns[0]})
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	fmt.Printf("Session: %s\n\n", resp.SessionID)
	printTurn(agent, turns[0], resp)

	for _, msg := range turns[1:] {
		if resp.ConversationComplete || resp.CurrentStage == "FAILED" {
			break
		}
		resp, err = post("/continue", map[string]string{
			"session_id": resp.SessionID,
			"message":    msg,
		})
		if err != nil {
			log.Fatalf("Failed to continue session: %v", err)
		}
		printTurn(agent, msg, resp)
	}

	switch {
	case resp.ConversationComplete:
		success.Println("Workflow generated:")
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, resp.FinalArtifact, "", "  "); err == nil {
			fmt.Println(pretty.String())
		} else {
			fmt.Println(string(resp.FinalArtifact))
		}
	case resp.CurrentStage == "FAILED":
		failure.Printf("Turn failed: %s\n", resp.FailureReason)
	default:
		agent.Println("Conversation still open after scripted turns.")
	}
}

func printTurn(agent *color.Color, userMsg string, resp *chatResponse) {
	fmt.Printf("You: %s\n", userMsg)
	agent.Printf("[%s] %s\n\n", resp.CurrentAgent, resp.Message)
}

func post(path string, payload interface{}) (*chatResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	httpResp, err := client.Post(baseURL+path, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", httpResp.StatusCode, string(raw))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
