//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

var baseURL string

func TestMain(m *testing.M) {
	baseURL = os.Getenv("CODSWORTH_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	// Wait for server readiness (up to 30s)
	ready := false
	for i := 0; i < 30; i++ {
		resp, err := http.Get(baseURL + "/api/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				ready = true
				break
			}
		}
		time.Sleep(1 * time.Second)
	}
	if !ready {
		fmt.Fprintf(os.Stderr, "server at %s not ready after 30s\n", baseURL)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// messageRequest is the payload sent to the REST gateway.
type messageRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Content  string `json:"content"`
}

// messageResponse is the outbound message returned by the REST gateway.
type messageResponse struct {
	Platform  string `json:"platform"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	ReplyTo   string `json:"reply_to,omitempty"`
}

// sendMessage POSTs a chat message through the REST gateway and returns the response content.
func sendMessage(t *testing.T, content string) string {
	t.Helper()

	body, err := json.Marshal(messageRequest{
		UserID:   "smoke-test",
		UserName: "smokebot",
		Content:  content,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	client := &http.Client{Timeout: 90 * time.Second}
	resp, err := client.Post(
		baseURL+"/api/gateway/rest/message",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		t.Fatalf("POST /api/gateway/rest/message: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	var msg messageResponse
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal response: %v (body: %s)", err, string(raw))
	}
	return msg.Content
}

func TestSlashHelp(t *testing.T) {
	reply := sendMessage(t, "/help")
	if !strings.Contains(reply, "/help") {
		t.Errorf("expected response to contain '/help', got: %s", reply)
	}
	t.Logf("reply: %.200s", reply)
}

func TestSlashLists(t *testing.T) {
	reply := sendMessage(t, "/lists")
	if len(reply) == 0 {
		t.Error("expected non-empty response for /lists")
	}
	t.Logf("reply: %.200s", reply)
}

func TestSlashContext(t *testing.T) {
	reply := sendMessage(t, "/context")
	if !strings.Contains(reply, "LISTS") {
		t.Errorf("expected briefing sections, got: %s", reply)
	}
	t.Logf("reply: %.200s", reply)
}

func TestSlashStatus(t *testing.T) {
	reply := sendMessage(t, "/status")
	if len(reply) == 0 {
		t.Error("expected non-empty response for /status")
	}
	t.Logf("reply: %.200s", reply)
}

func TestAddToList(t *testing.T) {
	reply := sendMessage(t, "add milk and eggs to my shopping list")
	if len(reply) <= 10 {
		t.Errorf("expected meaningful response (len > 10), got len=%d: %s", len(reply), reply)
	}

	check := sendMessage(t, "/lists")
	lower := strings.ToLower(check)
	if !strings.Contains(lower, "milk") {
		t.Errorf("expected milk to appear in /lists, got: %s", check)
	}
	t.Logf("reply: %.300s", check)
}

func TestPlainMessage(t *testing.T) {
	reply := sendMessage(t, "Hello, who are you?")
	if len(reply) <= 10 {
		t.Errorf("expected meaningful response (len > 10), got len=%d: %s", len(reply), reply)
	}
	t.Logf("reply: %.300s", reply)
}
