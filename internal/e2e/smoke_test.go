//go:build e2e

// Package e2e drives a running herd server through its public HTTP and
// websocket surfaces. Start the server with the shipped config and species,
// then run: go test -tags e2e ./internal/e2e/
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

	"github.com/gorilla/websocket"
)

var baseURL string

func TestMain(m *testing.M) {
	baseURL = os.Getenv("HERD_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3210"
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

type snapshot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Behavior string `json:"behavior"`
	Position struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"position"`
	Dragging bool `json:"dragging"`
	Sleeping bool `json:"sleeping"`
}

// call sends a JSON request and decodes the response into out.
func call(t *testing.T, method, path string, body, out interface{}) int {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, baseURL+path, r)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if out != nil && resp.StatusCode < 300 {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("unmarshal response: %v (body: %s)", err, string(raw))
		}
	}
	return resp.StatusCode
}

func spawn(t *testing.T, species string) snapshot {
	t.Helper()
	var a snapshot
	if status := call(t, "POST", "/api/agents", map[string]string{"species": species}, &a); status != http.StatusCreated {
		t.Fatalf("spawn %s: status %d", species, status)
	}
	t.Cleanup(func() { call(t, "DELETE", "/api/agents/"+a.ID, nil, nil) })
	return a
}

func TestSlashHelp(t *testing.T) {
	var res struct {
		Content string `json:"content"`
	}
	call(t, "POST", "/api/command", map[string]string{"input": "/help"}, &res)
	if !strings.Contains(res.Content, "/spawn") {
		t.Errorf("expected help to list /spawn, got: %s", res.Content)
	}
	t.Logf("reply: %.200s", res.Content)
}

func TestSpawnAndFind(t *testing.T) {
	a := spawn(t, "applejack")
	if a.Name != "Applejack" {
		t.Fatalf("expected Applejack, got %+v", a)
	}
	var got snapshot
	if status := call(t, "GET", "/api/agents/"+a.ID, nil, &got); status != http.StatusOK {
		t.Fatalf("get agent: status %d", status)
	}
	if got.ID != a.ID {
		t.Errorf("expected %s, got %s", a.ID, got.ID)
	}
}

func TestDragAndDrop(t *testing.T) {
	a := spawn(t, "fluttershy")
	path := "/api/agents/" + a.ID + "/events"

	var s snapshot
	call(t, "POST", path, map[string]interface{}{"type": "press"}, &s)
	if !s.Dragging {
		t.Fatalf("expected dragging after press, got %+v", s)
	}
	call(t, "POST", path, map[string]interface{}{"type": "move", "x": 400, "y": 300}, &s)
	if s.Position.X != 400 || s.Position.Y != 300 {
		t.Errorf("expected position (400,300), got %+v", s.Position)
	}
	call(t, "POST", path, map[string]interface{}{"type": "release"}, &s)
	if s.Dragging {
		t.Errorf("expected drop after release, got %+v", s)
	}
}

func TestRendererReceivesFrames(t *testing.T) {
	a := spawn(t, "applejack")

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var ev struct {
			Type   string     `json:"type"`
			Agents []snapshot `json:"agents"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if ev.Type != "frame" {
			continue
		}
		for _, s := range ev.Agents {
			if s.ID == a.ID {
				return
			}
		}
	}
}
