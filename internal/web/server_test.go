package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sweeney/gasguard/internal/status"
)

func startServer(t *testing.T) (*Server, string) {
	t.Helper()

	tracker := status.NewTracker(time.Now(), status.Config{Broker: "tcp://127.0.0.1:1883"})
	srv := New(":0", tracker)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Serve(ln)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	return srv, "http://" + ln.Addr().String()
}

func TestStatusEndpoint(t *testing.T) {
	_, base := startServer(t)

	resp, err := http.Get(base + "/status.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var out status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status.Level != "NORMAL" {
		t.Errorf("level = %q, want NORMAL on a fresh tracker", out.Status.Level)
	}
	if out.Status.MQTT.Broker != "tcp://127.0.0.1:1883" {
		t.Errorf("broker = %q", out.Status.MQTT.Broker)
	}
}

func TestHealthzEndpoint(t *testing.T) {
	_, base := startServer(t)

	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || string(body) != "ok\n" {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}
}
