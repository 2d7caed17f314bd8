package diag

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func wsURLFor(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/websocket"
}

func TestProbeHealthyHub(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/websocket" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"auth_required"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	report := Probe(context.Background(), wsURLFor(srv), "")

	if !report.HTTPSReachable {
		t.Error("HTTPSReachable = false for a responding server")
	}
	if !report.WebsocketReachable {
		t.Error("WebsocketReachable = false for an upgrading server")
	}
	if report.ErrorType != ErrorNone {
		t.Errorf("ErrorType = %s, want %s", report.ErrorType, ErrorNone)
	}
	if report.Timestamp.IsZero() {
		t.Error("report timestamp not set")
	}
}

func TestProbeWebsocketBlocked(t *testing.T) {
	// HTTP answers but the websocket endpoint never upgrades, which is
	// what a misconfigured reverse proxy looks like.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	report := Probe(context.Background(), wsURLFor(srv), "")

	if !report.HTTPSReachable {
		t.Error("HTTPSReachable = false for a responding server")
	}
	if report.WebsocketReachable {
		t.Error("WebsocketReachable = true without an upgrade")
	}
	if report.ErrorType != ErrorWebsocketBlocked {
		t.Errorf("ErrorType = %s, want %s", report.ErrorType, ErrorWebsocketBlocked)
	}
}

func TestProbeUnreachable(t *testing.T) {
	// A server that is immediately closed leaves a port nothing listens on.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	wsURL := wsURLFor(srv)
	srv.Close()

	report := Probe(context.Background(), wsURL, "")

	if report.HTTPSReachable {
		t.Error("HTTPSReachable = true for a closed server")
	}
	if report.ErrorType != ErrorUnreachable {
		t.Errorf("ErrorType = %s, want %s", report.ErrorType, ErrorUnreachable)
	}
}

func TestAuthRejectedReport(t *testing.T) {
	report := AuthRejectedReport()
	if report.ErrorType != ErrorAuthInvalid {
		t.Errorf("ErrorType = %s, want %s", report.ErrorType, ErrorAuthInvalid)
	}
	if !report.HTTPSReachable || !report.WebsocketReachable {
		t.Error("auth rejection implies both transports were reachable")
	}
	if report.AuthValid {
		t.Error("AuthValid must be false in a rejection report")
	}
}

func TestHTTPBaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ws://hub.local:8123/api/websocket", "http://hub.local:8123"},
		{"wss://my-home.example.com/api/websocket", "https://my-home.example.com"},
		{"wss://hub.local/api/websocket?x=1", "https://hub.local"},
	}
	for _, tt := range tests {
		if got := httpBaseURL(tt.in); got != tt.want {
			t.Errorf("httpBaseURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
