package diag

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Failure classifications reported in Report.ErrorType.
const (
	ErrorNone             = "none"
	ErrorUnreachable      = "unreachable"
	ErrorWebsocketBlocked = "websocket_blocked"
	ErrorAuthInvalid      = "auth_invalid"
)

// probeTimeout bounds each individual reachability check.
const probeTimeout = 5 * time.Second

// Report is the classified result of a connection probe.
type Report struct {
	HTTPSReachable     bool      `json:"https_reachable"`
	WebsocketReachable bool      `json:"websocket_reachable"`
	AuthValid          bool      `json:"auth_valid"`
	ErrorType          string    `json:"error_type"`
	Timestamp          time.Time `json:"timestamp"`
}

// AuthRejectedReport builds the report surfaced when the hub itself rejects
// credentials. Both transports were necessarily reachable to get that far.
func AuthRejectedReport() Report {
	return Report{
		HTTPSReachable:     true,
		WebsocketReachable: true,
		AuthValid:          false,
		ErrorType:          ErrorAuthInvalid,
		Timestamp:          time.Now().UTC(),
	}
}

// Probe checks hub reachability in two stages: a plain HTTP request against
// the hub's base URL, then a short-lived auth-less WebSocket dial. The token
// is accepted for parity with the collaborator contract but the probe never
// sends it; auth validity is only known once a real handshake fails.
func Probe(ctx context.Context, wsURL, _ string) Report {
	report := Report{
		Timestamp: time.Now().UTC(),
	}

	report.HTTPSReachable = checkHTTP(ctx, httpBaseURL(wsURL))
	if report.HTTPSReachable {
		report.WebsocketReachable = checkWebsocket(ctx, wsURL)
	}

	switch {
	case !report.HTTPSReachable:
		report.ErrorType = ErrorUnreachable
	case !report.WebsocketReachable:
		report.ErrorType = ErrorWebsocketBlocked
	default:
		report.ErrorType = ErrorNone
	}

	return report
}

// httpBaseURL derives the hub's HTTP root from its WebSocket endpoint.
// The websocket path is stripped; any response from the root proves the
// host and TLS layer are fine.
func httpBaseURL(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil {
		return wsURL
	}

	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	case "ws":
		u.Scheme = "http"
	}
	u.Path = ""
	u.RawQuery = ""

	return u.String()
}

func checkHTTP(ctx context.Context, url string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	// Any HTTP status proves reachability; the hub root may well 404.
	return true
}

func checkWebsocket(ctx context.Context, wsURL string) bool {
	dialer := websocket.Dialer{
		HandshakeTimeout: probeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return false
	}
	defer conn.Close()

	// The hub speaks first; receiving its greeting confirms a working
	// end-to-end WebSocket path.
	conn.SetReadDeadline(time.Now().Add(probeTimeout)) //nolint:errcheck // best-effort deadline
	_, _, err = conn.ReadMessage()
	return err == nil
}
