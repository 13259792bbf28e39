package replay

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/liuwenjie/api-mock-server/internal/domain/har"
)

// headerDenylist names transport/hop-by-hop headers that would corrupt the
// live connection if replayed verbatim.
var headerDenylist = map[string]struct{}{
	"content-encoding":  {},
	"content-length":    {},
	"transfer-encoding": {},
	"connection":        {},
	"upgrade":           {},
	"host":              {},
	"origin":            {},
	"referer":           {},
}

// Replay is a fully materialized response, ready to be written to the wire
// by the transport layer.
type Replay struct {
	Status  int
	Headers []har.Header
	Body    []byte

	// SkippedHeaders lists recorded headers that could not be carried over
	// (invalid name or value). Reported so the caller can log them; a bad
	// header never aborts the rest of the response.
	SkippedHeaders []har.Header
}

// Requested identifies the live request, echoed back in not-found payloads.
type Requested struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Query  string `json:"query,omitempty"`
}

// KnownEndpoint is one registered endpoint listed in not-found diagnostics.
type KnownEndpoint struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	Signature string `json:"signature"`
}

// Entry replays a matched archive entry: recorded status (200 when absent),
// recorded headers minus the denylist, CORS backstop, recorded body.
func Entry(e *har.Entry) Replay {
	status := e.Status
	if status == 0 {
		status = 200
	}

	var headers, skipped []har.Header
	hasCORS := false
	for _, h := range e.Headers {
		name := strings.ToLower(h.Name)
		if _, deny := headerDenylist[name]; deny {
			continue
		}
		if !validHeader(h) {
			skipped = append(skipped, h)
			continue
		}
		if name == "access-control-allow-origin" {
			hasCORS = true
		}
		headers = append(headers, h)
	}
	// Recorded CORS headers take precedence; the wildcard is only a backstop.
	if !hasCORS {
		headers = append(headers, har.Header{Name: "Access-Control-Allow-Origin", Value: "*"})
	}

	var body []byte
	if e.Body != "" {
		body = []byte(e.Body)
		if strings.Contains(strings.ToLower(e.ContentType), "application/json") {
			if compact, ok := compactJSON(e.Body); ok {
				body = compact
			}
		}
	}

	return Replay{Status: status, Headers: headers, Body: body, SkippedHeaders: skipped}
}

type defaultEnvelope struct {
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	Timestamp string `json:"timestamp"`
	Data      []any  `json:"data"`
}

// Default is the synthetic success stub served when the path is recorded but
// no variant matches the request's parameters.
func Default(now time.Time) Replay {
	body, _ := json.Marshal(defaultEnvelope{
		Code:      200,
		Msg:       "success",
		Timestamp: now.UTC().Format(time.RFC3339),
		Data:      []any{},
	})
	return Replay{
		Status:  200,
		Headers: jsonHeaders(),
		Body:    body,
	}
}

type notFoundEnvelope struct {
	Code           int             `json:"code"`
	Msg            string          `json:"msg"`
	Timestamp      string          `json:"timestamp"`
	Request        Requested       `json:"request"`
	KnownEndpoints []KnownEndpoint `json:"knownEndpoints"`
}

// maxKnownEndpoints caps the diagnostic endpoint list in not-found payloads.
const maxKnownEndpoints = 10

// NotFound is the structured 404 served when the path was never recorded.
// It echoes the request and lists up to ten known endpoints to aid debugging.
func NotFound(req Requested, now time.Time, known []KnownEndpoint) Replay {
	if len(known) > maxKnownEndpoints {
		known = known[:maxKnownEndpoints]
	}
	if known == nil {
		known = []KnownEndpoint{}
	}
	body, _ := json.Marshal(notFoundEnvelope{
		Code:           404,
		Msg:            "no recorded entry for this path",
		Timestamp:      now.UTC().Format(time.RFC3339),
		Request:        req,
		KnownEndpoints: known,
	})
	return Replay{
		Status:  404,
		Headers: jsonHeaders(),
		Body:    body,
	}
}

func jsonHeaders() []har.Header {
	return []har.Header{
		{Name: "Content-Type", Value: "application/json"},
		{Name: "Access-Control-Allow-Origin", Value: "*"},
	}
}

// compactJSON re-emits recorded JSON without insignificant whitespace,
// preserving key order. Returns ok=false when the text is not valid JSON.
func compactJSON(text string) ([]byte, bool) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(text)); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// validHeader rejects names and values the live transport cannot carry.
func validHeader(h har.Header) bool {
	if h.Name == "" || strings.ContainsAny(h.Name, " \t\r\n:") {
		return false
	}
	return !strings.ContainsAny(h.Value, "\r\n")
}
