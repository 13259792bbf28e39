package replay_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/liuwenjie/api-mock-server/internal/domain/har"
	"github.com/liuwenjie/api-mock-server/internal/domain/replay"
)

func headerValues(rep replay.Replay, name string) []string {
	var vals []string
	for _, h := range rep.Headers {
		if h.Name == name {
			vals = append(vals, h.Value)
		}
	}
	return vals
}

func TestEntry_ReplaysStatusHeadersBody(t *testing.T) {
	e := &har.Entry{
		Status: 201,
		Headers: []har.Header{
			{Name: "Content-Type", Value: "text/plain"},
			{Name: "X-Request-Id", Value: "abc"},
		},
		Body:        "created",
		ContentType: "text/plain",
	}

	rep := replay.Entry(e)
	if rep.Status != 201 {
		t.Errorf("status = %d, want 201", rep.Status)
	}
	if got := headerValues(rep, "X-Request-Id"); len(got) != 1 || got[0] != "abc" {
		t.Errorf("X-Request-Id = %v", got)
	}
	if string(rep.Body) != "created" {
		t.Errorf("body = %q", rep.Body)
	}
}

func TestEntry_DefaultStatus(t *testing.T) {
	rep := replay.Entry(&har.Entry{})
	if rep.Status != 200 {
		t.Errorf("status = %d, want 200 when none recorded", rep.Status)
	}
}

func TestEntry_DenylistFiltered(t *testing.T) {
	e := &har.Entry{
		Status: 200,
		Headers: []har.Header{
			{Name: "Content-Encoding", Value: "gzip"},
			{Name: "Content-Length", Value: "123"},
			{Name: "Transfer-Encoding", Value: "chunked"},
			{Name: "Connection", Value: "keep-alive"},
			{Name: "Upgrade", Value: "h2c"},
			{Name: "Host", Value: "example.com"},
			{Name: "Origin", Value: "http://example.com"},
			{Name: "Referer", Value: "http://example.com/page"},
			{Name: "X-Kept", Value: "yes"},
		},
	}

	rep := replay.Entry(e)
	for _, h := range rep.Headers {
		switch h.Name {
		case "Content-Encoding", "Content-Length", "Transfer-Encoding",
			"Connection", "Upgrade", "Host", "Origin", "Referer":
			t.Errorf("denylisted header %q leaked through", h.Name)
		}
	}
	if got := headerValues(rep, "X-Kept"); len(got) != 1 {
		t.Error("non-denylisted header was dropped")
	}
}

func TestEntry_DuplicateHeadersPreserved(t *testing.T) {
	e := &har.Entry{
		Status: 200,
		Headers: []har.Header{
			{Name: "Set-Cookie", Value: "a=1"},
			{Name: "Set-Cookie", Value: "b=2"},
		},
	}

	rep := replay.Entry(e)
	if got := headerValues(rep, "Set-Cookie"); len(got) != 2 {
		t.Errorf("expected 2 Set-Cookie headers, got %v", got)
	}
}

func TestEntry_CORSBackstop(t *testing.T) {
	rep := replay.Entry(&har.Entry{Status: 200})
	if got := headerValues(rep, "Access-Control-Allow-Origin"); len(got) != 1 || got[0] != "*" {
		t.Errorf("expected wildcard CORS backstop, got %v", got)
	}
}

func TestEntry_RecordedCORSWins(t *testing.T) {
	e := &har.Entry{
		Status: 200,
		Headers: []har.Header{
			{Name: "Access-Control-Allow-Origin", Value: "https://app.example.com"},
		},
	}

	rep := replay.Entry(e)
	got := headerValues(rep, "Access-Control-Allow-Origin")
	if len(got) != 1 || got[0] != "https://app.example.com" {
		t.Errorf("recorded CORS header should win, got %v", got)
	}
}

func TestEntry_InvalidHeaderSkippedNotFatal(t *testing.T) {
	e := &har.Entry{
		Status: 200,
		Headers: []har.Header{
			{Name: "X-Bad", Value: "evil\r\ninjected"},
			{Name: "X-Good", Value: "fine"},
		},
	}

	rep := replay.Entry(e)
	if len(headerValues(rep, "X-Bad")) != 0 {
		t.Error("header with CRLF value should be skipped")
	}
	if len(headerValues(rep, "X-Good")) != 1 {
		t.Error("remaining headers should still apply")
	}
	if len(rep.SkippedHeaders) != 1 || rep.SkippedHeaders[0].Name != "X-Bad" {
		t.Errorf("skipped headers = %v", rep.SkippedHeaders)
	}
}

func TestEntry_JSONBodyCompacted(t *testing.T) {
	e := &har.Entry{
		Status:      200,
		Body:        "{\n  \"name\": \"Alice\"\n}",
		ContentType: "application/json; charset=utf-8",
	}

	rep := replay.Entry(e)
	if string(rep.Body) != `{"name":"Alice"}` {
		t.Errorf("body = %q", rep.Body)
	}
}

func TestEntry_InvalidJSONBodyServedRaw(t *testing.T) {
	e := &har.Entry{
		Status:      200,
		Body:        `{"broken":`,
		ContentType: "application/json",
	}

	rep := replay.Entry(e)
	if string(rep.Body) != `{"broken":` {
		t.Errorf("unparseable JSON should be served raw, got %q", rep.Body)
	}
}

func TestEntry_EmptyBody(t *testing.T) {
	rep := replay.Entry(&har.Entry{Status: 204})
	if len(rep.Body) != 0 {
		t.Errorf("expected empty body, got %q", rep.Body)
	}
}

func TestDefault_Envelope(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rep := replay.Default(now)

	if rep.Status != 200 {
		t.Errorf("status = %d", rep.Status)
	}

	var envelope struct {
		Code      int    `json:"code"`
		Msg       string `json:"msg"`
		Timestamp string `json:"timestamp"`
		Data      []any  `json:"data"`
	}
	if err := json.Unmarshal(rep.Body, &envelope); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if envelope.Code != 200 || envelope.Msg != "success" {
		t.Errorf("envelope = %+v", envelope)
	}
	if envelope.Timestamp != "2024-05-01T12:00:00Z" {
		t.Errorf("timestamp = %q", envelope.Timestamp)
	}
	if envelope.Data == nil || len(envelope.Data) != 0 {
		t.Errorf("data should be an empty array, got %v", envelope.Data)
	}
}

func TestNotFound_Envelope(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	known := []replay.KnownEndpoint{
		{Method: "GET", Path: "/users", Signature: "GET:/users?id=1"},
	}
	rep := replay.NotFound(replay.Requested{Method: "GET", Path: "/orders", Query: "id=9"}, now, known)

	if rep.Status != 404 {
		t.Errorf("status = %d", rep.Status)
	}

	var envelope struct {
		Code    int `json:"code"`
		Request struct {
			Method string `json:"method"`
			Path   string `json:"path"`
			Query  string `json:"query"`
		} `json:"request"`
		KnownEndpoints []replay.KnownEndpoint `json:"knownEndpoints"`
	}
	if err := json.Unmarshal(rep.Body, &envelope); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if envelope.Code != 404 {
		t.Errorf("code = %d", envelope.Code)
	}
	if envelope.Request.Method != "GET" || envelope.Request.Path != "/orders" || envelope.Request.Query != "id=9" {
		t.Errorf("request = %+v", envelope.Request)
	}
	if len(envelope.KnownEndpoints) != 1 || envelope.KnownEndpoints[0].Signature != "GET:/users?id=1" {
		t.Errorf("knownEndpoints = %v", envelope.KnownEndpoints)
	}
}

func TestNotFound_CapsKnownEndpoints(t *testing.T) {
	known := make([]replay.KnownEndpoint, 25)
	for i := range known {
		known[i] = replay.KnownEndpoint{Method: "GET", Path: "/p", Signature: "GET:/p"}
	}
	rep := replay.NotFound(replay.Requested{Method: "GET", Path: "/x"}, time.Now(), known)

	var envelope struct {
		KnownEndpoints []replay.KnownEndpoint `json:"knownEndpoints"`
	}
	if err := json.Unmarshal(rep.Body, &envelope); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if len(envelope.KnownEndpoints) != 10 {
		t.Errorf("expected at most 10 known endpoints, got %d", len(envelope.KnownEndpoints))
	}
}
