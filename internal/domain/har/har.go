package har

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArchive indicates the document is not a usable HAR archive.
var ErrInvalidArchive = errors.New("invalid archive: missing log.entries")

// Source provides the raw bytes of a recorded session archive.
type Source interface {
	Read(ctx context.Context) ([]byte, error)
}

// Document is the top-level HAR structure.
type Document struct {
	Log *Log `json:"log"`
}

// Log holds the recorded entries.
type Log struct {
	Entries []RawEntry `json:"entries"`
}

// RawEntry is one request/response pair as recorded in the archive.
type RawEntry struct {
	Request  Request  `json:"request"`
	Response Response `json:"response"`
}

// Request is the recorded request half of an entry.
type Request struct {
	Method   string    `json:"method"`
	URL      string    `json:"url"`
	PostData *PostData `json:"postData,omitempty"`
}

// PostData carries the recorded request body, if any.
type PostData struct {
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Response is the recorded response half of an entry.
type Response struct {
	Status  int      `json:"status"`
	Headers []Header `json:"headers"`
	Content *Content `json:"content,omitempty"`
}

// Header is a single recorded header. Order and duplicates are preserved.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Content carries the recorded response body.
type Content struct {
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Parse decodes a HAR document and validates its top-level shape.
// A document without log.entries is rejected: there is nothing to serve.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode archive: %w", err)
	}
	if doc.Log == nil || doc.Log.Entries == nil {
		return nil, ErrInvalidArchive
	}
	return &doc, nil
}

// Entry is one recorded interaction prepared for matching.
// Entries are built once during load and never mutated afterward.
type Entry struct {
	// Ordinal is the 0-based position in the archive, kept for diagnostics.
	Ordinal int

	Method    string // uppercase
	Path      string // URL path component, no query
	RawQuery  string // query string as recorded
	NormQuery string // normalized signature form
	ReqBody   string // recorded request body text, "" if none

	Status      int
	Headers     []Header // ordered, duplicates allowed
	Body        string   // recorded response body text
	ContentType string   // derived from response headers
}

// ContentTypeOf returns the response content type, preferring the recorded
// Content-Type header over the HAR content.mimeType field.
func ContentTypeOf(resp Response) string {
	for _, h := range resp.Headers {
		if strings.EqualFold(h.Name, "Content-Type") {
			return h.Value
		}
	}
	if resp.Content != nil {
		return resp.Content.MimeType
	}
	return ""
}
