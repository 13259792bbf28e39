package trace

import "time"

// Entry records the handling of one live request.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Query     string    `json:"query,omitempty"`
	// Signature is the lookup key the matcher tried last.
	Signature string `json:"signature"`
	Outcome   string `json:"outcome"`
	// Ordinal is the archive position of the matched entry, -1 when unmatched.
	Ordinal     int  `json:"ordinal"`
	Status      int  `json:"status"`
	RateLimited bool `json:"rate_limited"`
}
