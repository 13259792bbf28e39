package match

import (
	"strings"

	"github.com/liuwenjie/api-mock-server/internal/domain/har"
)

// Index is the read-only lookup surface the matcher queries.
type Index interface {
	Lookup(signature string) (*har.Entry, bool)
	HasPath(method, path string) bool
}

// Outcome classifies the result of matching one request.
type Outcome int

const (
	// OutcomeMatched means an exact recorded variant was found.
	OutcomeMatched Outcome = iota
	// OutcomePathKnownNoVariant means the method+path was recorded but no
	// variant matches the request's query/body.
	OutcomePathKnownNoVariant
	// OutcomePathUnknown means the method+path was never recorded.
	OutcomePathUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomePathKnownNoVariant:
		return "path_known_no_variant"
	case OutcomePathUnknown:
		return "path_unknown"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of matching. Entry is set only when
// Outcome is OutcomeMatched. Signature records the last key tried,
// for diagnostics.
type Result struct {
	Outcome   Outcome
	Entry     *har.Entry
	Signature string
}

// Match resolves a live request against the index using an ordered strategy
// chain, first success wins:
//
//  1. signature including the body (only when body text is non-blank)
//  2. signature with query only
//  3. path-known check
//
// No fuzzy fallback is attempted past step 2: serving the closest recorded
// variant for the wrong parameters would be more misleading than a neutral
// stub.
func Match(idx Index, method, path, rawQuery, body string) Result {
	normQuery := NormalizeQuery(rawQuery)

	if strings.TrimSpace(body) != "" {
		sig := BuildSignature(method, path, normQuery, body)
		if e, ok := idx.Lookup(sig); ok {
			return Result{Outcome: OutcomeMatched, Entry: e, Signature: sig}
		}
	}

	sig := BuildSignature(method, path, normQuery, "")
	if e, ok := idx.Lookup(sig); ok {
		return Result{Outcome: OutcomeMatched, Entry: e, Signature: sig}
	}

	if idx.HasPath(method, path) {
		return Result{Outcome: OutcomePathKnownNoVariant, Signature: sig}
	}
	return Result{Outcome: OutcomePathUnknown, Signature: sig}
}
