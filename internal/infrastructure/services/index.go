package services

import (
	"sort"
	"strings"

	"github.com/liuwenjie/api-mock-server/internal/domain/har"
	"github.com/liuwenjie/api-mock-server/internal/domain/match"
	"github.com/liuwenjie/api-mock-server/internal/domain/replay"
)

var _ match.Index = (*SignatureIndex)(nil)

// SignatureIndex maps normalized request signatures to archive entries, with
// a secondary grouping by METHOD:PATH used to tell "no variant matched" from
// "path never recorded". It is populated once during load and read-only
// afterward; reloads build a fresh index and swap it in whole.
type SignatureIndex struct {
	signatures map[string]*har.Entry
	groups     map[string][]*har.Entry
}

// NewSignatureIndex creates an empty index.
func NewSignatureIndex() *SignatureIndex {
	return &SignatureIndex{
		signatures: make(map[string]*har.Entry),
		groups:     make(map[string][]*har.Entry),
	}
}

// Register computes the entry's signature, inserts it into the lookup map
// (last write wins), and appends the entry to its METHOD:PATH group. It
// returns the signature and, on collision, the entry that was displaced so
// the caller can log it.
func (idx *SignatureIndex) Register(e *har.Entry) (sig string, prev *har.Entry) {
	sig = match.BuildSignature(e.Method, e.Path, e.NormQuery, e.ReqBody)
	prev = idx.signatures[sig]
	idx.signatures[sig] = e

	key := groupKey(e.Method, e.Path)
	idx.groups[key] = append(idx.groups[key], e)
	return sig, prev
}

// Lookup returns the entry registered under the signature, if any.
func (idx *SignatureIndex) Lookup(signature string) (*har.Entry, bool) {
	e, ok := idx.signatures[signature]
	return e, ok
}

// HasPath reports whether any entry was recorded for this method and path.
func (idx *SignatureIndex) HasPath(method, path string) bool {
	return len(idx.groups[groupKey(method, path)]) > 0
}

// Variants returns all entries recorded for a method and path, in archive
// order.
func (idx *SignatureIndex) Variants(method, path string) []*har.Entry {
	return idx.groups[groupKey(method, path)]
}

// Len returns the number of distinct signatures registered.
func (idx *SignatureIndex) Len() int {
	return len(idx.signatures)
}

// Keys returns all registered signatures, sorted.
func (idx *SignatureIndex) Keys() []string {
	keys := make([]string, 0, len(idx.signatures))
	for k := range idx.signatures {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Endpoints returns registered endpoints sorted by signature, truncated to
// limit when limit > 0. Used for not-found diagnostics and the admin surface.
func (idx *SignatureIndex) Endpoints(limit int) []replay.KnownEndpoint {
	endpoints := make([]replay.KnownEndpoint, 0, len(idx.signatures))
	for sig, e := range idx.signatures {
		endpoints = append(endpoints, replay.KnownEndpoint{
			Method:    e.Method,
			Path:      e.Path,
			Signature: sig,
		})
	}
	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].Signature < endpoints[j].Signature
	})
	if limit > 0 && len(endpoints) > limit {
		endpoints = endpoints[:limit]
	}
	return endpoints
}

func groupKey(method, path string) string {
	return strings.ToUpper(method) + ":" + path
}
