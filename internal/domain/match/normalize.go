package match

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"
)

// NormalizeQuery canonicalizes a raw query string so that two requests
// carrying the same parameters produce the same text regardless of parameter
// order, value order, or percent-encoding. Pure and idempotent.
func NormalizeQuery(raw string) string {
	raw = strings.TrimPrefix(raw, "?")
	if raw == "" {
		return ""
	}

	// Decode percent-encoding up front; a malformed escape means the string
	// is already in decoded form.
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		decoded = raw
	}

	values, err := url.ParseQuery(decoded)
	if err != nil {
		return sortedFragments(raw)
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		vals := append([]string(nil), values[name]...)
		sort.Strings(vals)
		for _, v := range vals {
			parts = append(parts, name+"="+v)
		}
	}
	return strings.Join(parts, "&")
}

// sortedFragments is the weak fallback when structured parsing fails:
// split on &, trim, sort, rejoin.
func sortedFragments(raw string) string {
	frags := strings.Split(raw, "&")
	kept := frags[:0]
	for _, f := range frags {
		f = strings.TrimSpace(f)
		if f != "" {
			kept = append(kept, f)
		}
	}
	sort.Strings(kept)
	return strings.Join(kept, "&")
}

// NormalizeBody canonicalizes a request body. JSON bodies get their object
// keys sorted recursively; array order is preserved since it can be
// semantically meaningful. Non-JSON text has whitespace runs collapsed.
func NormalizeBody(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	var v any
	dec := json.NewDecoder(strings.NewReader(trimmed))
	if err := dec.Decode(&v); err == nil && !dec.More() {
		if out, err := marshalCanonical(v); err == nil {
			return out
		}
	}

	return strings.Join(strings.Fields(raw), " ")
}

// marshalCanonical re-serializes a decoded JSON value compactly.
// encoding/json emits map keys in sorted order, which gives the
// key-order-independent form at every nesting depth.
func marshalCanonical(v any) (string, error) {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

// BuildSignature assembles the lookup key for a request. The same function
// runs at load time and at request time; any asymmetry breaks matching.
func BuildSignature(method, path, normQuery, body string) string {
	sig := strings.ToUpper(method) + ":" + path
	if normQuery != "" {
		sig += "?" + normQuery
	}
	if strings.TrimSpace(body) != "" {
		sig += ":body:" + NormalizeBody(body)
	}
	return sig
}
