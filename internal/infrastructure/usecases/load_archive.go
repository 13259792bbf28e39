package usecases

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/liuwenjie/api-mock-server/internal/domain/har"
	"github.com/liuwenjie/api-mock-server/internal/domain/match"
	"github.com/liuwenjie/api-mock-server/internal/infrastructure/ports"
	"github.com/liuwenjie/api-mock-server/internal/infrastructure/services"
)

// LoadArchiveUseCase reads the recorded session archive, normalizes each
// entry, and builds the signature index.
type LoadArchiveUseCase struct {
	source har.Source
	filter *services.EntryFilter
	logger ports.Logger
}

// NewLoadArchiveUseCase creates a new use case. filter may be nil.
func NewLoadArchiveUseCase(source har.Source, filter *services.EntryFilter, logger ports.Logger) *LoadArchiveUseCase {
	return &LoadArchiveUseCase{
		source: source,
		filter: filter,
		logger: logger,
	}
}

// Execute loads the archive and returns the built index. A structurally
// invalid archive is fatal; individual bad entries are skipped and logged.
func (uc *LoadArchiveUseCase) Execute(ctx context.Context) (*services.SignatureIndex, error) {
	data, err := uc.source.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	doc, err := har.Parse(data)
	if err != nil {
		return nil, err
	}

	index := services.NewSignatureIndex()
	var skipped, filtered, collisions int

	for i, raw := range doc.Log.Entries {
		entry, err := buildEntry(i, raw)
		if err != nil {
			skipped++
			uc.logger.Warn("skipping archive entry", "ordinal", i, "url", raw.Request.URL, "error", err)
			continue
		}

		if uc.filter != nil {
			keep, err := uc.filter.Keep(entry)
			if err != nil {
				// Fail open: a filter runtime error never drops an entry.
				uc.logger.Warn("entry filter error, keeping entry", "ordinal", i, "error", err)
			} else if !keep {
				filtered++
				uc.logger.Debug("entry filtered out", "ordinal", i, "method", entry.Method, "path", entry.Path)
				continue
			}
		}

		sig, prev := index.Register(entry)
		if prev != nil {
			collisions++
			uc.logger.Warn("signature collision, later entry wins",
				"signature", sig, "kept_ordinal", entry.Ordinal, "displaced_ordinal", prev.Ordinal)
		}
		uc.logger.Debug("entry registered", "ordinal", entry.Ordinal, "signature", sig)
	}

	uc.logger.Info("archive loaded",
		"entries", len(doc.Log.Entries),
		"registered", index.Len(),
		"skipped", skipped,
		"filtered", filtered,
		"collisions", collisions)

	return index, nil
}

// buildEntry converts a raw HAR entry into the normalized matching form.
func buildEntry(ordinal int, raw har.RawEntry) (*har.Entry, error) {
	u, err := url.Parse(raw.Request.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entry URL: %w", err)
	}
	if u.Path == "" {
		return nil, fmt.Errorf("entry URL has no path: %q", raw.Request.URL)
	}

	entry := &har.Entry{
		Ordinal:     ordinal,
		Method:      strings.ToUpper(raw.Request.Method),
		Path:        u.Path,
		RawQuery:    u.RawQuery,
		NormQuery:   match.NormalizeQuery(u.RawQuery),
		Status:      raw.Response.Status,
		Headers:     raw.Response.Headers,
		ContentType: har.ContentTypeOf(raw.Response),
	}
	if raw.Request.PostData != nil {
		entry.ReqBody = raw.Request.PostData.Text
	}
	if raw.Response.Content != nil {
		entry.Body = raw.Response.Content.Text
	}
	return entry, nil
}
