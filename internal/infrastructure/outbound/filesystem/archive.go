package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/liuwenjie/api-mock-server/internal/domain/har"
)

var _ har.Source = (*ArchiveFile)(nil)

// ArchiveFile reads a recorded session archive from disk.
type ArchiveFile struct {
	path string
}

// NewArchiveFile creates a source for the given archive path. The file must
// exist at construction time; there is nothing to serve without it.
func NewArchiveFile(path string) (*ArchiveFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("failed to access archive: %w", err)
	}
	return &ArchiveFile{path: abs}, nil
}

// Read returns the current contents of the archive file.
func (f *ArchiveFile) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive file: %w", err)
	}
	return data, nil
}

// Path returns the absolute archive path.
func (f *ArchiveFile) Path() string {
	return f.path
}
