package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"coop-voucher/internal/domain/ports/adapter"
)

var _ adapter.ArtifactSink = (*DirSink)(nil)

// DirSink writes artifacts into a directory, one file per voucher.
type DirSink struct {
	dir string
	mu  sync.Mutex
	n   int
}

func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &DirSink{dir: dir}, nil
}

func (s *DirSink) Put(ctx context.Context, a *adapter.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := filepath.Base(a.FileName)
	if name == "." || name == string(filepath.Separator) {
		name = a.VoucherID + ".pdf"
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), a.Data, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", name, err)
	}
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
	return nil
}

// Written returns the number of files stored so far.
func (s *DirSink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
