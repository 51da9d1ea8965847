package agents

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// FileSource opens documents from the local filesystem, relative to Root when
// the path is not absolute.
type FileSource struct {
	Root string
}

func (f FileSource) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(f.Root, path)
	}
	return os.Open(path)
}
