package workflow

import (
	"context"

	"github.com/deixis/bzlshim/internal/buildifier"
)

// Format returns content formatted by buildifier. path is used to infer
// the file type and in error messages; it need not exist.
func (e *Engine) Format(ctx context.Context, path string, content []byte) ([]byte, error) {
	client, err := e.buildifier(ctx)
	if err != nil {
		return nil, err
	}
	return client.Format(ctx, content, buildifier.FormatOptions{
		Path: path,
		Type: e.config().Buildifier.Type,
	})
}
