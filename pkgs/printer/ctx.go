package printer

import (
	"context"
	"io"
)

type writerKey struct{}

// WithWriter routes progress lines printed through Ctx(ctx) to w. main uses
// it to point the runner at stdout; tests use it to capture the lines.
func WithWriter(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, writerKey{}, w)
}

// GetWriter reports the writer set by WithWriter, if any.
func GetWriter(ctx context.Context) (io.Writer, bool) {
	w, ok := ctx.Value(writerKey{}).(io.Writer)
	return w, ok
}
