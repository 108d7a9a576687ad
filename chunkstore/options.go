package chunkstore

import (
	"io"
	"log/slog"
)

type options struct {
	codec      Codec
	writeLimit int
	logger     *slog.Logger
}

// Option configures a Container.
type Option func(*options)

// WithCompression sets the codec applied to chunks on save. Chunks that do
// not compress well are still stored raw.
func WithCompression(c Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithWriteLimit caps save throughput to bytesPerSec. Zero disables the cap.
func WithWriteLimit(bytesPerSec int) Option {
	return func(o *options) { o.writeLimit = bytesPerSec }
}

// WithLogger sets the logger for save and open events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func applyOptions(opts []Option) options {
	o := options{codec: CodecNone}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}
