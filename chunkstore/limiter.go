package chunkstore

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// limitedWriter throttles writes through a token bucket of bytes.
type limitedWriter struct {
	ctx context.Context
	w   io.Writer
	lim *rate.Limiter
}

func newLimitedWriter(ctx context.Context, w io.Writer, bytesPerSec int) *limitedWriter {
	return &limitedWriter{
		ctx: ctx,
		w:   w,
		lim: rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec),
	}
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(len(p), l.lim.Burst())
		if err := l.lim.WaitN(l.ctx, n); err != nil {
			return written, err
		}
		m, err := l.w.Write(p[:n])
		written += m
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}
