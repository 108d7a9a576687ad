package kdgo

import (
	"runtime"

	"github.com/hupe1980/kdgo/chunkstore"
	"github.com/hupe1980/kdgo/kdtree"
	"github.com/hupe1980/kdgo/resource"
)

type options struct {
	name             string
	tree             []kdtree.Option
	metricsCollector MetricsCollector
	logger           *Logger
	compression      chunkstore.Codec
	writeLimit       int
	workers          int
	resources        *resource.Controller
}

// Option configures Build, Load and the operations of the returned Tree.
type Option func(*options)

// WithName names the tree. Named trees can share a container with other
// trees; Load must be given the same name.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithTreeOptions passes build options through to kdtree.Build.
func WithTreeOptions(opts ...kdtree.Option) Option {
	return func(o *options) {
		o.tree = append(o.tree, opts...)
	}
}

// WithMetricsCollector sets the metrics collector. nil disables metrics.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger sets the logger. nil disables logging.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithCompression sets the chunk codec used by Save.
func WithCompression(c chunkstore.Codec) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithWriteLimit caps Save throughput in bytes per second. Zero means
// unlimited.
func WithWriteLimit(bytesPerSec int) Option {
	return func(o *options) {
		o.writeLimit = bytesPerSec
	}
}

// WithWorkers sets the parallelism of BatchNearest. Values below one use
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithResourceController accounts the memory of built and loaded trees and
// limits concurrent saves. Builds fail with ErrMemoryLimit when the budget
// is exhausted; loads wait for memory to be released.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		compression:      chunkstore.CodecNone,
	}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	return o
}

func (o *options) treeOptions() []kdtree.Option {
	opts := append([]kdtree.Option{kdtree.WithLogger(o.logger.Logger)}, o.tree...)
	if o.name != "" {
		opts = append(opts, kdtree.WithName(o.name))
	}
	return opts
}

func (o *options) containerOptions() []chunkstore.Option {
	return []chunkstore.Option{
		chunkstore.WithCompression(o.compression),
		chunkstore.WithWriteLimit(o.writeLimit),
		chunkstore.WithLogger(o.logger.Logger),
	}
}
