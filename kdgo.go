package kdgo

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/kdgo/blobstore"
	"github.com/hupe1980/kdgo/chunkstore"
	"github.com/hupe1980/kdgo/dualtree"
	"github.com/hupe1980/kdgo/kdtree"
)

// CurrentName is the blob holding the name of the published container. It
// matches s3.CurrentName so a DDBCommitStore versions it.
const CurrentName = "CURRENT"

// Neighbor is a query hit.
type Neighbor = kdtree.Neighbor

// Tree is a k-d tree with logging and metrics around its operations.
//
// Queries are safe for concurrent use. Close must not race with them.
type Tree struct {
	idx      kdtree.Index
	opts     options
	logger   *Logger
	reserved atomic.Int64
}

// Build constructs a tree over n row-major points of dimension dims.
func Build(points []float64, n, dims int, optFns ...Option) (*Tree, error) {
	o := applyOptions(optFns)
	start := time.Now()
	idx, err := kdtree.Build(points, n, dims, o.treeOptions()...)
	return finishBuild(idx, o, n, dims, start, err)
}

// BuildFloat32 constructs a tree over float32 points.
func BuildFloat32(points []float32, n, dims int, optFns ...Option) (*Tree, error) {
	o := applyOptions(optFns)
	start := time.Now()
	idx, err := kdtree.BuildFloat32(points, n, dims, o.treeOptions()...)
	return finishBuild(idx, o, n, dims, start, err)
}

func finishBuild(idx kdtree.Index, o options, n, dims int, start time.Time, err error) (*Tree, error) {
	if err == nil && !o.resources.TryAcquireMemory(idx.SizeBytes()) {
		_ = idx.Close()
		err = fmt.Errorf("%w: tree needs %d bytes", ErrMemoryLimit, idx.SizeBytes())
	}
	o.metricsCollector.RecordBuild(n, time.Since(start), err)
	o.logger.LogBuild(context.Background(), n, dims, err)
	if err != nil {
		return nil, translateError(err)
	}
	return wrapReserved(idx, o), nil
}

func wrapReserved(idx kdtree.Index, o options) *Tree {
	t := Wrap(idx, withResolved(o))
	t.reserved.Store(idx.SizeBytes())
	return t
}

func withResolved(o options) Option {
	return func(dst *options) { *dst = o }
}

// Wrap attaches logging and metrics to an existing index.
func Wrap(idx kdtree.Index, optFns ...Option) *Tree {
	o := applyOptions(optFns)
	return &Tree{
		idx:    idx,
		opts:   o,
		logger: o.logger.WithTree(idx.Name(), idx.ID()),
	}
}

// Index returns the underlying tree.
func (t *Tree) Index() kdtree.Index { return t.idx }

// Name returns the tree name.
func (t *Tree) Name() string { return t.idx.Name() }

// Len returns the number of points.
func (t *Tree) Len() int { return t.idx.Len() }

// Dim returns the point dimension.
func (t *Tree) Dim() int { return t.idx.Dim() }

// Nearest returns the stored point closest to q.
func (t *Tree) Nearest(q []float64) (Neighbor, error) {
	start := time.Now()
	nb, err := t.idx.Nearest(q)
	t.recordSearch(1, boolToInt(err == nil), start, err)
	return nb, translateError(err)
}

// NearestK returns up to k stored points closest to q, nearest first.
func (t *Tree) NearestK(q []float64, k int) ([]Neighbor, error) {
	start := time.Now()
	nbs, err := t.idx.NearestK(q, k)
	t.recordSearch(k, len(nbs), start, err)
	return nbs, translateError(err)
}

// RangeSearch returns every stored point within squared distance r2 of q.
func (t *Tree) RangeSearch(q []float64, r2 float64) (*kdtree.Results, error) {
	start := time.Now()
	res, err := t.idx.RangeSearch(q, r2)
	n := 0
	if res != nil {
		n = res.Len()
	}
	t.recordSearch(0, n, start, err)
	return res, translateError(err)
}

func (t *Tree) recordSearch(k, results int, start time.Time, err error) {
	t.opts.metricsCollector.RecordSearch(k, results, time.Since(start), err)
	t.logger.LogSearch(context.Background(), k, results, err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// BatchNearest answers Nearest for every query in parallel. The result is
// aligned with queries. The first failing query cancels the rest.
func (t *Tree) BatchNearest(ctx context.Context, queries [][]float64) ([]Neighbor, error) {
	start := time.Now()
	out := make([]Neighbor, len(queries))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.workers)
	chunk := max(1, len(queries)/(4*t.opts.workers))
	for lo := 0; lo < len(queries); lo += chunk {
		hi := min(lo+chunk, len(queries))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				nb, err := t.idx.Nearest(queries[i])
				if err != nil {
					failed.Add(1)
					return fmt.Errorf("query %d: %w", i, translateError(err))
				}
				out[i] = nb
			}
			return nil
		})
	}
	err := g.Wait()

	t.opts.metricsCollector.RecordBatch(len(queries), int(failed.Load()), time.Since(start))
	t.logger.LogBatch(ctx, len(queries), int(failed.Load()))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AllNearest returns, for every point of query, its nearest point in t,
// indexed by the query tree's original point index.
func (t *Tree) AllNearest(query *Tree) ([]dualtree.Match, error) {
	start := time.Now()
	matches, err := dualtree.AllNearest(t.idx, query.idx)
	t.opts.metricsCollector.RecordBatch(query.Len(), boolToInt(err != nil), time.Since(start))
	return matches, translateError(err)
}

// RangeJoin calls fn for every pair of a point of t and a point of query
// within squared distance r2.
func (t *Tree) RangeJoin(query *Tree, r2 float64, fn func(dualtree.Pair)) error {
	return translateError(dualtree.RangeJoin(t.idx, query.idx, r2, fn))
}

// Close releases the tree and its memory reservation.
func (t *Tree) Close() error {
	err := t.idx.Close()
	t.opts.resources.ReleaseMemory(t.reserved.Swap(0))
	return err
}

// Save writes the tree to blobs as a container called name.
func (t *Tree) Save(ctx context.Context, blobs blobstore.BlobStore, name string) error {
	return save(ctx, blobs, name, t.opts, []*Tree{t})
}

// SaveAll writes several trees into one container. Tree names must be
// distinct.
func SaveAll(ctx context.Context, blobs blobstore.BlobStore, name string, trees []*Tree, optFns ...Option) error {
	seen := make(map[string]bool, len(trees))
	for _, t := range trees {
		if seen[t.Name()] {
			return &ErrInvalidOptions{Reason: fmt.Sprintf("duplicate tree name %q", t.Name())}
		}
		seen[t.Name()] = true
	}
	return save(ctx, blobs, name, applyOptions(optFns), trees)
}

func save(ctx context.Context, blobs blobstore.BlobStore, name string, o options, trees []*Tree) error {
	if err := o.resources.AcquireSave(ctx); err != nil {
		return err
	}
	defer o.resources.ReleaseSave()

	start := time.Now()
	c := chunkstore.New(o.containerOptions()...)
	defer c.Close()

	var (
		n   int64
		err error
	)
	for _, t := range trees {
		if err = kdtree.Write(c, t.idx); err != nil {
			break
		}
	}
	if err == nil {
		n, err = c.Save(ctx, blobs, name)
	}
	o.metricsCollector.RecordSave(n, time.Since(start), err)
	o.logger.LogSave(ctx, name, n, err)
	return translateError(err)
}

// Load reads the tree stored in the container called name. Use WithName to
// select a named tree.
func Load(ctx context.Context, blobs blobstore.BlobStore, name string, optFns ...Option) (*Tree, error) {
	o := applyOptions(optFns)
	start := time.Now()
	idx, err := load(ctx, blobs, name, o)
	if err == nil {
		if rerr := o.resources.AcquireMemory(ctx, idx.SizeBytes()); rerr != nil {
			_ = idx.Close()
			idx, err = nil, rerr
		}
	}
	o.metricsCollector.RecordLoad(time.Since(start), err)
	points := 0
	if idx != nil {
		points = idx.Len()
	}
	o.logger.LogLoad(ctx, name, points, err)
	if err != nil {
		return nil, translateError(err)
	}
	return wrapReserved(idx, o), nil
}

func load(ctx context.Context, blobs blobstore.BlobStore, name string, o options) (kdtree.Index, error) {
	c, err := chunkstore.Open(ctx, blobs, name, o.containerOptions()...)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return kdtree.Read(c, o.name, kdtree.WithLogger(o.logger.Logger))
}

// Publish points CURRENT at the container called name.
func Publish(ctx context.Context, blobs blobstore.BlobStore, name string, optFns ...Option) error {
	o := applyOptions(optFns)
	err := blobs.Put(ctx, CurrentName, []byte(name))
	o.logger.LogPublish(ctx, name, err)
	return err
}

// LoadCurrent loads the container CURRENT points at.
func LoadCurrent(ctx context.Context, blobs blobstore.BlobStore, optFns ...Option) (*Tree, error) {
	b, err := blobs.Open(ctx, CurrentName)
	if err != nil {
		return nil, translateError(err)
	}
	data, err := blobstore.ReadAll(ctx, b)
	name := strings.TrimSpace(string(data))
	if cerr := b.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return Load(ctx, blobs, name, optFns...)
}
