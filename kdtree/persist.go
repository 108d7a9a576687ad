package kdtree

import (
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"strconv"

	"github.com/hupe1980/kdgo/chunkstore"
	"github.com/hupe1980/kdgo/coord"
)

// FormatVersion is written to the KDT_VER metadata key.
const FormatVersion = 1

// Metadata keys. Named trees suffix each key with "_" and the tree name.
const (
	KeyName     = "KDT_NAME"
	KeyNumData  = "KDT_NDAT"
	KeyNumDim   = "KDT_NDIM"
	KeyNumNode  = "KDT_NNOD"
	KeyVersion  = "KDT_VER"
	KeyExtKind  = "KDT_EXT"
	KeyIntKind  = "KDT_INT"
	KeyDataKind = "KDT_DATA"
	KeyLinear   = "KDT_LINL"
	KeyEndian   = "KDT_ENDIAN"
	KeyUUID     = "KDT_UUID"
)

// Chunk roles.
const (
	RoleNodes    = "nodes"
	RoleLR       = "lr"
	RolePerm     = "perm"
	RoleBB       = "bb"
	RoleSplit    = "split"
	RoleSplitDim = "splitdim"
	RoleData     = "data"
	RoleRange    = "range"
)

// ChunkName returns the chunk name of role for a tree called name.
func ChunkName(role, name string) string {
	if name == "" {
		return role
	}
	return role + "_" + name
}

// MetadataKey returns the metadata key for a tree called name.
func MetadataKey(key, name string) string {
	if name == "" {
		return key
	}
	return key + "_" + name
}

// Write stores idx in store: one metadata entry per tree property and one
// chunk per array the tree carries.
func Write(store chunkstore.Store, idx Index) error {
	if idx == nil {
		return errors.New("kdtree: nil index")
	}
	return idx.write(store)
}

func (t *Tree[T]) write(store chunkstore.Store) error {
	if t.closed.Load() {
		return ErrClosed
	}
	kind := t.InternalKind()
	size := kind.Size()

	meta := []struct{ key, value string }{
		{KeyName, t.name},
		{KeyNumData, strconv.Itoa(t.n)},
		{KeyNumDim, strconv.Itoa(t.dims)},
		{KeyNumNode, strconv.Itoa(t.nnodes)},
		{KeyVersion, strconv.Itoa(FormatVersion)},
		{KeyExtKind, t.ext.String()},
		{KeyIntKind, kind.String()},
		{KeyDataKind, kind.String()},
		{KeyLinear, formatBool(t.linearLR)},
		{KeyEndian, endianTag()},
		{KeyUUID, t.id},
	}
	for _, m := range meta {
		if err := store.SetMetadata(MetadataKey(m.key, t.name), m.value); err != nil {
			return fmt.Errorf("kdtree: write metadata %s: %w", m.key, err)
		}
	}

	chunks := []*chunkstore.Chunk{
		{Name: RoleData, ItemSize: t.dims * size, Rows: t.n, Data: asBytes(t.data)},
		{Name: RolePerm, ItemSize: 4, Rows: t.n, Data: asBytes(t.perm)},
	}
	if t.lr != nil {
		chunks = append(chunks, &chunkstore.Chunk{Name: RoleLR, ItemSize: 4, Rows: t.nbottom, Data: asBytes(t.lr)})
	}
	if t.bb != nil {
		chunks = append(chunks, &chunkstore.Chunk{Name: RoleBB, ItemSize: 2 * t.dims * size, Rows: t.nnodes, Data: asBytes(t.bb)})
	}
	if t.split != nil {
		chunks = append(chunks, &chunkstore.Chunk{Name: RoleSplit, ItemSize: size, Rows: t.ninterior, Data: asBytes(t.split)})
		if t.splitDim != nil {
			chunks = append(chunks, &chunkstore.Chunk{Name: RoleSplitDim, ItemSize: 1, Rows: t.ninterior, Data: t.splitDim})
		}
	}
	if kind.IsInteger() {
		r := make([]float64, 0, 2*t.dims+1)
		r = append(r, t.tf.Min()...)
		r = append(r, t.tf.Max()...)
		r = append(r, t.tf.Scale())
		chunks = append(chunks, &chunkstore.Chunk{Name: RoleRange, ItemSize: 8, Rows: len(r), Data: asBytes(r)})
	}

	for _, c := range chunks {
		c.Name = ChunkName(c.Name, t.name)
		if err := store.WriteChunk(c); err != nil {
			return fmt.Errorf("kdtree: write chunk %s: %w", c.Name, err)
		}
	}
	t.logger.Debug("kdtree written", "name", t.name, "points", t.n, "chunks", len(chunks))
	return nil
}

func formatBool(b bool) string {
	if b {
		return "T"
	}
	return "F"
}

// header is the parsed metadata of a stored tree.
type header struct {
	name     string
	id       string
	n        int
	dims     int
	nnodes   int
	ext      coord.Kind
	internal coord.Kind
	linear   bool
}

// Read loads the tree called name from store. Only the logger of the options
// is used.
func Read(store chunkstore.Store, name string, optFns ...Option) (Index, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	h, err := readHeader(store, name)
	if err != nil {
		return nil, err
	}
	r := &reader{store: store, h: h, logger: opts.logger()}
	switch h.internal {
	case coord.KindFloat64:
		return asIndex(readTree[float64](r))
	case coord.KindFloat32:
		return asIndex(readTree[float32](r))
	case coord.KindUint32:
		return asIndex(readTree[uint32](r))
	case coord.KindUint16:
		return asIndex(readTree[uint16](r))
	default:
		return nil, corruptf("internal kind %s", h.internal)
	}
}

// asIndex keeps a failed read from returning a typed nil Index.
func asIndex[T coord.Value](t *Tree[T], err error) (Index, error) {
	if err != nil {
		return nil, err
	}
	return t, nil
}

func readHeader(store chunkstore.Store, name string) (*header, error) {
	get := func(key string) (string, error) {
		v, ok := store.Metadata(MetadataKey(key, name))
		if !ok {
			return "", corruptf("missing metadata %s", MetadataKey(key, name))
		}
		return v, nil
	}
	getInt := func(key string) (int, error) {
		v, err := get(key)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, corruptf("metadata %s = %q", key, v)
		}
		return n, nil
	}
	getKind := func(key string) (coord.Kind, error) {
		v, err := get(key)
		if err != nil {
			return coord.KindUnknown, err
		}
		k, err := coord.ParseKind(v)
		if err != nil {
			return coord.KindUnknown, corruptf("metadata %s: %v", key, err)
		}
		return k, nil
	}

	endian, err := get(KeyEndian)
	if err != nil {
		return nil, err
	}
	if endian != endianTag() {
		return nil, fmt.Errorf("%w: stored %s, native %s", ErrEndianMismatch, endian, endianTag())
	}

	h := &header{name: name}
	if h.n, err = getInt(KeyNumData); err != nil {
		return nil, err
	}
	if h.dims, err = getInt(KeyNumDim); err != nil {
		return nil, err
	}
	if h.nnodes, err = getInt(KeyNumNode); err != nil {
		return nil, err
	}
	if v, err := getInt(KeyVersion); err != nil {
		return nil, err
	} else if v > FormatVersion {
		return nil, corruptf("format version %d is newer than %d", v, FormatVersion)
	}
	if h.ext, err = getKind(KeyExtKind); err != nil {
		return nil, err
	}
	if h.internal, err = getKind(KeyIntKind); err != nil {
		return nil, err
	}
	data, err := getKind(KeyDataKind)
	if err != nil {
		return nil, err
	}
	if data != h.internal {
		return nil, corruptf("data kind %s differs from internal kind %s", data, h.internal)
	}
	if h.ext.IsInteger() {
		return nil, corruptf("external kind %s", h.ext)
	}
	if v, ok := store.Metadata(MetadataKey(KeyLinear, name)); ok {
		h.linear = v == "T"
	}
	h.id, _ = store.Metadata(MetadataKey(KeyUUID, name))

	if h.dims == 0 {
		return nil, &ErrInvalidDimension{Dimension: 0, Reason: "stored dimension must be positive"}
	}
	if uint64(h.n) > 1<<32-1 {
		return nil, corruptf("%d points", h.n)
	}
	switch {
	case h.n == 0 && h.nnodes != 0:
		return nil, corruptf("empty tree with %d nodes", h.nnodes)
	case h.n > 0 && (bits.OnesCount(uint(h.nnodes+1)) != 1 || h.nnodes == 0):
		return nil, corruptf("node count %d is not 2^k-1", h.nnodes)
	case h.n > 0 && (h.nnodes+1)/2 > h.n:
		return nil, corruptf("%d leaves for %d points", (h.nnodes+1)/2, h.n)
	}
	return h, nil
}

type reader struct {
	store  chunkstore.Store
	h      *header
	logger *slog.Logger
}

// chunk returns the chunk for role, or nil when absent.
func (r *reader) chunk(role string) (*chunkstore.Chunk, error) {
	c, err := r.store.ReadChunk(ChunkName(role, r.h.name))
	if errors.Is(err, chunkstore.ErrChunkNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kdtree: read chunk %s: %w", ChunkName(role, r.h.name), err)
	}
	return c, nil
}

func expectShape(c *chunkstore.Chunk, itemSize, rows int) error {
	if c.ItemSize != itemSize || c.Rows != rows {
		return &ErrChunkSize{
			Name:     c.Name,
			ItemSize: c.ItemSize,
			Rows:     c.Rows,
			Want:     fmt.Sprintf("item size %d and %d rows", itemSize, rows),
		}
	}
	return nil
}

func readTree[T coord.Value](r *reader) (*Tree[T], error) {
	h := r.h
	kind := coord.KindOf[T]()
	size := kind.Size()

	t := &Tree[T]{
		name:     h.name,
		id:       h.id,
		n:        h.n,
		dims:     h.dims,
		ext:      h.ext,
		linearLR: h.linear,
		logger:   r.logger,
	}
	t.setShape((h.nnodes + 1) / 2)

	data, err := r.chunk(RoleData)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, &ErrMissingChunk{Name: ChunkName(RoleData, h.name)}
	}
	if err := expectShape(data, h.dims*size, h.n); err != nil {
		return nil, err
	}
	t.data = fromBytes[T](data.Data, h.n*h.dims)

	if err := readPerm(r, t); err != nil {
		return nil, err
	}
	if err := readSplits(r, t, kind); err != nil {
		return nil, err
	}
	if err := readTransform(r, t, kind); err != nil {
		return nil, err
	}
	t.initLo, t.initHi = initialRegion(kind, t.tf)

	legacy, err := r.chunk(RoleNodes)
	if err != nil {
		return nil, err
	}
	if legacy != nil {
		if err := expectShape(legacy, 8+2*h.dims*size, h.nnodes); err != nil {
			return nil, err
		}
	}
	if err := readLR(r, t, legacy); err != nil {
		return nil, err
	}
	if err := readBoxes(r, t, legacy); err != nil {
		return nil, err
	}

	if h.n > 0 && t.bb == nil && t.split == nil {
		return nil, corruptf("tree has neither bounding boxes nor split planes")
	}
	r.logger.Debug("kdtree read",
		"name", t.name,
		"points", t.n,
		"dims", t.dims,
		"internal", kind.String(),
		"bbox", t.bb != nil,
		"split", t.SplitDims().String(),
		"linear_lr", t.linearLR,
	)
	return t, nil
}

func readPerm[T coord.Value](r *reader, t *Tree[T]) error {
	c, err := r.chunk(RolePerm)
	if err != nil {
		return err
	}
	if c == nil {
		t.perm = make([]uint32, t.n)
		for i := range t.perm {
			t.perm[i] = uint32(i)
		}
		return nil
	}
	if err := expectShape(c, 4, t.n); err != nil {
		return err
	}
	t.perm = fromBytes[uint32](c.Data, t.n)
	seen := make([]bool, t.n)
	for slot, p := range t.perm {
		if int(p) >= t.n || seen[p] {
			return corruptf("permutation entry %d = %d is not a bijection on [0, %d)", slot, p, t.n)
		}
		seen[p] = true
	}
	return nil
}

func readSplits[T coord.Value](r *reader, t *Tree[T], kind coord.Kind) error {
	split, err := r.chunk(RoleSplit)
	if err != nil {
		return err
	}
	dims, err := r.chunk(RoleSplitDim)
	if err != nil {
		return err
	}
	if split == nil {
		if dims != nil {
			return corruptf("split dimensions without split values")
		}
		return nil
	}
	if err := expectShape(split, kind.Size(), t.ninterior); err != nil {
		return err
	}
	t.split = fromBytes[T](split.Data, t.ninterior)
	if dims == nil {
		if !kind.IsInteger() {
			return corruptf("packed split planes on %s tree", kind)
		}
		t.packer = newSplitPacker(t.dims)
		for node := 0; node < t.ninterior; node++ {
			if d, _ := t.splitAt(node); d >= t.dims {
				return corruptf("node %d splits on dimension %d of %d", node, d, t.dims)
			}
		}
		return nil
	}
	if err := expectShape(dims, 1, t.ninterior); err != nil {
		return err
	}
	t.splitDim = append([]uint8(nil), dims.Data...)
	for node, d := range t.splitDim {
		if int(d) >= t.dims {
			return corruptf("node %d splits on dimension %d of %d", node, d, t.dims)
		}
	}
	return nil
}

func readTransform[T coord.Value](r *reader, t *Tree[T], kind coord.Kind) error {
	if !kind.IsInteger() {
		t.tf = coord.Identity(t.dims)
		return nil
	}
	c, err := r.chunk(RoleRange)
	if err != nil {
		return err
	}
	if c == nil {
		return &ErrMissingChunk{Name: ChunkName(RoleRange, t.name)}
	}
	if err := expectShape(c, 8, 2*t.dims+1); err != nil {
		return err
	}
	vals := fromBytes[float64](c.Data, 2*t.dims+1)
	packed := t.split != nil && t.splitDim == nil
	limit := quantizationLimit(kind, t.dims, packed)
	tf, err := coord.Restore(vals[:t.dims], vals[t.dims:2*t.dims], vals[2*t.dims], limit)
	if err != nil {
		return fmt.Errorf("%w: range: %w", ErrCorrupt, err)
	}
	t.tf = tf
	return nil
}

// legacyNode returns the L, R and box of node i in a legacy combined chunk.
func legacyNode[T coord.Value](t *Tree[T], c *chunkstore.Chunk, i int) (l, rr uint32, box []T) {
	off := i * c.ItemSize
	item := c.Data[off : off+c.ItemSize]
	l = fromBytes[uint32](item[0:4], 1)[0]
	rr = fromBytes[uint32](item[4:8], 1)[0]
	box = fromBytes[T](item[8:], 2*t.dims)
	return l, rr, box
}

func readLR[T coord.Value](r *reader, t *Tree[T], legacy *chunkstore.Chunk) error {
	if t.linearLR {
		return nil
	}
	c, err := r.chunk(RoleLR)
	if err != nil {
		return err
	}
	switch {
	case c != nil:
		if err := expectShape(c, 4, t.nbottom); err != nil {
			return err
		}
		t.lr = fromBytes[uint32](c.Data, t.nbottom)
	case legacy != nil:
		t.lr = make([]uint32, t.nbottom)
		for leaf := range t.lr {
			_, rr, _ := legacyNode(t, legacy, t.ninterior+leaf)
			t.lr[leaf] = rr
		}
	default:
		t.linearLR = true
		return nil
	}

	prev := -1
	for leaf, rr := range t.lr {
		if int(rr) < prev || int(rr) >= t.n {
			return corruptf("leaf %d ends at slot %d after %d", leaf, rr, prev)
		}
		prev = int(rr)
	}
	if t.n > 0 && prev != t.n-1 {
		return corruptf("leaf ranges cover %d of %d points", prev+1, t.n)
	}
	return nil
}

func readBoxes[T coord.Value](r *reader, t *Tree[T], legacy *chunkstore.Chunk) error {
	c, err := r.chunk(RoleBB)
	if err != nil {
		return err
	}
	itemSize := 2 * t.dims * coord.KindOf[T]().Size()
	switch {
	case c != nil && c.ItemSize == itemSize && c.Rows == t.nnodes:
		t.bb = fromBytes[T](c.Data, t.nnodes*2*t.dims)
	case c != nil && c.ItemSize == itemSize && t.nnodes > 0 && c.Rows == (t.nnodes+1)/2-1:
		r.logger.Warn("kdtree: bounding box chunk has the legacy interior-only row count; rebuilding leaf boxes",
			"chunk", c.Name, "rows", c.Rows, "nodes", t.nnodes)
		t.bb = make([]T, t.nnodes*2*t.dims)
		copy(t.bb, fromBytes[T](c.Data, c.Rows*2*t.dims))
		for leaf := 0; leaf < t.nbottom; leaf++ {
			node := t.ninterior + leaf
			start, end := t.NodeRange(node)
			if start < end {
				t.fitBox(node, start, end)
			}
		}
	case c != nil:
		return &ErrChunkSize{
			Name:     c.Name,
			ItemSize: c.ItemSize,
			Rows:     c.Rows,
			Want:     fmt.Sprintf("item size %d and %d (or legacy %d) rows", itemSize, t.nnodes, (t.nnodes+1)/2-1),
		}
	case legacy != nil:
		t.bb = make([]T, t.nnodes*2*t.dims)
		for node := 0; node < t.nnodes; node++ {
			_, _, box := legacyNode(t, legacy, node)
			copy(t.bb[node*2*t.dims:], box)
		}
	}
	return nil
}
