package chunkstore

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"strings"

	"github.com/hupe1980/kdgo/internal/conv"
)

const (
	magic         = "KDCS"
	formatVersion = 1
)

// entry is a chunk as held by a container. Either raw or stored is set:
// raw for chunks written in this session, stored for chunks read from a
// blob and not yet decoded.
type entry struct {
	name     string
	itemSize int
	rows     int
	codec    Codec
	rawLen   int
	crc      uint32
	raw      []byte
	stored   []byte
}

func encodeMetadata(m Metadata) []byte {
	var b strings.Builder
	for _, k := range m.Keys() {
		b.WriteString(k)
		b.WriteString(" = ")
		b.WriteString(m[k])
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func decodeMetadata(text []byte) (Metadata, error) {
	m := make(Metadata)
	for _, line := range strings.Split(string(text), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%w: metadata line %q", ErrFormat, line)
		}
		m[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return m, nil
}

// writeContainer frames meta and entries onto w. Entries must already carry
// their stored payload and checksum.
func writeContainer(w io.Writer, meta Metadata, entries []*entry) (int64, error) {
	bw := bufio.NewWriterSize(w, 1<<16)
	cw := &countingWriter{w: bw}

	metaText := encodeMetadata(meta)
	var hdr [12]byte
	copy(hdr[:4], magic)
	binary.LittleEndian.PutUint16(hdr[4:], formatVersion)
	binary.LittleEndian.PutUint16(hdr[6:], 0)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(len(metaText)))
	cw.Write(hdr[:])
	cw.Write(metaText)

	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(entries)))
	cw.Write(count[:])

	for _, e := range entries {
		var rec [2]byte
		binary.LittleEndian.PutUint16(rec[:], uint16(len(e.name)))
		cw.Write(rec[:])
		io.WriteString(cw, e.name)

		var fixed [4 + 8 + 1 + 8 + 8 + 4]byte
		binary.LittleEndian.PutUint32(fixed[0:], uint32(e.itemSize))
		binary.LittleEndian.PutUint64(fixed[4:], uint64(e.rows))
		fixed[12] = byte(e.codec)
		binary.LittleEndian.PutUint64(fixed[13:], uint64(e.rawLen))
		binary.LittleEndian.PutUint64(fixed[21:], uint64(len(e.stored)))
		binary.LittleEndian.PutUint32(fixed[29:], e.crc)
		cw.Write(fixed[:])
		cw.Write(e.stored)
	}
	if cw.err != nil {
		return cw.n, cw.err
	}
	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// countingWriter remembers the first error so framing code can write
// unconditionally and check once.
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}

// cursor is a bounds-checked reader over a container image.
type cursor struct {
	buf []byte
	off int
	err error
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || n > len(c.buf)-c.off {
		c.err = fmt.Errorf("%w: truncated at offset %d (need %d bytes)", ErrFormat, c.off, n)
		return nil
	}
	p := c.buf[c.off : c.off+n]
	c.off += n
	return p
}

func (c *cursor) u8() uint8 {
	if p := c.take(1); p != nil {
		return p[0]
	}
	return 0
}

func (c *cursor) u16() uint16 {
	if p := c.take(2); p != nil {
		return binary.LittleEndian.Uint16(p)
	}
	return 0
}

func (c *cursor) u32() uint32 {
	if p := c.take(4); p != nil {
		return binary.LittleEndian.Uint32(p)
	}
	return 0
}

func (c *cursor) u64() uint64 {
	if p := c.take(8); p != nil {
		return binary.LittleEndian.Uint64(p)
	}
	return 0
}

// length reads a u64 length that must fit an int.
func (c *cursor) length() int {
	v := c.u64()
	if c.err != nil {
		return 0
	}
	n, err := conv.Uint64ToInt(v)
	if err != nil {
		c.err = fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return n
}

// readContainer parses a container image. Stored payloads alias buf.
func readContainer(buf []byte) (Metadata, []*entry, error) {
	c := &cursor{buf: buf}
	if m := c.take(len(magic)); m == nil || !bytes.Equal(m, []byte(magic)) {
		return nil, nil, fmt.Errorf("%w: bad magic", ErrFormat)
	}
	if v := c.u16(); v != formatVersion {
		return nil, nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, v)
	}
	c.u16()
	metaText := c.take(int(c.u32()))
	if c.err != nil {
		return nil, nil, c.err
	}
	meta, err := decodeMetadata(metaText)
	if err != nil {
		return nil, nil, err
	}

	count := c.u32()
	entries := make([]*entry, 0, min(int(count), 1024))
	seen := make(map[string]struct{}, count)
	for i := uint32(0); i < count && c.err == nil; i++ {
		name := string(c.take(int(c.u16())))
		e := &entry{
			name:     name,
			itemSize: int(c.u32()),
			rows:     c.length(),
			codec:    Codec(c.u8()),
			rawLen:   c.length(),
		}
		storedLen := c.length()
		e.crc = c.u32()
		e.stored = c.take(storedLen)
		if c.err != nil {
			break
		}
		if _, dup := seen[name]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate chunk %q", ErrFormat, name)
		}
		seen[name] = struct{}{}
		entries = append(entries, e)
	}
	if c.err != nil {
		return nil, nil, c.err
	}
	if c.off != len(buf) {
		return nil, nil, fmt.Errorf("%w: %d trailing bytes", ErrFormat, len(buf)-c.off)
	}
	return meta, entries, nil
}

func checksum(p []byte) uint32 {
	return crc32.ChecksumIEEE(p)
}
