package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/annel0/pixel-canvas/internal/mempool"
)

const (
	// Magic идентификатор формата "PXWD"
	Magic uint32 = 0x50585744

	// Version текущая версия бинарного формата
	Version uint32 = 1

	headerSize = 12
)

// Encode сериализует слоты [0, count) пула:
//
//	header:  magic u32 | version u32 | count u32
//	authors: entryCount u16 | {len u16, utf8}*
//	extras:  entryCount u16 | {len u16, utf8}*
//	body:    x i32[] y i32[] w u8[] h u8[] color u32[] kind u8[] createdAt u32[] authorId u16[] extraId u16[]
//
// Все числа little-endian. Надгробия (w == 0) записываются как есть.
func Encode(p *mempool.Pool) ([]byte, error) {
	cols := p.Columns()
	n := cols.Len()

	size := headerSize + paletteSize(p.Authors()) + paletteSize(p.Extras()) + n*(4+4+1+1+4+1+4+2+2)
	buf := bytes.NewBuffer(make([]byte, 0, size))

	le := binary.LittleEndian
	var hdr [headerSize]byte
	le.PutUint32(hdr[0:], Magic)
	le.PutUint32(hdr[4:], Version)
	le.PutUint32(hdr[8:], uint32(n))
	buf.Write(hdr[:])

	if err := writePalette(buf, p.Authors()); err != nil {
		return nil, fmt.Errorf("encode authors: %w", err)
	}
	if err := writePalette(buf, p.Extras()); err != nil {
		return nil, fmt.Errorf("encode extras: %w", err)
	}

	for _, col := range []interface{}{cols.X, cols.Y, cols.W, cols.H, cols.Color, cols.Kind, cols.CreatedAt, cols.AuthorID, cols.ExtraID} {
		if err := binary.Write(buf, le, col); err != nil {
			return nil, fmt.Errorf("encode column: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// Decode проверяет заголовок, восстанавливает палитры и колонки и собирает новый пул.
// rebuild вызывается после сборки, чтобы вызывающий код перестроил свои индексы; nil допустим.
// Любое повреждение возвращается как *DecodeError.
func Decode(data []byte, rebuild func(*mempool.Pool) error) (*mempool.Pool, error) {
	le := binary.LittleEndian
	if len(data) < headerSize {
		return nil, decodeErr(ErrTruncated, "header", len(data), nil)
	}
	if magic := le.Uint32(data[0:]); magic != Magic {
		return nil, decodeErr(ErrBadMagic, "header", 0, fmt.Errorf("got %#08x", magic))
	}
	if version := le.Uint32(data[4:]); version != Version {
		return nil, decodeErr(ErrUnsupportedVersion, "header", 4, fmt.Errorf("got %d, want %d", version, Version))
	}
	count := int(le.Uint32(data[8:]))

	r := &reader{data: data, off: headerSize}
	authors, err := r.palette("authors")
	if err != nil {
		return nil, err
	}
	extras, err := r.palette("extras")
	if err != nil {
		return nil, err
	}

	bodySize := count * (4 + 4 + 1 + 1 + 4 + 1 + 4 + 2 + 2)
	if r.remaining() < bodySize {
		return nil, decodeErr(ErrTruncated, "body", r.off, fmt.Errorf("need %d bytes for %d slots, have %d", bodySize, count, r.remaining()))
	}
	if r.remaining() > bodySize {
		return nil, decodeErr(ErrCorruptColumn, "body", r.off+bodySize, fmt.Errorf("%d trailing bytes", r.remaining()-bodySize))
	}

	cols := mempool.Columns{
		X:         make([]int32, count),
		Y:         make([]int32, count),
		W:         make([]uint8, count),
		H:         make([]uint8, count),
		Color:     make([]uint32, count),
		Kind:      make([]uint8, count),
		CreatedAt: make([]uint32, count),
		AuthorID:  make([]uint16, count),
		ExtraID:   make([]uint16, count),
	}
	body := bytes.NewReader(data[r.off:])
	names := []string{"x", "y", "w", "h", "color", "kind", "createdAt", "authorId", "extraId"}
	for i, col := range []interface{}{cols.X, cols.Y, cols.W, cols.H, cols.Color, cols.Kind, cols.CreatedAt, cols.AuthorID, cols.ExtraID} {
		if err := binary.Read(body, le, col); err != nil {
			return nil, decodeErr(ErrTruncated, "column "+names[i], len(data)-body.Len(), err)
		}
	}

	pool, err := mempool.FromColumns(cols, authors, extras, count)
	if err != nil {
		return nil, decodeErr(ErrCorruptColumn, "body", -1, err)
	}

	if rebuild != nil {
		if err := rebuild(pool); err != nil {
			return nil, fmt.Errorf("rebuild after decode: %w", err)
		}
	}
	return pool, nil
}

func paletteSize(p *mempool.Palette) int {
	size := 2
	for _, s := range p.Entries() {
		size += 2 + len(s)
	}
	return size
}

func writePalette(buf *bytes.Buffer, p *mempool.Palette) error {
	entries := p.Entries()
	if len(entries) > mempool.MaxPaletteEntries {
		return fmt.Errorf("palette has %d entries, max %d", len(entries), mempool.MaxPaletteEntries)
	}
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], uint16(len(entries)))
	buf.Write(tmp[:])
	for _, s := range entries {
		if len(s) > math.MaxUint16 {
			return fmt.Errorf("palette string of %d bytes, max %d", len(s), math.MaxUint16)
		}
		binary.LittleEndian.PutUint16(tmp[:], uint16(len(s)))
		buf.Write(tmp[:])
		buf.WriteString(s)
	}
	return nil
}

// reader последовательное чтение палитр с контролем границ
type reader struct {
	data []byte
	off  int
}

func (r *reader) remaining() int { return len(r.data) - r.off }

func (r *reader) u16(field string) (uint16, error) {
	if r.remaining() < 2 {
		return 0, decodeErr(ErrTruncated, field, r.off, nil)
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) palette(field string) (*mempool.Palette, error) {
	n, err := r.u16(field)
	if err != nil {
		return nil, err
	}
	entries := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		l, err := r.u16(field)
		if err != nil {
			return nil, err
		}
		if r.remaining() < int(l) {
			return nil, decodeErr(ErrTruncated, field, r.off, fmt.Errorf("string %d needs %d bytes", i, l))
		}
		raw := r.data[r.off : r.off+int(l)]
		if !utf8.Valid(raw) {
			return nil, decodeErr(ErrCorruptPalette, field, r.off, fmt.Errorf("string %d is not utf-8", i))
		}
		entries = append(entries, string(raw))
		r.off += int(l)
	}
	p, err := mempool.NewPaletteFromEntries(entries)
	if err != nil {
		return nil, decodeErr(ErrCorruptPalette, field, r.off, err)
	}
	return p, nil
}
