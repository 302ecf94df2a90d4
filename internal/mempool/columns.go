package mempool

import "fmt"

// Columns сырые колонки пула в диапазоне [0, count). Используются бинарным кодеком
// для массового копирования без раскодирования отдельных записей.
type Columns struct {
	X         []int32
	Y         []int32
	W         []uint8
	H         []uint8
	Color     []uint32
	Kind      []uint8
	CreatedAt []uint32
	AuthorID  []uint16
	ExtraID   []uint16
}

// Len длина колонок (все колонки одной длины)
func (c Columns) Len() int { return len(c.X) }

// Columns возвращает срезы колонок в пределах [0, count). Срезы разделяют память с пулом.
func (p *Pool) Columns() Columns {
	n := p.count
	return Columns{
		X:         p.x[:n],
		Y:         p.y[:n],
		W:         p.w[:n],
		H:         p.h[:n],
		Color:     p.color[:n],
		Kind:      p.kind[:n],
		CreatedAt: p.createdAt[:n],
		AuthorID:  p.authorID[:n],
		ExtraID:   p.extraID[:n],
	}
}

// FromColumns собирает пул из готовых колонок и палитр. Ёмкость не меньше длины колонок.
// Слоты с нулевой шириной считаются надгробиями и попадают в список свободных.
func FromColumns(cols Columns, authors, extras *Palette, capacity int) (*Pool, error) {
	n := cols.Len()
	lengths := []int{len(cols.Y), len(cols.W), len(cols.H), len(cols.Color), len(cols.Kind),
		len(cols.CreatedAt), len(cols.AuthorID), len(cols.ExtraID)}
	for _, l := range lengths {
		if l != n {
			return nil, fmt.Errorf("column length mismatch: %d != %d", l, n)
		}
	}
	if authors == nil {
		authors = NewPalette()
	}
	if extras == nil {
		extras = NewPalette()
	}

	for i := 0; i < n; i++ {
		if int(cols.AuthorID[i]) >= authors.Len() {
			return nil, fmt.Errorf("slot %d: author id %d outside palette of %d", i, cols.AuthorID[i], authors.Len())
		}
		if int(cols.ExtraID[i]) >= extras.Len() {
			return nil, fmt.Errorf("slot %d: extra id %d outside palette of %d", i, cols.ExtraID[i], extras.Len())
		}
		if cols.W[i] > 0 && cols.H[i] == 0 {
			return nil, fmt.Errorf("slot %d: zero height on a live slot", i)
		}
	}

	if capacity < n {
		capacity = n
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	p := &Pool{authors: authors, extras: extras}
	p.allocate(capacity)
	copy(p.x, cols.X)
	copy(p.y, cols.Y)
	copy(p.w, cols.W)
	copy(p.h, cols.H)
	copy(p.color, cols.Color)
	copy(p.kind, cols.Kind)
	copy(p.createdAt, cols.CreatedAt)
	copy(p.authorID, cols.AuthorID)
	copy(p.extraID, cols.ExtraID)
	p.count = n

	for i := 0; i < n; i++ {
		if p.w[i] == 0 {
			p.free = append(p.free, i)
		}
	}
	return p, nil
}
