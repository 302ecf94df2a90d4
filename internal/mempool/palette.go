package mempool

import (
	"errors"
	"math"
)

// ErrPaletteFull палитра исчерпала 16-битное пространство индексов
var ErrPaletteFull = errors.New("palette is full")

// MaxPaletteEntries максимальное число строк в палитре: счётчик строк в бинарном формате u16
const MaxPaletteEntries = math.MaxUint16

// Palette двунаправленный интернер строк. Индекс 0 зарезервирован под пустую строку.
// Индексы только добавляются и попадают в бинарный формат как есть.
type Palette struct {
	entries []string
	index   map[string]uint16
}

// NewPalette создаёт палитру, содержащую только пустую строку
func NewPalette() *Palette {
	p := &Palette{}
	p.Reset()
	return p
}

// NewPaletteFromEntries восстанавливает палитру из сохранённого списка строк без переупорядочивания
func NewPaletteFromEntries(entries []string) (*Palette, error) {
	if len(entries) == 0 || entries[0] != "" {
		return nil, errors.New("palette entry 0 must be the empty string")
	}
	if len(entries) > MaxPaletteEntries {
		return nil, ErrPaletteFull
	}
	p := &Palette{
		entries: append([]string(nil), entries...),
		index:   make(map[string]uint16, len(entries)),
	}
	for i, s := range p.entries {
		// Повторы допустимы: поиск по строке вернёт первый индекс
		if _, exists := p.index[s]; !exists {
			p.index[s] = uint16(i)
		}
	}
	return p, nil
}

// Intern возвращает индекс строки, добавляя её при необходимости
func (p *Palette) Intern(s string) (uint16, error) {
	if idx, ok := p.index[s]; ok {
		return idx, nil
	}
	if len(p.entries) >= MaxPaletteEntries {
		return 0, ErrPaletteFull
	}
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, s)
	p.index[s] = idx
	return idx, nil
}

// Index возвращает индекс строки без добавления
func (p *Palette) Index(s string) (uint16, bool) {
	idx, ok := p.index[s]
	return idx, ok
}

// Lookup возвращает строку по индексу
func (p *Palette) Lookup(idx uint16) (string, bool) {
	if int(idx) >= len(p.entries) {
		return "", false
	}
	return p.entries[idx], true
}

// Len количество строк, включая пустую
func (p *Palette) Len() int { return len(p.entries) }

// Entries копия списка строк в порядке индексов
func (p *Palette) Entries() []string {
	return append([]string(nil), p.entries...)
}

// Reset возвращает палитру к состоянию с единственной пустой строкой
func (p *Palette) Reset() {
	p.entries = []string{""}
	p.index = map[string]uint16{"": 0}
}
