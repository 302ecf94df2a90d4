package mempool

import (
	"errors"
	"fmt"
)

// DefaultCapacity начальная ёмкость пула
const DefaultCapacity = 256

// minCapacity нижняя граница ёмкости при сжатии
const minCapacity = 16

// MaxExtent максимальные ширина и высота (колонки w/h однобайтовые)
const MaxExtent = 255

// ErrInvalidExtent ширина/высота вне диапазона 1..255. Ноль зарезервирован под надгробие.
var ErrInvalidExtent = errors.New("extent out of range 1..255")

// Entry раскодированное содержимое одного слота
type Entry struct {
	X         int32
	Y         int32
	W         uint8
	H         uint8
	Color     uint32
	Kind      uint8
	CreatedAt uint32
	Author    string
	Extra     string // URL картинки или id вложенного мира
}

// Pool колоночное хранилище блоков (structure of arrays).
// Слоты [0, count) заняты либо живыми записями, либо надгробиями (W == 0).
type Pool struct {
	count    int
	capacity int

	x         []int32
	y         []int32
	w         []uint8
	h         []uint8
	color     []uint32
	kind      []uint8
	createdAt []uint32
	authorID  []uint16
	extraID   []uint16

	authors *Palette
	extras  *Palette
	free    []int
}

// New создаёт пул заданной ёмкости
func New(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pool{authors: NewPalette(), extras: NewPalette()}
	p.allocate(capacity)
	return p
}

// allocate выделяет все колонки заново под новую ёмкость, сохраняя первые count слотов
func (p *Pool) allocate(capacity int) {
	p.x = resize(p.x, capacity)
	p.y = resize(p.y, capacity)
	p.w = resize(p.w, capacity)
	p.h = resize(p.h, capacity)
	p.color = resize(p.color, capacity)
	p.kind = resize(p.kind, capacity)
	p.createdAt = resize(p.createdAt, capacity)
	p.authorID = resize(p.authorID, capacity)
	p.extraID = resize(p.extraID, capacity)
	p.capacity = capacity
}

func resize[T any](col []T, capacity int) []T {
	next := make([]T, capacity)
	copy(next, col)
	return next
}

// grow увеличивает ёмкость в 1.5 раза
func (p *Pool) grow() {
	next := p.capacity + p.capacity/2
	if next <= p.capacity {
		next = p.capacity + 1
	}
	p.allocate(next)
}

// Count верхняя граница занятых слотов, включая надгробия
func (p *Pool) Count() int { return p.count }

// Cap текущая ёмкость колонок
func (p *Pool) Cap() int { return p.capacity }

// Live количество живых записей
func (p *Pool) Live() int { return p.count - len(p.free) }

// FreeSlots количество слотов в списке свободных
func (p *Pool) FreeSlots() int { return len(p.free) }

// Authors палитра авторов
func (p *Pool) Authors() *Palette { return p.authors }

// Extras палитра extra-строк
func (p *Pool) Extras() *Palette { return p.extras }

// Add записывает блок в свободный слот или в конец. Возвращает индекс слота.
func (p *Pool) Add(e Entry) (int, error) {
	if e.W == 0 || e.H == 0 {
		return -1, fmt.Errorf("mempool add %dx%d: %w", e.W, e.H, ErrInvalidExtent)
	}
	authorID, err := p.authors.Intern(e.Author)
	if err != nil {
		return -1, fmt.Errorf("mempool add: author palette: %w", err)
	}
	extraID, err := p.extras.Intern(e.Extra)
	if err != nil {
		return -1, fmt.Errorf("mempool add: extra palette: %w", err)
	}

	var idx int
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		if p.count >= p.capacity {
			p.grow()
		}
		idx = p.count
		p.count++
	}

	p.x[idx] = e.X
	p.y[idx] = e.Y
	p.w[idx] = e.W
	p.h[idx] = e.H
	p.color[idx] = e.Color
	p.kind[idx] = e.Kind
	p.createdAt[idx] = e.CreatedAt
	p.authorID[idx] = authorID
	p.extraID[idx] = extraID
	return idx, nil
}

// Remove помечает слот надгробием и кладёт его в список свободных.
// Возвращает false для пустого или уже удалённого слота.
func (p *Pool) Remove(idx int) bool {
	if !p.IsLive(idx) {
		return false
	}
	p.w[idx] = 0
	p.free = append(p.free, idx)
	return true
}

// IsLive проверяет, занят ли слот живой записью
func (p *Pool) IsLive(idx int) bool {
	return idx >= 0 && idx < p.count && p.w[idx] > 0
}

// Get раскодирует слот
func (p *Pool) Get(idx int) (Entry, bool) {
	if !p.IsLive(idx) {
		return Entry{}, false
	}
	author, _ := p.authors.Lookup(p.authorID[idx])
	extra, _ := p.extras.Lookup(p.extraID[idx])
	return Entry{
		X:         p.x[idx],
		Y:         p.y[idx],
		W:         p.w[idx],
		H:         p.h[idx],
		Color:     p.color[idx],
		Kind:      p.kind[idx],
		CreatedAt: p.createdAt[idx],
		Author:    author,
		Extra:     extra,
	}, true
}

// Each обходит живые записи по возрастанию индекса; fn может прервать обход, вернув false
func (p *Pool) Each(fn func(idx int, e Entry) bool) {
	for i := 0; i < p.count; i++ {
		if p.w[i] == 0 {
			continue
		}
		e, _ := p.Get(i)
		if !fn(i, e) {
			return
		}
	}
}

// Entries живые записи по возрастанию индекса
func (p *Pool) Entries() []Entry {
	result := make([]Entry, 0, p.Live())
	p.Each(func(_ int, e Entry) bool {
		result = append(result, e)
		return true
	})
	return result
}

// Clear сбрасывает пул: счётчик, список свободных и обе палитры
func (p *Pool) Clear() {
	p.count = 0
	p.free = nil
	p.authors.Reset()
	p.extras.Reset()
	clear(p.w)
}
