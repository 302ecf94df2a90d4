package codec

import (
	"fmt"

	"github.com/annel0/pixel-canvas/internal/mempool"
	"github.com/annel0/pixel-canvas/internal/world"
)

// EntryFromBlock переводит блок в запись колоночного пула.
// Id блока и отображаемое имя вложенного мира в колонки не попадают.
func EntryFromBlock(b world.Block) (mempool.Entry, error) {
	if err := b.Validate(); err != nil {
		return mempool.Entry{}, err
	}
	if b.CreatedAt < 0 || b.CreatedAt > int64(^uint32(0)) {
		return mempool.Entry{}, fmt.Errorf("блок %s: createdAt %d не помещается в u32", b.ID, b.CreatedAt)
	}
	return mempool.Entry{
		// Validate уже отсёк координаты вне i32
		X:         int32(b.X),
		Y:         int32(b.Y),
		W:         uint8(b.W),
		H:         uint8(b.H),
		Color:     uint32(b.Color),
		Kind:      uint8(b.Kind),
		CreatedAt: uint32(b.CreatedAt),
		Author:    b.Author,
		Extra:     b.Extra(),
	}, nil
}

// BlockFromEntry восстанавливает блок из записи пула с новым id
func BlockFromEntry(e mempool.Entry) world.Block {
	b := world.Block{
		ID:        world.NewBlockID(),
		X:         int(e.X),
		Y:         int(e.Y),
		W:         int(e.W),
		H:         int(e.H),
		Color:     world.Color(e.Color),
		Kind:      world.Kind(e.Kind),
		Author:    e.Author,
		CreatedAt: int64(e.CreatedAt),
	}
	return b.WithExtra(e.Extra)
}

// PoolFromBlocks упаковывает блоки в новый пул в переданном порядке
func PoolFromBlocks(blocks []world.Block) (*mempool.Pool, error) {
	p := mempool.New(len(blocks))
	for _, b := range blocks {
		e, err := EntryFromBlock(b)
		if err != nil {
			return nil, err
		}
		if _, err := p.Add(e); err != nil {
			return nil, fmt.Errorf("блок %s: %w", b.ID, err)
		}
	}
	return p, nil
}

// BlocksFromPool раскрывает живые слоты пула в блоки в порядке слотов.
// names сопоставляет id вложенного мира с отображаемым именем и может быть nil.
func BlocksFromPool(p *mempool.Pool, names map[string]string) []world.Block {
	blocks := make([]world.Block, 0, p.Live())
	p.Each(func(_ int, e mempool.Entry) bool {
		b := BlockFromEntry(e)
		if b.Kind == world.KindNested && names != nil {
			b.WorldName = names[b.TargetWorldID]
		}
		blocks = append(blocks, b)
		return true
	})
	return blocks
}
