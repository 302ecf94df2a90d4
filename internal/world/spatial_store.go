package world

import (
	"fmt"
	"math"
	"sort"

	"github.com/annel0/pixel-canvas/internal/vec"
)

// DefaultChunkSize размер чанка по умолчанию
const DefaultChunkSize = 64

// edgeEpsilon отступ от правой/нижней границы при расчёте чанков и проверке занятости:
// блок, касающийся границы чанка, не должен попадать в следующий чанк.
const edgeEpsilon = 0.001

// SpatialStore живой индекс блоков мира: id -> блок, чанк -> список блоков.
// Хранилище не потокобезопасно: все изменения идут из одного цикла ввода редактора.
type SpatialStore struct {
	chunkSize int
	chunks    map[vec.Vec2][]*indexedBlock // Списки блоков в порядке вставки
	blocks    map[string]*indexedBlock     // Индекс по id
	nextSeq   uint64
	version   uint64
}

// indexedBlock блок вместе с обратным индексом занятых чанков
type indexedBlock struct {
	block  Block
	seq    uint64
	chunks map[vec.Vec2]struct{}
}

// NewSpatialStore создаёт пустое хранилище с заданным размером чанка
func NewSpatialStore(chunkSize int) *SpatialStore {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &SpatialStore{
		chunkSize: chunkSize,
		chunks:    make(map[vec.Vec2][]*indexedBlock),
		blocks:    make(map[string]*indexedBlock),
	}
}

// ChunkSize размер чанка
func (s *SpatialStore) ChunkSize() int { return s.chunkSize }

// ChunkKey возвращает ключ чанка для мировой точки
func (s *SpatialStore) ChunkKey(x, y float64) vec.Vec2 {
	cs := float64(s.chunkSize)
	return vec.Vec2{X: int(math.Floor(x / cs)), Y: int(math.Floor(y / cs))}
}

// Version счётчик изменений; растёт при каждой мутации и служит флагом "грязно" для отрисовки
func (s *SpatialStore) Version() uint64 { return s.version }

// Len количество блоков
func (s *SpatialStore) Len() int { return len(s.blocks) }

// Add регистрирует блок в индексе по id и во всех чанках, которые он перекрывает.
// Перекрытие блоков не проверяется. Блок с уже существующим id заменяется.
func (s *SpatialStore) Add(b Block) {
	if _, exists := s.blocks[b.ID]; exists {
		s.RemoveByID(b.ID)
	}

	s.nextSeq++
	indexed := &indexedBlock{
		block:  b,
		seq:    s.nextSeq,
		chunks: make(map[vec.Vec2]struct{}),
	}

	for _, key := range s.chunksForBlock(b) {
		s.chunks[key] = append(s.chunks[key], indexed)
		indexed.chunks[key] = struct{}{}
	}

	s.blocks[b.ID] = indexed
	s.version++
}

// RemoveByID удаляет блок из всех индексов. Возвращает false, если блока нет.
func (s *SpatialStore) RemoveByID(id string) bool {
	indexed, exists := s.blocks[id]
	if !exists {
		return false
	}
	delete(s.blocks, id)

	for key := range indexed.chunks {
		list := s.chunks[key]
		for i, candidate := range list {
			if candidate == indexed {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(s.chunks, key)
		} else {
			s.chunks[key] = list
		}
	}
	indexed.chunks = nil
	s.version++
	return true
}

// GetByID возвращает блок по id
func (s *SpatialStore) GetByID(id string) (Block, bool) {
	indexed, exists := s.blocks[id]
	if !exists {
		return Block{}, false
	}
	return indexed.block, true
}

// UpdateByID применяет дельту атрибутов к блоку. Геометрия не меняется, поэтому
// чанки блока остаются прежними.
func (s *SpatialStore) UpdateByID(id string, d Delta) bool {
	indexed, exists := s.blocks[id]
	if !exists {
		return false
	}
	indexed.block = d.Apply(indexed.block)
	s.version++
	return true
}

// GetAt возвращает блок, содержащий точку. Если кандидатов несколько,
// побеждает вставленный последним.
func (s *SpatialStore) GetAt(x, y float64) (Block, bool) {
	list := s.chunks[s.ChunkKey(x, y)]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].block.Bounds().Contains(x, y) {
			return list[i].block, true
		}
	}
	return Block{}, false
}

// QueryRect возвращает блоки, пересекающие прямоугольник, без дубликатов.
// Обходятся только чанки, покрытые прямоугольником.
func (s *SpatialStore) QueryRect(r vec.Rect) []Block {
	r = r.Normalized()
	seen := make(map[string]struct{})
	result := make([]Block, 0)

	minKey := s.ChunkKey(r.MinX, r.MinY)
	maxKey := s.ChunkKey(r.MaxX, r.MaxY)
	span := (float64(maxKey.X-minKey.X) + 1) * (float64(maxKey.Y-minKey.Y) + 1)
	if span > float64(len(s.chunks)) {
		// Прямоугольник шире занятой части мира: дешевле пройти по блокам
		return s.scanRect(r)
	}
	for cx := minKey.X; cx <= maxKey.X; cx++ {
		for cy := minKey.Y; cy <= maxKey.Y; cy++ {
			for _, indexed := range s.chunks[vec.Vec2{X: cx, Y: cy}] {
				if _, wasSeen := seen[indexed.block.ID]; wasSeen {
					continue
				}
				if overlaps(indexed.block.Bounds(), r) {
					result = append(result, indexed.block)
					seen[indexed.block.ID] = struct{}{}
				}
			}
		}
	}

	return result
}

// scanRect полный проход по блокам в порядке вставки
func (s *SpatialStore) scanRect(r vec.Rect) []Block {
	result := make([]Block, 0)
	for _, b := range s.All() {
		if overlaps(b.Bounds(), r) {
			result = append(result, b)
		}
	}
	return result
}

// IsRegionOccupied проверяет, занята ли область каким-либо блоком не из ignore.
// Прямоугольник сжимается на epsilon, чтобы соседство по ребру не считалось пересечением.
func (s *SpatialStore) IsRegionOccupied(x, y, w, h int, ignore map[string]struct{}) bool {
	probe := vec.RectFromBox(x, y, w, h).Inset(edgeEpsilon)
	for _, b := range s.QueryRect(probe) {
		if _, skip := ignore[b.ID]; !skip {
			return true
		}
	}
	return false
}

// All возвращает все блоки в порядке вставки
func (s *SpatialStore) All() []Block {
	ordered := make([]*indexedBlock, 0, len(s.blocks))
	for _, indexed := range s.blocks {
		ordered = append(ordered, indexed)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })

	result := make([]Block, len(ordered))
	for i, indexed := range ordered {
		result[i] = indexed.block
	}
	return result
}

// Clear удаляет все блоки
func (s *SpatialStore) Clear() {
	s.chunks = make(map[vec.Vec2][]*indexedBlock)
	s.blocks = make(map[string]*indexedBlock)
	s.version++
}

// ChunkCount количество непустых чанков
func (s *SpatialStore) ChunkCount() int { return len(s.chunks) }

// ChunksOf возвращает ключи чанков из обратного индекса блока
func (s *SpatialStore) ChunksOf(id string) []vec.Vec2 {
	indexed, exists := s.blocks[id]
	if !exists {
		return nil
	}
	keys := make([]vec.Vec2, 0, len(indexed.chunks))
	for key := range indexed.chunks {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		return keys[i].Y < keys[j].Y
	})
	return keys
}

// ChunkContains проверяет, что список чанка содержит блок с данным id
func (s *SpatialStore) ChunkContains(key vec.Vec2, id string) bool {
	for _, indexed := range s.chunks[key] {
		if indexed.block.ID == id {
			return true
		}
	}
	return false
}

// GetStats возвращает статистику индекса
func (s *SpatialStore) GetStats() string {
	total := 0
	maxPerChunk := 0
	for _, list := range s.chunks {
		total += len(list)
		if len(list) > maxPerChunk {
			maxPerChunk = len(list)
		}
	}
	avg := 0.0
	if len(s.chunks) > 0 {
		avg = float64(total) / float64(len(s.chunks))
	}
	return fmt.Sprintf("SpatialStore Stats: %d blocks, %d chunks (size %d), avg %.2f blocks/chunk, max %d blocks/chunk",
		len(s.blocks), len(s.chunks), s.chunkSize, avg, maxPerChunk)
}

// overlaps проверяет пересечение полуоткрытого прямоугольника блока с замкнутым
// прямоугольником запроса: запрос, упирающийся в правый/нижний край блока, его не задевает.
func overlaps(b, r vec.Rect) bool {
	return b.MinX <= r.MaxX && b.MaxX > r.MinX &&
		b.MinY <= r.MaxY && b.MaxY > r.MinY
}

// chunksForBlock возвращает ключи чанков, которые перекрывает блок.
// Конец считается с epsilon: блок [0,64) при размере чанка 64 занимает только чанк 0.
func (s *SpatialStore) chunksForBlock(b Block) []vec.Vec2 {
	start := s.ChunkKey(float64(b.X), float64(b.Y))
	end := s.ChunkKey(float64(b.X+b.W)-edgeEpsilon, float64(b.Y+b.H)-edgeEpsilon)
	if end.X < start.X {
		end.X = start.X
	}
	if end.Y < start.Y {
		end.Y = start.Y
	}

	keys := make([]vec.Vec2, 0, (end.X-start.X+1)*(end.Y-start.Y+1))
	for cx := start.X; cx <= end.X; cx++ {
		for cy := start.Y; cy <= end.Y; cy++ {
			keys = append(keys, vec.Vec2{X: cx, Y: cy})
		}
	}
	return keys
}
