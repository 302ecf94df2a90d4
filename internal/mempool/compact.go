package mempool

// shrinkThreshold доля живых записей, ниже которой сжатие уменьшает ёмкость вдвое
const shrinkThreshold = 0.4

// Compact убирает надгробия, перенося живые записи в начало колонок с сохранением порядка.
// Возвращает отображение старый индекс -> новый для каждого живого слота: внешние
// структуры, хранящие индексы слотов, должны перестроиться по нему.
// Раскодированное содержимое записей не меняется.
func (p *Pool) Compact() map[int]int {
	remap := make(map[int]int, p.Live())
	next := 0
	for i := 0; i < p.count; i++ {
		if p.w[i] > 0 {
			remap[i] = next
			next++
		}
	}

	if len(remap) == p.count {
		// Фрагментации нет
		p.free = nil
		return remap
	}

	capacity := p.capacity
	if float64(len(remap)) < float64(p.capacity)*shrinkThreshold {
		capacity = max(p.capacity/2, minCapacity, len(remap))
	}

	x := make([]int32, capacity)
	y := make([]int32, capacity)
	w := make([]uint8, capacity)
	h := make([]uint8, capacity)
	color := make([]uint32, capacity)
	kind := make([]uint8, capacity)
	createdAt := make([]uint32, capacity)
	authorID := make([]uint16, capacity)
	extraID := make([]uint16, capacity)

	for oldIdx, newIdx := range remap {
		x[newIdx] = p.x[oldIdx]
		y[newIdx] = p.y[oldIdx]
		w[newIdx] = p.w[oldIdx]
		h[newIdx] = p.h[oldIdx]
		color[newIdx] = p.color[oldIdx]
		kind[newIdx] = p.kind[oldIdx]
		createdAt[newIdx] = p.createdAt[oldIdx]
		authorID[newIdx] = p.authorID[oldIdx]
		extraID[newIdx] = p.extraID[oldIdx]
	}

	p.x, p.y, p.w, p.h = x, y, w, h
	p.color, p.kind, p.createdAt = color, kind, createdAt
	p.authorID, p.extraID = authorID, extraID
	p.capacity = capacity
	p.count = len(remap)
	p.free = nil
	return remap
}
