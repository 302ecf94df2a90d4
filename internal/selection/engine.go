package selection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/pixel-canvas/internal/history"
	"github.com/annel0/pixel-canvas/internal/logging"
	"github.com/annel0/pixel-canvas/internal/vec"
	"github.com/annel0/pixel-canvas/internal/world"
)

// pasteEdgeEpsilon соседство по ребру с поднятым блоком не мешает вставке
const pasteEdgeEpsilon = 0.001

// ErrEmptySelection копировать нечего
var ErrEmptySelection = errors.New("selection is empty")

// Store операции хранилища, нужные выделению
type Store interface {
	history.Store
	GetAt(x, y float64) (world.Block, bool)
	QueryRect(r vec.Rect) []world.Block
	IsRegionOccupied(x, y, w, h int, ignore map[string]struct{}) bool
}

// Direction направление сдвига с клавиатуры
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// PlaceResult результат попытки опустить поднятое выделение
type PlaceResult int

const (
	PlacePlaced    PlaceResult = iota // Блоки перенесены, кадр истории зафиксирован
	PlaceUnchanged                    // Позиция не изменилась, блоки возвращены на место
	PlaceCollision                    // Место занято, плавающее состояние не тронуто
	PlaceNotLifted                    // Нечего опускать
)

func (r PlaceResult) String() string {
	switch r {
	case PlacePlaced:
		return "placed"
	case PlaceUnchanged:
		return "unchanged"
	case PlaceCollision:
		return "collision"
	case PlaceNotLifted:
		return "not-lifted"
	default:
		return fmt.Sprintf("PlaceResult(%d)", int(r))
	}
}

// Options настройки выделения
type Options struct {
	GridSize       int // Шаг привязки точки вставки
	NudgeStep      int
	NudgeShiftStep int
	Now            func() time.Time
}

// DefaultOptions настройки по умолчанию
func DefaultOptions() Options {
	return Options{GridSize: 1, NudgeStep: 1, NudgeShiftStep: 10, Now: time.Now}
}

// floating поднятый блок со смещением относительно начала выделения
type floating struct {
	orig   world.Block
	offset vec.Vec2
}

// Engine выделение, перетаскивание и буфер обмена. Все изменения,
// видимые пользователю, проходят через историю.
type Engine struct {
	store     Store
	history   *history.Engine
	clipboard Clipboard
	logger    *logging.Logger
	opts      Options

	marquee    vec.Rect
	hasMarquee bool

	selected map[string]struct{}
	order    []string

	lifted     bool
	floating   []floating
	liftOrigin vec.Vec2
	origin     vec.Vec2
	width      int
	height     int
}

// NewEngine создаёт движок выделения. clipboard и logger могут быть nil.
func NewEngine(store Store, hist *history.Engine, clipboard Clipboard, opts Options, logger *logging.Logger) *Engine {
	def := DefaultOptions()
	if opts.GridSize <= 0 {
		opts.GridSize = def.GridSize
	}
	if opts.NudgeStep <= 0 {
		opts.NudgeStep = def.NudgeStep
	}
	if opts.NudgeShiftStep <= 0 {
		opts.NudgeShiftStep = def.NudgeShiftStep
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	if clipboard == nil {
		clipboard = NewMemoryClipboard()
	}
	return &Engine{
		store:     store,
		history:   hist,
		clipboard: clipboard,
		logger:    logging.OrNop(logger),
		opts:      opts,
		selected:  make(map[string]struct{}),
	}
}

// SetMarquee запоминает рамку выделения, которую тянет пользователь
func (e *Engine) SetMarquee(r vec.Rect) {
	e.marquee = r.Normalized()
	e.hasMarquee = true
}

// ClearMarquee убирает рамку
func (e *Engine) ClearMarquee() {
	e.hasMarquee = false
}

// Marquee текущая рамка
func (e *Engine) Marquee() (vec.Rect, bool) {
	return e.marquee, e.hasMarquee
}

// SelectAtPoint выбирает блок под точкой. additive добавляет к текущему выделению.
// Во время перетаскивания не действует.
func (e *Engine) SelectAtPoint(p vec.Vec2Float, additive bool) bool {
	if e.lifted {
		return false
	}
	if !additive {
		e.clear()
	}
	b, ok := e.store.GetAt(p.X, p.Y)
	if !ok {
		return false
	}
	e.add(b.ID)
	return true
}

// SelectRegion выбирает все блоки, пересекающие прямоугольник, и убирает рамку.
// Возвращает размер выделения.
func (e *Engine) SelectRegion(r vec.Rect, additive bool) int {
	if e.lifted {
		return len(e.order)
	}
	e.ClearMarquee()
	if !additive {
		e.clear()
	}
	for _, b := range e.store.QueryRect(r) {
		e.add(b.ID)
	}
	return len(e.order)
}

// SelectIDs заменяет выделение существующими блоками из ids
func (e *Engine) SelectIDs(ids []string) {
	if e.lifted {
		return
	}
	e.clear()
	for _, id := range ids {
		if _, ok := e.store.GetByID(id); ok {
			e.add(id)
		}
	}
}

// ClearSelection снимает выделение. Поднятое выделение сначала опускается или возвращается.
func (e *Engine) ClearSelection() {
	if e.lifted {
		e.Commit()
	}
	e.clear()
}

// Selected id выделенных блоков в порядке выбора
func (e *Engine) Selected() []string {
	e.prune()
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// SelectionRect ограничивающий прямоугольник выделения. Для поднятого выделения
// учитывается текущее смещение.
func (e *Engine) SelectionRect() (vec.Rect, bool) {
	if e.lifted {
		return vec.RectFromBox(e.origin.X, e.origin.Y, e.width, e.height), true
	}
	e.prune()
	if len(e.order) == 0 {
		return vec.Rect{}, false
	}
	return bounds(e.selectedBlocks()), true
}

// IsLifted true, пока выделение поднято
func (e *Engine) IsLifted() bool { return e.lifted }

// Floating поднятые блоки в текущей позиции для отрисовки
func (e *Engine) Floating() []world.Block {
	out := make([]world.Block, 0, len(e.floating))
	for _, f := range e.floating {
		b := f.orig
		pos := e.origin.Add(f.offset)
		b.X, b.Y = pos.X, pos.Y
		out = append(out, b)
	}
	return out
}

// Lift снимает выделенные блоки из хранилища в плавающее состояние. История не пишется.
func (e *Engine) Lift() bool {
	if e.lifted {
		return false
	}
	blocks := e.selectedBlocks()
	if len(blocks) == 0 {
		return false
	}

	r := bounds(blocks)
	origin := r.Origin()
	e.floating = e.floating[:0]
	for _, b := range blocks {
		e.floating = append(e.floating, floating{orig: b, offset: b.Origin().Sub(origin)})
		e.store.RemoveByID(b.ID)
	}
	e.liftOrigin = origin
	e.origin = origin
	e.width, e.height = int(r.Width()), int(r.Height())
	e.lifted = true
	e.logger.Debug("поднято %d блоков из (%d, %d)", len(blocks), origin.X, origin.Y)
	return true
}

// MoveTo переносит поднятое выделение в новую позицию левого верхнего угла
func (e *Engine) MoveTo(origin vec.Vec2) bool {
	if !e.lifted {
		return false
	}
	e.origin = origin
	return true
}

// MoveBy сдвигает поднятое выделение
func (e *Engine) MoveBy(dx, dy int) bool {
	return e.MoveTo(e.origin.Add(vec.Vec2{X: dx, Y: dy}))
}

// Nudge сдвигает поднятое выделение на шаг клавиатуры; shift увеличивает шаг
func (e *Engine) Nudge(dir Direction, shift bool) bool {
	step := e.opts.NudgeStep
	if shift {
		step = e.opts.NudgeShiftStep
	}
	switch dir {
	case Up:
		return e.MoveBy(0, -step)
	case Down:
		return e.MoveBy(0, step)
	case Left:
		return e.MoveBy(-step, 0)
	case Right:
		return e.MoveBy(step, 0)
	default:
		return false
	}
}

// Place опускает поднятое выделение в текущую позицию. При коллизии ничего не меняется.
// Перенос записывается одним кадром: Remove для исходных id и Add для новых.
func (e *Engine) Place() PlaceResult {
	if !e.lifted {
		return PlaceNotLifted
	}
	if e.origin == e.liftOrigin {
		e.AbortMove()
		return PlaceUnchanged
	}

	dest := e.Floating()
	if !e.destinationFree(dest) {
		e.logger.Debug("перенос в (%d, %d) отклонён: область занята", e.origin.X, e.origin.Y)
		return PlaceCollision
	}

	e.history.BeginTransaction("move")
	for _, f := range e.floating {
		e.history.Record(history.Remove{ID: f.orig.ID, Prev: f.orig})
	}
	e.clear()
	for _, b := range dest {
		b.ID = world.NewBlockID()
		e.store.Add(b)
		e.history.Record(history.Add{Block: b})
		e.add(b.ID)
	}
	e.history.Commit()

	e.resetFloating()
	return PlacePlaced
}

// destinationFree проверяет, что поднятые блоки можно опустить в позиции dest
func (e *Engine) destinationFree(dest []world.Block) bool {
	for _, b := range dest {
		if b.Validate() != nil || e.store.IsRegionOccupied(b.X, b.Y, b.W, b.H, nil) {
			return false
		}
	}
	return true
}

// landing позиции, в которых окажутся поднятые блоки после Commit
func (e *Engine) landing() []world.Block {
	if !e.lifted {
		return nil
	}
	dest := e.Floating()
	if e.origin != e.liftOrigin && e.destinationFree(dest) {
		return dest
	}
	out := make([]world.Block, len(e.floating))
	for i, f := range e.floating {
		out[i] = f.orig
	}
	return out
}

// AbortMove возвращает исходные блоки с прежними id. История не пишется.
func (e *Engine) AbortMove() bool {
	if !e.lifted {
		return false
	}
	for _, f := range e.floating {
		e.store.Add(f.orig)
	}
	e.resetFloating()
	return true
}

// Commit завершает перетаскивание (Enter, щелчок вне выделения):
// при коллизии выделение возвращается на исходное место.
func (e *Engine) Commit() PlaceResult {
	result := e.Place()
	if result == PlaceCollision {
		e.AbortMove()
	}
	return result
}

// DeleteSelection удаляет выделенные блоки одним кадром истории
func (e *Engine) DeleteSelection() bool {
	if e.lifted {
		e.Commit()
	}
	e.prune()
	if len(e.order) == 0 {
		return false
	}

	e.history.BeginTransaction("delete")
	for _, id := range e.order {
		e.history.Exec(history.Remove{ID: id})
	}
	e.clear()
	return e.history.Commit()
}

// Copy записывает выделение в буфер обмена
func (e *Engine) Copy(ctx context.Context) error {
	var blocks []world.Block
	var area vec.Rect
	if e.lifted {
		blocks = e.Floating()
		area = vec.RectFromBox(e.origin.X, e.origin.Y, e.width, e.height)
	} else {
		blocks = e.selectedBlocks()
		if len(blocks) == 0 {
			return ErrEmptySelection
		}
		area = bounds(blocks)
	}
	w, h := int(area.Width()), int(area.Height())

	text, err := encodePayload(blocks, area.Origin(), w, h)
	if err != nil {
		return err
	}
	if err := e.clipboard.WriteText(ctx, text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	e.logger.Debug("скопировано %d блоков (%dx%d)", len(blocks), w, h)
	return nil
}

// Paste вставляет блоки из буфера обмена с левым верхним углом в точке, привязанной к сетке.
// Вся область width × height из буфера должна быть свободна. Поднятое выделение
// опускается только после того, как вставка принята.
// Чужие данные и занятая область отклоняются без изменений: возвращается nil без ошибки.
// Ошибка возвращается только при сбое чтения буфера.
func (e *Engine) Paste(ctx context.Context, point vec.Vec2Float) ([]string, error) {
	text, err := e.clipboard.ReadText(ctx)
	if err != nil {
		if errors.Is(err, ErrClipboardEmpty) {
			return nil, nil
		}
		return nil, fmt.Errorf("read clipboard: %w", err)
	}
	payload, err := decodePayload(text)
	if err != nil {
		e.logger.Debug("вставка отклонена: %v", err)
		return nil, nil
	}

	target := point.SnapToGrid(e.opts.GridSize)
	if !world.InCoordRange(target.X, target.Y, payload.Width, payload.Height) {
		e.logger.Debug("вставка в (%d, %d) отклонена: область вне диапазона координат", target.X, target.Y)
		return nil, nil
	}
	now := e.opts.Now().Unix()
	blocks := make([]world.Block, 0, len(payload.Blocks))
	for _, item := range payload.Blocks {
		b := item.block(target, now)
		if err := b.Validate(); err != nil {
			e.logger.Debug("вставка отклонена: %v", err)
			return nil, nil
		}
		blocks = append(blocks, b)
	}
	if e.pasteBlocked(vec.RectFromBox(target.X, target.Y, payload.Width, payload.Height)) {
		e.logger.Debug("вставка в (%d, %d) отклонена: область занята", target.X, target.Y)
		return nil, nil
	}

	if e.lifted {
		e.Commit()
	}
	e.history.BeginTransaction("paste")
	ids := make([]string, 0, len(blocks))
	for _, b := range blocks {
		e.history.Exec(history.Add{Block: b})
		ids = append(ids, b.ID)
	}
	e.history.Commit()
	e.SelectIDs(ids)
	return ids, nil
}

// pasteBlocked проверяет область вставки по хранилищу и по месту, куда лягут поднятые блоки
func (e *Engine) pasteBlocked(area vec.Rect) bool {
	o := area.Origin()
	if e.store.IsRegionOccupied(o.X, o.Y, int(area.Width()), int(area.Height()), nil) {
		return true
	}
	inner := area.Inset(pasteEdgeEpsilon)
	for _, b := range e.landing() {
		if b.Bounds().Inset(pasteEdgeEpsilon).Intersects(inner) {
			return true
		}
	}
	return false
}

func (e *Engine) add(id string) {
	if _, ok := e.selected[id]; ok {
		return
	}
	e.selected[id] = struct{}{}
	e.order = append(e.order, id)
}

func (e *Engine) clear() {
	e.selected = make(map[string]struct{})
	e.order = nil
}

func (e *Engine) resetFloating() {
	e.floating = nil
	e.lifted = false
	e.width, e.height = 0, 0
}

// prune убирает из выделения блоки, исчезнувшие из хранилища (например после undo).
// Поднятые блоки не трогаются.
func (e *Engine) prune() {
	if e.lifted {
		return
	}
	kept := e.order[:0]
	for _, id := range e.order {
		if _, ok := e.store.GetByID(id); ok {
			kept = append(kept, id)
		} else {
			delete(e.selected, id)
		}
	}
	e.order = kept
}

func (e *Engine) selectedBlocks() []world.Block {
	blocks := make([]world.Block, 0, len(e.order))
	for _, id := range e.order {
		if b, ok := e.store.GetByID(id); ok {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// bounds плотный ограничивающий прямоугольник непустого набора блоков
func bounds(blocks []world.Block) vec.Rect {
	r := blocks[0].Bounds()
	for _, b := range blocks[1:] {
		r = r.Union(b.Bounds())
	}
	return r
}
