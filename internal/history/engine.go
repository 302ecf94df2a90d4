package history

import (
	"github.com/annel0/pixel-canvas/internal/logging"
	"github.com/annel0/pixel-canvas/internal/world"
)

// DefaultMaxFrames предел длины временной шкалы
const DefaultMaxFrames = 100

// Store хранилище, над которым работает история
type Store interface {
	Add(b world.Block)
	RemoveByID(id string) bool
	GetByID(id string) (world.Block, bool)
	UpdateByID(id string, d world.Delta) bool
}

// Stats счётчики работы движка, включая случаи неправильного использования
type Stats struct {
	Commits     int
	Undos       int
	Redos       int
	Rollbacks   int
	Evicted     int
	AutoCommits int // вложенный BeginTransaction
	DroppedOps  int // Record без открытой транзакции
}

// Engine транзакционная история правок с линейной шкалой кадров.
// Не потокобезопасен: все вызовы идут из цикла редактора.
type Engine struct {
	store     Store
	logger    *logging.Logger
	maxFrames int

	timeline []Frame
	pointer  int
	staged   *Frame
	stats    Stats
}

// NewEngine создаёт движок истории. maxFrames <= 0 означает DefaultMaxFrames, logger может быть nil.
func NewEngine(store Store, maxFrames int, logger *logging.Logger) *Engine {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	return &Engine{
		store:     store,
		logger:    logging.OrNop(logger),
		maxFrames: maxFrames,
		pointer:   -1,
	}
}

// BeginTransaction открывает новый кадр. Уже открытый кадр сначала фиксируется.
func (e *Engine) BeginTransaction(message string) {
	if e.staged != nil {
		e.logger.Warn("BeginTransaction(%q) при открытой транзакции %q: автоматическая фиксация", message, e.staged.Message)
		e.stats.AutoCommits++
		e.Commit()
	}
	e.staged = &Frame{Message: message}
}

// InTransaction true, если есть открытый кадр
func (e *Engine) InTransaction() bool { return e.staged != nil }

// Record добавляет операцию в открытый кадр. Без транзакции операция отбрасывается.
func (e *Engine) Record(op Op) bool {
	if op == nil {
		return false
	}
	if e.staged == nil {
		e.logger.Warn("Record(%s %q) без открытой транзакции: операция отброшена", op.Kind(), opID(op))
		e.stats.DroppedOps++
		return false
	}
	e.staged.Ops = append(e.staged.Ops, op)
	return true
}

// Exec применяет операцию к хранилищу и записывает её в открытый кадр.
// Для Remove и Update снимок прежнего состояния берётся из хранилища.
// Возвращает false, если транзакции нет или операцию нельзя применить.
func (e *Engine) Exec(op Op) bool {
	if op == nil {
		return false
	}
	if e.staged == nil {
		e.logger.Warn("Exec(%s %q) без открытой транзакции: операция отброшена", op.Kind(), opID(op))
		e.stats.DroppedOps++
		return false
	}

	switch o := op.(type) {
	case Remove:
		prev, ok := e.store.GetByID(o.ID)
		if !ok {
			return false
		}
		o.Prev = prev
		op = o
	case Update:
		cur, ok := e.store.GetByID(o.ID)
		if !ok {
			return false
		}
		o.Prev = o.Next.Capture(cur)
		op = o
	}

	if reason := applyForward(e.store, op); reason != "" {
		e.logger.Debug("Exec(%s) не применена: %s", op.Kind(), reason)
		return false
	}
	e.staged.Ops = append(e.staged.Ops, op)
	return true
}

// Commit фиксирует открытый кадр. Пустой кадр отбрасывается, возвращается false.
func (e *Engine) Commit() bool {
	if e.staged == nil {
		return false
	}
	frame := *e.staged
	e.staged = nil
	if len(frame.Ops) == 0 {
		return false
	}

	// Новая правка отбрасывает будущее redo
	e.timeline = append(e.timeline[:e.pointer+1], frame)
	e.pointer++

	if len(e.timeline) > e.maxFrames {
		evict := len(e.timeline) - e.maxFrames
		e.timeline = append([]Frame(nil), e.timeline[evict:]...)
		e.pointer -= evict
		e.stats.Evicted += evict
	}
	e.stats.Commits++
	e.logger.Trace("кадр %q зафиксирован (%d операций)", frame.Message, len(frame.Ops))
	return true
}

// Rollback отменяет операции открытого кадра в обратном порядке и отбрасывает его.
// Зафиксированная шкала не меняется.
func (e *Engine) Rollback() []Warning {
	if e.staged == nil {
		return nil
	}
	frame := *e.staged
	e.staged = nil
	e.stats.Rollbacks++
	return e.replayInverse(frame)
}

// Undo отменяет текущий кадр
func (e *Engine) Undo() (bool, []Warning) {
	if e.pointer < 0 {
		return false, nil
	}
	frame := e.timeline[e.pointer]
	warnings := e.replayInverse(frame)
	e.pointer--
	e.stats.Undos++
	return true, warnings
}

// Redo повторяет следующий кадр
func (e *Engine) Redo() (bool, []Warning) {
	if e.pointer >= len(e.timeline)-1 {
		return false, nil
	}
	e.pointer++
	frame := e.timeline[e.pointer]

	var warnings []Warning
	for i, op := range frame.Ops {
		if reason := applyForward(e.store, op); reason != "" {
			warnings = append(warnings, e.warn(frame, i, op, reason))
		}
	}
	e.stats.Redos++
	return true, warnings
}

func (e *Engine) replayInverse(frame Frame) []Warning {
	var warnings []Warning
	for i := len(frame.Ops) - 1; i >= 0; i-- {
		if reason := applyInverse(e.store, frame.Ops[i]); reason != "" {
			warnings = append(warnings, e.warn(frame, i, frame.Ops[i], reason))
		}
	}
	return warnings
}

func (e *Engine) warn(frame Frame, i int, op Op, reason string) Warning {
	w := Warning{Frame: frame.Message, Index: i, Op: op, Reason: reason}
	e.logger.Warn("несогласованность истории: %s", w)
	return w
}

// CanUndo true, если есть кадр для отмены
func (e *Engine) CanUndo() bool { return e.pointer >= 0 }

// CanRedo true, если есть кадр для повтора
func (e *Engine) CanRedo() bool { return e.pointer < len(e.timeline)-1 }

// UndoLabel имя кадра, который отменит Undo
func (e *Engine) UndoLabel() string {
	if !e.CanUndo() {
		return ""
	}
	return e.timeline[e.pointer].Message
}

// RedoLabel имя кадра, который повторит Redo
func (e *Engine) RedoLabel() string {
	if !e.CanRedo() {
		return ""
	}
	return e.timeline[e.pointer+1].Message
}

// Frames копия зафиксированной шкалы
func (e *Engine) Frames() []Frame {
	out := make([]Frame, len(e.timeline))
	copy(out, e.timeline)
	return out
}

// Pointer индекс текущего кадра, -1 если отменять нечего
func (e *Engine) Pointer() int { return e.pointer }

// MaxFrames предел длины шкалы
func (e *Engine) MaxFrames() int { return e.maxFrames }

// Stats текущие счётчики
func (e *Engine) Stats() Stats { return e.stats }

// Reset очищает шкалу и открытый кадр без изменения хранилища
func (e *Engine) Reset() {
	e.timeline = nil
	e.pointer = -1
	e.staged = nil
}
