package history

import (
	"fmt"

	"github.com/annel0/pixel-canvas/internal/world"
)

// Op атомарная операция кадра истории. Реализации: Add, Remove, Update.
type Op interface {
	// Kind короткое имя операции для логов
	Kind() string
	isOp()
}

// Add создание блока
type Add struct {
	Block world.Block
}

// Remove удаление блока; Prev хранит снимок для восстановления
type Remove struct {
	ID   string
	Prev world.Block
}

// Update изменение атрибутов блока: Prev восстанавливает, Next повторяет
type Update struct {
	ID   string
	Prev world.Delta
	Next world.Delta
}

func (Add) Kind() string    { return "add" }
func (Remove) Kind() string { return "remove" }
func (Update) Kind() string { return "update" }

func (Add) isOp()    {}
func (Remove) isOp() {}
func (Update) isOp() {}

// Frame зафиксированная именованная группа операций
type Frame struct {
	Message string
	Ops     []Op
}

// Warning нарушение согласованности при применении операции.
// Операция пропускается, остальные операции кадра применяются.
type Warning struct {
	Frame  string
	Index  int
	Op     Op
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("кадр %q, операция #%d (%s): %s", w.Frame, w.Index, w.Op.Kind(), w.Reason)
}

func opID(op Op) string {
	switch o := op.(type) {
	case Add:
		return o.Block.ID
	case Remove:
		return o.ID
	case Update:
		return o.ID
	default:
		panic(fmt.Sprintf("history: неизвестная операция %T", op))
	}
}

// applyForward применяет операцию в прямом направлении (redo, Exec).
// Возвращает пустую строку при успехе или причину пропуска.
func applyForward(s Store, op Op) string {
	switch o := op.(type) {
	case Add:
		if err := o.Block.Validate(); err != nil {
			return err.Error()
		}
		s.Add(o.Block)
	case Remove:
		if !s.RemoveByID(o.ID) {
			return fmt.Sprintf("блок %q не найден", o.ID)
		}
	case Update:
		if !s.UpdateByID(o.ID, o.Next) {
			return fmt.Sprintf("блок %q не найден", o.ID)
		}
	default:
		panic(fmt.Sprintf("history: неизвестная операция %T", op))
	}
	return ""
}

// applyInverse отменяет операцию (undo, rollback)
func applyInverse(s Store, op Op) string {
	switch o := op.(type) {
	case Add:
		if !s.RemoveByID(o.Block.ID) {
			return fmt.Sprintf("блок %q не найден", o.Block.ID)
		}
	case Remove:
		if o.Prev.ID == "" {
			return fmt.Sprintf("нет снимка блока %q", o.ID)
		}
		if err := o.Prev.Validate(); err != nil {
			return err.Error()
		}
		s.Add(o.Prev)
	case Update:
		if !s.UpdateByID(o.ID, o.Prev) {
			return fmt.Sprintf("блок %q не найден", o.ID)
		}
	default:
		panic(fmt.Sprintf("history: неизвестная операция %T", op))
	}
	return ""
}
