package editor

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/annel0/pixel-canvas/internal/history"
	"github.com/annel0/pixel-canvas/internal/selection"
	"github.com/annel0/pixel-canvas/internal/vec"
	"github.com/annel0/pixel-canvas/internal/world"
)

// ErrUnknownCommand команда не зарегистрирована
var ErrUnknownCommand = errors.New("unknown command")

// Имена команд интерфейса
const (
	CmdUndo            = "undo"
	CmdRedo            = "redo"
	CmdDeleteSelection = "delete-selection"
	CmdCopy            = "copy"
	CmdPaste           = "paste"
	CmdPlaceBlock      = "place-block"
	CmdPaint           = "paint"
	CmdCommitMove      = "commit-move"
	CmdAbortMove       = "abort-move"
)

// Args аргументы команды; каждая команда читает только свои поля
type Args struct {
	Point vec.Vec2Float // paste
	Block world.Block   // place-block
	ID    string        // paint
	Color world.Color   // paint
}

type commandFunc func(e *Engine, ctx context.Context, args Args) (bool, error)

var commands = map[string]commandFunc{
	CmdUndo: func(e *Engine, ctx context.Context, _ Args) (bool, error) {
		return e.Undo(ctx), nil
	},
	CmdRedo: func(e *Engine, ctx context.Context, _ Args) (bool, error) {
		return e.Redo(ctx), nil
	},
	CmdDeleteSelection: func(e *Engine, ctx context.Context, _ Args) (bool, error) {
		return e.DeleteSelection(ctx), nil
	},
	CmdCopy: func(e *Engine, ctx context.Context, _ Args) (bool, error) {
		if err := e.Copy(ctx); err != nil {
			if errors.Is(err, selection.ErrEmptySelection) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	},
	CmdPaste: func(e *Engine, ctx context.Context, args Args) (bool, error) {
		ids, err := e.Paste(ctx, args.Point)
		return len(ids) > 0, err
	},
	CmdPlaceBlock: func(e *Engine, ctx context.Context, args Args) (bool, error) {
		_, ok := e.PlaceBlock(ctx, args.Block)
		return ok, nil
	},
	CmdPaint: func(e *Engine, ctx context.Context, args Args) (bool, error) {
		return e.Paint(ctx, args.ID, args.Color), nil
	},
	CmdCommitMove: func(e *Engine, ctx context.Context, _ Args) (bool, error) {
		return e.CommitMove(ctx) == selection.PlacePlaced, nil
	},
	CmdAbortMove: func(e *Engine, ctx context.Context, _ Args) (bool, error) {
		return e.AbortMove(ctx), nil
	},
}

// Commands имена доступных команд
func Commands() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run выполняет именованную команду. false означает, что команда ничего не изменила
// или была отклонена; ошибка возвращается только при сбое внешних зависимостей.
func (e *Engine) Run(ctx context.Context, name string, args Args) (bool, error) {
	cmd, ok := commands[name]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	done, err := cmd(e, ctx, args)
	result := "ok"
	switch {
	case err != nil:
		result = "error"
		e.logger.Warn("команда %s: %v", name, err)
	case !done:
		result = "noop"
	}
	e.metrics.commands.WithLabelValues(name, result).Inc()
	e.logger.Debug("команда %s -> %s", name, result)
	e.syncGauges()
	return done, err
}

// Undo отменяет последний кадр истории
func (e *Engine) Undo(ctx context.Context) bool {
	if e.sel.IsLifted() {
		e.sel.AbortMove()
	}
	label := e.history.UndoLabel()
	ok, warnings := e.history.Undo()
	if !ok {
		return false
	}
	e.reportWarnings(ctx, CmdUndo, warnings)
	e.publish(ctx, sourceHistory, EventHistoryChanged, CommandEvent{Command: CmdUndo, Label: label})
	return true
}

// Redo повторяет отменённый кадр
func (e *Engine) Redo(ctx context.Context) bool {
	if e.sel.IsLifted() {
		e.sel.AbortMove()
	}
	label := e.history.RedoLabel()
	ok, warnings := e.history.Redo()
	if !ok {
		return false
	}
	e.reportWarnings(ctx, CmdRedo, warnings)
	e.publish(ctx, sourceHistory, EventHistoryChanged, CommandEvent{Command: CmdRedo, Label: label})
	return true
}

func (e *Engine) reportWarnings(ctx context.Context, cmd string, warnings []history.Warning) {
	if len(warnings) == 0 {
		return
	}
	e.publish(ctx, sourceHistory, EventConsistency, WarningsEvent{Command: cmd, Warnings: warningStrings(warnings)})
}

// DeleteSelection удаляет выделенные блоки одним кадром
func (e *Engine) DeleteSelection(ctx context.Context) bool {
	ids := e.sel.Selected()
	if !e.sel.DeleteSelection() {
		return false
	}
	e.publish(ctx, sourceSelection, EventStoreChanged, CommandEvent{Command: CmdDeleteSelection, IDs: ids})
	return true
}

// Copy копирует выделение в буфер обмена
func (e *Engine) Copy(ctx context.Context) error {
	return e.sel.Copy(ctx)
}

// Paste вставляет блоки из буфера обмена. Чужие данные и занятая область
// отклоняются: возвращается nil без ошибки.
func (e *Engine) Paste(ctx context.Context, point vec.Vec2Float) ([]string, error) {
	ids, err := e.sel.Paste(ctx, point)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		e.refuse(ctx, CmdPaste, "rejected")
		return nil, nil
	}
	e.publish(ctx, sourceSelection, EventStoreChanged, CommandEvent{Command: CmdPaste, IDs: ids})
	return ids, nil
}

// PlaceBlock создаёт блок одним кадром. Пустые id, автор и время заполняются.
// Занятая область или некорректный блок отклоняются.
func (e *Engine) PlaceBlock(ctx context.Context, b world.Block) (world.Block, bool) {
	if b.ID == "" {
		b.ID = world.NewBlockID()
	}
	if b.Author == "" {
		b.Author = e.opts.Author
	}
	if b.CreatedAt == 0 {
		b.CreatedAt = e.opts.Now().Unix()
	}
	if err := b.Validate(); err != nil {
		e.logger.Debug("place-block: %v", err)
		e.refuse(ctx, CmdPlaceBlock, "invalid")
		return world.Block{}, false
	}
	if _, exists := e.store.GetByID(b.ID); exists {
		e.refuse(ctx, CmdPlaceBlock, "duplicate-id")
		return world.Block{}, false
	}
	if e.store.IsRegionOccupied(b.X, b.Y, b.W, b.H, nil) {
		e.refuse(ctx, CmdPlaceBlock, "occupied")
		return world.Block{}, false
	}

	e.history.BeginTransaction(CmdPlaceBlock)
	e.history.Exec(history.Add{Block: b})
	e.history.Commit()
	if b.Kind == world.KindNested && b.WorldName != "" {
		e.worldNames[b.TargetWorldID] = b.WorldName
	}
	if b.Kind == world.KindImage {
		e.assets.Request(b.ImageURL)
	}
	e.publish(ctx, sourceEditor, EventStoreChanged, CommandEvent{Command: CmdPlaceBlock, IDs: []string{b.ID}})
	return b, true
}

// Paint перекрашивает блок одним кадром
func (e *Engine) Paint(ctx context.Context, id string, color world.Color) bool {
	if color > 0xFFFFFF {
		e.refuse(ctx, CmdPaint, "invalid")
		return false
	}
	cur, ok := e.store.GetByID(id)
	if !ok || cur.Color == color {
		return false
	}
	e.history.BeginTransaction(CmdPaint)
	e.history.Exec(history.Update{ID: id, Next: world.Delta{Color: &color}})
	e.history.Commit()
	e.publish(ctx, sourceEditor, EventStoreChanged, CommandEvent{Command: CmdPaint, IDs: []string{id}})
	return true
}

// SelectAt выбирает блок под точкой
func (e *Engine) SelectAt(ctx context.Context, p vec.Vec2Float, additive bool) bool {
	hit := e.sel.SelectAtPoint(p, additive)
	e.publish(ctx, sourceSelection, EventSelectionChanged, CommandEvent{Command: "select", IDs: e.sel.Selected()})
	return hit
}

// SelectRegion выбирает блоки в прямоугольнике
func (e *Engine) SelectRegion(ctx context.Context, r vec.Rect, additive bool) int {
	n := e.sel.SelectRegion(r, additive)
	e.publish(ctx, sourceSelection, EventSelectionChanged, CommandEvent{Command: "select-region", IDs: e.sel.Selected()})
	return n
}

// SetMarquee обновляет рамку выделения
func (e *Engine) SetMarquee(ctx context.Context, r vec.Rect) {
	e.sel.SetMarquee(r)
	e.publish(ctx, sourceSelection, EventSelectionChanged, nil)
}

// Lift поднимает выделение для перетаскивания
func (e *Engine) Lift(ctx context.Context) bool {
	if !e.sel.Lift() {
		return false
	}
	e.publish(ctx, sourceSelection, EventSelectionChanged, CommandEvent{Command: "lift", IDs: e.sel.Selected()})
	return true
}

// MoveTo переносит поднятое выделение
func (e *Engine) MoveTo(ctx context.Context, origin vec.Vec2) bool {
	if !e.sel.MoveTo(origin) {
		return false
	}
	e.publish(ctx, sourceSelection, EventSelectionChanged, nil)
	return true
}

// Nudge сдвигает поднятое выделение с клавиатуры
func (e *Engine) Nudge(ctx context.Context, dir selection.Direction, shift bool) bool {
	if !e.sel.Nudge(dir, shift) {
		return false
	}
	e.publish(ctx, sourceSelection, EventSelectionChanged, nil)
	return true
}

// Place опускает поднятое выделение; при коллизии плавающее состояние сохраняется
func (e *Engine) Place(ctx context.Context) selection.PlaceResult {
	result := e.sel.Place()
	e.afterPlace(ctx, "place", result)
	return result
}

// CommitMove опускает выделение; при коллизии блоки возвращаются на место
func (e *Engine) CommitMove(ctx context.Context) selection.PlaceResult {
	result := e.sel.Commit()
	e.afterPlace(ctx, CmdCommitMove, result)
	return result
}

func (e *Engine) afterPlace(ctx context.Context, cmd string, result selection.PlaceResult) {
	switch result {
	case selection.PlacePlaced:
		e.publish(ctx, sourceSelection, EventStoreChanged, CommandEvent{Command: cmd, IDs: e.sel.Selected()})
	case selection.PlaceCollision:
		e.refuse(ctx, cmd, "collision")
	case selection.PlaceUnchanged:
		e.publish(ctx, sourceSelection, EventSelectionChanged, nil)
	}
}

// AbortMove возвращает поднятое выделение на место
func (e *Engine) AbortMove(ctx context.Context) bool {
	if !e.sel.AbortMove() {
		return false
	}
	e.publish(ctx, sourceSelection, EventSelectionChanged, CommandEvent{Command: CmdAbortMove})
	return true
}

func (e *Engine) refuse(ctx context.Context, cmd, reason string) {
	e.metrics.refused.WithLabelValues(reason).Inc()
	e.publish(ctx, sourceEditor, EventPlaceRefused, RefusedEvent{Command: cmd, Reason: reason})
}
