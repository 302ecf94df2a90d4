package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/annel0/pixel-canvas/internal/codec"
	"github.com/annel0/pixel-canvas/internal/logging"
	"github.com/annel0/pixel-canvas/internal/storage"
	"github.com/annel0/pixel-canvas/internal/world"
)

var (
	// ErrNotNested блок не ведёт во вложенный мир
	ErrNotNested = errors.New("block is not a nested world")
	// ErrAtRoot выход из корневого мира невозможен
	ErrAtRoot = errors.New("already at root world")
)

// EncodeProject собирает файл проекта из корневого мира
func (e *Engine) EncodeProject() ([]byte, int, error) {
	blocks, err := e.rootBlocks()
	if err != nil {
		return nil, 0, err
	}
	pool, err := codec.PoolFromBlocks(blocks)
	if err != nil {
		return nil, 0, fmt.Errorf("pack blocks: %w", err)
	}

	names := make(map[string]string, len(e.worldNames))
	for id, name := range e.worldNames {
		names[id] = name
	}
	for _, b := range blocks {
		if b.Kind == world.KindNested && b.WorldName != "" {
			names[b.TargetWorldID] = b.WorldName
		}
	}

	data, err := codec.EncodeProject(codec.Document{
		Name:       e.projectName,
		Camera:     e.camera,
		Tool:       e.tool,
		UI:         e.ui,
		WorldNames: names,
		Pool:       pool,
	}, e.opts.Compression)
	if err != nil {
		return nil, 0, err
	}
	return data, pool.Live(), nil
}

// rootBlocks блоки корневого мира, даже если сейчас открыт вложенный
func (e *Engine) rootBlocks() ([]world.Block, error) {
	if len(e.stack) == 0 {
		return e.store.All(), nil
	}
	return world.ParseBlocksJSON(e.stack[0].snapshot)
}

// SaveProject сохраняет проект и снимок открытого вложенного мира в хранилище
func (e *Engine) SaveProject(ctx context.Context, name string) error {
	if name == "" {
		name = e.projectName
	}
	name = strings.TrimSuffix(name, codec.ProjectExt)
	e.projectName = name

	// Промежуточные миры на пути хранятся только снимками в стеке
	for _, f := range e.stack[min(1, len(e.stack)):] {
		if err := e.repo.SaveWorld(ctx, f.id, f.snapshot); err != nil {
			return fmt.Errorf("save world %s: %w", f.id, err)
		}
	}
	if e.worldID != "" {
		if err := e.saveCurrentWorld(ctx); err != nil {
			return err
		}
	}

	data, blocks, err := e.EncodeProject()
	if err != nil {
		return err
	}
	meta := storage.ProjectMeta{
		Name:        name,
		Blocks:      blocks,
		Compression: string(e.opts.Compression),
		UpdatedAt:   e.opts.Now().UTC(),
	}
	if err := e.repo.SaveProject(ctx, meta, data); err != nil {
		return err
	}
	e.logger.Info("проект %s сохранён: %d блоков, %d байт", name, blocks, len(data))
	e.publish(ctx, sourceEditor, EventProjectSaved, ProjectEvent{Name: name, Blocks: blocks})
	return nil
}

// LoadProject загружает проект из хранилища
func (e *Engine) LoadProject(ctx context.Context, name string) error {
	name = strings.TrimSuffix(name, codec.ProjectExt)
	data, ok, err := e.repo.LoadProject(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		err := fmt.Errorf("проект %s: %w", name, storage.ErrNotFound)
		e.publish(ctx, sourceEditor, EventLoadFailed, ProjectEvent{Name: name, Error: err.Error()})
		return err
	}
	if err := e.LoadProjectData(ctx, data); err != nil {
		return err
	}
	e.projectName = name
	return nil
}

// LoadProjectData заменяет состояние редактора содержимым файла проекта.
// При любой ошибке текущий мир не меняется.
func (e *Engine) LoadProjectData(ctx context.Context, data []byte) error {
	doc, err := codec.DecodeProject(data, nil)
	if err != nil {
		logging.LogDecodeError(logging.OrNop(e.codecLog), "project", err, data)
		e.publish(ctx, sourceEditor, EventLoadFailed, ProjectEvent{Error: err.Error()})
		return err
	}

	blocks := codec.BlocksFromPool(doc.Pool, doc.WorldNames)
	for _, b := range blocks {
		if err := b.Validate(); err != nil {
			err = fmt.Errorf("project block: %w", err)
			e.publish(ctx, sourceEditor, EventLoadFailed, ProjectEvent{Error: err.Error()})
			return err
		}
	}

	if e.sel.IsLifted() {
		e.sel.AbortMove()
	}
	e.store.Clear()
	for _, b := range blocks {
		e.store.Add(b)
		if b.Kind == world.KindImage {
			e.assets.Request(b.ImageURL)
		}
	}
	e.stack = nil
	e.worldID = ""
	e.history, e.sel = e.newEditing()

	e.projectName = doc.Name
	e.camera = doc.Camera
	e.tool = doc.Tool
	e.ui = doc.UI
	e.worldNames = make(map[string]string, len(doc.WorldNames))
	for id, n := range doc.WorldNames {
		e.worldNames[id] = n
	}

	e.syncGauges()
	e.publish(ctx, sourceEditor, EventProjectLoaded, ProjectEvent{Name: doc.Name, Blocks: len(blocks)})
	return nil
}

// WorldPath id миров от корня до текущего; корень обозначается пустой строкой
func (e *Engine) WorldPath() []string {
	path := make([]string, 0, len(e.stack)+1)
	for _, f := range e.stack {
		path = append(path, f.id)
	}
	return append(path, e.worldID)
}

// CurrentWorld id и отображаемое имя текущего мира
func (e *Engine) CurrentWorld() (string, string) {
	return e.worldID, e.worldNames[e.worldID]
}

// OpenWorld входит во вложенный мир блока blockID. История и выделение
// родителя сохраняются и восстанавливаются при выходе.
func (e *Engine) OpenWorld(ctx context.Context, blockID string) error {
	b, ok := e.store.GetByID(blockID)
	if !ok || b.Kind != world.KindNested || b.TargetWorldID == "" {
		return fmt.Errorf("%w: %s", ErrNotNested, blockID)
	}
	for _, f := range e.stack {
		if f.id == b.TargetWorldID {
			return fmt.Errorf("мир %s уже открыт выше по пути", b.TargetWorldID)
		}
	}
	if b.TargetWorldID == e.worldID {
		return fmt.Errorf("мир %s уже открыт", b.TargetWorldID)
	}

	var child []world.Block
	data, found, err := e.repo.LoadWorld(ctx, b.TargetWorldID)
	if err != nil {
		return err
	}
	if found {
		child, err = world.ParseBlocksJSON(data)
		if err != nil {
			e.publish(ctx, sourceEditor, EventLoadFailed, ProjectEvent{Name: b.TargetWorldID, Error: err.Error()})
			return err
		}
	}

	if e.sel.IsLifted() {
		e.sel.Commit()
	}
	snapshot, err := e.store.ToJSON()
	if err != nil {
		return err
	}
	e.stack = append(e.stack, worldFrame{
		id:       e.worldID,
		name:     e.worldNames[e.worldID],
		snapshot: snapshot,
		history:  e.history,
		sel:      e.sel,
	})
	if b.WorldName != "" {
		e.worldNames[b.TargetWorldID] = b.WorldName
	}

	e.store.Clear()
	for _, cb := range child {
		e.store.Add(cb)
	}
	e.worldID = b.TargetWorldID
	e.history, e.sel = e.newEditing()

	e.logger.Info("открыт мир %s (%d блоков)", e.worldID, len(child))
	e.publish(ctx, sourceEditor, EventWorldOpened, WorldEvent{WorldID: e.worldID, Name: b.WorldName, Path: e.WorldPath()})
	return nil
}

// CloseWorld сохраняет снимок текущего вложенного мира и возвращается в родителя
func (e *Engine) CloseWorld(ctx context.Context) error {
	if len(e.stack) == 0 {
		return ErrAtRoot
	}
	if e.sel.IsLifted() {
		e.sel.Commit()
	}
	if err := e.saveCurrentWorld(ctx); err != nil {
		return err
	}

	closed := e.worldID
	parent := e.stack[len(e.stack)-1]
	if err := e.store.FromJSON(parent.snapshot); err != nil {
		return fmt.Errorf("restore parent world: %w", err)
	}
	e.stack = e.stack[:len(e.stack)-1]
	e.worldID = parent.id
	e.history, e.sel = parent.history, parent.sel

	e.publish(ctx, sourceEditor, EventWorldClosed, WorldEvent{WorldID: closed, Path: e.WorldPath()})
	return nil
}

func (e *Engine) saveCurrentWorld(ctx context.Context) error {
	data, err := e.store.ToJSON()
	if err != nil {
		return err
	}
	if err := e.repo.SaveWorld(ctx, e.worldID, data); err != nil {
		return fmt.Errorf("save world %s: %w", e.worldID, err)
	}
	return nil
}

// ExportJSON дамп блоков текущего мира
func (e *Engine) ExportJSON() ([]byte, error) {
	return e.store.ToJSON()
}

// ImportJSON заменяет блоки текущего мира дампом. История и выделение
// сбрасываются; при ошибке мир не меняется.
func (e *Engine) ImportJSON(ctx context.Context, data []byte) error {
	if e.sel.IsLifted() {
		e.sel.AbortMove()
	}
	if err := e.store.FromJSON(data); err != nil {
		e.publish(ctx, sourceEditor, EventLoadFailed, ProjectEvent{Name: e.worldID, Error: err.Error()})
		return err
	}
	e.history, e.sel = e.newEditing()
	for _, b := range e.store.All() {
		switch b.Kind {
		case world.KindNested:
			if b.WorldName != "" {
				e.worldNames[b.TargetWorldID] = b.WorldName
			}
		case world.KindImage:
			e.assets.Request(b.ImageURL)
		}
	}
	e.syncGauges()
	e.publish(ctx, sourceEditor, EventStoreChanged, CommandEvent{Command: "import-json"})
	return nil
}
