package editor

import (
	"github.com/annel0/pixel-canvas/internal/assets"
	"github.com/annel0/pixel-canvas/internal/vec"
	"github.com/annel0/pixel-canvas/internal/world"
)

// Renderer получатель отрисовки кадра. tex равен nil, пока текстура не загружена.
type Renderer interface {
	DrawBlock(b world.Block, tex *assets.Texture)
	DrawFloating(b world.Block, tex *assets.Texture)
	DrawSelection(r vec.Rect)
	DrawMarquee(r vec.Rect)
}

// MarkDirty требует перерисовки следующего кадра
func (e *Engine) MarkDirty() { e.dirty.Store(true) }

// NeedsRender сообщает, изменилось ли что-то с прошлого кадра
func (e *Engine) NeedsRender(viewport vec.Rect) bool {
	return !e.rendered ||
		e.dirty.Load() ||
		e.store.Version() != e.lastVersion ||
		viewport != e.lastViewport
}

// RenderFrame перерисовывает видимую часть мира, если с прошлого кадра
// что-то изменилось. Повторный вызов без изменений ничего не рисует и
// возвращает false.
func (e *Engine) RenderFrame(viewport vec.Rect, r Renderer) bool {
	viewport = viewport.Normalized()
	// Флаг сбрасывается в любом случае, иначе кадр повторится
	dirty := e.dirty.Swap(false)
	version := e.store.Version()
	if e.rendered && !dirty && version == e.lastVersion && viewport == e.lastViewport {
		return false
	}
	e.rendered = true
	e.lastVersion = version
	e.lastViewport = viewport

	for _, b := range e.store.QueryRect(viewport) {
		r.DrawBlock(b, e.texture(b))
	}
	for _, b := range e.sel.Floating() {
		r.DrawFloating(b, e.texture(b))
	}
	if rect, ok := e.sel.SelectionRect(); ok {
		r.DrawSelection(rect)
	}
	if rect, ok := e.sel.Marquee(); ok {
		r.DrawMarquee(rect)
	}
	e.metrics.renderedFrames.Inc()
	return true
}

func (e *Engine) texture(b world.Block) *assets.Texture {
	if b.Kind != world.KindImage || b.ImageURL == "" {
		return nil
	}
	tex, _ := e.assets.GetTexture(b.ImageURL)
	return tex
}
