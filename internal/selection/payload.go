package selection

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/annel0/pixel-canvas/internal/vec"
	"github.com/annel0/pixel-canvas/internal/world"
)

// ClipboardSource метка, по которой вставка распознаёт свои данные
const ClipboardSource = "pixel-canvas/blocks"

var errForeignPayload = errors.New("clipboard data is not a block set")

// clipItem блок в буфере обмена: координаты относительно начала выделения, без id
type clipItem struct {
	X             int         `json:"x"`
	Y             int         `json:"y"`
	W             int         `json:"w"`
	H             int         `json:"h"`
	Color         world.Color `json:"color"`
	Kind          world.Kind  `json:"kind"`
	ImageURL      string      `json:"imageUrl,omitempty"`
	TargetWorldID string      `json:"targetWorldId,omitempty"`
	WorldName     string      `json:"worldName,omitempty"`
	Author        string      `json:"author,omitempty"`
}

type clipPayload struct {
	Source string     `json:"source"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Blocks []clipItem `json:"blocks"`
}

func newClipItem(b world.Block, origin vec.Vec2) clipItem {
	rel := b.Origin().Sub(origin)
	return clipItem{
		X:             rel.X,
		Y:             rel.Y,
		W:             b.W,
		H:             b.H,
		Color:         b.Color,
		Kind:          b.Kind,
		ImageURL:      b.ImageURL,
		TargetWorldID: b.TargetWorldID,
		WorldName:     b.WorldName,
		Author:        b.Author,
	}
}

// block собирает блок с новым id относительно точки origin
func (c clipItem) block(origin vec.Vec2, createdAt int64) world.Block {
	return world.Block{
		ID:            world.NewBlockID(),
		X:             origin.X + c.X,
		Y:             origin.Y + c.Y,
		W:             c.W,
		H:             c.H,
		Color:         c.Color,
		Kind:          c.Kind,
		ImageURL:      c.ImageURL,
		TargetWorldID: c.TargetWorldID,
		WorldName:     c.WorldName,
		Author:        c.Author,
		CreatedAt:     createdAt,
	}
}

func encodePayload(blocks []world.Block, origin vec.Vec2, width, height int) (string, error) {
	p := clipPayload{Source: ClipboardSource, Width: width, Height: height, Blocks: make([]clipItem, 0, len(blocks))}
	for _, b := range blocks {
		p.Blocks = append(p.Blocks, newClipItem(b, origin))
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal clipboard payload: %w", err)
	}
	return string(data), nil
}

func decodePayload(text string) (clipPayload, error) {
	var p clipPayload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return clipPayload{}, fmt.Errorf("%w: %v", errForeignPayload, err)
	}
	if p.Source != ClipboardSource {
		return clipPayload{}, fmt.Errorf("%w: source %q", errForeignPayload, p.Source)
	}
	if len(p.Blocks) == 0 {
		return clipPayload{}, fmt.Errorf("%w: no blocks", errForeignPayload)
	}
	if p.Width < 1 || p.Height < 1 {
		return clipPayload{}, fmt.Errorf("%w: size %dx%d", errForeignPayload, p.Width, p.Height)
	}
	// Каждый блок должен лежать внутри width × height
	for i, it := range p.Blocks {
		if it.W < 1 || it.H < 1 || it.X < 0 || it.Y < 0 || it.X > p.Width-it.W || it.Y > p.Height-it.H {
			return clipPayload{}, fmt.Errorf("%w: block %d at (%d, %d) %dx%d outside %dx%d",
				errForeignPayload, i, it.X, it.Y, it.W, it.H, p.Width, p.Height)
		}
	}
	return p, nil
}
