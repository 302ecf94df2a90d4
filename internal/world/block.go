package world

import (
	"fmt"
	"math"

	"github.com/annel0/pixel-canvas/internal/vec"
	"github.com/google/uuid"
)

// MaxExtent максимальная ширина/высота блока (ширина и высота хранятся в u8)
const MaxExtent = 255

// Kind тип блока
type Kind uint8

const (
	KindBasic  Kind = iota // Обычный цветной блок
	KindImage              // Блок с картинкой по URL
	KindNested             // Портал во вложенный мир
)

// String возвращает имя типа блока
func (k Kind) String() string {
	switch k {
	case KindBasic:
		return "basic"
	case KindImage:
		return "image"
	case KindNested:
		return "nested"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid проверяет, известен ли тип
func (k Kind) Valid() bool {
	return k <= KindNested
}

// ParseKind разбирает имя типа блока
func ParseKind(s string) (Kind, error) {
	switch s {
	case "basic", "":
		return KindBasic, nil
	case "image":
		return KindImage, nil
	case "nested":
		return KindNested, nil
	}
	return 0, fmt.Errorf("неизвестный тип блока %q", s)
}

// MarshalText сериализует тип как строку
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("неизвестный тип блока %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText разбирает тип из строки
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Color упакованный цвет 0xRRGGBB
type Color uint32

// RGB упаковывает компоненты цвета
func RGB(r, g, b uint8) Color {
	return Color(uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// Components распаковывает компоненты цвета
func (c Color) Components() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Block прямоугольный блок на сетке мира
type Block struct {
	ID            string `json:"id"`
	X             int    `json:"x"`
	Y             int    `json:"y"`
	W             int    `json:"w"`
	H             int    `json:"h"`
	Color         Color  `json:"color"`
	Kind          Kind   `json:"kind"`
	ImageURL      string `json:"imageUrl,omitempty"`
	TargetWorldID string `json:"targetWorldId,omitempty"`
	WorldName     string `json:"worldName,omitempty"`
	Author        string `json:"author,omitempty"`
	CreatedAt     int64  `json:"createdAt"`
}

// NewBlockID генерирует новый уникальный идентификатор блока
func NewBlockID() string {
	return uuid.NewString()
}

// Bounds возвращает ограничивающий прямоугольник [x, x+w) × [y, y+h)
func (b Block) Bounds() vec.Rect {
	return vec.RectFromBox(b.X, b.Y, b.W, b.H)
}

// Origin левый верхний угол блока
func (b Block) Origin() vec.Vec2 {
	return vec.Vec2{X: b.X, Y: b.Y}
}

// Extra значение колонки extra для колоночного хранилища: URL картинки или id вложенного мира
func (b Block) Extra() string {
	switch b.Kind {
	case KindImage:
		return b.ImageURL
	case KindNested:
		return b.TargetWorldID
	default:
		return ""
	}
}

// WithExtra заполняет поле полезной нагрузки по значению колонки extra
func (b Block) WithExtra(extra string) Block {
	switch b.Kind {
	case KindImage:
		b.ImageURL = extra
	case KindNested:
		b.TargetWorldID = extra
	}
	return b
}

// InCoordRange проверяет, что область [x, x+w) × [y, y+h) помещается в i32 бинарного формата
func InCoordRange(x, y, w, h int) bool {
	return fitsInt32(x, w) && fitsInt32(y, h)
}

func fitsInt32(pos, extent int) bool {
	lo := int64(pos)
	hi := lo + int64(extent)
	return lo >= math.MinInt32 && lo <= math.MaxInt32 && hi >= math.MinInt32 && hi <= math.MaxInt32
}

// Validate проверяет инварианты блока
func (b Block) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("пустой id блока")
	}
	if b.W < 1 || b.W > MaxExtent || b.H < 1 || b.H > MaxExtent {
		return fmt.Errorf("блок %s: недопустимый размер %dx%d", b.ID, b.W, b.H)
	}
	if !InCoordRange(b.X, b.Y, b.W, b.H) {
		return fmt.Errorf("блок %s: область (%d, %d) %dx%d выходит за диапазон i32", b.ID, b.X, b.Y, b.W, b.H)
	}
	if !b.Kind.Valid() {
		return fmt.Errorf("блок %s: неизвестный тип %d", b.ID, uint8(b.Kind))
	}
	if b.Color > 0xFFFFFF {
		return fmt.Errorf("блок %s: цвет %#x вне диапазона RGB", b.ID, uint32(b.Color))
	}
	return nil
}

// Delta частичное изменение атрибутов блока без геометрии.
// Nil-поле означает "не менять".
type Delta struct {
	Color         *Color  `json:"color,omitempty"`
	ImageURL      *string `json:"imageUrl,omitempty"`
	TargetWorldID *string `json:"targetWorldId,omitempty"`
	WorldName     *string `json:"worldName,omitempty"`
}

// IsEmpty true, если дельта ничего не меняет
func (d Delta) IsEmpty() bool {
	return d.Color == nil && d.ImageURL == nil && d.TargetWorldID == nil && d.WorldName == nil
}

// Apply применяет дельту к копии блока
func (d Delta) Apply(b Block) Block {
	if d.Color != nil {
		b.Color = *d.Color
	}
	if d.ImageURL != nil {
		b.ImageURL = *d.ImageURL
	}
	if d.TargetWorldID != nil {
		b.TargetWorldID = *d.TargetWorldID
	}
	if d.WorldName != nil {
		b.WorldName = *d.WorldName
	}
	return b
}

// Capture возвращает дельту с текущими значениями блока для тех же полей, что заданы в d.
// Используется для построения обратной дельты перед изменением.
func (d Delta) Capture(b Block) Delta {
	var prev Delta
	if d.Color != nil {
		c := b.Color
		prev.Color = &c
	}
	if d.ImageURL != nil {
		s := b.ImageURL
		prev.ImageURL = &s
	}
	if d.TargetWorldID != nil {
		s := b.TargetWorldID
		prev.TargetWorldID = &s
	}
	if d.WorldName != nil {
		s := b.WorldName
		prev.WorldName = &s
	}
	return prev
}
