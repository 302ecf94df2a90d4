package selection

import (
	"context"
	"errors"
	"sync"
)

// ErrClipboardEmpty буфер обмена пуст
var ErrClipboardEmpty = errors.New("clipboard is empty")

// Clipboard системный буфер обмена. Операции могут блокироваться и завершаться ошибкой.
type Clipboard interface {
	ReadText(ctx context.Context) (string, error)
	WriteText(ctx context.Context, text string) error
}

// MemoryClipboard буфер обмена в памяти процесса
type MemoryClipboard struct {
	mu   sync.Mutex
	text string
	set  bool
}

// NewMemoryClipboard создаёт пустой буфер
func NewMemoryClipboard() *MemoryClipboard {
	return &MemoryClipboard{}
}

// ReadText возвращает сохранённый текст
func (c *MemoryClipboard) ReadText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set {
		return "", ErrClipboardEmpty
	}
	return c.text, nil
}

// WriteText сохраняет текст
func (c *MemoryClipboard) WriteText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	c.set = true
	return nil
}
