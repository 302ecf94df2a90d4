package world

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrMalformedJSON вход не является корректным JSON
var ErrMalformedJSON = errors.New("malformed json")

// ErrSchemaViolation JSON не соответствует схеме дампа мира
var ErrSchemaViolation = errors.New("schema violation")

// ErrInvalidBlock блок нарушает инварианты (размер, тип, дубликат id)
var ErrInvalidBlock = errors.New("invalid block")

// LoadError ошибка загрузки дампа мира. Хранилище при такой ошибке не изменяется.
type LoadError struct {
	Reason error  // Одна из ошибок ErrMalformedJSON, ErrSchemaViolation, ErrInvalidBlock
	Detail string // Подробности для журнала
}

func (e *LoadError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("world load: %v", e.Reason)
	}
	return fmt.Sprintf("world load: %v: %s", e.Reason, e.Detail)
}

func (e *LoadError) Unwrap() error { return e.Reason }

const blockListSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "x", "y", "w", "h"],
    "properties": {
      "id":            {"type": "string", "minLength": 1},
      "x":             {"type": "integer", "minimum": -2147483648, "maximum": 2147483647},
      "y":             {"type": "integer", "minimum": -2147483648, "maximum": 2147483647},
      "w":             {"type": "integer", "minimum": 1, "maximum": 255},
      "h":             {"type": "integer", "minimum": 1, "maximum": 255},
      "color":         {"type": "integer", "minimum": 0, "maximum": 16777215},
      "kind":          {"enum": ["basic", "image", "nested"]},
      "imageUrl":      {"type": "string"},
      "targetWorldId": {"type": "string"},
      "worldName":     {"type": "string"},
      "author":        {"type": "string"},
      "createdAt":     {"type": "integer", "minimum": 0}
    }
  }
}`

var compiledBlockListSchema = jsonschema.MustCompileString("pixel-canvas/block-list.json", blockListSchema)

// ToJSON выгружает все блоки плоским JSON массивом в порядке вставки
func (s *SpatialStore) ToJSON() ([]byte, error) {
	data, err := json.Marshal(s.All())
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации мира: %w", err)
	}
	return data, nil
}

// FromJSON заменяет содержимое хранилища блоками из дампа.
// При любой ошибке возвращается *LoadError, а текущее содержимое остаётся как было.
func (s *SpatialStore) FromJSON(data []byte) error {
	blocks, err := ParseBlocksJSON(data)
	if err != nil {
		return err
	}

	s.Clear()
	for _, b := range blocks {
		s.Add(b)
	}
	return nil
}

// LoadJSON создаёт новое хранилище из дампа
func LoadJSON(data []byte, chunkSize int) (*SpatialStore, error) {
	store := NewSpatialStore(chunkSize)
	if err := store.FromJSON(data); err != nil {
		return nil, err
	}
	return store, nil
}

// ParseBlocksJSON разбирает и проверяет дамп мира, не трогая никакого хранилища
func ParseBlocksJSON(data []byte) ([]Block, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &LoadError{Reason: ErrMalformedJSON, Detail: "пустой вход"}
	}

	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, &LoadError{Reason: ErrMalformedJSON, Detail: err.Error()}
	}
	if err := compiledBlockListSchema.Validate(raw); err != nil {
		return nil, &LoadError{Reason: ErrSchemaViolation, Detail: flattenSchemaError(err)}
	}

	var blocks []Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, &LoadError{Reason: ErrMalformedJSON, Detail: err.Error()}
	}

	seen := make(map[string]struct{}, len(blocks))
	for _, b := range blocks {
		if err := b.Validate(); err != nil {
			return nil, &LoadError{Reason: ErrInvalidBlock, Detail: err.Error()}
		}
		if _, dup := seen[b.ID]; dup {
			return nil, &LoadError{Reason: ErrInvalidBlock, Detail: fmt.Sprintf("повторяющийся id %s", b.ID)}
		}
		seen[b.ID] = struct{}{}
	}
	return blocks, nil
}

func flattenSchemaError(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve.Causes)+1)
	for _, cause := range ve.Causes {
		parts = append(parts, fmt.Sprintf("%s: %s", cause.InstanceLocation, cause.Message))
	}
	if len(parts) == 0 {
		parts = append(parts, ve.Message)
	}
	return strings.Join(parts, "; ")
}
