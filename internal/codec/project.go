package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/annel0/pixel-canvas/internal/mempool"
)

// ProjectFormatVersion версия внешней оболочки файла проекта
const ProjectFormatVersion = 1

// ProjectExt расширение файлов проекта
const ProjectExt = ".pxw"

// Compression способ сжатия бинарной полезной нагрузки
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

// ParseCompression разбирает название сжатия, пустая строка означает none
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd:
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("неизвестное сжатие %q", s)
	}
}

// Camera положение и масштаб вида
type Camera struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// UIState состояние интерфейса, сохраняемое вместе с проектом
type UIState struct {
	ShowGrid   bool `json:"showGrid"`
	ShowChunks bool `json:"showChunks"`
	GridSize   int  `json:"gridSize,omitempty"`
}

// Document содержимое файла проекта
type Document struct {
	Name       string
	Camera     Camera
	Tool       string
	UI         UIState
	WorldNames map[string]string // id вложенного мира -> отображаемое имя
	Pool       *mempool.Pool
}

type envelope struct {
	FormatVersion int               `json:"formatVersion"`
	Name          string            `json:"name,omitempty"`
	Camera        Camera            `json:"camera"`
	Tool          string            `json:"tool,omitempty"`
	UI            UIState           `json:"ui"`
	WorldNames    map[string]string `json:"worldNames,omitempty"`
	Compression   Compression       `json:"compression"`
	Checksum      string            `json:"checksum"`
	Blocks        int               `json:"blocks"`
	Payload       string            `json:"payload"`
}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func initZstd() error {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})
	return zstdErr
}

// Checksum контрольная сумма несжатой бинарной полезной нагрузки (xxhash64, hex)
func Checksum(raw []byte) string {
	return strconv.FormatUint(xxhash.Sum64(raw), 16)
}

// EncodeProject упаковывает документ в JSON-оболочку с бинарной полезной нагрузкой в base64
func EncodeProject(doc Document, compression Compression) ([]byte, error) {
	if doc.Pool == nil {
		doc.Pool = mempool.New(0)
	}
	raw, err := Encode(doc.Pool)
	if err != nil {
		return nil, err
	}

	payload := raw
	switch compression {
	case "", CompressionNone:
		compression = CompressionNone
	case CompressionZstd:
		if err := initZstd(); err != nil {
			return nil, fmt.Errorf("init zstd: %w", err)
		}
		payload = zstdEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))
	default:
		return nil, fmt.Errorf("неизвестное сжатие %q", compression)
	}

	env := envelope{
		FormatVersion: ProjectFormatVersion,
		Name:          doc.Name,
		Camera:        doc.Camera,
		Tool:          doc.Tool,
		UI:            doc.UI,
		WorldNames:    doc.WorldNames,
		Compression:   compression,
		Checksum:      Checksum(raw),
		Blocks:        doc.Pool.Live(),
		Payload:       base64.StdEncoding.EncodeToString(payload),
	}
	return json.MarshalIndent(env, "", "  ")
}

// DecodeProject разбирает оболочку, проверяет контрольную сумму и декодирует пул.
// rebuild передаётся в Decode.
func DecodeProject(data []byte, rebuild func(*mempool.Pool) error) (Document, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Document{}, decodeErr(ErrBadEnvelope, "envelope", -1, err)
	}
	if env.FormatVersion != ProjectFormatVersion {
		return Document{}, decodeErr(ErrUnsupportedVersion, "envelope", -1,
			fmt.Errorf("formatVersion %d, want %d", env.FormatVersion, ProjectFormatVersion))
	}

	payload, err := base64.StdEncoding.DecodeString(env.Payload)
	if err != nil {
		return Document{}, decodeErr(ErrBadEnvelope, "payload", -1, err)
	}

	raw := payload
	switch env.Compression {
	case "", CompressionNone:
	case CompressionZstd:
		if err := initZstd(); err != nil {
			return Document{}, fmt.Errorf("init zstd: %w", err)
		}
		raw, err = zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return Document{}, decodeErr(ErrBadEnvelope, "payload", -1, err)
		}
	default:
		return Document{}, decodeErr(ErrBadEnvelope, "envelope", -1, fmt.Errorf("compression %q", env.Compression))
	}

	if sum := Checksum(raw); sum != env.Checksum {
		return Document{}, decodeErr(ErrChecksumMismatch, "payload", -1, fmt.Errorf("got %s, want %s", sum, env.Checksum))
	}

	pool, err := Decode(raw, rebuild)
	if err != nil {
		return Document{}, err
	}

	return Document{
		Name:       env.Name,
		Camera:     env.Camera,
		Tool:       env.Tool,
		UI:         env.UI,
		WorldNames: env.WorldNames,
		Pool:       pool,
	}, nil
}
