package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath переменная окружения с путём к файлу конфигурации
const EnvConfigPath = "PIXEL_CANVAS_CONFIG"

// Config корневая структура конфигурации редактора.
// Формат файла определяется расширением: .toml или .yaml/.yml.
type Config struct {
	Editor  EditorConfig  `yaml:"editor" toml:"editor"`
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Assets  AssetsConfig  `yaml:"assets" toml:"assets"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

type EditorConfig struct {
	ChunkSize      int `yaml:"chunk_size" toml:"chunk_size"`
	HistoryFrames  int `yaml:"history_frames" toml:"history_frames"`
	GridSize       int `yaml:"grid_size" toml:"grid_size"`
	NudgeStep      int `yaml:"nudge_step" toml:"nudge_step"`
	NudgeShiftStep int `yaml:"nudge_shift_step" toml:"nudge_shift_step"`
	PoolCapacity   int `yaml:"pool_capacity" toml:"pool_capacity"`
}

type StorageConfig struct {
	DataPath    string `yaml:"data_path" toml:"data_path"`
	Compression string `yaml:"compression" toml:"compression"` // "none" или "zstd"
}

type AssetsConfig struct {
	TimeoutSeconds int   `yaml:"timeout_seconds" toml:"timeout_seconds"`
	MaxBytes       int64 `yaml:"max_bytes" toml:"max_bytes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "console" или "json"
	Dir    string `yaml:"dir" toml:"dir"`       // Пусто - без файлового лога
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Namespace string `yaml:"namespace" toml:"namespace"`
}

// GetChunkSize размер чанка с поддержкой fallback значений
func (e *EditorConfig) GetChunkSize() int {
	return getIntWithEnvFallback(e.ChunkSize, "PIXEL_CANVAS_CHUNK_SIZE", 64)
}

// GetHistoryFrames предел истории с поддержкой fallback значений
func (e *EditorConfig) GetHistoryFrames() int {
	return getIntWithEnvFallback(e.HistoryFrames, "PIXEL_CANVAS_HISTORY_FRAMES", 100)
}

// GetGridSize шаг сетки с поддержкой fallback значений
func (e *EditorConfig) GetGridSize() int {
	return getIntWithEnvFallback(e.GridSize, "PIXEL_CANVAS_GRID_SIZE", 1)
}

// GetDataPath каталог данных: config -> env -> default
func (s *StorageConfig) GetDataPath() string {
	if s.DataPath != "" {
		return s.DataPath
	}
	if env := os.Getenv("PIXEL_CANVAS_DATA"); env != "" {
		return env
	}
	return "data"
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	if configValue > 0 {
		return configValue
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}
	return defaultValue
}

// Default конфигурация по умолчанию
func Default() *Config {
	return &Config{
		Editor: EditorConfig{
			NudgeStep:      1,
			NudgeShiftStep: 10,
			PoolCapacity:   256,
		},
		Storage: StorageConfig{
			Compression: "zstd",
		},
		Assets: AssetsConfig{
			TimeoutSeconds: 15,
			MaxBytes:       16 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "pixel_canvas",
		},
	}
}

// Load читает файл конфигурации поверх значений по умолчанию.
// Если path == "", используется ENV PIXEL_CANVAS_CONFIG; если и он пуст, возвращается Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("config %s: неизвестный формат %q", path, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate проверяет значения, которые нельзя исправить fallback-ом
func (c *Config) Validate() error {
	switch c.Storage.Compression {
	case "", "none", "zstd":
	default:
		return fmt.Errorf("storage.compression: неизвестное значение %q", c.Storage.Compression)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: неизвестное значение %q", c.Logging.Format)
	}
	if c.Editor.ChunkSize < 0 || c.Editor.HistoryFrames < 0 || c.Editor.GridSize < 0 {
		return fmt.Errorf("editor: отрицательные значения недопустимы")
	}
	return nil
}
