package logging

import (
	"fmt"
	"sort"
	"sync"
)

// LoggerManager управляет логгерами разных компонентов ядра
type LoggerManager struct {
	mu      sync.RWMutex
	opts    Options
	loggers map[string]*Logger
}

// NewLoggerManager создаёт менеджер с общими настройками для всех компонентов
func NewLoggerManager(opts Options) *LoggerManager {
	return &LoggerManager{
		opts:    opts,
		loggers: make(map[string]*Logger),
	}
}

// GetLogger возвращает логгер для компонента, создавая его при необходимости
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	if logger, exists := lm.loggers[component]; exists {
		lm.mu.RUnlock()
		return logger, nil
	}
	lm.mu.RUnlock()

	lm.mu.Lock()
	defer lm.mu.Unlock()

	// Проверяем еще раз на случай race condition
	if logger, exists := lm.loggers[component]; exists {
		return logger, nil
	}

	logger, err := NewLoggerWithOptions(component, lm.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger for %s: %w", component, err)
	}

	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger возвращает логгер или глобальный логгер при ошибке создания
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err != nil {
		return defaultLogger
	}
	return logger
}

// CloseAll закрывает все логгеры
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var lastErr error
	for component, logger := range lm.loggers {
		if err := logger.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close logger for %s: %w", component, err)
		}
	}

	lm.loggers = make(map[string]*Logger)
	return lastErr
}

// ListComponents возвращает отсортированный список зарегистрированных компонентов
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	components := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		components = append(components, component)
	}
	sort.Strings(components)
	return components
}

// Удобные функции для логгеров компонентов ядра

func (lm *LoggerManager) World() *Logger     { return lm.MustGetLogger("world") }
func (lm *LoggerManager) History() *Logger   { return lm.MustGetLogger("history") }
func (lm *LoggerManager) Selection() *Logger { return lm.MustGetLogger("selection") }
func (lm *LoggerManager) Codec() *Logger     { return lm.MustGetLogger("codec") }
func (lm *LoggerManager) Assets() *Logger    { return lm.MustGetLogger("assets") }
func (lm *LoggerManager) Storage() *Logger   { return lm.MustGetLogger("storage") }
func (lm *LoggerManager) Editor() *Logger    { return lm.MustGetLogger("editor") }
