package logging

import (
	"fmt"
	"sort"
	"sync"
)

// levels пороги компонента, заданные конфигурацией или консолью
type levels struct {
	console LogLevel
	file    LogLevel
}

// LoggerManager выдаёт логгеры компонентов. Пороги, заданные через
// SetLogLevel, переживают CloseAll и применяются к логгерам, созданным позже.
type LoggerManager struct {
	mu        sync.RWMutex
	loggers   map[string]*Logger
	overrides map[string]levels
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

func newLoggerManager() *LoggerManager {
	return &LoggerManager{
		loggers:   make(map[string]*Logger),
		overrides: make(map[string]levels),
	}
}

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = newLoggerManager()
	})
	return globalManager
}

// GetLogger возвращает логгер для компонента, создавая его при необходимости
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	logger, exists := lm.loggers[component]
	lm.mu.RUnlock()
	if exists {
		return logger, nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	if logger, exists := lm.loggers[component]; exists {
		return logger, nil
	}

	logger, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("логгер %s: %w", component, err)
	}
	if lv, ok := lm.overrides[component]; ok {
		logger.SetLevels(lv.console, lv.file)
	}

	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger возвращает логгер или консольный fallback при ошибке
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err != nil {
		return newConsoleLogger(component, INFO)
	}
	return logger
}

// CloseAll закрывает файлы всех логгеров; пороги компонентов сохраняются
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var lastErr error
	for component, logger := range lm.loggers {
		if err := logger.Close(); err != nil {
			lastErr = fmt.Errorf("закрытие логгера %s: %w", component, err)
		}
	}

	lm.loggers = make(map[string]*Logger)
	return lastErr
}

// ListComponents компоненты с логгером или заданным порогом, по алфавиту
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	seen := make(map[string]struct{}, len(lm.loggers)+len(lm.overrides))
	for component := range lm.loggers {
		seen[component] = struct{}{}
	}
	for component := range lm.overrides {
		seen[component] = struct{}{}
	}
	components := make([]string, 0, len(seen))
	for component := range seen {
		components = append(components, component)
	}
	sort.Strings(components)
	return components
}

// SetLogLevel задаёт пороги компонента: сразу, если логгер уже создан,
// иначе при его создании
func (lm *LoggerManager) SetLogLevel(component string, consoleLevel, fileLevel LogLevel) {
	lm.mu.Lock()
	lm.overrides[component] = levels{console: consoleLevel, file: fileLevel}
	logger := lm.loggers[component]
	lm.mu.Unlock()

	if logger != nil {
		logger.SetLevels(consoleLevel, fileLevel)
	}
}

// Levels текущие пороги компонента (для несозданного - заданные или общие)
func (lm *LoggerManager) Levels(component string) (consoleLevel, fileLevel LogLevel) {
	lm.mu.RLock()
	logger := lm.loggers[component]
	lv, overridden := lm.overrides[component]
	lm.mu.RUnlock()

	switch {
	case logger != nil:
		return logger.Levels()
	case overridden:
		return lv.console, lv.file
	}
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return defaultConsoleLevel, defaultFileLevel
}

// Удобные функции для получения логгеров
func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetNetworkLogger() *Logger {
	return GetComponentLogger("network")
}

func GetServerLogger() *Logger {
	return GetComponentLogger("server")
}

func GetWorldLogger() *Logger {
	return GetComponentLogger("world")
}

func GetStorageLogger() *Logger {
	return GetComponentLogger("storage")
}

func GetClientLogger() *Logger {
	return GetComponentLogger("client")
}
