package logging

import (
	"fmt"
	"sort"
	"sync"
)

// levels пара уровней консоль/файл
type levels struct {
	console LogLevel
	file    LogLevel
}

// LoggerManager хранит логгеры компонентов (editor, server, stream, storage)
// и переопределённые для них уровни.
type LoggerManager struct {
	mu        sync.RWMutex
	loggers   map[string]*Logger
	overrides map[string]levels
}

var (
	globalManager     *LoggerManager
	globalManagerOnce sync.Once
)

func newLoggerManager() *LoggerManager {
	return &LoggerManager{
		loggers:   make(map[string]*Logger),
		overrides: make(map[string]levels),
	}
}

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	globalManagerOnce.Do(func() { globalManager = newLoggerManager() })
	return globalManager
}

// GetLogger возвращает логгер компонента, при первом обращении открывая файл
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	l, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if ok {
		return l, nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if l, ok := lm.loggers[component]; ok {
		return l, nil
	}

	l, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("logger %s: %w", component, err)
	}
	if lv, ok := lm.overrides[component]; ok {
		l.SetLevels(lv.console, lv.file)
	}
	lm.loggers[component] = l
	return l, nil
}

// MustGetLogger при ошибке открытия файла откатывается на консольный логгер
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	l, err := lm.GetLogger(component)
	if err == nil {
		return l
	}
	l = NewConsoleLogger(component)
	l.Warn("⚠️ Файл логов недоступен, пишем только в консоль: %v", err)
	return l
}

// Override задаёт уровни компонента, в том числе ещё не созданного
func (lm *LoggerManager) Override(component string, consoleLevel, fileLevel LogLevel) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.overrides[component] = levels{console: consoleLevel, file: fileLevel}
	if l, ok := lm.loggers[component]; ok {
		l.SetLevels(consoleLevel, fileLevel)
	}
}

// SetLogLevel меняет уровни уже созданного логгера
func (lm *LoggerManager) SetLogLevel(component string, consoleLevel, fileLevel LogLevel) error {
	lm.mu.RLock()
	l, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if !ok {
		return fmt.Errorf("logger for component %s not found", component)
	}
	l.SetLevels(consoleLevel, fileLevel)
	return nil
}

// ListComponents возвращает имена компонентов по алфавиту
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	names := make([]string, 0, len(lm.loggers))
	for name := range lm.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseAll закрывает файлы всех логгеров; переопределения уровней сохраняются
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	loggers := lm.loggers
	lm.loggers = make(map[string]*Logger)
	lm.mu.Unlock()

	var firstErr error
	for name, l := range loggers {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close logger %s: %w", name, err)
		}
	}
	return firstErr
}

func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetEditorLogger() *Logger  { return GetComponentLogger("editor") }
func GetServerLogger() *Logger  { return GetComponentLogger("server") }
func GetStreamLogger() *Logger  { return GetComponentLogger("stream") }
func GetStorageLogger() *Logger { return GetComponentLogger("storage") }
