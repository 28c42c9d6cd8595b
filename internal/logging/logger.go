package logging

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает имя уровня без учёта регистра
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("неизвестный уровень логирования: %q", s)
}

// Logger пишет сообщения в консоль и (опционально) в файл компонента
type Logger struct {
	mu              sync.Mutex
	component       string
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            *os.File
	minConsoleLevel LogLevel
	minFileLevel    LogLevel
}

// Настройки, общие для всех логгеров процесса
var (
	settingsMu          sync.RWMutex
	logDir              string // пусто: только консоль
	defaultConsoleLevel = INFO
	defaultFileLevel    = TRACE
)

// defaultLogger используется пакетными функциями Info/Debug/...
var defaultLogger = newConsoleLogger("main", INFO)

func newConsoleLogger(component string, level LogLevel) *Logger {
	return &Logger{
		component:       component,
		consoleLogger:   log.New(os.Stdout, "", log.LstdFlags),
		minConsoleLevel: level,
		minFileLevel:    ERROR + 1,
	}
}

// NewLogger создаёт логгер компонента. Если каталог логов задан через
// InitDefaultLogger, сообщения дублируются в файл <component>_<время>.log.
func NewLogger(component string) (*Logger, error) {
	settingsMu.RLock()
	dir, consoleLevel, fileLevel := logDir, defaultConsoleLevel, defaultFileLevel
	settingsMu.RUnlock()

	l := newConsoleLogger(component, consoleLevel)
	if dir == "" {
		return l, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", dir, err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(dir, fmt.Sprintf("%s_%s.log", component, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
	}

	l.file = file
	l.fileLogger = log.New(file, "", log.LstdFlags)
	l.minFileLevel = fileLevel
	return l, nil
}

// InitDefaultLogger включает запись в каталог dir и пересоздаёт логгер по умолчанию.
// Пустой dir оставляет только консольный вывод.
func InitDefaultLogger(dir string, consoleLevel, fileLevel LogLevel) error {
	settingsMu.Lock()
	logDir = dir
	defaultConsoleLevel = consoleLevel
	defaultFileLevel = fileLevel
	settingsMu.Unlock()

	l, err := NewLogger("server")
	if err != nil {
		return err
	}
	defaultLogger = l
	return nil
}

// CloseDefaultLogger закрывает файл логгера по умолчанию
func CloseDefaultLogger() {
	if defaultLogger != nil {
		_ = defaultLogger.Close()
	}
}

// SetLevels меняет пороги вывода
func (l *Logger) SetLevels(consoleLevel, fileLevel LogLevel) {
	l.mu.Lock()
	l.minConsoleLevel = consoleLevel
	l.minFileLevel = fileLevel
	l.mu.Unlock()
}

// Levels текущие пороги консоли и файла
func (l *Logger) Levels() (consoleLevel, fileLevel LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minConsoleLevel, l.minFileLevel
}

// Enabled сообщает, попадёт ли сообщение уровня level хоть куда-нибудь
func (l *Logger) Enabled(level LogLevel) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.minConsoleLevel || (l.fileLogger != nil && level >= l.minFileLevel)
}

// Close закрывает файл логгера, если он есть
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.fileLogger = nil
	return err
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	message := fmt.Sprintf("[%s] [%s] %s", level.String(), l.component, fmt.Sprintf(format, args...))

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fileLogger != nil && level >= l.minFileLevel {
		l.fileLogger.Println(message)
	}
	if level >= l.minConsoleLevel {
		l.consoleLogger.Println(message)
	}
}

// Trace логирует сообщение уровня TRACE
func (l *Logger) Trace(format string, args ...interface{}) { l.log(TRACE, format, args...) }

// Debug логирует сообщение уровня DEBUG
func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }

// Info логирует сообщение уровня INFO
func (l *Logger) Info(format string, args ...interface{}) { l.log(INFO, format, args...) }

// Warn логирует сообщение уровня WARN
func (l *Logger) Warn(format string, args ...interface{}) { l.log(WARN, format, args...) }

// Error логирует сообщение уровня ERROR
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

// Пакетные функции пишут в логгер по умолчанию

func Trace(format string, args ...interface{}) { defaultLogger.Trace(format, args...) }
func Debug(format string, args ...interface{}) { defaultLogger.Debug(format, args...) }
func Info(format string, args ...interface{})  { defaultLogger.Info(format, args...) }
func Warn(format string, args ...interface{})  { defaultLogger.Warn(format, args...) }
func Error(format string, args ...interface{}) { defaultLogger.Error(format, args...) }

// LogMessage пишет кадр протокола с hex-дампом на уровне TRACE.
// Дамп не строится, если TRACE отключён и в консоли, и в файле.
func (l *Logger) LogMessage(connID string, direction string, request string, payload []byte) {
	if !l.Enabled(TRACE) {
		return
	}
	l.Trace("%s %s: %s, %d байт\n%s", direction, connID, request, len(payload), HexDump(payload))
}

// LogProtocolError логирует кадр, который не удалось разобрать
func (l *Logger) LogProtocolError(connID string, err error, data []byte) {
	l.Warn("⚠️ Ошибка протокола от %s: %v", connID, err)
	if len(data) > 0 {
		l.Debug("Сырые данные (%d байт):\n%s", len(data), HexDump(data))
	}
}

// HexDump создает hex дамп данных
func HexDump(data []byte) string {
	if len(data) == 0 {
		return "No data"
	}

	// Ограничиваем размер дампа до 256 байт
	size := len(data)
	if size > 256 {
		size = 256
	}

	return hex.Dump(data[:size])
}
