package logging

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"trace": TRACE,
		"DEBUG": DEBUG,
		"":      INFO,
		"warn":  WARN,
		"Error": ERROR,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err, "неизвестный уровень должен давать ошибку")
}

func TestLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() {
		settingsMu.Lock()
		logDir = ""
		defaultConsoleLevel, defaultFileLevel = INFO, TRACE
		settingsMu.Unlock()
	})

	require.NoError(t, InitDefaultLogger(dir, ERROR, DEBUG))
	defer CloseDefaultLogger()

	Debug("отладка %d", 1)
	Trace("не попадёт в файл")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "должен появиться один файл логов")

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] [server] отладка 1")
	assert.False(t, strings.Contains(string(data), "не попадёт"), "TRACE ниже порога файла")
}

func TestManagerReusesLoggers(t *testing.T) {
	lm := newLoggerManager()

	a, err := lm.GetLogger("world")
	require.NoError(t, err)
	b, err := lm.GetLogger("world")
	require.NoError(t, err)
	assert.Same(t, a, b, "логгер компонента должен кэшироваться")

	assert.Equal(t, []string{"world"}, lm.ListComponents())
	assert.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.ListComponents())
}

func TestManagerLevels(t *testing.T) {
	lm := newLoggerManager()

	world, err := lm.GetLogger("world")
	require.NoError(t, err)
	lm.SetLogLevel("world", WARN, ERROR)
	c, f := world.Levels()
	assert.Equal(t, WARN, c, "порог применяется к созданному логгеру")
	assert.Equal(t, ERROR, f)

	lm.SetLogLevel("network", TRACE, TRACE)
	assert.Equal(t, []string{"network", "world"}, lm.ListComponents())
	c, _ = lm.Levels("network")
	assert.Equal(t, TRACE, c, "порог известен до создания логгера")

	network, err := lm.GetLogger("network")
	require.NoError(t, err)
	assert.True(t, network.Enabled(TRACE), "порог применён при создании")

	require.NoError(t, lm.CloseAll())
	again, err := lm.GetLogger("world")
	require.NoError(t, err)
	c, _ = again.Levels()
	assert.Equal(t, WARN, c, "порог переживает CloseAll")

	c, _ = lm.Levels("storage")
	assert.Equal(t, INFO, c, "без настройки действует общий порог")
}

// captureLogger логгер, пишущий консольный вывод в буфер
func captureLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := newConsoleLogger("network", level)
	l.consoleLogger = log.New(&buf, "", 0)
	return l, &buf
}

func TestLogMessage(t *testing.T) {
	quiet, buf := captureLogger(DEBUG)
	assert.False(t, quiet.Enabled(TRACE))
	quiet.LogMessage("conn-1", "IN", "ping", []byte(`{"request":"ping"}`))
	assert.Empty(t, buf.String(), "без TRACE кадры не пишутся")

	l, buf := captureLogger(TRACE)
	l.LogMessage("conn-1", "IN", "ping", []byte(`{"request":"ping"}`))
	out := buf.String()
	assert.Contains(t, out, "[TRACE] [network] IN conn-1: ping, 18 байт")
	assert.Contains(t, out, "7b 22 72 65", "hex-дамп тела")
}

func TestLogProtocolError(t *testing.T) {
	l, buf := captureLogger(DEBUG)
	l.LogProtocolError("conn-2", errors.New("мусор"), []byte("{oops"))
	out := buf.String()
	assert.Contains(t, out, "[WARN] [network] ⚠️ Ошибка протокола от conn-2: мусор")
	assert.Contains(t, out, "Сырые данные (5 байт)")
	assert.Contains(t, out, "7b 6f 6f 70 73")
}

func TestHexDump(t *testing.T) {
	assert.Equal(t, "No data", HexDump(nil))
	big := make([]byte, 1000)
	dump := HexDump(big)
	assert.Equal(t, 16, strings.Count(dump, "\n"), "дамп ограничен 256 байтами")
}
