package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf16"
	"unicode/utf8"
)

// Кадр: 16 байт длины (big-endian, старшие 8 байт нулевые), затем JSON
const (
	HeaderSize            = 16
	DefaultMaxMessageSize = 16 << 20
)

var (
	ErrFrameTooLarge = errors.New("кадр превышает допустимый размер")
	ErrBadHeader     = errors.New("некорректный заголовок кадра")
	ErrMalformed     = errors.New("некорректное сообщение")
)

// Marshal сериализует конверт в JSON, экранируя все не-ASCII символы
func Marshal(m *Message) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("сериализация сообщения: %w", err)
	}
	return EscapeASCII(raw), nil
}

// Unmarshal разбирает тело кадра
func Unmarshal(body []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.Request == "" {
		return nil, fmt.Errorf("%w: пустой request", ErrMalformed)
	}
	return &m, nil
}

// EscapeASCII заменяет не-ASCII руны на \uXXXX (суррогатные пары для руны вне BMP).
// Вход должен быть корректным JSON: такие руны встречаются только внутри строк.
func EscapeASCII(raw []byte) []byte {
	ascii := true
	for _, b := range raw {
		if b >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return raw
	}

	var buf bytes.Buffer
	buf.Grow(len(raw) + len(raw)/2)
	for i := 0; i < len(raw); {
		if raw[i] < utf8.RuneSelf {
			buf.WriteByte(raw[i])
			i++
			continue
		}
		r, size := utf8.DecodeRune(raw[i:])
		i += size
		if r1, r2 := utf16.EncodeRune(r); r1 != utf8.RuneError {
			fmt.Fprintf(&buf, `\u%04x\u%04x`, r1, r2)
			continue
		}
		fmt.Fprintf(&buf, `\u%04x`, r)
	}
	return buf.Bytes()
}

// WriteFrame пишет заголовок и тело одним вызовом Write
func WriteFrame(w io.Writer, body []byte) error {
	frame := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint64(frame[8:HeaderSize], uint64(len(body)))
	copy(frame[HeaderSize:], body)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("запись кадра: %w", err)
	}
	return nil
}

// ReadFrame читает один кадр. maxSize <= 0 означает DefaultMaxMessageSize.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	if binary.BigEndian.Uint64(header[:8]) != 0 {
		return nil, ErrBadHeader
	}
	n := binary.BigEndian.Uint64(header[8:])
	if n > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, maxSize)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("чтение тела кадра: %w", err)
	}
	return body, nil
}

// Encode упаковывает payload с тегом в тело кадра
func Encode(request string, payload interface{}) ([]byte, error) {
	m, err := NewMessage(request, payload)
	if err != nil {
		return nil, err
	}
	return Marshal(m)
}

// WriteMessage упаковывает payload с тегом и пишет кадр
func WriteMessage(w io.Writer, request string, payload interface{}) error {
	body, err := Encode(request, payload)
	if err != nil {
		return err
	}
	return WriteFrame(w, body)
}

// ReadMessage читает и разбирает один кадр
func ReadMessage(r io.Reader, maxSize int) (*Message, error) {
	body, err := ReadFrame(r, maxSize)
	if err != nil {
		return nil, err
	}
	return Unmarshal(body)
}
