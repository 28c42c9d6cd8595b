// Package storage сохраняет мир и игроков: файл сохранения клиента,
// BadgerDB сервера и репозитории записей игроков.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/world/entity"
)

// CompressedExt расширение сжатого файла сохранения
const CompressedExt = ".zst"

// SaveDocument файл сохранения одиночной игры
type SaveDocument struct {
	ChunkController world.SaveData `json:"chunk_controller"`
	Player          *entity.Record `json:"player,omitempty"`
	StartedTime     float64        `json:"started_time"`
}

// SaveFile пишет документ в path; суффикс .zst включает сжатие zstd
func SaveFile(path string, doc *SaveDocument) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("создание каталога сохранения: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("открытие файла сохранения: %w", err)
	}

	if err := writeDocument(f, doc, strings.HasSuffix(path, CompressedExt)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeDocument(w io.Writer, doc *SaveDocument, compressed bool) error {
	if !compressed {
		bw := bufio.NewWriter(w)
		if err := json.NewEncoder(bw).Encode(doc); err != nil {
			return fmt.Errorf("сериализация сохранения: %w", err)
		}
		return bw.Flush()
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("zstd: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(doc); err != nil {
		enc.Close()
		return fmt.Errorf("сериализация сохранения: %w", err)
	}
	return enc.Close()
}

// LoadFile читает документ, записанный SaveFile
func LoadFile(path string) (*SaveDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("открытие файла сохранения: %w", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, CompressedExt) {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	var doc SaveDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("разбор сохранения %s: %w", path, err)
	}
	return &doc, nil
}
