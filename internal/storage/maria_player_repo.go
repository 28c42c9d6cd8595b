package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/annel0/tileworld/internal/world/entity"
)

// MariaPlayerRepo реализует PlayerRepo для базы данных MariaDB/MySQL.
// Использует таблицу players: имя и JSON записи игрока.
type MariaPlayerRepo struct {
	db *sql.DB
}

const upsertPlayerQuery = `
	INSERT INTO players (name, record)
	VALUES (?, ?)
	ON DUPLICATE KEY UPDATE
		record = VALUES(record),
		updated_at = CURRENT_TIMESTAMP
`

// NewMariaPlayerRepo подключается к базе и создает таблицу, если её нет.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname)
func NewMariaPlayerRepo(ctx context.Context, dsn string) (*MariaPlayerRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaPlayerRepo{db: db}
	if err := repo.createTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// createTable создает таблицу players, если она не существует.
func (r *MariaPlayerRepo) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS players (
			name       VARCHAR(64) PRIMARY KEY,
			record     LONGTEXT    NOT NULL,
			updated_at TIMESTAMP   DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE   CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка создания таблицы players: %w", err)
	}
	return nil
}

// Save сохраняет запись игрока (INSERT ... ON DUPLICATE KEY UPDATE).
func (r *MariaPlayerRepo) Save(ctx context.Context, name string, rec entity.Record) error {
	if name == "" {
		return ErrInvalidName
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ошибка сериализации игрока %s: %w", name, err)
	}

	if _, err := r.db.ExecContext(ctx, upsertPlayerQuery, name, string(data)); err != nil {
		return fmt.Errorf("ошибка сохранения игрока %s: %w", name, err)
	}
	return nil
}

// Load загружает запись игрока.
func (r *MariaPlayerRepo) Load(ctx context.Context, name string) (entity.Record, bool, error) {
	var rec entity.Record
	if name == "" {
		return rec, false, ErrInvalidName
	}

	var data string
	err := r.db.QueryRowContext(ctx, `SELECT record FROM players WHERE name = ?`, name).Scan(&data)
	if err == sql.ErrNoRows {
		// Игрок входит впервые
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("ошибка загрузки игрока %s: %w", name, err)
	}

	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return entity.Record{}, false, fmt.Errorf("ошибка десериализации игрока %s: %w", name, err)
	}
	return rec, true, nil
}

// Delete удаляет запись игрока.
func (r *MariaPlayerRepo) Delete(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM players WHERE name = ?`, name); err != nil {
		return fmt.Errorf("ошибка удаления игрока %s: %w", name, err)
	}
	return nil
}

// BatchSave сохраняет записи нескольких игроков в одной транзакции.
func (r *MariaPlayerRepo) BatchSave(ctx context.Context, records map[string]entity.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback() // Откат в случае ошибки

	stmt, err := tx.PrepareContext(ctx, upsertPlayerQuery)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	for name, rec := range records {
		if name == "" {
			return ErrInvalidName
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("ошибка сериализации игрока %s: %w", name, err)
		}
		if _, err := stmt.ExecContext(ctx, name, string(data)); err != nil {
			return fmt.Errorf("ошибка сохранения игрока %s в batch: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// Names возвращает имена сохранённых игроков
func (r *MariaPlayerRepo) Names(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM players ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения игроков: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("ошибка чтения игроков: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close закрывает соединение с базой данных.
func (r *MariaPlayerRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
