package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS analysis_reports (
	id            UUID PRIMARY KEY,
	cache_key     TEXT NOT NULL,
	fen           TEXT NOT NULL DEFAULT '',
	moves         JSONB NOT NULL,
	lines         INTEGER NOT NULL,
	max_elo       INTEGER NOT NULL DEFAULT 0,
	movetime_ms   BIGINT NOT NULL,
	engine        TEXT NOT NULL DEFAULT '',
	opening_code  TEXT NOT NULL DEFAULT '',
	opening_title TEXT NOT NULL DEFAULT '',
	evaluation    JSONB NOT NULL,
	top_lines     JSONB NOT NULL,
	duration_ms   BIGINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS analysis_reports_cache_key_idx ON analysis_reports (cache_key);`

// PostgresRepository stores reports in the analysis_reports table.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(databaseURL string) (*PostgresRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create analysis schema: %w", err)
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *PostgresRepository) Save(ctx context.Context, report *Report) error {
	if report == nil {
		return fmt.Errorf("nil analysis report payload")
	}
	moves, err := json.Marshal(report.Moves)
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}
	evaluation, err := json.Marshal(report.Evaluation)
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}
	lines, err := json.Marshal(report.TopLines)
	if err != nil {
		return fmt.Errorf("marshal top lines: %w", err)
	}

	const query = `
		INSERT INTO analysis_reports (
			id,
			cache_key,
			fen,
			moves,
			lines,
			max_elo,
			movetime_ms,
			engine,
			opening_code,
			opening_title,
			evaluation,
			top_lines,
			duration_ms,
			created_at
		)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9, $10, $11::jsonb, $12::jsonb, $13, $14)
		ON CONFLICT (id) DO NOTHING`

	_, err = r.db.ExecContext(
		ctx,
		query,
		report.ID,
		report.Key,
		report.FEN,
		moves,
		report.Lines,
		report.MaxElo,
		report.MoveTime.Milliseconds(),
		report.Engine,
		report.OpeningCode,
		report.OpeningTitle,
		evaluation,
		lines,
		report.Duration.Milliseconds(),
		report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis report: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Report, error) {
	const query = `
		SELECT
			id,
			cache_key,
			fen,
			moves,
			lines,
			max_elo,
			movetime_ms,
			engine,
			opening_code,
			opening_title,
			evaluation,
			top_lines,
			duration_ms,
			created_at
		FROM analysis_reports
		WHERE id = $1`

	var (
		report     Report
		moves      []byte
		evaluation []byte
		lines      []byte
		moveTimeMS int64
		durationMS int64
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&report.ID,
		&report.Key,
		&report.FEN,
		&moves,
		&report.Lines,
		&report.MaxElo,
		&moveTimeMS,
		&report.Engine,
		&report.OpeningCode,
		&report.OpeningTitle,
		&evaluation,
		&lines,
		&durationMS,
		&report.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select analysis report: %w", err)
	}

	if err := json.Unmarshal(moves, &report.Moves); err != nil {
		return nil, fmt.Errorf("unmarshal moves: %w", err)
	}
	if err := json.Unmarshal(evaluation, &report.Evaluation); err != nil {
		return nil, fmt.Errorf("unmarshal evaluation: %w", err)
	}
	if err := json.Unmarshal(lines, &report.TopLines); err != nil {
		return nil, fmt.Errorf("unmarshal top lines: %w", err)
	}
	report.MoveTime = time.Duration(moveTimeMS) * time.Millisecond
	report.Duration = time.Duration(durationMS) * time.Millisecond
	return &report, nil
}
