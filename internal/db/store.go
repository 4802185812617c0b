package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cschnabel/mplog/internal/model"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

// RunRecord is one finished parse as handed to SaveRun.
type RunRecord struct {
	Source string
	Status model.RunStatus
	Stats  model.ParseStats
	Games  []model.Game
	Err    error
}

type IngestState struct {
	ByteSize int64
	RunID    string
	Found    bool
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func formatTS(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

func nullIfEmpty(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// SaveRun stores the run and every game document in one transaction and
// returns the new run id.
func (s *Store) SaveRun(ctx context.Context, run RunRecord) (string, error) {
	runID := uuid.NewString()

	errText := ""
	if run.Err != nil {
		errText = run.Err.Error()
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO parse_runs (
			id, source, status, games, lines_read, decode_failures, malformed_lobbies, error, started_at, completed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, run.Source, string(run.Status), len(run.Games),
		run.Stats.LinesRead, run.Stats.DecodeFailures, run.Stats.MalformedLobbies,
		nullIfEmpty(errText), formatTS(run.Stats.StartedAt), formatTS(run.Stats.CompletedAt), nowUTC())
	if err != nil {
		return "", fmt.Errorf("insert parse_runs: %w", err)
	}

	for _, g := range run.Games {
		if err := insertGame(ctx, tx, runID, g); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

func insertGame(ctx context.Context, tx *sql.Tx, runID string, g model.Game) error {
	doc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode game %d: %w", g.ID, err)
	}

	endedAt := ""
	if g.EndedAt != nil {
		endedAt = formatTS(*g.EndedAt)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO games (run_id, game_no, winner, log_owner, opponent, started_at, ended_at, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, g.ID, string(g.Winner), derefString(g.LogOwnerName), derefString(g.OpponentName),
		formatTS(g.StartedAt), nullIfEmpty(endedAt), string(doc))
	if err != nil {
		return fmt.Errorf("insert game %d: %w", g.ID, err)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context, limit int64) ([]model.RunRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, status, games, COALESCE(error, ''), started_at, completed_at
		FROM parse_runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]model.RunRow, 0, limit)
	for rows.Next() {
		var r model.RunRow
		var status string
		if err := rows.Scan(&r.ID, &r.Source, &status, &r.Games, &r.Error, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = model.RunStatus(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (model.RunDetail, error) {
	detail := model.RunDetail{Games: []model.GameRow{}}

	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, status, games, COALESCE(error, ''), started_at, completed_at
		FROM parse_runs
		WHERE id = ?
	`, runID).Scan(&detail.Run.ID, &detail.Run.Source, &status, &detail.Run.Games, &detail.Run.Error,
		&detail.Run.StartedAt, &detail.Run.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return detail, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return detail, fmt.Errorf("get run: %w", err)
	}
	detail.Run.Status = model.RunStatus(status)

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, game_no, winner, log_owner, opponent, started_at, COALESCE(ended_at, '')
		FROM games
		WHERE run_id = ?
		ORDER BY game_no
	`, runID)
	if err != nil {
		return detail, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var g model.GameRow
		if err := rows.Scan(&g.RunID, &g.GameNo, &g.Winner, &g.LogOwner, &g.Opponent, &g.StartedAt, &g.EndedAt); err != nil {
			return detail, fmt.Errorf("scan game: %w", err)
		}
		detail.Games = append(detail.Games, g)
	}
	if err := rows.Err(); err != nil {
		return detail, fmt.Errorf("iterate games: %w", err)
	}
	return detail, nil
}

func (s *Store) GetGame(ctx context.Context, runID string, gameNo int64) (model.Game, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `
		SELECT document
		FROM games
		WHERE run_id = ? AND game_no = ?
	`, runID, gameNo).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Game{}, fmt.Errorf("game %d of run %s: %w", gameNo, runID, ErrNotFound)
	}
	if err != nil {
		return model.Game{}, fmt.Errorf("get game: %w", err)
	}

	var g model.Game
	if err := json.Unmarshal([]byte(doc), &g); err != nil {
		return model.Game{}, fmt.Errorf("decode game document: %w", err)
	}
	return g, nil
}

// GetIngestState reports the file size recorded for logPath by the last watch parse.
func (s *Store) GetIngestState(ctx context.Context, logPath string) (IngestState, error) {
	state := IngestState{}
	err := s.db.QueryRowContext(ctx, `
		SELECT byte_size, run_id
		FROM ingest_state
		WHERE log_path = ?
	`, logPath).Scan(&state.ByteSize, &state.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("get ingest_state: %w", err)
	}
	state.Found = true
	return state, nil
}

func (s *Store) SaveIngestState(ctx context.Context, logPath string, byteSize int64, runID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_state (log_path, byte_size, run_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(log_path) DO UPDATE SET
			byte_size = excluded.byte_size,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at
	`, logPath, byteSize, runID, nowUTC())
	if err != nil {
		return fmt.Errorf("save ingest_state: %w", err)
	}
	return nil
}
