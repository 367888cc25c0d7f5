package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zhijianai/chatprobe/internal/harness"
)

// RunRecord is one persisted harness run.
type RunRecord struct {
	ID        uuid.UUID
	ShopID    string
	Total     int
	Succeeded int
	Failed    int
	Duration  float64
	CreatedAt time.Time
}

// WriteRun writes a run summary and its per-conversation results.
// Tables: chat_runs, chat_run_conversations.
func (s *Store) WriteRun(ctx context.Context, shopID string, summary harness.Summary) (uuid.UUID, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	runID := uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO chat_runs (id, shop_id, total, succeeded, failed, duration_s, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		runID, shopID, summary.Total, summary.Succeeded, summary.Failed, summary.Duration,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}

	for _, r := range summary.Results {
		turns, err := json.Marshal(r.Turns)
		if err != nil {
			return uuid.Nil, fmt.Errorf("marshal turns: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO chat_run_conversations
				(id, run_id, conversation_id, username, success, error, duration_s, total_messages, turns)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.New(), runID, r.ConversationID, r.Username, r.Success, r.Error, r.Duration, r.TotalMessages, turns,
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert conversation %d: %w", r.ConversationID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// RecentRuns returns the newest runs, most recent first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, shop_id, total, succeeded, failed, duration_s, created_at
		FROM chat_runs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.ShopID, &rec.Total, &rec.Succeeded, &rec.Failed, &rec.Duration, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
