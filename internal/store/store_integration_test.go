//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/zhijianai/chatprobe/internal/conversation"
	"github.com/zhijianai/chatprobe/internal/harness"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestIntegration_WriteAndListRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	summary := harness.Summary{
		Total:     2,
		Succeeded: 1,
		Failed:    1,
		Duration:  3.5,
		Results: []conversation.Result{
			{ConversationID: 0, Username: "tb_it_1", Success: true, Duration: 1.1, TotalMessages: 4,
				Turns: []conversation.TurnResult{{Question: "q1", Reply: "a1"}, {Question: "q2", Reply: "a2"}}},
			{ConversationID: 1, Username: "tb_it_2", Duration: 0.4,
				Error: "chat API returned code 500: boom"},
		},
	}

	runID, err := s.WriteRun(ctx, "585", summary)
	if err != nil {
		t.Fatalf("WriteRun failed: %v", err)
	}
	if runID == uuid.Nil {
		t.Fatal("expected non-nil run ID")
	}

	runs, err := s.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	found := false
	for _, r := range runs {
		if r.ID == runID {
			found = true
			if r.Total != 2 || r.Succeeded != 1 || r.Failed != 1 {
				t.Errorf("unexpected counts on persisted run: %+v", r)
			}
		}
	}
	if !found {
		t.Errorf("run %s not in recent runs", runID)
	}
}
