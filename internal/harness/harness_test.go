package harness

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhijianai/chatprobe/internal/conversation"
	"github.com/zhijianai/chatprobe/internal/zhiyan"
)

// fakeBackend simulates the chat endpoint. Behavior is keyed by the order in
// which usernames first appear, which is stable per conversation regardless
// of scheduling.
type fakeBackend struct {
	mu        sync.Mutex
	userIndex map[string]int

	inFlight    atomic.Int64
	maxInFlight atomic.Int64

	latency  func(userIdx int) time.Duration
	failUser func(userIdx, turn int) bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{userIndex: make(map[string]int)}
}

func (f *fakeBackend) indexFor(username string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, ok := f.userIndex[username]
	if !ok {
		idx = len(f.userIndex)
		f.userIndex[username] = idx
	}
	return idx
}

func (f *fakeBackend) Chat(ctx context.Context, req zhiyan.ChatRequest) (*zhiyan.ChatResponse, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if cur <= max || f.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}

	idx := f.indexFor(req.Username)
	turn := (len(req.History) + 1) / 2

	if f.latency != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.latency(idx)):
		}
	}

	if f.failUser != nil && f.failUser(idx, turn) {
		return &zhiyan.ChatResponse{Code: 500, Message: "injected failure"}, nil
	}

	resp := &zhiyan.ChatResponse{Code: 200, Message: "success"}
	a := zhiyan.AIAction{ActionType: zhiyan.ActionSendMessage}
	a.Payload.Content = fmt.Sprintf("reply for %s turn %d", req.Username, turn)
	resp.Data.AIActions = []zhiyan.AIAction{a}
	return resp, nil
}

func newHarness(backend *fakeBackend, delay time.Duration) *Harness {
	return New(conversation.NewDriver(backend, delay, nil), nil)
}

func TestRun_AllSucceed(t *testing.T) {
	backend := newFakeBackend()
	h := newHarness(backend, time.Millisecond)

	summary := h.Run(context.Background(), Options{
		Count:     5,
		Token:     "tok",
		Questions: []string{"q1", "q2"},
	})

	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 5, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Results, 5)
	assert.Empty(t, summary.Failures())

	// Every conversation id 0..4 present exactly once.
	seen := make(map[int]bool)
	for _, r := range summary.Results {
		seen[r.ConversationID] = true
		assert.Equal(t, 4, r.TotalMessages)
	}
	assert.Len(t, seen, 5)
}

func TestRun_AggregatesInjectedFailures(t *testing.T) {
	backend := newFakeBackend()
	// The first two conversations to reach the backend fail at turn 1.
	backend.failUser = func(userIdx, turn int) bool {
		return userIdx < 2 && turn == 1
	}
	h := newHarness(backend, time.Millisecond)

	summary := h.Run(context.Background(), Options{
		Count:     5,
		Token:     "tok",
		Questions: []string{"q1", "q2"},
	})

	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)

	failures := summary.Failures()
	require.Len(t, failures, 2)
	for _, r := range failures {
		assert.Contains(t, r.Error, "injected failure")
		assert.Empty(t, r.Turns)
	}
}

func TestRun_ConversationsAreIsolated(t *testing.T) {
	backend := newFakeBackend()
	h := newHarness(backend, time.Millisecond)

	summary := h.Run(context.Background(), Options{
		Count:     5,
		Token:     "tok",
		Questions: []string{"q1", "q2", "q3"},
	})

	require.Equal(t, 5, summary.Succeeded)

	usernames := make(map[string]bool)
	for _, r := range summary.Results {
		usernames[r.Username] = true
		// Replies echo the username they were produced for; no reply
		// from another conversation may leak in.
		for _, turn := range r.Turns {
			assert.Contains(t, turn.Reply, r.Username)
		}
	}
	assert.Len(t, usernames, 5, "each conversation gets its own username")
}

func TestRun_TrulyConcurrent(t *testing.T) {
	backend := newFakeBackend()
	backend.latency = func(int) time.Duration { return 50 * time.Millisecond }
	h := newHarness(backend, 0)

	summary := h.Run(context.Background(), Options{
		Count:     4,
		Token:     "tok",
		Questions: []string{"q1"},
	})

	require.Equal(t, 4, summary.Succeeded)
	assert.Equal(t, int64(4), backend.maxInFlight.Load(),
		"all conversations should be in flight at once")
}

func TestRun_ResultsArriveInCompletionOrder(t *testing.T) {
	backend := newFakeBackend()
	backend.latency = func(userIdx int) time.Duration {
		if userIdx == 0 {
			return 150 * time.Millisecond
		}
		return time.Millisecond
	}
	h := newHarness(backend, 0)

	var order []string
	summary := h.Run(context.Background(), Options{
		Count:     4,
		Token:     "tok",
		Questions: []string{"q1"},
		OnResult: func(r conversation.Result) {
			order = append(order, r.Username)
		},
	})

	require.Equal(t, 4, summary.Succeeded)
	require.Len(t, order, 4)

	// The slow conversation is the first username the backend saw but the
	// last to complete.
	var slow string
	for name, idx := range backend.userIndex {
		if idx == 0 {
			slow = name
		}
	}
	assert.Equal(t, slow, order[len(order)-1])

	// OnResult order matches Summary.Results order.
	for i, r := range summary.Results {
		assert.Equal(t, order[i], r.Username)
	}
}

func TestRun_CancellationStopsConversations(t *testing.T) {
	backend := newFakeBackend()
	backend.latency = func(int) time.Duration { return 10 * time.Millisecond }
	h := newHarness(backend, time.Hour) // inter-turn delay would block forever

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	done := make(chan Summary, 1)
	go func() {
		done <- h.Run(ctx, Options{Count: 3, Token: "tok", Questions: []string{"q1", "q2"}})
	}()

	select {
	case summary := <-done:
		assert.Equal(t, 3, summary.Failed)
	case <-time.After(5 * time.Second):
		t.Fatal("harness did not unblock after cancellation")
	}
}
