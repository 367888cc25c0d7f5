// Package harness fans out concurrent conversations and aggregates their
// results.
package harness

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zhijianai/chatprobe/internal/conversation"
	"github.com/zhijianai/chatprobe/internal/zhiyan"
)

// Options configures one harness run. Token, Product and Questions are
// shared read-only across every conversation.
type Options struct {
	Count     int
	Token     string
	Product   *zhiyan.Product
	Questions []string

	// OnResult, when set, fires as each conversation completes, in
	// completion order.
	OnResult func(conversation.Result)
}

// Summary aggregates a completed run. Results are in completion order, not
// conversation-id order.
type Summary struct {
	Total     int                   `json:"total"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	Duration  float64               `json:"duration"`
	Results   []conversation.Result `json:"results"`
}

// Failures returns the failed conversations, in completion order.
func (s Summary) Failures() []conversation.Result {
	var out []conversation.Result
	for _, r := range s.Results {
		if !r.Success {
			out = append(out, r)
		}
	}
	return out
}

type Harness struct {
	driver *conversation.Driver
	logger *slog.Logger
}

func New(driver *conversation.Driver, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{driver: driver, logger: logger}
}

// Run starts Options.Count conversations at once, one goroutine each, and
// blocks until every one has finished or failed. A failed conversation never
// fails the run; callers inspect the Summary and decide.
func (h *Harness) Run(ctx context.Context, opts Options) Summary {
	start := time.Now()
	results := make(chan conversation.Result, opts.Count)

	var wg sync.WaitGroup
	for id := 0; id < opts.Count; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			results <- h.driver.Run(ctx, id, opts.Token, opts.Product, opts.Questions)
		}(id)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	summary := Summary{Total: opts.Count}
	for r := range results {
		if r.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		summary.Results = append(summary.Results, r)
		if opts.OnResult != nil {
			opts.OnResult(r)
		}
	}
	summary.Duration = time.Since(start).Seconds()

	h.logger.Info("harness run finished",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"duration_s", summary.Duration,
	)
	return summary
}
