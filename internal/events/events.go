// Package events publishes run outcomes to NATS so downstream monitors can
// react to chat regressions without polling the report store.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectRunCompleted carries a RunCompletedEvent after every harness run.
const SubjectRunCompleted = "zhiyan.chatprobe.run.completed"

// ConversationFailure is one failed conversation inside a run event.
type ConversationFailure struct {
	ConversationID int    `json:"conversation_id"`
	Username       string `json:"username"`
	Error          string `json:"error"`
}

// RunCompletedEvent is the aggregate outcome of one harness run.
type RunCompletedEvent struct {
	RunID      string                `json:"run_id,omitempty"`
	ShopID     string                `json:"shop_id"`
	Total      int                   `json:"total"`
	Succeeded  int                   `json:"succeeded"`
	Failed     int                   `json:"failed"`
	Duration   float64               `json:"duration_s"`
	Questions  int                   `json:"questions"`
	FinishedAt time.Time             `json:"finished_at"`
	Failures   []ConversationFailure `json:"failures,omitempty"`
}

type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewClient(url, token string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Client{conn: nc, logger: logger}, nil
}

// PublishRunCompleted emits the run summary and flushes before returning, so
// a CLI process can exit immediately afterwards.
func (c *Client) PublishRunCompleted(ev RunCompletedEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.conn.Publish(SubjectRunCompleted, payload); err != nil {
		return fmt.Errorf("publish %s: %w", SubjectRunCompleted, err)
	}
	if err := c.conn.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	c.logger.Info("run event published", "subject", SubjectRunCompleted, "failed", ev.Failed)
	return nil
}

func (c *Client) Close() {
	c.conn.Close()
}
