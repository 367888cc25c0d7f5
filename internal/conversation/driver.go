package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zhijianai/chatprobe/internal/zhiyan"
)

// ChatClient is the one backend call the driver needs. *zhiyan.Client
// satisfies it; tests substitute scripted stubs.
type ChatClient interface {
	Chat(ctx context.Context, req zhiyan.ChatRequest) (*zhiyan.ChatResponse, error)
}

// Driver runs sequential multi-turn conversations. One Driver is safe to
// share across goroutines; all per-conversation state lives in Run.
type Driver struct {
	client ChatClient
	delay  time.Duration
	logger *slog.Logger

	// OnTurn, when set, fires after each successful turn with the full
	// (untruncated) reply. Used by the CLI for verbose Q/A output.
	OnTurn func(conversationID, turn int, question, reply string)
}

func NewDriver(client ChatClient, delay time.Duration, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{client: client, delay: delay, logger: logger}
}

// Run executes one conversation to completion and always returns a Result;
// transport errors, bad payloads and validation failures become failure
// results, never a panic or an error return. The first failed turn ends the
// conversation — remaining questions are not attempted.
func (d *Driver) Run(ctx context.Context, id int, token string, product *zhiyan.Product, questions []string) Result {
	username := NewUsername()
	history := make([]zhiyan.Message, 0, 2*len(questions))
	turns := make([]TurnResult, 0, len(questions))
	start := time.Now()

	fail := func(reason string) Result {
		d.logger.Warn("conversation failed",
			"conversation", id,
			"username", username,
			"turn", len(turns)+1,
			"reason", reason,
		)
		return Result{
			ConversationID: id,
			Username:       username,
			Error:          reason,
			Duration:       time.Since(start).Seconds(),
			TotalMessages:  len(history),
			Turns:          turns,
		}
	}

	for i, question := range questions {
		history = append(history, zhiyan.Message{
			Role:      zhiyan.RoleUser,
			Content:   question,
			CreatedAt: time.Now().Unix(),
		})

		resp, err := d.client.Chat(ctx, zhiyan.ChatRequest{
			Token:    token,
			Username: username,
			Product:  product,
			History:  history,
		})
		if err != nil {
			return fail(err.Error())
		}

		if resp.Code != 200 {
			return fail(fmt.Sprintf("chat API returned code %d: %s", resp.Code, resp.Message))
		}
		if resp.Message != "success" {
			return fail(fmt.Sprintf("chat API returned message %q", resp.Message))
		}
		if len(resp.Data.AIActions) == 0 {
			return fail("assistant returned no actions")
		}
		reply := resp.Reply()
		if reply == "" {
			return fail("assistant reply was empty")
		}

		// One timestamp for every action produced by this turn.
		now := time.Now().Unix()
		for _, action := range resp.Data.AIActions {
			if action.ActionType == zhiyan.ActionSendMessage {
				history = append(history, zhiyan.Message{
					Role:      zhiyan.RoleAssistant,
					Content:   action.Payload.Content,
					CreatedAt: now,
				})
			}
		}

		turns = append(turns, TurnResult{Question: question, Reply: truncate(reply)})
		if d.OnTurn != nil {
			d.OnTurn(id, i+1, question, reply)
		}

		// The backend persists the reply asynchronously; give it room
		// before the next question.
		if i < len(questions)-1 {
			select {
			case <-ctx.Done():
				return fail(ctx.Err().Error())
			case <-time.After(d.delay):
			}
		}
	}

	return Result{
		ConversationID: id,
		Username:       username,
		Success:        true,
		Duration:       time.Since(start).Seconds(),
		TotalMessages:  len(history),
		Turns:          turns,
	}
}
