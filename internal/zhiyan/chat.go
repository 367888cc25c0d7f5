package zhiyan

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role values used in the chat message history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ActionSendMessage is the only action type that carries user-visible text.
const ActionSendMessage = "sendMessage"

// Message is one entry in a conversation history, in backend wire format.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// ChatRequest is one conversational turn. History must already contain the
// current question as its last user message; the server also reconstructs
// context from Username on its own.
type ChatRequest struct {
	Token    string
	Username string
	Product  *Product
	History  []Message
}

type chatBody struct {
	Platform       string    `json:"platform"`
	ShopName       string    `json:"shop_name"`
	Account        string    `json:"account"`
	Username       string    `json:"username"`
	ShopID         string    `json:"shop_id"`
	IsTest         bool      `json:"is_test"`
	LastOrderTime  int64     `json:"last_order_time"`
	LastOrderInfo  any       `json:"last_order_info"`
	RequestID      string    `json:"request_id"`
	InquiryProduct any       `json:"inquiry_product"`
	Messages       []Message `json:"messages"`
}

// AIAction is one discrete item in the assistant's reply.
type AIAction struct {
	ActionType string `json:"actionType"`
	Payload    struct {
		Content string `json:"content"`
	} `json:"payload"`
}

// ChatResponse is the backend's answer to one turn.
type ChatResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		AIActions []AIAction `json:"ai_actions"`
	} `json:"data"`
}

// Reply concatenates the content of every sendMessage action, in original
// order, joined by a blank line. Returns "" when no sendMessage action
// exists; callers decide whether that is a failure.
func (r *ChatResponse) Reply() string {
	var parts []string
	for _, a := range r.Data.AIActions {
		if a.ActionType == ActionSendMessage {
			parts = append(parts, a.Payload.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Chat issues one conversational turn against /chat/answer.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body := chatBody{
		Platform:       c.shop.Platform,
		ShopName:       c.shop.Name,
		Account:        c.shop.Account,
		Username:       req.Username,
		ShopID:         c.shop.ID,
		IsTest:         true,
		LastOrderTime:  time.Now().Unix(),
		RequestID:      uuid.NewString(),
		InquiryProduct: map[string]any{},
		Messages:       req.History,
	}
	if req.Product != nil {
		body.InquiryProduct = req.Product
	}

	var resp ChatResponse
	if err := c.postJSON(ctx, "/chat/answer", req.Token, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
