// Package stub is a scriptable in-process stand-in for the zhiyan backend.
// It backs `chatprobe stub` for local dry runs and gives the harness tests a
// deterministic endpoint with failure injection.
package stub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const defaultToken = "stub-access-token"

// Options controls the stub's scripted behavior. The zero value serves a
// healthy backend that answers every turn.
type Options struct {
	// Token is the accessToken issued by login and required on chat and
	// product calls. Defaults to a fixed stub token.
	Token string

	// ReplyActions is the number of sendMessage actions per reply
	// (default 1). Each reply echoes the caller's username and turn so
	// tests can check conversation isolation.
	ReplyActions int

	// Latency delays every chat reply.
	Latency time.Duration

	// FailConversations injects failures: the first N distinct usernames
	// to reach the chat endpoint fail at turn FailTurn (default 1).
	FailConversations int
	FailTurn          int

	// FailEmptyActions makes injected failures return a 200/success
	// envelope with an empty action list instead of an error code.
	FailEmptyActions bool

	Logger *slog.Logger
}

// Server holds the stub's mutable state: per-username turn counts and call
// counters for test instrumentation.
type Server struct {
	opts Options

	mu        sync.Mutex
	chatCalls int
	userOrder map[string]int
	userTurns map[string]int
}

func New(opts Options) *Server {
	if opts.Token == "" {
		opts.Token = defaultToken
	}
	if opts.ReplyActions < 1 {
		opts.ReplyActions = 1
	}
	if opts.FailTurn < 1 {
		opts.FailTurn = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		opts:      opts,
		userOrder: make(map[string]int),
		userTurns: make(map[string]int),
	}
}

// Handler returns the stub's HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/api/auth/login", s.login)
	r.Get("/api/products/", s.products)
	r.Post("/chat/answer", s.chat)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	return r
}

// ChatCalls reports how many chat requests the stub has served.
func (s *Server) ChatCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatCalls
}

// Usernames returns the distinct usernames seen, in first-contact order.
func (s *Server) Usernames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.userOrder))
	for name, idx := range s.userOrder {
		out[idx] = name
	}
	return out
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account  string `json:"account"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, envelope(400, "请求格式错误", nil))
		return
	}
	if req.Account == "" || req.Password == "" {
		writeJSON(w, envelope(401, "账号或密码错误", nil))
		return
	}
	writeJSON(w, envelope(200, "登录成功", map[string]any{
		"accessToken": s.opts.Token,
		"expiresIn":   7200,
	}))
}

func (s *Server) products(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, envelope(401, "未登录", nil))
		return
	}
	items := []map[string]any{
		{"product_id": 880001, "product_title": "氨基酸温和洗面奶 100g"},
		{"product_id": 880002, "product_title": "玻尿酸保湿爽肤水 120ml"},
		{"product_id": 880003, "product_title": "烟酰胺美白精华 30ml"},
	}
	writeJSON(w, map[string]any{
		"code":    200,
		"message": "success",
		"result":  map[string]any{"total": len(items), "data": items},
	})
}

type chatRequest struct {
	Username string `json:"username"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, envelope(401, "未登录", nil))
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeJSON(w, envelope(400, "请求格式错误", nil))
		return
	}

	s.mu.Lock()
	s.chatCalls++
	idx, seen := s.userOrder[req.Username]
	if !seen {
		idx = len(s.userOrder)
		s.userOrder[req.Username] = idx
	}
	s.userTurns[req.Username]++
	turn := s.userTurns[req.Username]
	s.mu.Unlock()

	if s.opts.Latency > 0 {
		time.Sleep(s.opts.Latency)
	}

	if idx < s.opts.FailConversations && turn == s.opts.FailTurn {
		s.opts.Logger.Debug("stub injecting failure", "username", req.Username, "turn", turn)
		if s.opts.FailEmptyActions {
			writeJSON(w, map[string]any{
				"code":    200,
				"message": "success",
				"data":    map[string]any{"ai_actions": []any{}},
			})
			return
		}
		writeJSON(w, envelope(500, "internal error (injected)", nil))
		return
	}

	question := ""
	if n := len(req.Messages); n > 0 {
		question = req.Messages[n-1].Content
	}

	actions := make([]map[string]any, 0, s.opts.ReplyActions)
	for i := 0; i < s.opts.ReplyActions; i++ {
		text := fmt.Sprintf("[%s] turn %d reply %d: 亲亲，关于“%s”我来为您解答~", req.Username, turn, i+1, question)
		actions = append(actions, map[string]any{
			"actionType": "sendMessage",
			"payload":    map[string]any{"content": text},
		})
	}

	writeJSON(w, map[string]any{
		"code":    200,
		"message": "success",
		"data":    map[string]any{"ai_actions": actions},
	})
}

func (s *Server) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+s.opts.Token
}

func envelope(code int, message string, data any) map[string]any {
	out := map[string]any{"code": code, "message": message}
	if data != nil {
		out["data"] = data
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
