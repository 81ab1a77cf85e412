// Package server is the reference refinery backend: conversations are
// persisted in a store and every user message is refined by an LLM.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v5"
	"go.uber.org/zap"

	"refinery/internal/refine"
	"refinery/internal/store"
)

// UserHeader carries the opaque user identity.
const UserHeader = "X-User-ID"

// chatListLimit caps GET /chats.
const chatListLimit = 20

// Config configures a Server.
type Config struct {
	Store             store.Store
	Refiner           refine.Refiner
	UserRatePerMinute int // 0 disables limiting
	Logger            *zap.Logger
}

// Server serves the chat API.
type Server struct {
	store   store.Store
	refiner refine.Refiner
	limiter *userLimiter
	log     *zap.Logger
	echo    *echo.Echo
}

func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		store:   cfg.Store,
		refiner: cfg.Refiner,
		limiter: newUserLimiter(cfg.UserRatePerMinute),
		log:     log,
		echo:    echo.New(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo
	e.IPExtractor = echo.ExtractIPDirect()
	e.Use(accessLog(s.log))

	e.GET("/", s.health)
	e.POST("/chat", s.createChat, s.rateLimit)
	e.GET("/chat/:id", s.chatHistory)
	e.POST("/chat/:id/message", s.continueChat, s.rateLimit)
	e.GET("/chats", s.listChats)
}

// Handler returns the API.
func (s *Server) Handler() http.Handler {
	return s.echo
}

type contentRequest struct {
	Content string `json:"content"`
}

type refineResponse struct {
	ChatID          string `json:"chat_id"`
	OptimizedPrompt string `json:"optimized_prompt"`
}

type messageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type chatResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) health(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Prompt Refinery backend is running",
	})
}

func (s *Server) createChat(c *echo.Context) error {
	user := userID(c)
	if user == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": UserHeader + " header required"})
	}
	content, ok := bindContent(c)
	if !ok {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "content required"})
	}
	ctx := c.Request().Context()

	refined, err := s.refiner.Refine(ctx, content, nil)
	if err != nil {
		s.log.Warn("refine failed", zap.String("user", user), zap.Error(err))
		return c.JSON(http.StatusBadRequest, map[string]any{"error": refineError(err), "chat_id": nil})
	}

	chat, err := s.store.CreateChat(ctx, user)
	if err != nil {
		return s.internalError(c, err)
	}
	if err := s.saveTurn(c, chat.ID, content, refined); err != nil {
		return s.internalError(c, err)
	}

	s.log.Info("chat created", zap.String("chat_id", chat.ID), zap.String("user", user))
	return c.JSON(http.StatusOK, refineResponse{ChatID: chat.ID, OptimizedPrompt: refined})
}

func (s *Server) continueChat(c *echo.Context) error {
	id := c.Param("id")
	content, ok := bindContent(c)
	if !ok {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "content required"})
	}
	ctx := c.Request().Context()

	if _, err := s.store.GetChat(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "chat not found"})
		}
		return s.internalError(c, err)
	}

	prior, err := s.store.Messages(ctx, id)
	if err != nil {
		return s.internalError(c, err)
	}
	history := make([]refine.Turn, 0, len(prior)+1)
	for _, m := range prior {
		history = append(history, refine.Turn{Role: m.Role, Content: m.Content})
	}
	history = append(history, refine.Turn{Role: "user", Content: content})

	refined, err := s.refiner.Refine(ctx, content, history)
	if err != nil {
		s.log.Warn("refine failed", zap.String("chat_id", id), zap.Error(err))
		return c.JSON(http.StatusBadRequest, map[string]string{"error": refineError(err)})
	}
	if err := s.saveTurn(c, id, content, refined); err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, refineResponse{ChatID: id, OptimizedPrompt: refined})
}

func (s *Server) chatHistory(c *echo.Context) error {
	msgs, err := s.store.Messages(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.internalError(c, err)
	}
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse{
			ID:        strconv.FormatInt(m.ID, 10),
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": out})
}

func (s *Server) listChats(c *echo.Context) error {
	user := userID(c)
	if user == "" {
		return c.JSON(http.StatusOK, map[string]any{"chats": []chatResponse{}})
	}
	chats, err := s.store.ListChats(c.Request().Context(), user, chatListLimit)
	if err != nil {
		return s.internalError(c, err)
	}
	out := make([]chatResponse, 0, len(chats))
	for _, ch := range chats {
		out = append(out, chatResponse{
			ID:        ch.ID,
			Title:     ch.Title,
			CreatedAt: ch.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"chats": out})
}

func (s *Server) saveTurn(c *echo.Context, chatID, content, refined string) error {
	ctx := c.Request().Context()
	if _, err := s.store.AddMessage(ctx, chatID, "user", content); err != nil {
		return fmt.Errorf("save user message: %w", err)
	}
	if _, err := s.store.AddMessage(ctx, chatID, "assistant", refined); err != nil {
		return fmt.Errorf("save assistant message: %w", err)
	}
	return nil
}

// internalError answers unexpected failures the way every client expects:
// a detail message with a boolean error flag.
func (s *Server) internalError(c *echo.Context, err error) error {
	s.log.Error("request failed", zap.String("path", c.Request().URL.Path), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]any{"detail": err.Error(), "error": true})
}

func userID(c *echo.Context) string {
	return strings.TrimSpace(c.Request().Header.Get(UserHeader))
}

func bindContent(c *echo.Context) (string, bool) {
	var req contentRequest
	if err := c.Bind(&req); err != nil {
		return "", false
	}
	content := strings.TrimSpace(req.Content)
	return content, content != ""
}

func refineError(err error) string {
	if errors.Is(err, refine.ErrNotConfigured) {
		return "Error: " + err.Error()
	}
	return "Error generating optimized prompt: " + err.Error()
}
