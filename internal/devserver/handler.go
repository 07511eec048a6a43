package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"marketlive/internal/domain/entity"
	"marketlive/internal/infrastructure/push"
	apperrors "marketlive/pkg/errors"
	"marketlive/pkg/logger"
	"marketlive/pkg/response"
)

// Handler serves the stub marketplace backend: message history, message
// posting, mark-read, the transactions list and the per-conversation push
// channel the engine connects to.
type Handler struct {
	store  *Store
	hub    *Hub
	secret []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dev server only
	},
}

func NewHandler(store *Store, hub *Hub, jwtSecret string) *Handler {
	h := &Handler{
		store:  store,
		hub:    hub,
		secret: []byte(jwtSecret),
	}
	hub.OnCommand(h.handleCommand)
	return h
}

type postMessageRequest struct {
	Body string `json:"body" validate:"required"`
}

// GetMessages returns a conversation's full history. Reads are open so the
// engine can browse without a session.
func (h *Handler) GetMessages(c echo.Context) error {
	return response.Success(c, h.store.Messages(c.Param("id")))
}

// PostMessage accepts a new message and echoes it to every push subscriber,
// the sender included; clients treat the push broadcast as the single source
// of feed ordering.
func (h *Handler) PostMessage(c echo.Context) error {
	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, apperrors.BadRequest("invalid payload", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}
	if strings.TrimSpace(req.Body) == "" {
		return response.Error(c, apperrors.BadRequest("message body is empty", nil))
	}

	userID, err := h.userFromRequest(c)
	if err != nil {
		return response.Error(c, err)
	}

	msg := entity.Message{
		ID:             uuid.New().String(),
		ConversationID: c.Param("id"),
		SenderID:       userID,
		Body:           strings.TrimSpace(req.Body),
		CreatedAt:      time.Now().UTC(),
	}
	h.store.AppendMessage(msg)
	h.hub.Broadcast(msg.ConversationID, messageFrame(msg))

	return response.Created(c, map[string]string{"status": "accepted"})
}

// MarkRead advances the caller's read watermark and broadcasts the receipt.
func (h *Handler) MarkRead(c echo.Context) error {
	userID, err := h.userFromRequest(c)
	if err != nil {
		return response.Error(c, err)
	}

	conversationID := c.Param("id")
	marked := h.store.MarkRead(conversationID, userID)
	h.hub.Broadcast(conversationID, receiptFrame(conversationID, marked))

	return response.Success(c, map[string]int{"marked": marked})
}

// ListTransactions returns one partition of the transactions list.
func (h *Handler) ListTransactions(c echo.Context) error {
	archived := c.QueryParam("archived") == "true"
	return response.Success(c, h.store.Transactions(archived))
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// DevToken mints a signed session token for local testing.
func (h *Handler) DevToken(c echo.Context) error {
	uid := c.QueryParam("uid")
	if uid == "" {
		uid = "dev-user"
	}

	claims := jwt.RegisteredClaims{
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return response.Error(c, apperrors.Internal("failed to sign token", err))
	}

	return response.Success(c, map[string]string{"uid": uid, "token": signed})
}

// HandleWebSocket upgrades the connection and registers the client as a push
// subscriber for one conversation.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	userID, err := h.userFromRequest(c)
	if err != nil {
		return response.Error(c, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return apperrors.Internal("failed to upgrade connection", err)
	}

	client := &Client{
		UserID:         userID,
		ConversationID: c.Param("id"),
		Conn:           conn,
		Send:           make(chan []byte, 256),
	}

	h.hub.Register(client)
	go client.ReadPump(h.hub)
	go client.WritePump()

	return nil
}

func (h *Handler) handleCommand(client *Client, frame []byte) {
	var cmd push.Command
	if err := json.Unmarshal(frame, &cmd); err != nil {
		logger.Warn("invalid push command from %s: %v", client.UserID, err)
		return
	}

	switch cmd.Type {
	case push.CommandMarkRead:
		conversationID := cmd.ConversationID
		if conversationID == "" {
			conversationID = client.ConversationID
		}
		marked := h.store.MarkRead(conversationID, client.UserID)
		h.hub.Broadcast(conversationID, receiptFrame(conversationID, marked))
	default:
		logger.Debug("unknown push command %q from %s", cmd.Type, client.UserID)
	}
}

func (h *Handler) userFromRequest(c echo.Context) (string, error) {
	tokenStr := ""
	if authHeader := c.Request().Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", apperrors.Unauthorized("invalid authorization format", nil)
		}
		tokenStr = parts[1]
	} else if q := c.QueryParam("token"); q != "" {
		tokenStr = q
	}
	if tokenStr == "" {
		return "", apperrors.AuthRequired("authentication required", nil)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return h.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", apperrors.AuthRequired("invalid or expired token", err)
	}
	return claims.Subject, nil
}

func messageFrame(msg entity.Message) map[string]interface{} {
	return map[string]interface{}{
		"type":            push.TypeMessage,
		"id":              msg.ID,
		"conversation_id": msg.ConversationID,
		"sender_id":       msg.SenderID,
		"body":            msg.Body,
		"created_at":      msg.CreatedAt.Format(time.RFC3339),
	}
}

func receiptFrame(conversationID string, marked int) map[string]interface{} {
	return map[string]interface{}{
		"type":            push.TypeReadReceipt,
		"conversation_id": conversationID,
		"marked":          marked,
	}
}
