package server

import (
	"errors"
	"net/http"
	"strings"

	"messenger/internal/models"
	"messenger/internal/service"
	"messenger/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	broker *service.Broker
}

func NewHandler(broker *service.Broker) *Handler {
	return &Handler{broker: broker}
}

func validNickname(n string) bool {
	return n != "" && len(n) <= ws.MaxNicknameLen
}

// Send 处理私信发送请求。
func (h *Handler) Send(c *gin.Context) {
	var req models.Message
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Sender = strings.TrimSpace(req.Sender)
	req.Recipient = strings.TrimSpace(req.Recipient)
	if !validNickname(req.Sender) || !validNickname(req.Recipient) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sender or recipient"})
		return
	}
	if req.DeleteTimestamp < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid delete_timestamp"})
		return
	}

	err := h.broker.Send(c.Request.Context(), req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, service.ErrRecipientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, service.ErrInvalidMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
	case errors.Is(err, service.ErrDeliveryFailed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deliver message"})
	case errors.Is(err, service.ErrPersistenceFailed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
	default:
		log.Error().Err(err).Str("recipient", req.Recipient).Msg("send")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "send failed"})
	}
}

// History 返回用户的历史消息。
func (h *Handler) History(c *gin.Context) {
	nickname := strings.TrimSpace(c.Param("nickname"))
	if !validNickname(nickname) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid nickname"})
		return
	}
	msgs, err := h.broker.History(c.Request.Context(), nickname)
	if err != nil {
		log.Error().Err(err).Str("nickname", nickname).Msg("history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve message history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) Presence(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": h.broker.Online(), "durable": h.broker.Durable()})
}
