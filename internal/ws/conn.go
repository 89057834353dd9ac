package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"messenger/internal/metrics"
	"messenger/internal/queue"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// MaxNicknameLen matches the user_id column size of the log tables.
const MaxNicknameLen = 128

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Opener admits a session and prepares its inbound queue.
type Opener interface {
	Open(ctx context.Context, nickname string) (*Session, *queue.Receiver, error)
}

type Client struct {
	conn    *websocket.Conn
	rx      *queue.Receiver
	session *Session
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve handles GET /ws?nickname=N. Registration happens before the
// upgrade so a duplicate nickname is refused with 409.
func Serve(o Opener) gin.HandlerFunc {
	return func(c *gin.Context) {
		nickname := strings.TrimSpace(c.Query("nickname"))
		if nickname == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing nickname"})
			return
		}
		if len(nickname) > MaxNicknameLen {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid nickname"})
			return
		}

		session, rx, err := o.Open(c.Request.Context(), nickname)
		if err != nil {
			if errors.Is(err, ErrAlreadyActive) {
				c.JSON(http.StatusConflict, gin.H{"error": "the user " + nickname + " is already logged in"})
				return
			}
			log.Error().Err(err).Str("nickname", nickname).Msg("open inbound stream")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve message history"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			rx.Close()
			return
		}
		metrics.WsStreams.Inc()
		defer metrics.WsStreams.Dec()
		log.Info().Str("nickname", nickname).Str("session_id", session.ID).Msg("inbound stream open")

		client := &Client{conn: conn, rx: rx, session: session}
		go client.writePump()
		client.readPump()
		log.Info().Str("nickname", nickname).Str("session_id", session.ID).Msg("inbound stream closed")
	}
}

// readPump only watches for the peer going away. Dropping the receiver
// is all the cleanup there is; the registry notices on the next Register.
func (c *Client) readPump() {
	defer func() {
		c.rx.Close()
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(4 << 10)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.rx.Close()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.rx.Ready():
			for _, m := range c.rx.Drain() {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteJSON(m); err != nil {
					log.Warn().Err(err).Str("nickname", c.session.Nickname).Msg("write inbound message")
					return
				}
			}
		case <-c.rx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
