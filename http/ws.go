package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cytodash/dashboard"
	"cytodash/ml"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = wsPongWait * 9 / 10
	wsMaxMessage   = 64 << 10
	wsSendCapacity = 16
)

// Message types exchanged on /api/ws.
const (
	MessageEvaluate   = "evaluate"
	MessageEvaluation = "evaluation"
	MessagePing       = "ping"
	MessagePong       = "pong"
	MessageError      = "error"
)

// ClientMessage is sent by the page on every slider change.
type ClientMessage struct {
	Type     string           `json:"type"`
	ID       string           `json:"id,omitempty"`
	Features ml.FeatureRecord `json:"features,omitempty"`
}

// ServerMessage answers a ClientMessage with the same ID.
type ServerMessage struct {
	Type      string                `json:"type"`
	ID        string                `json:"id,omitempty"`
	Data      *dashboard.Evaluation `json:"data,omitempty"`
	Error     string                `json:"error,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsClient WebSocket客户端
type wsClient struct {
	conn     *websocket.Conn
	send     chan ServerMessage
	clientID string
	manager  *dashboard.Manager
	logger   *zap.Logger
}

func (h *handlers) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		conn:     conn,
		send:     make(chan ServerMessage, wsSendCapacity),
		clientID: uuid.NewString(),
		manager:  h.manager,
		logger:   h.logger,
	}
	client.logger.Debug("websocket client connected", zap.String("client_id", client.clientID))

	ctx, cancel := context.WithCancel(context.Background())
	go client.writePump(ctx)
	client.readPump(ctx)
	cancel()
}

// readPump WebSocket读取泵
func (c *wsClient) readPump(ctx context.Context) {
	defer func() {
		close(c.send)
		c.logger.Debug("websocket client disconnected", zap.String("client_id", c.clientID))
	}()

	c.conn.SetReadLimit(wsMaxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.reply(ServerMessage{Type: MessageError, Error: "invalid message: " + err.Error()})
			continue
		}
		c.reply(c.handleClientMessage(ctx, msg))
	}
}

func (c *wsClient) handleClientMessage(ctx context.Context, msg ClientMessage) ServerMessage {
	switch msg.Type {
	case MessagePing:
		return ServerMessage{Type: MessagePong, ID: msg.ID}
	case MessageEvaluate:
		result, err := c.manager.Evaluate(ctx, msg.Features)
		if err != nil {
			return ServerMessage{Type: MessageError, ID: msg.ID, Error: err.Error()}
		}
		return ServerMessage{Type: MessageEvaluation, ID: msg.ID, Data: result}
	default:
		return ServerMessage{Type: MessageError, ID: msg.ID, Error: "unknown message type " + msg.Type}
	}
}

func (c *wsClient) reply(msg ServerMessage) {
	msg.Timestamp = time.Now()
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("websocket send queue full, dropping reply", zap.String("client_id", c.clientID))
	}
}

// writePump WebSocket写入泵
func (c *wsClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
