package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	// пинг чаще, чем истекает pongWait
	pingPeriod = pongWait * 9 / 10
	// от клиента ждем только control-фреймы
	maxInboundSize = 512
	sendQueueSize  = 64
)

// Client - одно соединение пользователя. Канал односторонний: сервер
// только доставляет уведомления, входящие сообщения отбрасываются.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint64
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uint64) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, sendQueueSize),
		UserID: userID,
	}
}

// ReadPump держит соединение живым и отцепляет клиента от хаба при разрыве.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.detach(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxInboundSize)
	extend := func(string) error { return c.Conn.SetReadDeadline(time.Now().Add(pongWait)) }
	_ = extend("")
	c.Conn.SetPongHandler(extend)

	for {
		if _, _, err := c.Conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Hub.logger.Warn("WebSocket закрыт с ошибкой", zap.Uint64("userID", c.UserID), zap.Error(err))
			}
			return
		}
	}
}

// WritePump отправляет очередь уведомлений и пинги. Закрытие Send - сигнал хаба на отключение.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
				return
			}
			if err := c.writeQueued(message); err != nil {
				c.Hub.logger.Debug("WebSocket: ошибка записи", zap.Uint64("userID", c.UserID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeQueued пишет первое сообщение и все, что успело накопиться, отдельными фреймами.
func (c *Client) writeQueued(first []byte) error {
	if err := c.Conn.WriteMessage(websocket.TextMessage, first); err != nil {
		return err
	}
	for pending := len(c.Send); pending > 0; pending-- {
		message, ok := <-c.Send
		if !ok {
			return nil
		}
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return err
		}
	}
	return nil
}
