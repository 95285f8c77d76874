// Package hub 维护 WebSocket 同步连接的注册表、连接记录和心跳检查。
// 文档语义不在这里: hub 只负责连接的生命周期，消息内容交给上层的同步引擎。
package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量，供 hub 包内使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	// 同步消息可能是完整的文档快照，大画布会到数 MB。
	maxMessageSize = 4 << 20

	// DefaultHeartbeatInterval 是心跳检查周期的缺省值。
	DefaultHeartbeatInterval = 30 * time.Second
)

// Client 是一条 WebSocket 同步连接的完整记录。
// 连接的归属 (画布、用户) 和存活标记都集中在这里，不散落在裸连接上。
type Client struct {
	id       string          // 连接自身的唯一标识，用于日志排查
	conn     *websocket.Conn // WebSocket 连接
	canvasID string          // 连接加入的画布 ID
	userID   string          // 已认证用户 ID，匿名连接为空
	userName string          // 客户端自报的显示名
	joinedAt time.Time

	alive atomic.Bool   // 心跳标记: 收到 pong 置真，发出探测前置假
	send  chan []byte   // 待发送给此客户端的消息
	ping  chan struct{} // 心跳探测请求，由 WritePump 统一写出
	done  chan struct{}

	closeOnce sync.Once

	pongWait time.Duration // 等待 pong 的最长时间，超过即判定连接死亡
}

// NewClient 创建一条连接记录。
// pongWait 应设为两个心跳周期，保证慢客户端有完整的宽限期。
func NewClient(conn *websocket.Conn, canvasID, userID, userName string, pongWait time.Duration) *Client {
	if pongWait <= 0 {
		pongWait = 2 * DefaultHeartbeatInterval
	}
	c := &Client{
		id:       uuid.NewString(),
		conn:     conn,
		canvasID: canvasID,
		userID:   userID,
		userName: userName,
		joinedAt: time.Now(),
		send:     make(chan []byte, 256),
		ping:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		pongWait: pongWait,
	}
	c.alive.Store(true) // 刚建立的连接视为存活
	return c
}

func (c *Client) ID() string          { return c.id }
func (c *Client) CanvasID() string    { return c.canvasID }
func (c *Client) UserID() string      { return c.userID }
func (c *Client) UserName() string    { return c.userName }
func (c *Client) JoinedAt() time.Time { return c.joinedAt }

// Alive 报告连接自上一次探测以来是否有过心跳响应。
func (c *Client) Alive() bool { return c.alive.Load() }

// MarkAlive 在收到 pong 时调用。
func (c *Client) MarkAlive() { c.alive.Store(true) }

// MarkDead 在发出探测前调用，下一个 pong 会重新置真。
func (c *Client) MarkDead() { c.alive.Store(false) }

// RequestPing 请求 WritePump 发送一帧 ping。
// 连接的所有写操作都必须经过 WritePump，心跳检查不能直接写连接。
func (c *Client) RequestPing() {
	select {
	case c.ping <- struct{}{}:
	default:
		// 上一次探测还没写出去，不重复排队
	}
}

// Send 将消息排入发送队列。队列满时丢弃消息并返回 false，绝不阻塞调用方。
func (c *Client) Send(message []byte) bool {
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// Close 终止连接，对同一连接重复调用是安全的。
// 底层连接关闭后 ReadPump 随之退出，并在退出路径里完成注销清理。
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) logCtx() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"conn_id":   c.id,
		"canvas_id": c.canvasID,
		"user_id":   c.userID,
	})
}

// ReadPump 将消息从 WebSocket 连接泵送到 onMessage 回调。
// 它在自己的 goroutine 中运行；连接断开 (无论主动被动) 时先执行 onDone
// 再关闭连接，调用方在 onDone 里做注销和引擎会话清理。
func (c *Client) ReadPump(onMessage func(data []byte), onDone func()) {
	defer func() {
		if onDone != nil {
			onDone()
		}
		c.Close()
		c.logCtx().Info("readPump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		// 收到 Pong: 标记存活并顺延读取超时
		c.MarkAlive()
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logCtx().WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				c.logCtx().Debug("WebSocket connection closed normally or read error")
			}
			break // 退出循环，触发 defer 中的清理
		}

		// 同步协议只使用二进制帧
		if messageType == websocket.BinaryMessage {
			if onMessage != nil {
				onMessage(message)
			}
		} else {
			c.logCtx().Debugf("Ignoring non-binary message type: %d", messageType)
		}
	}
}

// WritePump 把 send 通道的消息和心跳探测请求写入 WebSocket 连接。
// 它是此连接唯一的写入者，在自己的 goroutine 中运行。
func (c *Client) WritePump() {
	defer func() {
		c.conn.Close()
		c.logCtx().Info("writePump exited")
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				c.logCtx().WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-c.ping:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logCtx().WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-c.done:
			// 连接被主动终止，尽力补一帧关闭消息
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
