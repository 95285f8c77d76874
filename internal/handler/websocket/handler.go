// Package websocket 负责同步连接的建立: 解析画布路径、认证、升级协议，
// 然后把连接登记进 hub 并移交给同步引擎。消息内容由引擎会话处理，
// 这里只做接入和退出时的清理。
package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/engine"
	"collaborative-canvas/internal/hub"
	"collaborative-canvas/internal/service"
)

// DefaultCanvasID 是未指定画布路径时使用的房间名。
const DefaultCanvasID = "default"

// WebSocketHandler 负责处理 WebSocket 升级请求和连接的接入/退出
type WebSocketHandler struct {
	upgrader          websocket.Upgrader
	registry          *hub.Registry
	engine            engine.Engine
	authService       *service.AuthService
	heartbeatInterval time.Duration
	allowAnonymous    bool
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// heartbeatInterval 必须与心跳检查器使用同一配置值，读超时按它的两倍设置。
func NewWebSocketHandler(registry *hub.Registry, eng engine.Engine, authService *service.AuthService, heartbeatInterval time.Duration, allowAnonymous bool) *WebSocketHandler {
	if registry == nil {
		panic("Registry cannot be nil for WebSocketHandler")
	}
	if eng == nil {
		panic("Engine cannot be nil for WebSocketHandler")
	}
	if authService == nil {
		panic("AuthService cannot be nil for WebSocketHandler")
	}
	if heartbeatInterval <= 0 {
		heartbeatInterval = hub.DefaultHeartbeatInterval
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// 允许所有来源连接 (生产环境应配置具体的允许来源)
		CheckOrigin: func(r *http.Request) bool {
			// TODO: Implement proper origin checking for production
			return true // 暂时允许所有
		},
	}

	return &WebSocketHandler{
		upgrader:          upgrader,
		registry:          registry,
		engine:            eng,
		authService:       authService,
		heartbeatInterval: heartbeatInterval,
		allowAnonymous:    allowAnonymous,
	}
}

// ParseCanvasID 从通配路由参数中解析画布 ID。
// 去掉前导斜杠和可能残留的查询串，空路径落到缺省画布。
func ParseCanvasID(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return DefaultCanvasID
	}
	return path
}

// bearerToken 从 Authorization 头中提取 Bearer 令牌，没有则返回空串。
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

// HandleConnection 处理 WebSocket 连接请求。
// URL 预期格式: /ws/{canvasId}?userId=...&userName=...&token=...
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	canvasID := ParseCanvasID(c.Param("canvas"))
	logCtx := logrus.WithField("canvas_id", canvasID)

	// 1. 客户端自报的身份参数，认证通过时以令牌身份为准
	userID := c.Query("userId")
	userName := c.Query("userName")

	// 2. 令牌优先取查询参数，兼容放在 Authorization 头里的客户端
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c.Request)
	}

	// 3. 带令牌或禁用匿名访问时必须通过认证，失败在升级前用 HTTP 401 拒绝
	if token != "" || !h.allowAnonymous {
		ident, err := h.authService.Authenticate(c.Request.Context(), token, canvasID)
		if err != nil {
			logCtx.WithError(err).Warn("WS Handler: Connection rejected, authentication failed")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing token"})
			return
		}
		userID = ident.UserID
		logCtx = logCtx.WithField("user_id", userID)
	}

	// 4. 升级 HTTP 连接到 WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时已经写出了 HTTP 错误响应，这里只记日志
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	// 5. 创建连接记录并登记进房间，注册先于引擎接管，
	//    保证引擎广播初始状态时本连接已经在房间里
	client := hub.NewClient(conn, canvasID, userID, userName, 2*h.heartbeatInterval)
	logCtx = logCtx.WithField("conn_id", client.ID())
	h.registry.Join(client)

	// 6. 移交给同步引擎，拿到本连接的会话。
	//    Attach 可能同步发送初始快照，使用独立的 context，
	//    请求 context 在 HandleConnection 返回后即失效。
	sess, err := h.engine.Attach(context.Background(), client)
	if err != nil {
		logCtx.WithError(err).Error("WS Handler: Engine attach failed, dropping connection")
		h.registry.Leave(client)
		client.Close()
		return
	}
	logCtx.Info("WS Handler: Connection established")

	// 7. 启动读写泵。写泵是连接唯一的写入者；
	//    读泵退出时先注销再关闭会话，Leave 幂等，重复清理无害。
	go client.WritePump()
	go client.ReadPump(
		func(data []byte) {
			sess.HandleMessage(context.Background(), data)
		},
		func() {
			h.registry.Leave(client)
			sess.Close()
		},
	)
}
