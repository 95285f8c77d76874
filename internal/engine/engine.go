// Package engine 定义同步引擎与连接层之间的边界。
// 网关自身不解析文档字节: 连接加入房间后交给 Engine，由它决定消息如何处理、
// 何时持久化。具体算法 (快照中继、CRDT 合并等) 由注入的实现决定。
package engine

import (
	"context"

	"collaborative-canvas/internal/hub"
)

// Store 是引擎可用的持久化入口，由 service.DocumentService 实现。
type Store interface {
	// Fetch 返回画布的历史状态，nil 表示没有可用状态。
	Fetch(ctx context.Context, canvasID string) []byte
	// Store 持久化画布状态。ownerID 在首次保存时成为画布所有者。
	Store(ctx context.Context, canvasID string, state []byte, ownerID string) error
}

// Session 是一条连接在引擎中的会话。
type Session interface {
	// HandleMessage 处理该连接收到的一帧二进制同步消息。
	HandleMessage(ctx context.Context, data []byte)
	// Close 结束会话并释放其引擎侧资源，连接断开时必须调用，可重复调用。
	Close()
}

// Engine 在连接加入房间后接管其同步语义。
type Engine interface {
	// Attach 为连接建立会话。调用时连接已在房间注册表中。
	Attach(ctx context.Context, client *hub.Client) (Session, error)
}
