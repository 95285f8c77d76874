package hub

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// roomState 是一个画布房间的内部记录，生命周期完全由 Registry 管理。
type roomState struct {
	members      map[*Client]bool
	createdAt    time.Time
	lastActivity time.Time
}

// Room 是画布房间在某一时刻的只读快照。
// Registry 内部的房间记录不对外暴露，所有读取拿到的都是副本。
type Room struct {
	ID           string    `json:"id"`
	Members      int       `json:"members"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Registry 维护画布房间和其中的活跃连接。
// 所有方法都可以并发调用；单把互斥锁让同一房间的进出操作天然串行，
// 返回的切片全部是防御性副本。
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*roomState
}

// NewRegistry 创建空的 Registry。
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*roomState)}
}

// Join 将连接加入其画布对应的房间，房间不存在时创建。
// 并发的首次加入会合流到同一个房间记录上。返回加入后的房间快照。
func (r *Registry) Join(client *Client) *Room {
	if client == nil {
		logrus.Error("Registry: attempted to join a nil client")
		return nil
	}
	canvasID := client.CanvasID()

	r.mu.Lock()
	rm, ok := r.rooms[canvasID]
	if !ok {
		now := time.Now()
		rm = &roomState{
			members:      make(map[*Client]bool),
			createdAt:    now,
			lastActivity: now,
		}
		r.rooms[canvasID] = rm
		logrus.WithField("canvas_id", canvasID).Info("Room created")
	}
	rm.members[client] = true
	rm.lastActivity = time.Now()
	snapshot := snapshotRoom(canvasID, rm)
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"canvas_id": canvasID,
		"conn_id":   client.ID(),
		"user_id":   client.UserID(),
		"members":   snapshot.Members,
	}).Info("Client joined room")
	return snapshot
}

// Leave 将连接从其房间移除。
// 未知连接或重复调用是幂等空操作；空房间留给周期清理任务回收。
func (r *Registry) Leave(client *Client) {
	if client == nil {
		return
	}
	canvasID := client.CanvasID()

	r.mu.Lock()
	rm, ok := r.rooms[canvasID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, exists := rm.members[client]; !exists {
		r.mu.Unlock()
		return
	}
	delete(rm.members, client)
	rm.lastActivity = time.Now()
	remaining := len(rm.members)
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"canvas_id": canvasID,
		"conn_id":   client.ID(),
		"user_id":   client.UserID(),
		"members":   remaining,
	}).Info("Client left room")
}

// Touch 更新房间的最后活跃时间，文档变更时由同步引擎调用。
func (r *Registry) Touch(canvasID string) {
	r.mu.Lock()
	if rm, ok := r.rooms[canvasID]; ok {
		rm.lastActivity = time.Now()
	}
	r.mu.Unlock()
}

// Room 返回指定画布房间的快照，房间不存在时第二个返回值为 false。
func (r *Registry) Room(canvasID string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[canvasID]
	if !ok {
		return nil, false
	}
	return snapshotRoom(canvasID, rm), true
}

// Rooms 返回全部房间的快照，供统计接口使用。
func (r *Registry) Rooms() []Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rooms := make([]Room, 0, len(r.rooms))
	for id, rm := range r.rooms {
		rooms = append(rooms, *snapshotRoom(id, rm))
	}
	return rooms
}

// RoomCount 返回当前房间数量。
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Connections 返回所有房间中全部连接的快照，供心跳检查遍历。
func (r *Registry) Connections() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var clients []*Client
	for _, rm := range r.rooms {
		for client := range rm.members {
			clients = append(clients, client)
		}
	}
	return clients
}

// RoomConnections 返回指定房间中全部连接的快照，供广播使用。
func (r *Registry) RoomConnections(canvasID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[canvasID]
	if !ok {
		return nil
	}
	clients := make([]*Client, 0, len(rm.members))
	for client := range rm.members {
		clients = append(clients, client)
	}
	return clients
}

// PruneIdle 回收空置超过 olderThan 的房间，返回回收数量。
// 仍有成员的房间无论闲置多久都不回收。
func (r *Registry) PruneIdle(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	r.mu.Lock()
	var pruned []string
	for id, rm := range r.rooms {
		if len(rm.members) == 0 && rm.lastActivity.Before(cutoff) {
			delete(r.rooms, id)
			pruned = append(pruned, id)
		}
	}
	r.mu.Unlock()

	for _, id := range pruned {
		logrus.WithField("canvas_id", id).Info("Idle room pruned")
	}
	return len(pruned)
}

// snapshotRoom 在持有锁的前提下生成房间快照。
func snapshotRoom(id string, rm *roomState) *Room {
	return &Room{
		ID:           id,
		Members:      len(rm.members),
		CreatedAt:    rm.createdAt,
		LastActivity: rm.lastActivity,
	}
}
