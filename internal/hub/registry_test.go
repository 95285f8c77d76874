package hub_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collaborative-canvas/internal/hub"
)

// newTestClient 创建不带底层连接的连接记录。
// Registry 的成员管理不触碰 WebSocket 连接，测试里传 nil 即可。
func newTestClient(canvasID, userID string) *hub.Client {
	return hub.NewClient(nil, canvasID, userID, "", 0)
}

func TestRegistry_JoinCreatesRoom(t *testing.T) {
	// Arrange
	registry := hub.NewRegistry()
	client := newTestClient("canvas-a", "user-1")

	// Act
	room := registry.Join(client)

	// Assert
	require.NotNil(t, room)
	assert.Equal(t, "canvas-a", room.ID)
	assert.Equal(t, 1, room.Members)
	assert.False(t, room.CreatedAt.IsZero())

	got, ok := registry.Room("canvas-a")
	require.True(t, ok, "加入后房间应存在")
	assert.Equal(t, 1, got.Members)
}

func TestRegistry_JoinSameRoomAccumulatesMembers(t *testing.T) {
	// Arrange
	registry := hub.NewRegistry()

	// Act
	registry.Join(newTestClient("canvas-a", "user-1"))
	room := registry.Join(newTestClient("canvas-a", "user-2"))

	// Assert
	assert.Equal(t, 2, room.Members)
	assert.Equal(t, 1, registry.RoomCount(), "同一画布的连接应落在同一房间")
}

func TestRegistry_ConcurrentFirstJoinsConverge(t *testing.T) {
	// Arrange: 大量并发连接同时加入同一画布
	registry := hub.NewRegistry()
	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)

	// Act
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			registry.Join(newTestClient("canvas-a", ""))
		}()
	}
	wg.Wait()

	// Assert: 只有一个房间，成员一个不少
	assert.Equal(t, 1, registry.RoomCount())
	room, ok := registry.Room("canvas-a")
	require.True(t, ok)
	assert.Equal(t, n, room.Members)
	assert.Len(t, registry.Connections(), n)
}

func TestRegistry_LeaveIsIdempotent(t *testing.T) {
	// Arrange
	registry := hub.NewRegistry()
	client := newTestClient("canvas-a", "user-1")
	other := newTestClient("canvas-a", "user-2")
	registry.Join(client)
	registry.Join(other)

	// Act: 同一连接反复退出 + 从未加入的连接退出
	registry.Leave(client)
	registry.Leave(client)
	registry.Leave(newTestClient("canvas-a", "stranger"))
	registry.Leave(newTestClient("canvas-x", "ghost"))

	// Assert: 只少了一个成员
	room, ok := registry.Room("canvas-a")
	require.True(t, ok)
	assert.Equal(t, 1, room.Members)
}

func TestRegistry_EmptyRoomSurvivesUntilSweep(t *testing.T) {
	// Arrange
	registry := hub.NewRegistry()
	client := newTestClient("canvas-a", "user-1")
	registry.Join(client)

	// Act: 最后一个成员退出
	registry.Leave(client)

	// Assert: 房间留给周期清理任务，不立即删除
	room, ok := registry.Room("canvas-a")
	require.True(t, ok, "空房间应保留到清理任务运行")
	assert.Equal(t, 0, room.Members)
}

func TestRegistry_PruneIdleRemovesOnlyEmptyIdleRooms(t *testing.T) {
	// Arrange: 一间空置已久、一间刚空、一间还有人
	registry := hub.NewRegistry()

	idle := newTestClient("canvas-idle", "user-1")
	registry.Join(idle)
	registry.Leave(idle)

	time.Sleep(20 * time.Millisecond)

	fresh := newTestClient("canvas-fresh", "user-2")
	registry.Join(fresh)
	registry.Leave(fresh)

	registry.Join(newTestClient("canvas-busy", "user-3"))

	// Act: 清理空置超过 10ms 的房间
	pruned := registry.PruneIdle(10 * time.Millisecond)

	// Assert
	assert.Equal(t, 1, pruned)
	_, ok := registry.Room("canvas-idle")
	assert.False(t, ok, "空置已久的房间应被回收")
	_, ok = registry.Room("canvas-fresh")
	assert.True(t, ok, "刚空出来的房间应保留")
	_, ok = registry.Room("canvas-busy")
	assert.True(t, ok, "有人的房间无论闲置多久都应保留")
}

func TestRegistry_PruneIdleNeverRemovesOccupiedRooms(t *testing.T) {
	// Arrange
	registry := hub.NewRegistry()
	registry.Join(newTestClient("canvas-a", "user-1"))
	time.Sleep(10 * time.Millisecond)

	// Act: 阈值为零，所有空房间都该被回收，但有人的房间除外
	pruned := registry.PruneIdle(0)

	// Assert
	assert.Equal(t, 0, pruned)
	assert.Equal(t, 1, registry.RoomCount())
}

func TestRegistry_TouchRefreshesActivity(t *testing.T) {
	// Arrange
	registry := hub.NewRegistry()
	client := newTestClient("canvas-a", "user-1")
	registry.Join(client)
	registry.Leave(client) // 房间空置

	before, ok := registry.Room("canvas-a")
	require.True(t, ok)
	time.Sleep(20 * time.Millisecond)

	// Act: 引擎侧的文档活动刷新房间
	registry.Touch("canvas-a")

	// Assert: 活跃时间被顺延，清理任务不会回收它
	after, _ := registry.Room("canvas-a")
	assert.True(t, after.LastActivity.After(before.LastActivity), "Touch 应刷新最后活跃时间")
	assert.Equal(t, 0, registry.PruneIdle(15*time.Millisecond))
}

func TestRegistry_RoomConnectionsReturnsSnapshot(t *testing.T) {
	// Arrange
	registry := hub.NewRegistry()
	c1 := newTestClient("canvas-a", "user-1")
	c2 := newTestClient("canvas-a", "user-2")
	c3 := newTestClient("canvas-b", "user-3")
	registry.Join(c1)
	registry.Join(c2)
	registry.Join(c3)

	// Act
	conns := registry.RoomConnections("canvas-a")

	// Assert: 只包含本房间的连接
	assert.Len(t, conns, 2)
	assert.Contains(t, conns, c1)
	assert.Contains(t, conns, c2)
	assert.NotContains(t, conns, c3)

	// 返回的是快照，改动它不影响注册表
	conns[0] = nil
	assert.Len(t, registry.RoomConnections("canvas-a"), 2)
}
