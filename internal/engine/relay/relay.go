// Package relay 实现缺省的同步引擎: 快照中继。
// 每帧二进制消息被视为发送方的完整画布状态，原样转发给同房间的其他连接，
// 并按去抖周期持久化最新一份。任何能序列化自身完整状态的客户端都能接入；
// 需要增量合并时在 bootstrap 注入别的 engine.Engine 实现即可。
package relay

import (
	"context"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/engine"
	"collaborative-canvas/internal/hub"
	"collaborative-canvas/internal/tasks"
)

// defaultSaveDelay 是文档变更后到持久化入队的去抖间隔。
const defaultSaveDelay = 3 * time.Second

// Relay 是快照中继引擎。
type Relay struct {
	registry *hub.Registry
	store    engine.Store
	client   *asynq.Client // 为 nil 时所有保存直接写库
	log      *logrus.Entry

	saveDelay time.Duration

	mu   sync.Mutex
	docs map[string]*document
}

// document 是一个画布在引擎内的热状态。
type document struct {
	latest   []byte      // 最近一帧完整状态
	ownerID  string      // 最近一个已认证写入者，作为首次保存的归属
	sessions int         // 活跃会话数
	timer    *time.Timer // 去抖定时器
	dirty    bool        // latest 尚未持久化
}

// New 创建快照中继引擎。
// asynqClient 为 nil 时保存不走队列 (测试和无 Redis 的单机部署)。
func New(registry *hub.Registry, store engine.Store, asynqClient *asynq.Client, log *logrus.Entry) *Relay {
	if registry == nil {
		panic("Registry cannot be nil for relay engine")
	}
	if store == nil {
		panic("Store cannot be nil for relay engine")
	}
	if log == nil {
		log = logrus.WithField("component", "relay")
	}
	return &Relay{
		registry:  registry,
		store:     store,
		client:    asynqClient,
		log:       log,
		saveDelay: defaultSaveDelay,
		docs:      make(map[string]*document),
	}
}

// session 把一条连接绑定到 Relay 上，实现 engine.Session。
type session struct {
	relay  *Relay
	client *hub.Client
	once   sync.Once
}

func (s *session) HandleMessage(ctx context.Context, data []byte) {
	s.relay.handleUpdate(s.client, data)
}

func (s *session) Close() {
	s.once.Do(func() {
		s.relay.detach(s.client)
	})
}

// Attach 实现 engine.Engine: 登记会话并把当前状态发给新连接。
// 优先发引擎内的热状态 (比数据库新)，冷启动时从存储取。
func (r *Relay) Attach(ctx context.Context, client *hub.Client) (engine.Session, error) {
	canvasID := client.CanvasID()

	r.mu.Lock()
	doc, ok := r.docs[canvasID]
	if !ok {
		doc = &document{}
		r.docs[canvasID] = doc
	}
	doc.sessions++
	latest := doc.latest
	r.mu.Unlock()

	if latest == nil {
		latest = r.store.Fetch(ctx, canvasID)
	}
	if latest != nil {
		if !client.Send(latest) {
			r.log.WithFields(logrus.Fields{
				"canvas_id": canvasID,
				"conn_id":   client.ID(),
			}).Warn("Client send queue full, initial state dropped")
		}
	}

	return &session{relay: r, client: client}, nil
}

// handleUpdate 处理一帧完整状态: 记为最新、安排持久化、转发给同房间连接。
func (r *Relay) handleUpdate(client *hub.Client, data []byte) {
	canvasID := client.CanvasID()

	r.mu.Lock()
	doc, ok := r.docs[canvasID]
	if !ok {
		// 画布的会话已全部结束，迟到的消息直接忽略
		r.mu.Unlock()
		return
	}
	doc.latest = data
	doc.dirty = true
	if userID := client.UserID(); userID != "" {
		doc.ownerID = userID
	}
	r.scheduleSaveLocked(canvasID, doc)
	r.mu.Unlock()

	r.registry.Touch(canvasID)
	r.broadcast(canvasID, data, client)
}

// scheduleSaveLocked 重置画布的去抖定时器。调用方必须持有 r.mu。
func (r *Relay) scheduleSaveLocked(canvasID string, doc *document) {
	if doc.timer != nil {
		doc.timer.Stop()
	}
	doc.timer = time.AfterFunc(r.saveDelay, func() { r.persist(canvasID) })
}

// broadcast 将一帧状态转发给同房间的其他连接，排除发送者。
func (r *Relay) broadcast(canvasID string, message []byte, sender *hub.Client) {
	for _, client := range r.registry.RoomConnections(canvasID) {
		if client == sender {
			continue
		}
		if !client.Send(message) {
			// 队列满时丢帧; 每帧都是完整状态，客户端不会因此落后
			r.log.WithFields(logrus.Fields{
				"canvas_id": canvasID,
				"conn_id":   client.ID(),
			}).Warn("Client send queue full, dropping state frame")
		}
	}
}

// persist 将画布的最新状态送入持久化队列。
// 入队失败时退化为直接写库；同步路径吞掉存储错误，下一次变更会再试。
func (r *Relay) persist(canvasID string) {
	r.mu.Lock()
	doc, ok := r.docs[canvasID]
	if !ok || !doc.dirty || doc.latest == nil {
		r.mu.Unlock()
		return
	}
	state := doc.latest
	ownerID := doc.ownerID
	doc.dirty = false
	r.mu.Unlock()

	logCtx := r.log.WithFields(logrus.Fields{
		"canvas_id":   canvasID,
		"state_bytes": len(state),
	})

	if r.client != nil {
		task, err := tasks.NewCanvasPersistTask(canvasID, state, ownerID)
		if err == nil {
			_, err = r.client.Enqueue(task, asynq.Queue("default"), asynq.MaxRetry(3))
		}
		if err == nil {
			logCtx.Debug("Canvas persist task enqueued")
			return
		}
		logCtx.WithError(err).Warn("Failed to enqueue persist task, storing directly")
	}

	if err := r.store.Store(context.Background(), canvasID, state, ownerID); err != nil {
		logCtx.WithError(err).Error("Failed to store canvas state")
		return
	}
	logCtx.Debug("Canvas state stored directly")
}

// detach 注销一个会话；画布的最后一个会话结束时同步冲刷待存状态，
// 保证断开前的最后改动落库。
func (r *Relay) detach(client *hub.Client) {
	canvasID := client.CanvasID()

	r.mu.Lock()
	doc, ok := r.docs[canvasID]
	if !ok {
		r.mu.Unlock()
		return
	}
	doc.sessions--
	last := doc.sessions <= 0
	var state []byte
	var ownerID string
	if last {
		if doc.timer != nil {
			doc.timer.Stop()
		}
		delete(r.docs, canvasID)
		if doc.dirty && doc.latest != nil {
			state = doc.latest
			ownerID = doc.ownerID
		}
	}
	r.mu.Unlock()

	if state == nil {
		return
	}
	if err := r.store.Store(context.Background(), canvasID, state, ownerID); err != nil {
		r.log.WithError(err).WithField("canvas_id", canvasID).
			Error("Failed to flush canvas state on last detach")
	}
}

// Shutdown 停掉所有去抖定时器并同步冲刷待存状态，进程退出前调用。
func (r *Relay) Shutdown(ctx context.Context) {
	type pending struct {
		canvasID string
		state    []byte
		ownerID  string
	}

	r.mu.Lock()
	var flush []pending
	for id, doc := range r.docs {
		if doc.timer != nil {
			doc.timer.Stop()
		}
		if doc.dirty && doc.latest != nil {
			flush = append(flush, pending{canvasID: id, state: doc.latest, ownerID: doc.ownerID})
		}
	}
	r.docs = make(map[string]*document)
	r.mu.Unlock()

	for _, p := range flush {
		if err := r.store.Store(ctx, p.canvasID, p.state, p.ownerID); err != nil {
			r.log.WithError(err).WithField("canvas_id", p.canvasID).
				Error("Failed to flush canvas state during shutdown")
		}
	}
	if len(flush) > 0 {
		r.log.WithField("flushed", len(flush)).Info("Relay engine flushed pending canvas states")
	}
}
