package hub

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ConnectionSource 提供心跳检查要遍历的连接快照，由 Registry 实现。
type ConnectionSource interface {
	Connections() []*Client
}

// Heartbeat 周期性地检查所有连接的存活状态。
//
// 每个周期对每条连接做两件事之一: 上个周期发出的探测还没有收到 pong 的，
// 判定死亡并强制断开 (注销由该连接读泵的退出路径完成)；其余连接先标记为
// 待确认，再请求其写泵发出 ping。正常响应的客户端永远不会被误杀，失联的
// 客户端最多存活两个周期。
type Heartbeat struct {
	source   ConnectionSource
	interval time.Duration
	log      *logrus.Entry

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
}

// NewHeartbeat 创建心跳检查器。interval 不合法时回退到缺省周期。
func NewHeartbeat(source ConnectionSource, interval time.Duration, log *logrus.Entry) *Heartbeat {
	if source == nil {
		panic("ConnectionSource cannot be nil for Heartbeat")
	}
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if log == nil {
		log = logrus.WithField("component", "heartbeat")
	}
	return &Heartbeat{
		source:   source,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// Interval 返回配置的检查周期。
func (h *Heartbeat) Interval() time.Duration { return h.interval }

// Start 启动检查循环，重复调用只启动一次。
func (h *Heartbeat) Start() {
	h.startOnce.Do(func() {
		go h.run()
	})
}

// Stop 停止后续的检查，幂等且可在任意时刻调用。
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

func (h *Heartbeat) run() {
	h.log.WithField("interval", h.interval.String()).Info("Heartbeat monitor started")
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sweep()
		case <-h.stop:
			h.log.Info("Heartbeat monitor stopped")
			return
		}
	}
}

// sweep 执行一轮存活检查。
func (h *Heartbeat) sweep() {
	clients := h.source.Connections()
	var terminated int

	for _, client := range clients {
		if !client.Alive() {
			h.log.WithFields(logrus.Fields{
				"conn_id":   client.ID(),
				"canvas_id": client.CanvasID(),
				"user_id":   client.UserID(),
			}).Warn("Connection missed heartbeat, terminating")
			client.Close()
			terminated++
			continue
		}
		// 先撤销存活标记再探测，pong 回来前连接处于待确认状态
		client.MarkDead()
		client.RequestPing()
	}

	if terminated > 0 {
		h.log.WithFields(logrus.Fields{
			"checked":    len(clients),
			"terminated": terminated,
		}).Info("Heartbeat sweep completed")
	}
}
