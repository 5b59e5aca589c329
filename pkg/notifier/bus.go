package notifier

import (
	"context"
	"sync"

	"atomicdeploy/pkg/core/logger"
)

// Handler 事件处理函数
type Handler func(ctx context.Context, notification *Notification) error

// Bus 进程内事件总线，Publish 同步调用订阅者
type Bus struct {
	mu       sync.RWMutex
	handlers map[Event][]Handler
	log      *logger.Log
}

// NewBus 创建事件总线
func NewBus(log *logger.Log) *Bus {
	return &Bus{
		handlers: make(map[Event][]Handler),
		log:      log.WithEntryName("NotifierBus"),
	}
}

// Subscribe 订阅事件，events 为空时订阅全部事件
func (b *Bus) Subscribe(handler Handler, events ...Event) {
	if len(events) == 0 {
		events = []Event{EventDeploymentSucceeded, EventDeploymentFailed}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range events {
		b.handlers[e] = append(b.handlers[e], handler)
	}
}

// SubscribeNotifier 将通知器挂到总线上
func (b *Bus) SubscribeNotifier(n Notifier, events ...Event) {
	b.Subscribe(func(ctx context.Context, notification *Notification) error {
		result, err := n.Send(ctx, notification)
		if err != nil {
			return err
		}
		if !result.Success {
			b.log.WithField("notifier", n.GetName()).WithField("error", result.Error).Warn("通知发送失败")
		}
		return nil
	}, events...)
}

// Publish 发布事件，订阅者的错误只记录日志
func (b *Bus) Publish(ctx context.Context, notification *Notification) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[notification.Event]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, notification); err != nil {
			b.log.WithErr(err).WithField("event", notification.Event).Error("事件处理失败")
		}
	}
}
