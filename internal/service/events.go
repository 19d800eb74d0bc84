package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"chatserver/internal/domain"
	"chatserver/pkg/logger"
)

const eventHandleTimeout = 5 * time.Second

// EventNotifier принимает уведомления по принципу fire-and-forget
type EventNotifier interface {
	Notify(evt domain.MeetingEvent)
}

type EventSubscriber interface {
	HandleEvent(ctx context.Context, evt domain.MeetingEvent)
}

// EventSubscriberFunc адаптирует функцию к EventSubscriber
type EventSubscriberFunc func(ctx context.Context, evt domain.MeetingEvent)

func (f EventSubscriberFunc) HandleEvent(ctx context.Context, evt domain.MeetingEvent) {
	f(ctx, evt)
}

// EventDispatcher доставляет уведомления подписчикам в отдельной горутине,
// чтобы ввод-вывод подписчиков не выполнялся под блокировкой встречи
type EventDispatcher interface {
	EventNotifier
	Subscribe(sub EventSubscriber)
	Run(ctx context.Context)
	Close()
}

type eventDispatcher struct {
	mu          sync.RWMutex
	closed      bool
	started     atomic.Bool
	events      chan domain.MeetingEvent
	subscribers []EventSubscriber
	done        chan struct{}
	onDrop      func()
	log         logger.Logger
}

func NewEventDispatcher(buffer int, onDrop func(), log logger.Logger) EventDispatcher {
	if onDrop == nil {
		onDrop = func() {}
	}
	return &eventDispatcher{
		events: make(chan domain.MeetingEvent, buffer),
		done:   make(chan struct{}),
		onDrop: onDrop,
		log:    log,
	}
}

func (d *eventDispatcher) Subscribe(sub EventSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, sub)
}

func (d *eventDispatcher) Notify(evt domain.MeetingEvent) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.events <- evt:
	default:
		d.onDrop()
		d.log.Warn("Event queue full, dropping event", "type", evt.Type, "meeting_id", evt.MeetingID)
	}
}

// Run обрабатывает очередь до Close; после отмены ctx остаток очереди дочитывается
func (d *eventDispatcher) Run(ctx context.Context) {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	defer close(d.done)

	for evt := range d.events {
		d.mu.RLock()
		subs := make([]EventSubscriber, len(d.subscribers))
		copy(subs, d.subscribers)
		d.mu.RUnlock()

		for _, sub := range subs {
			d.handle(ctx, sub, evt)
		}
	}
}

func (d *eventDispatcher) handle(ctx context.Context, sub EventSubscriber, evt domain.MeetingEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Event subscriber panicked", "panic", r, "type", evt.Type)
		}
	}()

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventHandleTimeout)
	defer cancel()
	sub.HandleEvent(hctx, evt)
}

func (d *eventDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()

	if d.started.Load() {
		<-d.done
	}
}
