package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatserver/internal/domain"
	"chatserver/pkg/logger"
)

func TestEventDispatcherDeliversInOrder(t *testing.T) {
	d := NewEventDispatcher(16, nil, logger.NewNop())

	var (
		mu  sync.Mutex
		got []domain.MeetingEventType
	)
	d.Subscribe(EventSubscriberFunc(func(ctx context.Context, evt domain.MeetingEvent) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		mu.Lock()
		got = append(got, evt.Type)
		mu.Unlock()
	}))
	d.Subscribe(EventSubscriberFunc(func(context.Context, domain.MeetingEvent) {
		panic("broken subscriber")
	}))

	d.Notify(domain.MeetingEvent{Type: domain.MeetingCreated, MeetingID: "m1"})
	d.Notify(domain.MeetingEvent{Type: domain.MeetingMessagePosted, MeetingID: "m1"})
	d.Notify(domain.MeetingEvent{Type: domain.MeetingEnded, MeetingID: "m1"})
	d.Close()
	// очередь дочитывается даже после закрытия
	d.Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.MeetingEventType{domain.MeetingCreated, domain.MeetingMessagePosted, domain.MeetingEnded}, got)
}

func TestEventDispatcherDropsWhenFull(t *testing.T) {
	var dropped atomic.Int32
	d := NewEventDispatcher(1, func() { dropped.Add(1) }, logger.NewNop())

	d.Notify(domain.MeetingEvent{Type: domain.MeetingCreated})
	d.Notify(domain.MeetingEvent{Type: domain.MeetingEnded})
	assert.Equal(t, int32(1), dropped.Load())

	d.Close()
	d.Close()
	// после закрытия уведомления молча игнорируются
	d.Notify(domain.MeetingEvent{Type: domain.MeetingCreated})
	assert.Equal(t, int32(1), dropped.Load())
}

func TestEventDispatcherStampsTime(t *testing.T) {
	d := NewEventDispatcher(1, nil, logger.NewNop())
	received := make(chan domain.MeetingEvent, 1)
	d.Subscribe(EventSubscriberFunc(func(_ context.Context, evt domain.MeetingEvent) {
		received <- evt
	}))

	go d.Run(context.Background())
	d.Notify(domain.MeetingEvent{Type: domain.MeetingCreated})
	evt := <-received
	d.Close()

	require.False(t, evt.At.IsZero())
}
