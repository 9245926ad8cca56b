package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/psds-microservice/voice-support/internal/metrics"
	"github.com/psds-microservice/voice-support/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticket(id uint64, status model.TicketStatus, summary string) *model.Ticket {
	return &model.Ticket{ID: id, Status: status, IssueSummary: summary, UserID: model.AnonymousUser}
}

func TestClassifyNewTicket(t *testing.T) {
	long := strings.Repeat("á", 150)
	n, ok := Policy{PreviewLen: 100}.Classify(TicketInserted(ticket(5, model.TicketStatusOpen, long)))
	require.True(t, ok)
	assert.Equal(t, TypeNewTicket, n.Type)
	assert.Equal(t, "New Support Ticket", n.Title)
	assert.Equal(t, 100, len([]rune(n.Message)))
	assert.Equal(t, "/admin/tickets/5", n.Link)
	assert.ElementsMatch(t, []Alert{AlertToast, AlertSound, AlertBrowser}, n.Alerts)
	assert.NotEmpty(t, n.ID)
}

func TestClassifyStatusChange(t *testing.T) {
	p := Policy{}
	n, ok := p.Classify(TicketUpdated(ticket(1, model.TicketStatusInProgress, "x"), model.TicketStatusOpen))
	require.True(t, ok)
	assert.Equal(t, TypeTicketUpdate, n.Type)
	assert.Equal(t, "Ticket Updated", n.Title)
	assert.Equal(t, "Ticket status changed to in progress", n.Message)
	assert.Empty(t, n.Alerts)

	_, ok = p.Classify(TicketUpdated(ticket(1, model.TicketStatusOpen, "x"), model.TicketStatusOpen))
	assert.False(t, ok)
}

func TestClassifyMessages(t *testing.T) {
	p := Policy{}
	n, ok := p.Classify(MessageInserted(&model.Message{TicketID: 3, Sender: model.SenderUser, Content: "still broken"}))
	require.True(t, ok)
	assert.Equal(t, TypeNewMessage, n.Type)
	assert.Equal(t, "New Customer Message", n.Title)
	assert.Equal(t, "still broken", n.Message)
	assert.Equal(t, uint64(3), n.TicketID)

	_, ok = p.Classify(MessageInserted(&model.Message{TicketID: 3, Sender: model.SenderAdmin, Content: "on it"}))
	assert.False(t, ok)
	_, ok = p.Classify(MessageInserted(&model.Message{TicketID: 3, Sender: model.SenderAI, Content: "hi"}))
	assert.False(t, ok)
}

func TestLogCapAndOrder(t *testing.T) {
	l := NewLog(50)
	for i := 0; i < 51; i++ {
		l.Add(Notification{ID: fmt.Sprint(i)})
	}
	items := l.Items()
	require.Len(t, items, 50)
	assert.Equal(t, "50", items[0].ID)
	assert.Equal(t, "1", items[49].ID)
	assert.Equal(t, 50, l.Unread())
}

func TestLogReadState(t *testing.T) {
	l := NewLog(10)
	l.Add(Notification{ID: "a"})
	l.Add(Notification{ID: "b"})

	assert.True(t, l.MarkRead("a"))
	assert.False(t, l.MarkRead("missing"))
	assert.Equal(t, 1, l.Unread())

	l.MarkAllRead()
	assert.Zero(t, l.Unread())

	l.Clear()
	assert.Empty(t, l.Items())
}

func TestBusDeliversInOrderAndIsolatesListeners(t *testing.T) {
	bus := NewBus(16, 4, nil, nil)
	var (
		mu  sync.Mutex
		got []EventType
	)
	require.NoError(t, bus.Subscribe("panics", func(context.Context, Event) error { panic("boom") }))
	require.NoError(t, bus.Subscribe("fails", func(context.Context, Event) error { return errors.New("nope") }))
	require.NoError(t, bus.Subscribe("records", func(_ context.Context, e Event) error {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	bus.Publish(TicketInserted(ticket(1, model.TicketStatusOpen, "a")))
	bus.Publish(MessageInserted(&model.Message{TicketID: 1, Sender: model.SenderUser}))
	bus.Publish(TicketUpdated(ticket(1, model.TicketStatusInProgress, "a"), model.TicketStatusOpen))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []EventType{EventTicketInserted, EventMessageInserted, EventTicketUpdated}, got)
}

func TestBusListenerLimit(t *testing.T) {
	bus := NewBus(1, 1, nil, nil)
	noop := func(context.Context, Event) error { return nil }
	require.NoError(t, bus.Subscribe("a", noop))
	assert.ErrorIs(t, bus.Subscribe("b", noop), ErrTooManyListeners)
}

func TestBusPublishDropsWhenFull(t *testing.T) {
	m := metrics.New()
	bus := NewBus(1, 1, nil, m)
	assert.True(t, bus.Publish(TicketInserted(ticket(1, model.TicketStatusOpen, "a"))))
	assert.False(t, bus.Publish(TicketInserted(ticket(2, model.TicketStatusOpen, "b"))))
}

func TestHubFanOut(t *testing.T) {
	hub := NewHub(Policy{PreviewLen: 100}, 50, nil, nil)
	a := hub.Open()
	b := hub.Open()
	require.Equal(t, 2, hub.Sessions())

	b.ToggleSound()
	require.NoError(t, hub.Handle(context.Background(), TicketInserted(ticket(9, model.TicketStatusOpen, "vpn down"))))

	na := <-a.Out()
	nb := <-b.Out()
	assert.Equal(t, na.ID, nb.ID)
	assert.Contains(t, na.Alerts, AlertSound)
	assert.NotContains(t, nb.Alerts, AlertSound)
	assert.Contains(t, nb.Alerts, AlertToast)
	assert.Equal(t, 1, a.Log.Unread())

	require.NoError(t, hub.Handle(context.Background(),
		MessageInserted(&model.Message{TicketID: 9, Sender: model.SenderAdmin, Content: "looking"})))
	assert.Len(t, a.Log.Items(), 1)

	hub.Close(a)
	assert.Equal(t, 1, hub.Sessions())
	_, open := <-a.Out()
	assert.False(t, open)
}

func TestHubSlowSessionDoesNotBlock(t *testing.T) {
	hub := NewHub(Policy{}, 50, nil, nil)
	s := hub.Open()
	for i := 0; i < DefaultOutboxSize+5; i++ {
		require.NoError(t, hub.Handle(context.Background(),
			MessageInserted(&model.Message{TicketID: 1, Sender: model.SenderUser, Content: "ping"})))
	}
	assert.Len(t, s.Out(), DefaultOutboxSize)
	assert.Len(t, s.Log.Items(), DefaultOutboxSize+5)
}
