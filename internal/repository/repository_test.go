package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/psds-microservice/voice-support/internal/errs"
	"github.com/psds-microservice/voice-support/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.Ticket{}, &model.Message{}, &model.ConversationMessage{}, &model.FAQEntry{}))
	return db
}

func seedTicket(t *testing.T, r *TicketRepository, status model.TicketStatus) *model.Ticket {
	t.Helper()
	tk := &model.Ticket{UserID: model.AnonymousUser, IssueSummary: "printer on fire", Status: status}
	require.NoError(t, r.CreateWithMessage(context.Background(), tk, &model.Message{Sender: model.SenderUser, Content: "printer on fire"}))
	return tk
}

func TestCreateWithMessage(t *testing.T) {
	db := newTestDB(t)
	tickets := NewTicketRepository(db)
	messages := NewMessageRepository(db)
	ctx := context.Background()

	tk := seedTicket(t, tickets, model.TicketStatusOpen)
	require.NotZero(t, tk.ID)

	got, err := tickets.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketStatusOpen, got.Status)

	thread, err := messages.ListByTicket(ctx, tk.ID)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, model.SenderUser, thread[0].Sender)
	assert.Equal(t, "printer on fire", thread[0].Content)
}

func TestGetMissing(t *testing.T) {
	_, err := NewTicketRepository(newTestDB(t)).Get(context.Background(), 42)
	assert.ErrorIs(t, err, errs.ErrTicketNotFound)
}

func TestListFiltersAndOrders(t *testing.T) {
	db := newTestDB(t)
	r := NewTicketRepository(db)
	ctx := context.Background()

	seedTicket(t, r, model.TicketStatusOpen)
	seedTicket(t, r, model.TicketStatusResolved)
	c := seedTicket(t, r, model.TicketStatusOpen)
	require.NoError(t, db.Model(&model.Ticket{}).Where("id = ?", c.ID).Update("user_id", "u-1").Error)

	all, total, err := r.List(ctx, TicketFilter{}, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, all, 3)
	assert.Equal(t, c.ID, all[0].ID)

	open, total, err := r.List(ctx, TicketFilter{Status: model.TicketStatusOpen}, 1, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, open, 1)

	mine, _, err := r.List(ctx, TicketFilter{UserID: "u-1"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, c.ID, mine[0].ID)
}

func TestUpdateIfRespectsCurrentStatus(t *testing.T) {
	r := NewTicketRepository(newTestDB(t))
	ctx := context.Background()
	tk := seedTicket(t, r, model.TicketStatusResolved)

	got, applied, err := r.UpdateIf(ctx, tk.ID,
		[]model.TicketStatus{model.TicketStatusOpen},
		map[string]interface{}{"status": model.TicketStatusInProgress})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, model.TicketStatusResolved, got.Status)

	got, applied, err = r.UpdateIf(ctx, tk.ID, nil, map[string]interface{}{"admin_notes": "called back"})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "called back", got.AdminNotes)
	assert.Equal(t, model.TicketStatusResolved, got.Status)
}

func TestAppendMessageMissingTicket(t *testing.T) {
	db := newTestDB(t)
	_, _, err := NewTicketRepository(db).AppendMessage(context.Background(),
		&model.Message{TicketID: 99, Sender: model.SenderUser, Content: "hi"}, false)
	assert.ErrorIs(t, err, errs.ErrTicketNotFound)

	var n int64
	require.NoError(t, db.Model(&model.Message{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestAppendMessagePromotesOnce(t *testing.T) {
	db := newTestDB(t)
	r := NewTicketRepository(db)
	tk := seedTicket(t, r, model.TicketStatusOpen)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		promoted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := r.AppendMessage(context.Background(),
				&model.Message{TicketID: tk.ID, Sender: model.SenderAdmin, Content: "on it"}, true)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				promoted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, promoted)
	got, err := r.Get(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketStatusInProgress, got.Status)

	thread, err := NewMessageRepository(db).ListByTicket(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Len(t, thread, workers+1)
}

func TestConversationAppend(t *testing.T) {
	r := NewConversationRepository(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, r.Append(ctx,
		&model.ConversationMessage{ConversationID: "c-1", Sender: model.SenderUser, Content: "hello"},
		&model.ConversationMessage{ConversationID: "c-1", Sender: model.SenderAI, Content: "hi there"},
	))
	items, err := r.List(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, model.SenderUser, items[0].Sender)
	assert.Equal(t, model.SenderAI, items[1].Sender)
}

func TestFAQCandidates(t *testing.T) {
	r := NewFAQRepository(newTestDB(t))
	ctx := context.Background()
	for _, e := range []*model.FAQEntry{
		{Question: "q1", Answer: "a1", Embedding: "[1, 0]"},
		{Question: "q2", Answer: "a2"},
		{Question: "q3", Answer: "a3", Embedding: "[0, 1]"},
	} {
		require.NoError(t, r.Create(ctx, e))
	}

	got, err := r.Candidates(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "q1", got[0].Question)

	limited, err := r.Candidates(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, r.UpdateEmbedding(ctx, 2, "[1, 1]"))
	got, err = r.Candidates(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	assert.ErrorIs(t, r.UpdateEmbedding(ctx, 100, "[1]"), errs.ErrFAQNotFound)
	_, err = r.Get(ctx, 100)
	assert.ErrorIs(t, err, errs.ErrFAQNotFound)
}
