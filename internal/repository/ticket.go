// Package repository содержит примитивы хранения поверх gorm (вставка, условное обновление,
// упорядоченное чтение). Политику переходов статуса решает internal/service.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/psds-microservice/voice-support/internal/errs"
	"github.com/psds-microservice/voice-support/internal/model"
	"gorm.io/gorm"
)

type TicketFilter struct {
	Status model.TicketStatus
	UserID string
}

type TicketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// CreateWithMessage пишет тикет и первое сообщение треда в одной транзакции.
// first может быть nil.
func (r *TicketRepository) CreateWithMessage(ctx context.Context, t *model.Ticket, first *model.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		if first == nil {
			return nil
		}
		first.TicketID = t.ID
		return tx.Create(first).Error
	})
}

func (r *TicketRepository) Get(ctx context.Context, id uint64) (*model.Ticket, error) {
	return getTicket(r.db.WithContext(ctx), id)
}

func getTicket(db *gorm.DB, id uint64) (*model.Ticket, error) {
	var t model.Ticket
	if err := db.First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

// List: тикеты от новых к старым и общее число под фильтром.
func (r *TicketRepository) List(ctx context.Context, f TicketFilter, limit, offset int) ([]model.Ticket, int64, error) {
	filtered := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.Ticket{})
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		if f.UserID != "" {
			q = q.Where("user_id = ?", f.UserID)
		}
		return q
	}
	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q := filtered()
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var items []model.Ticket
	if err := q.Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UpdateIf применяет changes, только если текущий статус входит в from (пустой from
// снимает условие). updated_at обновляется всегда. Возвращает тикет после записи и
// признак того, что строка действительно изменилась.
func (r *TicketRepository) UpdateIf(ctx context.Context, id uint64, from []model.TicketStatus, changes map[string]interface{}) (*model.Ticket, bool, error) {
	var (
		out     *model.Ticket
		applied bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		applied, err = updateIf(tx, id, from, changes)
		if err != nil {
			return err
		}
		out, err = getTicket(tx, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, applied, nil
}

func updateIf(tx *gorm.DB, id uint64, from []model.TicketStatus, changes map[string]interface{}) (bool, error) {
	set := make(map[string]interface{}, len(changes)+1)
	for k, v := range changes {
		set[k] = v
	}
	set["updated_at"] = time.Now().UTC()

	q := tx.Model(&model.Ticket{}).Where("id = ?", id)
	if len(from) > 0 {
		q = q.Where("status IN ?", statusStrings(from))
	}
	res := q.Updates(set)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AppendMessage добавляет сообщение в тред. При promote в той же транзакции выполняется
// условный переход open → in_progress; promoted=true ровно у одного из конкурирующих вызовов.
func (r *TicketRepository) AppendMessage(ctx context.Context, m *model.Message, promote bool) (*model.Ticket, bool, error) {
	var (
		out      *model.Ticket
		promoted bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getTicket(tx, m.TicketID); err != nil {
			return err
		}
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		if promote {
			var err error
			promoted, err = updateIf(tx, m.TicketID,
				[]model.TicketStatus{model.TicketStatusOpen},
				map[string]interface{}{"status": model.TicketStatusInProgress})
			if err != nil {
				return err
			}
		}
		var err error
		out, err = getTicket(tx, m.TicketID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, promoted, nil
}

func statusStrings(in []model.TicketStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
