package message

import (
	"context"
	"errors"
	"slices"
	"strings"

	"gorm.io/gorm"
)

const insertAttempts = 3

type Repository interface {
	// Create assigns the next seq of the thread and clamps CreatedAt so it
	// is not earlier than the previous message.
	Create(ctx context.Context, msg *Message) error
	ListByThread(ctx context.Context, threadID string) ([]*Message, error)
	ListRecent(ctx context.Context, threadID string, limit int) ([]*Message, error)
	GetByID(ctx context.Context, threadID, id string) (*Message, error)
	// GetNext returns the message right after seq, or nil.
	GetNext(ctx context.Context, threadID string, seq int64) (*Message, error)
	UpdateContent(ctx context.Context, threadID, id, content string) error
	SetFailed(ctx context.Context, threadID, id string, failed bool) error
	DeleteFromSeq(ctx context.Context, threadID string, seq int64) (int64, error)
	CountByThread(ctx context.Context, threadID string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, msg *Message) error {
	var err error
	for attempt := 0; attempt < insertAttempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var last Message
			err := tx.Where("thread_id = ?", msg.ThreadID).Order("seq DESC").Limit(1).Take(&last).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				msg.Seq = 1
			case err != nil:
				return err
			default:
				msg.Seq = last.Seq + 1
				if msg.CreatedAt.Before(last.CreatedAt) {
					msg.CreatedAt = last.CreatedAt
				}
			}
			return tx.Create(msg).Error
		})
		// a concurrent insert took the same seq
		if err == nil || !isUniqueViolation(err) {
			return err
		}
	}
	return err
}

func (r *repository) ListByThread(ctx context.Context, threadID string) ([]*Message, error) {
	messages := make([]*Message, 0)
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("seq ASC").
		Find(&messages).Error
	return messages, err
}

func (r *repository) ListRecent(ctx context.Context, threadID string, limit int) ([]*Message, error) {
	messages := make([]*Message, 0, limit)
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("seq DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

func (r *repository) GetByID(ctx context.Context, threadID, id string) (*Message, error) {
	var msg Message
	err := r.db.WithContext(ctx).Where("thread_id = ? AND id = ?", threadID, id).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *repository) GetNext(ctx context.Context, threadID string, seq int64) (*Message, error) {
	var msg Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ? AND seq > ?", threadID, seq).
		Order("seq ASC").
		Limit(1).
		Take(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *repository) UpdateContent(ctx context.Context, threadID, id, content string) error {
	return r.update(ctx, threadID, id, map[string]interface{}{"content": content})
}

func (r *repository) SetFailed(ctx context.Context, threadID, id string, failed bool) error {
	return r.update(ctx, threadID, id, map[string]interface{}{"is_failed": failed})
}

func (r *repository) update(ctx context.Context, threadID, id string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&Message{}).
		Where("thread_id = ? AND id = ?", threadID, id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *repository) DeleteFromSeq(ctx context.Context, threadID string, seq int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("thread_id = ? AND seq >= ?", threadID, seq).
		Delete(&Message{})
	return res.RowsAffected, res.Error
}

func (r *repository) CountByThread(ctx context.Context, threadID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Message{}).Where("thread_id = ?", threadID).Count(&count).Error
	return count, err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
