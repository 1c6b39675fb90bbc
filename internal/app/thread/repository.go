package thread

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, thread *Thread) error
	GetByID(ctx context.Context, id string) (*Thread, error)
	ListByUserID(ctx context.Context, userID string) ([]*Thread, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	DeleteMessages(ctx context.Context, threadID string) (int64, error)
	Delete(ctx context.Context, id string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, thread *Thread) error {
	return r.db.WithContext(ctx).Create(thread).Error
}

func (r *repository) GetByID(ctx context.Context, id string) (*Thread, error) {
	var thread Thread
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *repository) ListByUserID(ctx context.Context, userID string) ([]*Thread, error) {
	threads := make([]*Thread, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&threads).Error
	return threads, err
}

func (r *repository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&Thread{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrThreadNotFound
	}
	return nil
}

// DeleteMessages removes every message of the thread in one statement.
func (r *repository) DeleteMessages(ctx context.Context, threadID string) (int64, error) {
	res := r.db.WithContext(ctx).Exec("DELETE FROM messages WHERE thread_id = ?", threadID)
	return res.RowsAffected, res.Error
}

func (r *repository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Thread{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrThreadNotFound
	}
	return nil
}
