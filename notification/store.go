package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yeremiapane/restaurant-order-engine/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned by MarkRead for a notification the user does not own.
var ErrNotFound = errors.New("notification not found")

// Store persists notifications so users can read them later.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Notify(ctx context.Context, msg Message) error {
	var data string
	if len(msg.Data) > 0 {
		raw, err := json.Marshal(msg.Data)
		if err != nil {
			return fmt.Errorf("encode notification data: %w", err)
		}
		data = string(raw)
	}
	row := models.Notification{
		UserID:    msg.UserID,
		Action:    msg.Action,
		Title:     msg.Title,
		Message:   msg.Body,
		Data:      data,
		CreatedAt: msg.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// List returns the newest notifications of a user first.
func (s *Store) List(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where(map[string]interface{}{"read": false})
	}
	var out []models.Notification
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (s *Store) MarkRead(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
