package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// Swimmer is a participant of the event.
// The ID is the fixed-width decimal string printed on the swimmer's badge.
type Swimmer struct {
	ID        string `gorm:"primaryKey;size:9"`
	Name      string `gorm:"size:80;not null"`
	Laps      int    `gorm:"not null;default:0;check:laps >= 0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Client) GetSwimmer(ctx context.Context, id string) (*Swimmer, error) {
	var swimmer Swimmer
	if err := c.db.WithContext(ctx).Where("id = ?", id).First(&swimmer).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("failed to get swimmer", "id", id, "error", err)
		}
		return nil, err
	}
	return &swimmer, nil
}

func (c *Client) GetSwimmers(ctx context.Context) ([]Swimmer, error) {
	var swimmers []Swimmer
	if err := c.db.WithContext(ctx).Order("id").Find(&swimmers).Error; err != nil {
		log.Error("failed to get swimmers", "error", err)
		return nil, err
	}
	return swimmers, nil
}

func (c *Client) CreateSwimmer(ctx context.Context, id, name string) (*Swimmer, error) {
	swimmer := Swimmer{
		ID:   id,
		Name: name,
	}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Swimmer{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrSwimmerExists
		}
		return tx.Create(&swimmer).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSwimmerExists
		}
		if !errors.Is(err, ErrSwimmerExists) {
			log.Error("failed to create swimmer", "id", id, "error", err)
		}
		return nil, err
	}
	return &swimmer, nil
}

func (c *Client) DeleteSwimmer(ctx context.Context, id string) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("swimmer_id = ?", id).Delete(&VolunteerSwimmer{}).Error; err != nil {
			log.Error("failed to delete swimmer links", "id", id, "error", err)
			return err
		}
		result := tx.Where("id = ?", id).Delete(&Swimmer{})
		if result.Error != nil {
			log.Error("failed to delete swimmer", "id", id, "error", result.Error)
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (c *Client) RenameSwimmer(ctx context.Context, id, name string) (*Swimmer, error) {
	return c.updateSwimmer(ctx, id, func(tx *gorm.DB) error {
		result := tx.Model(&Swimmer{}).Where("id = ?", id).Update("name", name)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// IncrementLaps adds one lap in a single UPDATE so concurrent calls never lose an increment.
func (c *Client) IncrementLaps(ctx context.Context, id string) (*Swimmer, error) {
	return c.updateSwimmer(ctx, id, func(tx *gorm.DB) error {
		result := tx.Model(&Swimmer{}).Where("id = ?", id).Update("laps", gorm.Expr("laps + ?", 1))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// DecrementLaps removes one lap unless the count is already zero.
func (c *Client) DecrementLaps(ctx context.Context, id string) (*Swimmer, error) {
	return c.updateSwimmer(ctx, id, func(tx *gorm.DB) error {
		result := tx.Model(&Swimmer{}).Where("id = ? AND laps > 0", id).Update("laps", gorm.Expr("laps - ?", 1))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}
		var count int64
		if err := tx.Model(&Swimmer{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return ErrLapsAtZero
	})
}

// updateSwimmer runs update and reads the row back in the same transaction,
// so the returned swimmer reflects exactly this update.
func (c *Client) updateSwimmer(ctx context.Context, id string, update func(tx *gorm.DB) error) (*Swimmer, error) {
	var swimmer Swimmer
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := update(tx); err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&swimmer).Error
	})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, ErrLapsAtZero) {
			log.Error("failed to update swimmer", "id", id, "error", err)
		}
		return nil, err
	}
	return &swimmer, nil
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
