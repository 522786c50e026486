package database

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdminUsername is the name of the built-in admin account.
const AdminUsername = "admin"

// Volunteer is a user who records laps. Admins additionally manage swimmers and volunteers.
type Volunteer struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"size:80;uniqueIndex;not null"`
	Password  string `gorm:"size:80;not null"` // bcrypt hash, empty for externally authenticated volunteers
	IsAdmin   bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VolunteerSwimmer links a volunteer to a swimmer they look after.
type VolunteerSwimmer struct {
	ID          uint      `gorm:"primaryKey"`
	VolunteerID uint      `gorm:"not null;uniqueIndex:idx_volunteer_swimmer"`
	Volunteer   Volunteer `gorm:"constraint:OnDelete:CASCADE;"`
	SwimmerID   string    `gorm:"size:9;not null;uniqueIndex:idx_volunteer_swimmer"`
	Swimmer     Swimmer   `gorm:"constraint:OnDelete:CASCADE;"`
}

func (c *Client) CreateVolunteer(ctx context.Context, username, password string, isAdmin bool) (*Volunteer, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	volunteer := Volunteer{
		Username: username,
		Password: string(hash),
		IsAdmin:  isAdmin,
	}
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Volunteer{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUsernameTaken
		}
		return tx.Create(&volunteer).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		if !errors.Is(err, ErrUsernameTaken) {
			log.Error("failed to create volunteer", "username", username, "error", err)
		}
		return nil, err
	}
	return &volunteer, nil
}

// Authenticate returns the volunteer if the password matches.
// gorm.ErrRecordNotFound is returned for unknown usernames and ErrInvalidCredentials for a wrong password.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*Volunteer, error) {
	volunteer, err := c.GetVolunteerByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if volunteer.Password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(volunteer.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return volunteer, nil
}

func (c *Client) GetVolunteerByID(ctx context.Context, id uint) (*Volunteer, error) {
	var volunteer Volunteer
	if err := c.db.WithContext(ctx).First(&volunteer, id).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("failed to get volunteer by ID", "error", err)
		}
		return nil, err
	}
	return &volunteer, nil
}

func (c *Client) GetVolunteerByUsername(ctx context.Context, username string) (*Volunteer, error) {
	var volunteer Volunteer
	if err := c.db.WithContext(ctx).Where("username = ?", username).First(&volunteer).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("failed to get volunteer by username", "error", err)
		}
		return nil, err
	}
	return &volunteer, nil
}

// GetOrCreateExternalVolunteer returns the volunteer for an identity provider login,
// creating it on first login. The admin flag always follows the provider.
// Local accounts are never taken over; ErrUsernameTaken is returned instead.
func (c *Client) GetOrCreateExternalVolunteer(ctx context.Context, username string, isAdmin bool) (*Volunteer, error) {
	volunteer, err := c.GetVolunteerByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		volunteer = &Volunteer{
			Username: username,
			IsAdmin:  isAdmin,
		}
		if err := c.db.WithContext(ctx).Create(volunteer).Error; err != nil {
			log.Error("failed to create external volunteer", "username", username, "error", err)
			return nil, err
		}
		return volunteer, nil
	}
	if err != nil {
		return nil, err
	}
	if volunteer.Password != "" {
		return nil, ErrUsernameTaken
	}

	if volunteer.IsAdmin != isAdmin {
		if err := c.db.WithContext(ctx).Model(volunteer).Update("is_admin", isAdmin).Error; err != nil {
			log.Error("failed to update volunteer admin flag", "username", username, "error", err)
			return nil, err
		}
		volunteer.IsAdmin = isAdmin
	}
	return volunteer, nil
}

func (c *Client) GetVolunteers(ctx context.Context) ([]Volunteer, error) {
	var volunteers []Volunteer
	if err := c.db.WithContext(ctx).Order("id").Find(&volunteers).Error; err != nil {
		log.Error("failed to get volunteers", "error", err)
		return nil, err
	}
	return volunteers, nil
}

func (c *Client) DeleteVolunteer(ctx context.Context, id uint) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("volunteer_id = ?", id).Delete(&VolunteerSwimmer{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&Volunteer{}, id)
		if result.Error != nil {
			log.Error("failed to delete volunteer", "id", id, "error", result.Error)
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ReconcileAdmin deletes and recreates the built-in admin account with the given password.
func (c *Client) ReconcileAdmin(ctx context.Context, password string) (*Volunteer, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	admin := Volunteer{
		Username: AdminUsername,
		Password: string(hash),
		IsAdmin:  true,
	}
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&Volunteer{}).Where("username = ?", AdminUsername).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) > 0 {
			if err := tx.Where("volunteer_id IN ?", ids).Delete(&VolunteerSwimmer{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", ids).Delete(&Volunteer{}).Error; err != nil {
				return err
			}
		}
		return tx.Create(&admin).Error
	})
	if err != nil {
		log.Error("failed to reconcile admin account", "error", err)
		return nil, err
	}
	return &admin, nil
}

// LinkSwimmer links a swimmer to a volunteer. Linking twice is a no-op.
func (c *Client) LinkSwimmer(ctx context.Context, volunteerID uint, swimmerID string) error {
	link := VolunteerSwimmer{
		VolunteerID: volunteerID,
		SwimmerID:   swimmerID,
	}
	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&link).Error
	if err != nil {
		log.Error("failed to link swimmer", "volunteer", volunteerID, "swimmer", swimmerID, "error", err)
		return err
	}
	return nil
}

// UnlinkSwimmer removes a link. Removing a missing link is a no-op.
func (c *Client) UnlinkSwimmer(ctx context.Context, volunteerID uint, swimmerID string) error {
	err := c.db.WithContext(ctx).
		Where("volunteer_id = ? AND swimmer_id = ?", volunteerID, swimmerID).
		Delete(&VolunteerSwimmer{}).Error
	if err != nil {
		log.Error("failed to unlink swimmer", "volunteer", volunteerID, "swimmer", swimmerID, "error", err)
		return err
	}
	return nil
}

// GetLinkedSwimmers returns the volunteer's swimmers in the order they were linked.
func (c *Client) GetLinkedSwimmers(ctx context.Context, volunteerID uint) ([]Swimmer, error) {
	var swimmers []Swimmer
	err := c.db.WithContext(ctx).
		Joins("JOIN volunteer_swimmers ON volunteer_swimmers.swimmer_id = swimmers.id").
		Where("volunteer_swimmers.volunteer_id = ?", volunteerID).
		Order("volunteer_swimmers.id").
		Find(&swimmers).Error
	if err != nil {
		log.Error("failed to get linked swimmers", "volunteer", volunteerID, "error", err)
		return nil, err
	}
	return swimmers, nil
}

func (c *Client) IsLinked(ctx context.Context, volunteerID uint, swimmerID string) (bool, error) {
	var count int64
	err := c.db.WithContext(ctx).Model(&VolunteerSwimmer{}).
		Where("volunteer_id = ? AND swimmer_id = ?", volunteerID, swimmerID).
		Count(&count).Error
	if err != nil {
		log.Error("failed to check swimmer link", "volunteer", volunteerID, "swimmer", swimmerID, "error", err)
		return false, err
	}
	return count > 0, nil
}
