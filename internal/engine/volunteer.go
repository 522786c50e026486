package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/swim4love/swim4love/internal/database"
	"gorm.io/gorm"
)

// VolunteerData is the view of a volunteer account.
type VolunteerData struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	External bool   `json:"external"`
}

func newVolunteerData(v *database.Volunteer) VolunteerData {
	return VolunteerData{
		ID:       v.ID,
		Username: v.Username,
		IsAdmin:  v.IsAdmin,
		External: v.Password == "",
	}
}

// LinkedSwimmers returns the swimmers linked to a volunteer.
func (e *Engine) LinkedSwimmers(ctx context.Context, volunteerID uint) (Standings, error) {
	swimmers, err := e.db.GetLinkedSwimmers(ctx, volunteerID)
	if err != nil {
		return nil, internalError(err)
	}
	return newStandings(swimmers), nil
}

// LinkSwimmer adds a swimmer to the volunteer's list. Linking twice is a no-op.
func (e *Engine) LinkSwimmer(ctx context.Context, actor Actor, id string) (*SwimmerData, error) {
	if err := e.ValidateID(id); err != nil {
		return nil, err
	}
	swimmer, err := e.db.GetSwimmer(ctx, id)
	if err != nil {
		return nil, storeError(err, id)
	}
	if err := e.db.LinkSwimmer(ctx, actor.ID, id); err != nil {
		return nil, internalError(err)
	}
	log.Debug("swimmer linked", "id", id, "volunteer", actor.Username)
	return newSwimmerData(swimmer), nil
}

// UnlinkSwimmer removes a swimmer from the volunteer's list.
func (e *Engine) UnlinkSwimmer(ctx context.Context, actor Actor, id string) error {
	if err := e.ValidateID(id); err != nil {
		return err
	}
	if _, err := e.db.GetSwimmer(ctx, id); err != nil {
		return storeError(err, id)
	}
	if err := e.db.UnlinkSwimmer(ctx, actor.ID, id); err != nil {
		return internalError(err)
	}
	log.Debug("swimmer unlinked", "id", id, "volunteer", actor.Username)
	return nil
}

// Volunteers lists all volunteer accounts.
func (e *Engine) Volunteers(ctx context.Context) ([]VolunteerData, error) {
	volunteers, err := e.db.GetVolunteers(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	result := make([]VolunteerData, 0, len(volunteers))
	for i := range volunteers {
		result = append(result, newVolunteerData(&volunteers[i]))
	}
	return result, nil
}

// RegisterVolunteer creates a volunteer account with a local password.
func (e *Engine) RegisterVolunteer(ctx context.Context, actor Actor, username, password string, isAdmin bool) (*VolunteerData, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" || len(username) > 80 {
		return nil, ErrMalformed
	}
	volunteer, err := e.db.CreateVolunteer(ctx, username, password, isAdmin)
	if err != nil {
		return nil, storeError(err, "")
	}
	log.Info("volunteer registered", "username", username, "admin", isAdmin, "by", actor.Username)
	data := newVolunteerData(volunteer)
	return &data, nil
}

// DeleteVolunteer removes a volunteer account. Volunteers cannot delete themselves.
func (e *Engine) DeleteVolunteer(ctx context.Context, actor Actor, id uint) error {
	if id == actor.ID {
		return ErrForbidden
	}
	if err := e.db.DeleteVolunteer(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return internalError(err)
	}
	log.Info("volunteer deleted", "id", id, "by", actor.Username)
	return nil
}
