package models

import (
	"github.com/swim4love/swim4love/internal/database"
	"github.com/swim4love/swim4love/internal/engine"
)

// ToUser converts a stored volunteer to the request user.
func ToUser(v *database.Volunteer) *User {
	return &User{
		ID:       v.ID,
		Username: v.Username,
		IsAdmin:  v.IsAdmin,
	}
}

// Actor returns the engine actor of the user.
func (u *User) Actor() engine.Actor {
	return engine.Actor{
		ID:       u.ID,
		Username: u.Username,
		IsAdmin:  u.IsAdmin,
	}
}
