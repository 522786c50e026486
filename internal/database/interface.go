package database

import "context"

// DB defines the storage operations used by the engine and the auth layer.
type DB interface {
	// Swimmer registry
	GetSwimmer(ctx context.Context, id string) (*Swimmer, error)
	GetSwimmers(ctx context.Context) ([]Swimmer, error)
	CreateSwimmer(ctx context.Context, id, name string) (*Swimmer, error)
	DeleteSwimmer(ctx context.Context, id string) error
	RenameSwimmer(ctx context.Context, id, name string) (*Swimmer, error)
	IncrementLaps(ctx context.Context, id string) (*Swimmer, error)
	DecrementLaps(ctx context.Context, id string) (*Swimmer, error)

	// Volunteer directory
	CreateVolunteer(ctx context.Context, username, password string, isAdmin bool) (*Volunteer, error)
	Authenticate(ctx context.Context, username, password string) (*Volunteer, error)
	GetVolunteerByID(ctx context.Context, id uint) (*Volunteer, error)
	GetVolunteerByUsername(ctx context.Context, username string) (*Volunteer, error)
	GetOrCreateExternalVolunteer(ctx context.Context, username string, isAdmin bool) (*Volunteer, error)
	GetVolunteers(ctx context.Context) ([]Volunteer, error)
	DeleteVolunteer(ctx context.Context, id uint) error
	ReconcileAdmin(ctx context.Context, password string) (*Volunteer, error)

	// Volunteer to swimmer links
	LinkSwimmer(ctx context.Context, volunteerID uint, swimmerID string) error
	UnlinkSwimmer(ctx context.Context, volunteerID uint, swimmerID string) error
	GetLinkedSwimmers(ctx context.Context, volunteerID uint) ([]Swimmer, error)
	IsLinked(ctx context.Context, volunteerID uint, swimmerID string) (bool, error)

	Close() error
}
