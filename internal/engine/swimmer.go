package engine

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/swim4love/swim4love/internal/database"
)

// GetSwimmer returns a single swimmer.
func (e *Engine) GetSwimmer(ctx context.Context, id string) (*SwimmerData, error) {
	if err := e.ValidateID(id); err != nil {
		return nil, err
	}
	swimmer, err := e.db.GetSwimmer(ctx, id)
	if err != nil {
		return nil, storeError(err, id)
	}
	return newSwimmerData(swimmer), nil
}

// AddSwimmer registers a new swimmer with zero laps.
func (e *Engine) AddSwimmer(ctx context.Context, actor Actor, id, name string) (*SwimmerData, error) {
	if err := e.ValidateID(id); err != nil {
		return nil, err
	}
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	swimmer, err := e.db.CreateSwimmer(ctx, id, name)
	if err != nil {
		return nil, storeError(err, id)
	}
	log.Info("swimmer added", "id", id, "name", name, "by", actor.Username)
	e.publish(ctx)
	return newSwimmerData(swimmer), nil
}

// DeleteSwimmer removes a swimmer and all links to it.
func (e *Engine) DeleteSwimmer(ctx context.Context, actor Actor, id string) error {
	if err := e.ValidateID(id); err != nil {
		return err
	}
	if err := e.db.DeleteSwimmer(ctx, id); err != nil {
		return storeError(err, id)
	}
	log.Info("swimmer deleted", "id", id, "by", actor.Username)
	e.publish(ctx)
	return nil
}

// RenameSwimmer changes the name of a swimmer.
func (e *Engine) RenameSwimmer(ctx context.Context, actor Actor, id, name string) (*SwimmerData, error) {
	if err := e.ValidateID(id); err != nil {
		return nil, err
	}
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	swimmer, err := e.db.RenameSwimmer(ctx, id, name)
	if err != nil {
		return nil, storeError(err, id)
	}
	log.Info("swimmer renamed", "id", id, "name", name, "by", actor.Username)
	e.publish(ctx)
	return newSwimmerData(swimmer), nil
}

// AddLap counts one more lap for a swimmer.
func (e *Engine) AddLap(ctx context.Context, actor Actor, id string) (*SwimmerData, error) {
	return e.changeLaps(ctx, actor, id, e.db.IncrementLaps)
}

// SubLap takes back one lap. It fails when the swimmer has no laps.
func (e *Engine) SubLap(ctx context.Context, actor Actor, id string) (*SwimmerData, error) {
	return e.changeLaps(ctx, actor, id, e.db.DecrementLaps)
}

func (e *Engine) changeLaps(
	ctx context.Context,
	actor Actor,
	id string,
	change func(ctx context.Context, id string) (*database.Swimmer, error),
) (*SwimmerData, error) {
	if err := e.ValidateID(id); err != nil {
		return nil, err
	}
	if err := e.checkLapScope(ctx, actor, id); err != nil {
		return nil, err
	}
	swimmer, err := change(ctx, id)
	if err != nil {
		return nil, storeError(err, id)
	}
	log.Debug("laps changed", "id", id, "laps", swimmer.Laps, "by", actor.Username)
	e.publish(ctx)
	return newSwimmerData(swimmer), nil
}

// checkLapScope enforces auth.restrict_laps_to_linked for non-admin volunteers.
func (e *Engine) checkLapScope(ctx context.Context, actor Actor, id string) error {
	if actor.IsAdmin || e.cfg.Auth == nil || !e.cfg.Auth.RestrictLapsToLinked {
		return nil
	}
	linked, err := e.db.IsLinked(ctx, actor.ID, id)
	if err != nil {
		return internalError(err)
	}
	if linked {
		return nil
	}
	// report unknown swimmers as such rather than as forbidden
	if _, err := e.db.GetSwimmer(ctx, id); err != nil {
		return storeError(err, id)
	}
	return ErrForbidden
}
