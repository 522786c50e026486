package engine

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mergestat/timediff"
	"github.com/samber/lo"
	"github.com/swim4love/swim4love/internal/database"
)

// SwimmerData is the public view of a swimmer.
type SwimmerData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Laps int    `json:"laps"`
}

// Standings maps swimmer ids to their public view.
type Standings map[string]SwimmerData

func newSwimmerData(s *database.Swimmer) *SwimmerData {
	return &SwimmerData{
		ID:   s.ID,
		Name: s.Name,
		Laps: s.Laps,
	}
}

func newStandings(swimmers []database.Swimmer) Standings {
	return lo.SliceToMap(swimmers, func(s database.Swimmer) (string, SwimmerData) {
		return s.ID, *newSwimmerData(&s)
	})
}

// Achievement is what a swimmer's achievement and certificate pages show.
type Achievement struct {
	SwimmerData
	// Distance is the swum distance in metres.
	Distance     int    `json:"distance"`
	DistanceText string `json:"distance_text"`
	// Rank is the competition rank by laps; swimmers with equal laps share a rank.
	Rank          int       `json:"rank"`
	TotalSwimmers int       `json:"total_swimmers"`
	UpdatedAt     time.Time `json:"updated_at"`
	UpdatedAgo    string    `json:"updated_ago"`
}

// Achievement returns the achievement data of a swimmer.
func (e *Engine) Achievement(ctx context.Context, id string) (*Achievement, error) {
	if err := e.ValidateID(id); err != nil {
		return nil, err
	}
	swimmer, err := e.db.GetSwimmer(ctx, id)
	if err != nil {
		return nil, storeError(err, id)
	}
	standings, err := e.Standings(ctx)
	if err != nil {
		return nil, err
	}

	ahead := lo.CountBy(lo.Values(standings), func(s SwimmerData) bool {
		return s.Laps > swimmer.Laps
	})
	distance := swimmer.Laps * e.cfg.LapLength

	return &Achievement{
		SwimmerData:   *newSwimmerData(swimmer),
		Distance:      distance,
		DistanceText:  humanize.Comma(int64(distance)) + " m",
		Rank:          ahead + 1,
		TotalSwimmers: max(len(standings), ahead+1),
		UpdatedAt:     swimmer.UpdatedAt,
		UpdatedAgo:    timediff.TimeDiff(swimmer.UpdatedAt),
	}, nil
}
