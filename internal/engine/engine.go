package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/swim4love/swim4love/internal/cache"
	"github.com/swim4love/swim4love/internal/config"
	"github.com/swim4love/swim4love/internal/database"
	"github.com/swim4love/swim4love/internal/hub"
	"gorm.io/gorm"
)

const (
	// LeaderboardTopic is the hub topic standings are published on.
	LeaderboardTopic = "leaderboard"

	// EventInit carries the snapshot a viewer receives when it connects.
	EventInit = "init"
	// EventSwimmers carries the snapshot published after every change.
	EventSwimmers = "swimmers"

	// MaxNameLength is the longest swimmer name accepted, in characters.
	MaxNameLength = 80

	standingsKey = "all"
)

// Actor is the volunteer performing an operation.
type Actor struct {
	ID       uint
	Username string
	IsAdmin  bool
}

// Engine runs the lap ledger operations against the registry and
// keeps the standings cache and the live viewers in sync with it.
type Engine struct {
	cfg       *config.Config
	db        database.DB
	hub       *hub.Hub
	standings *cache.PrefixedCache[Standings]
	idPattern *regexp.Regexp

	// publishMu orders snapshot reads with the events sent to viewers.
	// Every cache write happens under it as well.
	publishMu sync.Mutex
}

// New creates a new engine.
func New(cfg *config.Config, db database.DB, h *hub.Hub) *Engine {
	return &Engine{
		cfg:       cfg,
		db:        db,
		hub:       h,
		standings: cache.New[Standings](cfg.Cache, cache.StandingsCachePrefix),
		idPattern: regexp.MustCompile(fmt.Sprintf(`^[0-9]{%d}$`, cfg.SwimmerIDLength)),
	}
}

// DB returns the underlying database.
func (e *Engine) DB() database.DB {
	return e.db
}

// Viewers returns the number of connected leaderboard viewers.
func (e *Engine) Viewers() int {
	return e.hub.Count(LeaderboardTopic)
}

// CacheStats returns the backend and the hit and miss counters of the standings cache.
func (e *Engine) CacheStats() (cacheType config.CacheType, hits, misses int) {
	stats := e.standings.GetStats()
	return e.standings.GetType(), stats.Hits, stats.Miss
}

// ValidateID checks that id is a swimmer id of the configured width.
func (e *Engine) ValidateID(id string) error {
	if id == "" {
		return ErrMalformed
	}
	if !e.idPattern.MatchString(id) {
		return newError(CodeInvalidIDFormat, id)
	}
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrMalformed
	}
	return name, nil
}

// storeError converts a database error for swimmer id into a domain error.
func storeError(err error, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return newError(CodeIDNotRegistered, id)
	case errors.Is(err, database.ErrSwimmerExists):
		return newError(CodeIDAlreadyExists, id)
	case errors.Is(err, database.ErrLapsAtZero):
		return newError(CodeDecrementBelowZero, id)
	case errors.Is(err, database.ErrUsernameTaken):
		return newError(CodeUsernameTaken, "")
	default:
		return internalError(err)
	}
}

// Standings returns the full snapshot, served from the cache when possible.
func (e *Engine) Standings(ctx context.Context) (Standings, error) {
	if standings, err := e.standings.Get(ctx, standingsKey); err == nil {
		return standings, nil
	}

	e.publishMu.Lock()
	defer e.publishMu.Unlock()
	if standings, err := e.standings.Get(ctx, standingsKey); err == nil {
		return standings, nil
	}
	return e.loadStandings(ctx)
}

// loadStandings reads the snapshot from the database and caches it.
// The caller must hold publishMu.
func (e *Engine) loadStandings(ctx context.Context) (Standings, error) {
	swimmers, err := e.db.GetSwimmers(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	standings := newStandings(swimmers)
	if err := e.standings.Set(ctx, standingsKey, standings); err != nil {
		log.Warn("failed to cache standings", "error", err)
	}
	return standings, nil
}

// publish pushes the standings after a committed mutation. The commit
// stands even if the caller has gone away, so the broadcast does too.
func (e *Engine) publish(ctx context.Context) {
	if err := e.refresh(context.WithoutCancel(ctx)); err != nil {
		log.Error("failed to publish standings", "error", err)
	}
}

// refresh reloads the standings, caches them and sends them to every viewer.
// When the reload fails the cached snapshot is dropped so readers go back to the database.
func (e *Engine) refresh(ctx context.Context) error {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	standings, err := e.loadStandings(ctx)
	if err != nil {
		if derr := e.standings.Delete(ctx, standingsKey); derr != nil {
			log.Warn("failed to drop cached standings", "error", derr)
		}
		return err
	}
	msg, err := newMessage(EventSwimmers, standings)
	if err != nil {
		return fmt.Errorf("failed to encode standings: %w", err)
	}
	delivered := e.hub.Publish(LeaderboardTopic, msg)
	log.Debug("published standings", "swimmers", len(standings), "viewers", delivered)
	return nil
}

// Resync republishes the current standings to all viewers.
func (e *Engine) Resync(ctx context.Context) error {
	return e.refresh(ctx)
}

// Subscribe registers a leaderboard viewer and queues its init snapshot.
// No publish can interleave between the snapshot and the init event,
// so the viewer sees every later change as a swimmers event.
func (e *Engine) Subscribe(ctx context.Context) (*hub.Subscriber, error) {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	sub := e.hub.Subscribe(LeaderboardTopic)
	standings, err := e.standings.Get(ctx, standingsKey)
	if err != nil {
		standings, err = e.loadStandings(ctx)
		if err != nil {
			e.hub.Unsubscribe(sub)
			return nil, err
		}
	}
	msg, err := newMessage(EventInit, standings)
	if err != nil {
		e.hub.Unsubscribe(sub)
		return nil, internalError(err)
	}
	e.hub.Send(sub, msg)
	return sub, nil
}

// Unsubscribe removes a leaderboard viewer.
func (e *Engine) Unsubscribe(sub *hub.Subscriber) {
	e.hub.Unsubscribe(sub)
}

func newMessage(event string, standings Standings) (hub.Message, error) {
	data, err := json.Marshal(standings)
	if err != nil {
		return hub.Message{}, err
	}
	return hub.Message{Event: event, Data: data}, nil
}
