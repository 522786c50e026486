package engine

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/swim4love/swim4love/internal/config"
	"github.com/swim4love/swim4love/internal/database"
	"github.com/swim4love/swim4love/internal/hub"
)

type EngineTestSuite struct {
	suite.Suite
	ctx    context.Context
	cfg    *config.Config
	db     *database.Client
	hub    *hub.Hub
	engine *Engine
	admin  Actor
	alice  Actor
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.cfg = &config.Config{
		Locale:          config.LocaleEnglish,
		SwimmerIDLength: 3,
		LapLength:       50,
		Cache:           &config.CacheConfig{Type: config.CacheTypeMemory, TTL: time.Minute},
		Live:            &config.LiveConfig{QueueSize: 64},
		Auth:            &config.AuthConfig{},
	}

	db, err := database.New(filepath.Join(s.T().TempDir(), "swim4love.db"))
	s.Require().NoError(err)
	s.db = db
	s.hub = hub.New(s.cfg.Live.GetQueueSize())
	s.engine = New(s.cfg, db, s.hub)

	admin, err := db.ReconcileAdmin(s.ctx, "secret")
	s.Require().NoError(err)
	s.admin = Actor{ID: admin.ID, Username: admin.Username, IsAdmin: true}

	alice, err := db.CreateVolunteer(s.ctx, "alice", "pw", false)
	s.Require().NoError(err)
	s.alice = Actor{ID: alice.ID, Username: alice.Username}
}

func (s *EngineTestSuite) TearDownTest() {
	s.hub.Close()
	s.Require().NoError(s.db.Close())
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) addSwimmer(id, name string) {
	_, err := s.engine.AddSwimmer(s.ctx, s.admin, id, name)
	s.Require().NoError(err)
}

func (s *EngineTestSuite) next(sub *hub.Subscriber) (string, Standings) {
	select {
	case msg := <-sub.Messages():
		var standings Standings
		s.Require().NoError(json.Unmarshal(msg.Data, &standings))
		return msg.Event, standings
	case <-time.After(time.Second):
		s.FailNow("no message received")
		return "", nil
	}
}

func (s *EngineTestSuite) TestCreateThenGetHasZeroLaps() {
	created, err := s.engine.AddSwimmer(s.ctx, s.admin, "001", "Alice")
	s.Require().NoError(err)
	s.Equal(0, created.Laps)

	got, err := s.engine.GetSwimmer(s.ctx, "001")
	s.Require().NoError(err)
	s.Equal(SwimmerData{ID: "001", Name: "Alice", Laps: 0}, *got)
}

func (s *EngineTestSuite) TestLapSequence() {
	s.addSwimmer("001", "Alice")

	var laps []int
	for _, op := range []func(context.Context, Actor, string) (*SwimmerData, error){
		s.engine.AddLap, s.engine.AddLap, s.engine.SubLap, s.engine.SubLap,
	} {
		swimmer, err := op(s.ctx, s.alice, "001")
		s.Require().NoError(err)
		laps = append(laps, swimmer.Laps)
	}
	s.Equal([]int{1, 2, 1, 0}, laps)

	_, err := s.engine.SubLap(s.ctx, s.alice, "001")
	s.Equal(CodeDecrementBelowZero, ErrorCode(err))

	got, err := s.engine.GetSwimmer(s.ctx, "001")
	s.Require().NoError(err)
	s.Equal(0, got.Laps)
}

func (s *EngineTestSuite) TestAddThenSubIsRoundTrip() {
	s.addSwimmer("007", "Bond")
	for range 3 {
		_, err := s.engine.AddLap(s.ctx, s.alice, "007")
		s.Require().NoError(err)
	}

	_, err := s.engine.AddLap(s.ctx, s.alice, "007")
	s.Require().NoError(err)
	swimmer, err := s.engine.SubLap(s.ctx, s.alice, "007")
	s.Require().NoError(err)
	s.Equal(3, swimmer.Laps)
}

func (s *EngineTestSuite) TestConcurrentAddLapsAreNotLost() {
	s.addSwimmer("001", "Alice")

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Go(func() {
			_, err := s.engine.AddLap(s.ctx, s.alice, "001")
			s.NoError(err)
		})
	}
	wg.Wait()

	got, err := s.engine.GetSwimmer(s.ctx, "001")
	s.Require().NoError(err)
	s.Equal(n, got.Laps)
}

func (s *EngineTestSuite) TestInvalidIDLeavesRegistryUnchanged() {
	for _, id := range []string{"01", "0001", "abc", "0x1", "١٢٣"} {
		_, err := s.engine.AddSwimmer(s.ctx, s.admin, id, "Nobody")
		s.Equal(CodeInvalidIDFormat, ErrorCode(err), id)
	}

	standings, err := s.engine.Standings(s.ctx)
	s.Require().NoError(err)
	s.Empty(standings)
}

func (s *EngineTestSuite) TestMalformedInput() {
	_, err := s.engine.AddSwimmer(s.ctx, s.admin, "", "Alice")
	s.Equal(CodeMalformedRequest, ErrorCode(err))

	_, err = s.engine.AddSwimmer(s.ctx, s.admin, "001", "   ")
	s.Equal(CodeMalformedRequest, ErrorCode(err))

	_, err = s.engine.AddSwimmer(s.ctx, s.admin, "001", strings.Repeat("a", MaxNameLength+1))
	s.Equal(CodeMalformedRequest, ErrorCode(err))
}

func (s *EngineTestSuite) TestDuplicateSwimmer() {
	s.addSwimmer("001", "Alice")
	_, err := s.engine.AddSwimmer(s.ctx, s.admin, "001", "Again")
	s.Equal(CodeIDAlreadyExists, ErrorCode(err))
}

func (s *EngineTestSuite) TestUnknownSwimmer() {
	err := s.engine.DeleteSwimmer(s.ctx, s.admin, "404")
	s.Equal(CodeIDNotRegistered, ErrorCode(err))

	_, err = s.engine.AddLap(s.ctx, s.alice, "404")
	s.Equal(CodeIDNotRegistered, ErrorCode(err))

	_, err = s.engine.SubLap(s.ctx, s.alice, "404")
	s.Equal(CodeIDNotRegistered, ErrorCode(err))

	_, err = s.engine.RenameSwimmer(s.ctx, s.admin, "404", "Ghost")
	s.Equal(CodeIDNotRegistered, ErrorCode(err))
}

func (s *EngineTestSuite) TestRenameAndDelete() {
	s.addSwimmer("001", "Alice")

	renamed, err := s.engine.RenameSwimmer(s.ctx, s.admin, "001", " Alicia ")
	s.Require().NoError(err)
	s.Equal("Alicia", renamed.Name)

	s.Require().NoError(s.engine.DeleteSwimmer(s.ctx, s.admin, "001"))
	_, err = s.engine.GetSwimmer(s.ctx, "001")
	s.Equal(CodeIDNotRegistered, ErrorCode(err))
}

func (s *EngineTestSuite) TestInitSnapshotMatchesListWithoutMutations() {
	sub, err := s.engine.Subscribe(s.ctx)
	s.Require().NoError(err)

	event, standings := s.next(sub)
	s.Equal(EventInit, event)
	s.Empty(standings)
}

func (s *EngineTestSuite) TestInitSnapshotMatchesList() {
	s.addSwimmer("001", "Alice")
	s.addSwimmer("002", "Bob")
	_, err := s.engine.AddLap(s.ctx, s.alice, "002")
	s.Require().NoError(err)

	sub, err := s.engine.Subscribe(s.ctx)
	s.Require().NoError(err)
	event, standings := s.next(sub)

	list, err := s.engine.Standings(s.ctx)
	s.Require().NoError(err)
	s.Equal(EventInit, event)
	s.Equal(list, standings)
}

func (s *EngineTestSuite) TestBroadcastMatchesMutationResponse() {
	s.addSwimmer("001", "Alice")
	sub, err := s.engine.Subscribe(s.ctx)
	s.Require().NoError(err)
	event, _ := s.next(sub)
	s.Equal(EventInit, event)

	swimmer, err := s.engine.AddLap(s.ctx, s.alice, "001")
	s.Require().NoError(err)
	event, standings := s.next(sub)
	s.Equal(EventSwimmers, event)
	s.Equal(swimmer.Laps, standings["001"].Laps)

	swimmer, err = s.engine.SubLap(s.ctx, s.alice, "001")
	s.Require().NoError(err)
	_, standings = s.next(sub)
	s.Equal(swimmer.Laps, standings["001"].Laps)

	s.Require().NoError(s.engine.DeleteSwimmer(s.ctx, s.admin, "001"))
	_, standings = s.next(sub)
	s.NotContains(standings, "001")
}

func (s *EngineTestSuite) TestFailedMutationDoesNotBroadcast() {
	s.addSwimmer("001", "Alice")
	sub, err := s.engine.Subscribe(s.ctx)
	s.Require().NoError(err)
	s.next(sub)

	_, err = s.engine.SubLap(s.ctx, s.alice, "001")
	s.Require().Error(err)
	s.Empty(sub.Messages())
}

func (s *EngineTestSuite) TestStandingsCacheIsRefreshedByMutations() {
	s.addSwimmer("001", "Alice")
	first, err := s.engine.Standings(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, first["001"].Laps)

	_, err = s.engine.AddLap(s.ctx, s.alice, "001")
	s.Require().NoError(err)

	second, err := s.engine.Standings(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, second["001"].Laps)

	cacheType, hits, _ := s.engine.CacheStats()
	s.Equal(config.CacheTypeMemory, cacheType)
	s.Positive(hits)
}

func (s *EngineTestSuite) TestResyncPublishesSnapshot() {
	s.addSwimmer("001", "Alice")
	sub, err := s.engine.Subscribe(s.ctx)
	s.Require().NoError(err)
	s.next(sub)

	s.Require().NoError(s.engine.Resync(s.ctx))
	event, standings := s.next(sub)
	s.Equal(EventSwimmers, event)
	s.Contains(standings, "001")
	s.Equal(1, s.engine.Viewers())
}

// flakyDB cancels the caller's context once a lap change has committed and
// can be told to fail standings reads.
type flakyDB struct {
	database.DB
	cancel      context.CancelFunc
	failListing atomic.Bool
}

func (d *flakyDB) IncrementLaps(ctx context.Context, id string) (*database.Swimmer, error) {
	swimmer, err := d.DB.IncrementLaps(ctx, id)
	if d.cancel != nil {
		d.cancel()
	}
	return swimmer, err
}

func (d *flakyDB) GetSwimmers(ctx context.Context) ([]database.Swimmer, error) {
	if d.failListing.Load() {
		return nil, errors.New("database unavailable")
	}
	return d.DB.GetSwimmers(ctx)
}

func (s *EngineTestSuite) TestCommittedChangeIsPublishedAfterCallerLeaves() {
	s.addSwimmer("001", "Alice")
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	eng := New(s.cfg, &flakyDB{DB: s.db, cancel: cancel}, s.hub)

	before, err := eng.Standings(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, before["001"].Laps)
	sub, err := eng.Subscribe(s.ctx)
	s.Require().NoError(err)
	s.next(sub)

	swimmer, err := eng.AddLap(ctx, s.alice, "001")
	s.Require().NoError(err)
	s.Equal(1, swimmer.Laps)
	s.Require().ErrorIs(ctx.Err(), context.Canceled)

	event, standings := s.next(sub)
	s.Equal(EventSwimmers, event)
	s.Equal(1, standings["001"].Laps)

	after, err := eng.Standings(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, after["001"].Laps)
}

func (s *EngineTestSuite) TestFailedReloadDropsCachedStandings() {
	s.addSwimmer("001", "Alice")
	db := &flakyDB{DB: s.db}
	eng := New(s.cfg, db, s.hub)

	before, err := eng.Standings(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, before["001"].Laps)

	db.failListing.Store(true)
	_, err = eng.AddLap(s.ctx, s.alice, "001")
	s.Require().NoError(err)
	s.Error(eng.Resync(s.ctx))

	db.failListing.Store(false)
	after, err := eng.Standings(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, after["001"].Laps)
}

func (s *EngineTestSuite) TestRestrictedLapsRequireLink() {
	s.cfg.Auth.RestrictLapsToLinked = true
	s.addSwimmer("001", "Alice")

	_, err := s.engine.AddLap(s.ctx, s.alice, "001")
	s.Equal(CodeForbidden, ErrorCode(err))

	_, err = s.engine.AddLap(s.ctx, s.alice, "404")
	s.Equal(CodeIDNotRegistered, ErrorCode(err))

	_, err = s.engine.LinkSwimmer(s.ctx, s.alice, "001")
	s.Require().NoError(err)
	swimmer, err := s.engine.AddLap(s.ctx, s.alice, "001")
	s.Require().NoError(err)
	s.Equal(1, swimmer.Laps)

	// admins are never scoped
	_, err = s.engine.AddLap(s.ctx, s.admin, "001")
	s.NoError(err)
}

func (s *EngineTestSuite) TestLinks() {
	s.addSwimmer("002", "Bob")
	s.addSwimmer("001", "Alice")

	_, err := s.engine.LinkSwimmer(s.ctx, s.alice, "002")
	s.Require().NoError(err)
	_, err = s.engine.LinkSwimmer(s.ctx, s.alice, "001")
	s.Require().NoError(err)
	_, err = s.engine.LinkSwimmer(s.ctx, s.alice, "001")
	s.Require().NoError(err, "linking twice is a no-op")

	linked, err := s.engine.LinkedSwimmers(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Len(linked, 2)

	_, err = s.engine.LinkSwimmer(s.ctx, s.alice, "404")
	s.Equal(CodeIDNotRegistered, ErrorCode(err))

	s.Require().NoError(s.engine.UnlinkSwimmer(s.ctx, s.alice, "002"))
	s.Require().NoError(s.engine.UnlinkSwimmer(s.ctx, s.alice, "002"))
	linked, err = s.engine.LinkedSwimmers(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(Standings{"001": {ID: "001", Name: "Alice"}}, linked)
}

func (s *EngineTestSuite) TestAchievementRanksWithTies() {
	s.addSwimmer("001", "Alice")
	s.addSwimmer("002", "Bob")
	s.addSwimmer("003", "Carol")
	for _, id := range []string{"001", "001", "002", "002", "003"} {
		_, err := s.engine.AddLap(s.ctx, s.alice, id)
		s.Require().NoError(err)
	}

	a, err := s.engine.Achievement(s.ctx, "001")
	s.Require().NoError(err)
	b, err := s.engine.Achievement(s.ctx, "002")
	s.Require().NoError(err)
	c, err := s.engine.Achievement(s.ctx, "003")
	s.Require().NoError(err)

	s.Equal(1, a.Rank)
	s.Equal(1, b.Rank)
	s.Equal(3, c.Rank)
	s.Equal(3, c.TotalSwimmers)
	s.Equal(100, a.Distance)
	s.Equal("100 m", a.DistanceText)
	s.NotEmpty(a.UpdatedAgo)

	_, err = s.engine.Achievement(s.ctx, "404")
	s.Equal(CodeIDNotRegistered, ErrorCode(err))
}

func (s *EngineTestSuite) TestVolunteerManagement() {
	bob, err := s.engine.RegisterVolunteer(s.ctx, s.admin, "bob", "pw", false)
	s.Require().NoError(err)
	s.False(bob.IsAdmin)

	_, err = s.engine.RegisterVolunteer(s.ctx, s.admin, "bob", "other", false)
	s.Equal(CodeUsernameTaken, ErrorCode(err))

	_, err = s.engine.RegisterVolunteer(s.ctx, s.admin, "", "pw", false)
	s.Equal(CodeMalformedRequest, ErrorCode(err))

	volunteers, err := s.engine.Volunteers(s.ctx)
	s.Require().NoError(err)
	s.Len(volunteers, 3)

	s.Equal(CodeForbidden, ErrorCode(s.engine.DeleteVolunteer(s.ctx, s.admin, s.admin.ID)))
	s.Require().NoError(s.engine.DeleteVolunteer(s.ctx, s.admin, bob.ID))
	s.Equal(CodeNotFound, ErrorCode(s.engine.DeleteVolunteer(s.ctx, s.admin, bob.ID)))
}

func (s *EngineTestSuite) TestImportSwimmers() {
	s.addSwimmer("002", "Bob")
	sub, err := s.engine.Subscribe(s.ctx)
	s.Require().NoError(err)
	s.next(sub)

	csv := "id,name\n001,Alice\n002,Bob again\n3,Short\n004,\n005, Eve \n"
	result, err := s.engine.ImportSwimmers(s.ctx, s.admin, strings.NewReader(csv))
	s.Require().NoError(err)

	s.Equal([]string{"001", "005"}, result.Added)
	s.Len(result.Skipped, 3)
	s.Equal(CodeIDAlreadyExists, ErrorCode(result.Skipped[0].Err))
	s.Equal(CodeInvalidIDFormat, ErrorCode(result.Skipped[1].Err))
	s.Equal(CodeMalformedRequest, ErrorCode(result.Skipped[2].Err))

	_, standings := s.next(sub)
	s.Len(standings, 3)
	s.Equal("Eve", standings["005"].Name)
	s.Empty(sub.Messages(), "import publishes once")
}

func (s *EngineTestSuite) TestImportPublishesRowsBeforeMalformedLine() {
	sub, err := s.engine.Subscribe(s.ctx)
	s.Require().NoError(err)
	s.next(sub)

	result, err := s.engine.ImportSwimmers(s.ctx, s.admin, strings.NewReader("001,Alice\n002,\"Bo\"b\n"))
	s.Require().Error(err)
	s.Equal(CodeMalformedRequest, ErrorCode(err))
	s.Equal([]string{"001"}, result.Added)

	event, standings := s.next(sub)
	s.Equal(EventSwimmers, event)
	s.Contains(standings, "001")

	cached, err := s.engine.Standings(s.ctx)
	s.Require().NoError(err)
	s.Contains(cached, "001")
}

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		code   Code
		locale config.Locale
		want   string
	}{
		{CodeIDNotRegistered, config.LocaleEnglish, "Swimmer ID #042 is not registered"},
		{CodeIDNotRegistered, config.LocaleChinese, "游泳者ID#042没有登记"},
		{CodeDecrementBelowZero, config.LocaleChinese, "游泳者#042的圈数不能再减啦"},
		{CodeMalformedRequest, config.LocaleEnglish, "Malformed request"},
		{CodeSuccess, config.LocaleChinese, "Success"},
		{CodeForbidden, config.Locale("fr"), "Permission denied"},
	}
	for _, tc := range cases {
		if got := tc.code.Message(tc.locale, "042"); got != tc.want {
			t.Errorf("Message(%d, %s) = %q, want %q", tc.code, tc.locale, got, tc.want)
		}
	}
}
