package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type DatabaseTestSuite struct {
	suite.Suite
	db  *Client
	ctx context.Context
}

func (s *DatabaseTestSuite) SetupTest() {
	db, err := New(filepath.Join(s.T().TempDir(), "swim4love.db"))
	require.NoError(s.T(), err)
	s.db = db
	s.ctx = context.Background()
}

func (s *DatabaseTestSuite) TearDownTest() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *DatabaseTestSuite) TestCreateAndGetSwimmer() {
	created, err := s.db.CreateSwimmer(s.ctx, "001", "Alice")
	s.Require().NoError(err)
	s.Equal(0, created.Laps)

	got, err := s.db.GetSwimmer(s.ctx, "001")
	s.Require().NoError(err)
	s.Equal("Alice", got.Name)
	s.Equal(0, got.Laps)
}

func (s *DatabaseTestSuite) TestCreateSwimmerDuplicate() {
	_, err := s.db.CreateSwimmer(s.ctx, "001", "Alice")
	s.Require().NoError(err)

	_, err = s.db.CreateSwimmer(s.ctx, "001", "Bob")
	s.ErrorIs(err, ErrSwimmerExists)

	got, err := s.db.GetSwimmer(s.ctx, "001")
	s.Require().NoError(err)
	s.Equal("Alice", got.Name)
}

func (s *DatabaseTestSuite) TestGetSwimmerNotFound() {
	_, err := s.db.GetSwimmer(s.ctx, "404")
	s.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (s *DatabaseTestSuite) TestGetSwimmersOrderedByID() {
	for _, id := range []string{"003", "001", "002"} {
		_, err := s.db.CreateSwimmer(s.ctx, id, "Swimmer "+id)
		s.Require().NoError(err)
	}

	swimmers, err := s.db.GetSwimmers(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(swimmers, 3)
	s.Equal("001", swimmers[0].ID)
	s.Equal("002", swimmers[1].ID)
	s.Equal("003", swimmers[2].ID)
}

func (s *DatabaseTestSuite) TestIncrementDecrementRoundTrip() {
	_, err := s.db.CreateSwimmer(s.ctx, "001", "Alice")
	s.Require().NoError(err)

	up, err := s.db.IncrementLaps(s.ctx, "001")
	s.Require().NoError(err)
	s.Equal(1, up.Laps)

	down, err := s.db.DecrementLaps(s.ctx, "001")
	s.Require().NoError(err)
	s.Equal(0, down.Laps)
}

func (s *DatabaseTestSuite) TestDecrementAtZero() {
	_, err := s.db.CreateSwimmer(s.ctx, "001", "Alice")
	s.Require().NoError(err)

	_, err = s.db.DecrementLaps(s.ctx, "001")
	s.ErrorIs(err, ErrLapsAtZero)

	got, err := s.db.GetSwimmer(s.ctx, "001")
	s.Require().NoError(err)
	s.Equal(0, got.Laps)
}

func (s *DatabaseTestSuite) TestLapChangesOnMissingSwimmer() {
	_, err := s.db.IncrementLaps(s.ctx, "999")
	s.ErrorIs(err, gorm.ErrRecordNotFound)

	_, err = s.db.DecrementLaps(s.ctx, "999")
	s.ErrorIs(err, gorm.ErrRecordNotFound)

	_, err = s.db.RenameSwimmer(s.ctx, "999", "Nobody")
	s.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (s *DatabaseTestSuite) TestConcurrentIncrements() {
	_, err := s.db.CreateSwimmer(s.ctx, "001", "Alice")
	s.Require().NoError(err)

	const workers = 25
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.db.IncrementLaps(s.ctx, "001")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	got, err := s.db.GetSwimmer(s.ctx, "001")
	s.Require().NoError(err)
	s.Equal(workers, got.Laps)
}

func (s *DatabaseTestSuite) TestRenameSwimmer() {
	_, err := s.db.CreateSwimmer(s.ctx, "001", "Alice")
	s.Require().NoError(err)

	renamed, err := s.db.RenameSwimmer(s.ctx, "001", "Alicia")
	s.Require().NoError(err)
	s.Equal("Alicia", renamed.Name)
}

func (s *DatabaseTestSuite) TestDeleteSwimmerRemovesLinks() {
	volunteer, err := s.db.CreateVolunteer(s.ctx, "vol", "secret", false)
	s.Require().NoError(err)
	_, err = s.db.CreateSwimmer(s.ctx, "001", "Alice")
	s.Require().NoError(err)
	s.Require().NoError(s.db.LinkSwimmer(s.ctx, volunteer.ID, "001"))

	s.Require().NoError(s.db.DeleteSwimmer(s.ctx, "001"))

	linked, err := s.db.GetLinkedSwimmers(s.ctx, volunteer.ID)
	s.Require().NoError(err)
	s.Empty(linked)

	s.ErrorIs(s.db.DeleteSwimmer(s.ctx, "001"), gorm.ErrRecordNotFound)
}

func (s *DatabaseTestSuite) TestVolunteerAuthentication() {
	_, err := s.db.CreateVolunteer(s.ctx, "vol", "secret", false)
	s.Require().NoError(err)

	v, err := s.db.Authenticate(s.ctx, "vol", "secret")
	s.Require().NoError(err)
	s.Equal("vol", v.Username)
	s.NotEqual("secret", v.Password)

	_, err = s.db.Authenticate(s.ctx, "vol", "wrong")
	s.ErrorIs(err, ErrInvalidCredentials)

	_, err = s.db.Authenticate(s.ctx, "nobody", "secret")
	s.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (s *DatabaseTestSuite) TestCreateVolunteerDuplicateUsername() {
	_, err := s.db.CreateVolunteer(s.ctx, "vol", "secret", false)
	s.Require().NoError(err)

	_, err = s.db.CreateVolunteer(s.ctx, "vol", "other", true)
	s.ErrorIs(err, ErrUsernameTaken)
}

func (s *DatabaseTestSuite) TestReconcileAdminReplacesPassword() {
	first, err := s.db.ReconcileAdmin(s.ctx, "first-secret")
	s.Require().NoError(err)
	s.True(first.IsAdmin)

	_, err = s.db.ReconcileAdmin(s.ctx, "second-secret")
	s.Require().NoError(err)

	_, err = s.db.Authenticate(s.ctx, AdminUsername, "first-secret")
	s.ErrorIs(err, ErrInvalidCredentials)

	admin, err := s.db.Authenticate(s.ctx, AdminUsername, "second-secret")
	s.Require().NoError(err)
	s.True(admin.IsAdmin)

	volunteers, err := s.db.GetVolunteers(s.ctx)
	s.Require().NoError(err)
	s.Len(volunteers, 1)
}

func (s *DatabaseTestSuite) TestExternalVolunteerCannotUsePassword() {
	v, err := s.db.GetOrCreateExternalVolunteer(s.ctx, "oidc-user", false)
	s.Require().NoError(err)
	s.False(v.IsAdmin)

	_, err = s.db.Authenticate(s.ctx, "oidc-user", "")
	s.ErrorIs(err, ErrInvalidCredentials)

	again, err := s.db.GetOrCreateExternalVolunteer(s.ctx, "oidc-user", true)
	s.Require().NoError(err)
	s.Equal(v.ID, again.ID)

	stored, err := s.db.GetVolunteerByID(s.ctx, v.ID)
	s.Require().NoError(err)
	s.True(stored.IsAdmin)
}

func (s *DatabaseTestSuite) TestExternalLoginDoesNotTakeOverLocalAccount() {
	_, err := s.db.ReconcileAdmin(s.ctx, "secret")
	s.Require().NoError(err)

	_, err = s.db.GetOrCreateExternalVolunteer(s.ctx, AdminUsername, false)
	s.ErrorIs(err, ErrUsernameTaken)
}

func (s *DatabaseTestSuite) TestLinkSwimmerIsIdempotent() {
	volunteer, err := s.db.CreateVolunteer(s.ctx, "vol", "secret", false)
	s.Require().NoError(err)
	for _, id := range []string{"002", "001"} {
		_, err := s.db.CreateSwimmer(s.ctx, id, "Swimmer "+id)
		s.Require().NoError(err)
	}

	s.Require().NoError(s.db.LinkSwimmer(s.ctx, volunteer.ID, "002"))
	s.Require().NoError(s.db.LinkSwimmer(s.ctx, volunteer.ID, "001"))
	s.Require().NoError(s.db.LinkSwimmer(s.ctx, volunteer.ID, "002"))

	linked, err := s.db.GetLinkedSwimmers(s.ctx, volunteer.ID)
	s.Require().NoError(err)
	s.Require().Len(linked, 2)
	// insertion order, not id order
	s.Equal("002", linked[0].ID)
	s.Equal("001", linked[1].ID)

	ok, err := s.db.IsLinked(s.ctx, volunteer.ID, "001")
	s.Require().NoError(err)
	s.True(ok)

	s.Require().NoError(s.db.UnlinkSwimmer(s.ctx, volunteer.ID, "001"))
	s.Require().NoError(s.db.UnlinkSwimmer(s.ctx, volunteer.ID, "001"))

	ok, err = s.db.IsLinked(s.ctx, volunteer.ID, "001")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *DatabaseTestSuite) TestDeleteVolunteer() {
	volunteer, err := s.db.CreateVolunteer(s.ctx, "vol", "secret", false)
	s.Require().NoError(err)

	s.Require().NoError(s.db.DeleteVolunteer(s.ctx, volunteer.ID))
	s.ErrorIs(s.db.DeleteVolunteer(s.ctx, volunteer.ID), gorm.ErrRecordNotFound)
}

func TestDatabaseTestSuite(t *testing.T) {
	suite.Run(t, new(DatabaseTestSuite))
}

func TestNewCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "swim4love.db")
	db, err := New(path)
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}
