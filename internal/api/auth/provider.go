package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/swim4love/swim4love/internal/api/models"
	"github.com/swim4love/swim4love/internal/config"
	"github.com/swim4love/swim4love/internal/database"
	"gorm.io/gorm"
)

// Session keys.
const (
	sessionUserID    = "user_id"
	sessionOIDCState = "oidc_state"
	sessionOIDCNext  = "oidc_next"

	// contextUser is the gin context key of the signed in user.
	contextUser = "user"
)

// ErrInvalidLogin is returned for an unknown username or a wrong password.
var ErrInvalidLogin = errors.New("invalid username or password")

// Provider signs volunteers in and out and guards routes.
type Provider struct {
	cfg  *config.Config
	db   database.DB
	oidc *OIDCProvider
}

// NewProvider creates the auth provider. The OIDC provider is only set up when enabled.
func NewProvider(ctx context.Context, cfg *config.Config, db database.DB) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	p := &Provider{cfg: cfg, db: db}

	if cfg.IsOIDCEnabled() {
		oidcProvider, err := NewOIDCProvider(ctx, cfg.Auth.OIDC, db, p)
		if err != nil {
			return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
		}
		p.oidc = oidcProvider
	}
	return p, nil
}

// OIDC returns the OIDC provider or nil when it is disabled.
func (p *Provider) OIDC() *OIDCProvider {
	return p.oidc
}

// Authenticate checks a local username and password.
func (p *Provider) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	volunteer, err := p.db.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, database.ErrInvalidCredentials) {
			return nil, ErrInvalidLogin
		}
		return nil, err
	}
	return models.ToUser(volunteer), nil
}

// SignIn stores the user in a fresh session.
func (p *Provider) SignIn(c *gin.Context, user *models.User) error {
	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionUserID, user.ID)
	if err := session.Save(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	c.Set(contextUser, user)
	return nil
}

// SignOut clears the session.
func (p *Provider) SignOut(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	return session.Save()
}

// CurrentUser returns the signed in user of the request, or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(contextUser); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

func getSessionUint(session sessions.Session, key string) (uint, bool) {
	if val := session.Get(key); val != nil {
		if id, ok := val.(uint); ok && id != 0 {
			return id, true
		}
	}
	return 0, false
}

func getSessionString(session sessions.Session, key string) string {
	if val := session.Get(key); val != nil {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
