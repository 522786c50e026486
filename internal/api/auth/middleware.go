package auth

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/swim4love/swim4love/internal/api/models"
	"github.com/swim4love/swim4love/internal/engine"
	"gorm.io/gorm"
)

// Mode selects how a guard reports a denied request.
type Mode int

const (
	// Data routes answer with a JSON error.
	Data Mode = iota
	// Page routes redirect to the login page.
	Page
)

// LoadUser resolves the session into the current user.
// Sessions of deleted volunteers are cleared.
func (p *Provider) LoadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		id, ok := getSessionUint(session, sessionUserID)
		if !ok {
			c.Next()
			return
		}

		volunteer, err := p.db.GetVolunteerByID(c.Request.Context(), id)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			session.Clear()
			if err := session.Save(); err != nil {
				log.Error("Failed to clear stale session", "error", err)
			}
		case err != nil:
			log.Error("Failed to load session user", "id", id, "error", err)
		default:
			c.Set(contextUser, models.ToUser(volunteer))
		}
		c.Next()
	}
}

// RequireVolunteer only lets signed in volunteers through.
func (p *Provider) RequireVolunteer(mode Mode) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			p.deny(c, mode, engine.ErrUnauthenticated)
			return
		}
		c.Next()
	}
}

// RequireAdmin only lets signed in admins through.
func (p *Provider) RequireAdmin(mode Mode) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			p.deny(c, mode, engine.ErrUnauthenticated)
			return
		}
		if !user.IsAdmin {
			p.deny(c, mode, engine.ErrForbidden)
			return
		}
		c.Next()
	}
}

func (p *Provider) deny(c *gin.Context, mode Mode, err *engine.Error) {
	if mode == Page {
		c.Redirect(http.StatusFound, LoginURL(c.Request.URL.RequestURI()))
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(err.Code.HTTPStatus(), models.Failure(p.cfg.Locale, err))
}

// LoginURL returns the login page address that leads back to next.
func LoginURL(next string) string {
	if next == "" || next == "/" {
		return "/login"
	}
	return "/login?next=" + url.QueryEscape(next)
}
