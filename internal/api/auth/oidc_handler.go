package auth

import (
	"errors"
	"net/http"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/swim4love/swim4love/internal/api/models"
)

var errStateMismatch = errors.New("oauth state mismatch")

func (p *OIDCProvider) Login(c *gin.Context) {
	state := uuid.New().String()

	session := sessions.Default(c)
	session.Set(sessionOIDCState, state)
	session.Set(sessionOIDCNext, SafeNext(c.Query("next")))
	if err := session.Save(); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err) //nolint:errcheck
		return
	}

	c.Redirect(http.StatusFound, p.config.AuthCodeURL(state))
}

func (p *OIDCProvider) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	session := sessions.Default(c)

	state := getSessionString(session, sessionOIDCState)
	if state == "" || c.Query("state") != state {
		c.AbortWithError(http.StatusBadRequest, errStateMismatch) //nolint:errcheck
		return
	}
	next := SafeNext(getSessionString(session, sessionOIDCNext))

	oauth2Token, err := p.config.Exchange(ctx, c.Query("code"))
	if err != nil {
		c.AbortWithError(http.StatusUnauthorized, err) //nolint:errcheck
		return
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		c.AbortWithError(http.StatusInternalServerError, errors.New("no id_token in token response")) //nolint:errcheck
		return
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		c.AbortWithError(http.StatusUnauthorized, err) //nolint:errcheck
		return
	}

	var claims struct {
		PreferredUsername string   `json:"preferred_username"`
		Sub               string   `json:"sub"`
		Groups            []string `json:"groups"`
	}
	if err := idToken.Claims(&claims); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err) //nolint:errcheck
		return
	}
	username := claims.PreferredUsername
	if username == "" {
		username = claims.Sub
	}

	isAdmin := slices.Contains(claims.Groups, p.cfg.AdminGroup)

	volunteer, err := p.db.GetOrCreateExternalVolunteer(ctx, username, isAdmin)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err) //nolint:errcheck
		return
	}

	if err := p.sessions.SignIn(c, models.ToUser(volunteer)); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err) //nolint:errcheck
		return
	}
	log.Info("Volunteer signed in", "username", username, "provider", p.cfg.Name, "admin", isAdmin)

	c.Redirect(http.StatusFound, next)
}
