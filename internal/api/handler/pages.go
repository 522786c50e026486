package handler

import (
	"cmp"
	"errors"
	"net/http"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/swim4love/swim4love/internal/api/auth"
	"github.com/swim4love/swim4love/internal/engine"
)

// rankedSwimmer is a leaderboard row.
type rankedSwimmer struct {
	engine.SwimmerData
	Rank     int
	Distance string
}

func (h *Handler) page(c *gin.Context, status int, name, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Title"] = title
	data["Lang"] = string(h.config.Locale)
	data["User"] = h.user(c)
	c.HTML(status, name, data)
}

// pageError renders a domain error as a page.
func (h *Handler) pageError(c *gin.Context, err error) {
	code := engine.ErrorCode(err)
	if code == engine.CodeInternal {
		log.Error("Page failed", "path", c.Request.URL.Path, "error", err)
	}
	var id string
	var e *engine.Error
	if errors.As(err, &e) {
		id = e.SwimmerID
	}
	h.page(c, code.HTTPStatus(), "error.html", http.StatusText(code.HTTPStatus()), gin.H{
		"Message": code.Message(h.config.Locale, id),
	})
}

// Home sends visitors to the page matching their role.
func (h *Handler) Home(c *gin.Context) {
	user := h.user(c)
	switch {
	case user == nil:
		c.Redirect(http.StatusFound, "/leaderboard")
	case user.IsAdmin:
		c.Redirect(http.StatusFound, "/admin")
	default:
		c.Redirect(http.StatusFound, "/volunteer")
	}
}

func (h *Handler) loginPage(c *gin.Context, status int, next, message string) {
	data := gin.H{
		"Next":        next,
		"Error":       message,
		"Development": h.config.Development,
	}
	if oidc := h.auth.OIDC(); oidc != nil {
		data["OIDCName"] = oidc.Name()
	}
	h.page(c, status, "login.html", "Log in", data)
}

func (h *Handler) Login(c *gin.Context) {
	next := auth.SafeNext(c.Query("next"))
	if h.user(c) != nil {
		c.Redirect(http.StatusFound, next)
		return
	}
	h.loginPage(c, http.StatusOK, next, "")
}

func (h *Handler) LoginSubmit(c *gin.Context) {
	next := auth.SafeNext(c.PostForm("next"))
	user, err := h.auth.Authenticate(c.Request.Context(), c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidLogin) {
			log.Error("Login failed", "error", err)
		}
		h.loginPage(c, http.StatusUnauthorized, next, auth.ErrInvalidLogin.Error())
		return
	}
	if err := h.auth.SignIn(c, user); err != nil {
		h.pageError(c, err)
		return
	}
	log.Info("Volunteer signed in", "username", user.Username, "admin", user.IsAdmin)
	c.Redirect(http.StatusFound, next)
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.auth.SignOut(c); err != nil {
		log.Error("Failed to clear session", "error", err)
	}
	c.Redirect(http.StatusFound, "/login")
}

// DevelopmentOnly hides a route unless development mode is on.
func (h *Handler) DevelopmentOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.config.Development {
			h.pageError(c, engine.ErrNotFound)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (h *Handler) Register(c *gin.Context) {
	h.page(c, http.StatusOK, "register.html", "Register", nil)
}

func (h *Handler) RegisterSubmit(c *gin.Context) {
	volunteer, err := h.engine.RegisterVolunteer(c.Request.Context(), engine.Actor{Username: "self-registration"},
		c.PostForm("username"), c.PostForm("password"), false)
	if err != nil {
		code := engine.ErrorCode(err)
		h.page(c, code.HTTPStatus(), "register.html", "Register", gin.H{
			"Error": code.Message(h.config.Locale, ""),
		})
		return
	}
	user, err := h.auth.Authenticate(c.Request.Context(), volunteer.Username, c.PostForm("password"))
	if err != nil {
		h.pageError(c, err)
		return
	}
	if err := h.auth.SignIn(c, user); err != nil {
		h.pageError(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/volunteer")
}

func (h *Handler) VolunteerPage(c *gin.Context) {
	linked, err := h.engine.LinkedSwimmers(c.Request.Context(), h.user(c).ID)
	if err != nil {
		h.pageError(c, err)
		return
	}
	h.page(c, http.StatusOK, "volunteer.html", "My swimmers", gin.H{
		"Swimmers": sortedByID(linked),
		"IDLength": h.config.SwimmerIDLength,
	})
}

func (h *Handler) AdminPage(c *gin.Context) {
	ctx := c.Request.Context()
	standings, err := h.engine.Standings(ctx)
	if err != nil {
		h.pageError(c, err)
		return
	}
	volunteers, err := h.engine.Volunteers(ctx)
	if err != nil {
		h.pageError(c, err)
		return
	}
	h.page(c, http.StatusOK, "admin.html", "Administration", gin.H{
		"Swimmers":   sortedByID(standings),
		"Volunteers": volunteers,
	})
}

func (h *Handler) LeaderboardPage(c *gin.Context) {
	standings, err := h.engine.Standings(c.Request.Context())
	if err != nil {
		h.pageError(c, err)
		return
	}
	ranking := h.rank(standings)
	totalLaps := lo.SumBy(ranking, func(s rankedSwimmer) int { return s.Laps })
	h.page(c, http.StatusOK, "leaderboard.html", "Leaderboard", gin.H{
		"Ranking":       ranking,
		"LapLength":     h.config.LapLength,
		"TotalDistance": humanize.Comma(int64(totalLaps*h.config.LapLength)) + " m",
	})
}

func (h *Handler) AchievementPage(c *gin.Context) {
	h.achievementPage(c, "achievement.html", "Achievement")
}

func (h *Handler) CertificatePage(c *gin.Context) {
	h.achievementPage(c, "certificate.html", "Certificate")
}

func (h *Handler) PrintCertificatePage(c *gin.Context) {
	h.achievementPage(c, "print_certificate.html", "Certificate")
}

func (h *Handler) achievementPage(c *gin.Context, name, title string) {
	achievement, err := h.engine.Achievement(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.pageError(c, err)
		return
	}
	h.page(c, http.StatusOK, name, title, gin.H{
		"Achievement": achievement,
	})
}

// rank orders swimmers by laps and assigns competition ranks.
func (h *Handler) rank(standings engine.Standings) []rankedSwimmer {
	swimmers := lo.Values(standings)
	slices.SortFunc(swimmers, func(a, b engine.SwimmerData) int {
		return cmp.Or(cmp.Compare(b.Laps, a.Laps), cmp.Compare(a.ID, b.ID))
	})
	ranking := make([]rankedSwimmer, len(swimmers))
	for i, s := range swimmers {
		rank := i + 1
		if i > 0 && s.Laps == swimmers[i-1].Laps {
			rank = ranking[i-1].Rank
		}
		ranking[i] = rankedSwimmer{
			SwimmerData: s,
			Rank:        rank,
			Distance:    humanize.Comma(int64(s.Laps * h.config.LapLength)),
		}
	}
	return ranking
}

func sortedByID(standings engine.Standings) []engine.SwimmerData {
	swimmers := lo.Values(standings)
	slices.SortFunc(swimmers, func(a, b engine.SwimmerData) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return swimmers
}
