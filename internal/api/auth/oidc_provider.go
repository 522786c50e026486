package auth

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/swim4love/swim4love/internal/config"
	"github.com/swim4love/swim4love/internal/database"
	"golang.org/x/oauth2"
)

// OIDCProvider signs volunteers in through an OpenID Connect identity provider.
type OIDCProvider struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	config   *oauth2.Config
	cfg      *config.OIDCConfig
	db       database.DB
	sessions *Provider
}

func NewOIDCProvider(ctx context.Context, cfg *config.OIDCConfig, db database.DB, sessions *Provider) (*OIDCProvider, error) {
	p := OIDCProvider{
		cfg:      cfg,
		db:       db,
		sessions: sessions,
	}
	var err error
	p.provider, err = oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, err
	}

	p.config = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     p.provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email", "groups"},
	}

	p.verifier = p.provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return &p, nil
}

// Name is the display name of the identity provider.
func (p *OIDCProvider) Name() string {
	return p.cfg.Name
}
