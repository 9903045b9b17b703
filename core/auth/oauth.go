package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/irsalhamdi/course-storefront/api/web"
	"github.com/irsalhamdi/course-storefront/api/weberr"
	"github.com/irsalhamdi/course-storefront/core/user"
	"github.com/irsalhamdi/course-storefront/database"
	"github.com/irsalhamdi/course-storefront/random"
	"github.com/irsalhamdi/course-storefront/validate"
	"github.com/jmoiron/sqlx"
	"golang.org/x/oauth2"
)

type ProviderConfig struct {
	Name        string
	Client      string
	Secret      string
	URL         string
	RedirectURL string
}

// Provider is an OpenID Connect identity provider used for social login.
type Provider struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// MakeProviders runs discovery for every configured provider. Providers
// without a client id are skipped.
func MakeProviders(ctx context.Context, cfgs []ProviderConfig) (map[string]Provider, error) {
	provs := make(map[string]Provider, len(cfgs))
	for _, c := range cfgs {
		if c.Client == "" {
			continue
		}

		p, err := oidc.NewProvider(ctx, c.URL)
		if err != nil {
			return nil, fmt.Errorf("discovering provider[%s]: %w", c.Name, err)
		}

		provs[c.Name] = Provider{
			oauth: &oauth2.Config{
				ClientID:     c.Client,
				ClientSecret: c.Secret,
				RedirectURL:  c.RedirectURL,
				Endpoint:     p.Endpoint(),
				Scopes:       []string{oidc.ScopeOpenID, "email"},
			},
			verifier: p.Verifier(&oidc.Config{ClientID: c.Client}),
		}
	}
	return provs, nil
}

func HandleOauthLogin(sm *scs.SessionManager, provs map[string]Provider) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		name := web.Param(r, "provider")
		p, ok := provs[name]
		if !ok {
			return weberr.NotFound(fmt.Errorf("provider[%s] not configured", name))
		}

		state, err := random.Token(24)
		if err != nil {
			return fmt.Errorf("generating oauth state: %w", err)
		}
		sm.Put(ctx, oauthStateKey, state)

		return web.Redirect(w, r, p.oauth.AuthCodeURL(state))
	}
}

// HandleOauthCallback exchanges the authorization code, verifies the id token
// and logs in the user owning its email, creating the account on first login.
func HandleOauthCallback(db *sqlx.DB, sm *scs.SessionManager, provs map[string]Provider, redirectURL string, adminEmail string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		name := web.Param(r, "provider")
		p, ok := provs[name]
		if !ok {
			return weberr.NotFound(fmt.Errorf("provider[%s] not configured", name))
		}

		want := sm.PopString(ctx, oauthStateKey)
		if want == "" || r.URL.Query().Get("state") != want {
			return weberr.BadRequest(errors.New("oauth state mismatch"))
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			return weberr.BadRequest(errors.New("missing authorization code"))
		}

		tok, err := p.oauth.Exchange(ctx, code)
		if err != nil {
			return weberr.NotAuthorized(fmt.Errorf("exchanging code with provider[%s]: %w", name, err))
		}

		rawID, ok := tok.Extra("id_token").(string)
		if !ok {
			return weberr.NotAuthorized(fmt.Errorf("provider[%s] returned no id token", name))
		}

		idt, err := p.verifier.Verify(ctx, rawID)
		if err != nil {
			return weberr.NotAuthorized(fmt.Errorf("verifying id token: %w", err))
		}

		var info struct {
			Email    string `json:"email"`
			Verified bool   `json:"email_verified"`
		}
		if err := idt.Claims(&info); err != nil {
			return fmt.Errorf("decoding id token claims: %w", err)
		}
		if info.Email == "" || !info.Verified {
			return weberr.NotAuthorized(errors.New("provider did not return a verified email"))
		}

		usr, err := findOrCreate(ctx, db, info.Email, adminEmail)
		if err != nil {
			return err
		}

		if err := login(ctx, sm, usr); err != nil {
			return err
		}

		return web.Redirect(w, r, redirectURL)
	}
}

func findOrCreate(ctx context.Context, db *sqlx.DB, email string, adminEmail string) (user.User, error) {
	usr, err := user.FetchByEmail(ctx, db, email)
	if err == nil {
		return usr, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return user.User{}, fmt.Errorf("fetching user: %w", err)
	}

	now := time.Now().UTC()
	usr = user.User{
		ID:        validate.GenerateID(),
		Email:     strings.ToLower(email),
		Role:      roleFor(email, adminEmail),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.Create(ctx, db, usr); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return user.FetchByEmail(ctx, db, email)
		}
		return user.User{}, fmt.Errorf("creating user: %w", err)
	}
	return usr, nil
}
