package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/skillsenselab/identity/errors"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleProvider implements Provider against Google's OpenID Connect
// endpoints.
type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
}

var _ Provider = (*GoogleProvider)(nil)

// NewGoogle creates a Google provider.
func NewGoogle(cfg ProviderConfig) *GoogleProvider {
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
}

// Name implements Provider.
func (g *GoogleProvider) Name() string { return "google" }

// AuthURL implements Provider.
func (g *GoogleProvider) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state)
}

// Exchange implements Provider.
func (g *GoogleProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, errors.ExchangeFailed(g.Name(), err)
	}

	resp, err := g.oauth.Client(ctx, tok).Get(g.userInfoURL)
	if err != nil {
		return nil, errors.ExchangeFailed(g.Name(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.ExchangeFailed(g.Name(), fmt.Errorf("userinfo status %d", resp.StatusCode))
	}

	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.ExchangeFailed(g.Name(), err)
	}
	if info.Sub == "" {
		return nil, errors.ExchangeFailed(g.Name(), fmt.Errorf("userinfo missing subject"))
	}
	return &Identity{
		Provider:      g.Name(),
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
	}, nil
}
