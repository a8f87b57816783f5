package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/skillsenselab/identity/errors"
)

const (
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
)

// GitHubProvider implements Provider against the GitHub OAuth API. GitHub
// does not expose email verification through the user endpoint, so the
// primary address is fetched from the emails endpoint.
type GitHubProvider struct {
	oauth     *oauth2.Config
	userURL   string
	emailsURL string
}

var _ Provider = (*GitHubProvider)(nil)

// NewGitHub creates a GitHub provider.
func NewGitHub(cfg ProviderConfig) *GitHubProvider {
	return &GitHubProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		userURL:   githubUserURL,
		emailsURL: githubEmailsURL,
	}
}

// Name implements Provider.
func (g *GitHubProvider) Name() string { return "github" }

// AuthURL implements Provider.
func (g *GitHubProvider) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state)
}

// Exchange implements Provider.
func (g *GitHubProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, errors.ExchangeFailed(g.Name(), err)
	}
	client := g.oauth.Client(ctx, tok)

	var user struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Login string `json:"login"`
	}
	if err := getJSON(client, g.userURL, &user); err != nil {
		return nil, errors.ExchangeFailed(g.Name(), err)
	}
	if user.ID == 0 {
		return nil, errors.ExchangeFailed(g.Name(), fmt.Errorf("user response missing id"))
	}

	email, verified, err := g.primaryEmail(client)
	if err != nil {
		return nil, errors.ExchangeFailed(g.Name(), err)
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}
	return &Identity{
		Provider:      g.Name(),
		Subject:       strconv.FormatInt(user.ID, 10),
		Email:         email,
		EmailVerified: verified,
		Name:          name,
	}, nil
}

func (g *GitHubProvider) primaryEmail(client *http.Client) (string, bool, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(client, g.emailsURL, &emails); err != nil {
		return "", false, err
	}
	for _, e := range emails {
		if e.Primary {
			return e.Email, e.Verified, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, emails[0].Verified, nil
	}
	return "", false, fmt.Errorf("no email on account")
}

func getJSON(client *http.Client, url string, out interface{}) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
