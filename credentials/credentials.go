// Package credentials keeps one set of Atlassian credentials per migration role in a kvstore.
package credentials

import (
	"context"
	"fmt"

	"github.com/juju/errors"

	"github.com/toothbrush/confluence-migrate/confluence"
	"github.com/toothbrush/confluence-migrate/kvstore"
)

type Role string

const (
	Source      Role = "source"
	Destination Role = "dest"
)

// ParseRole accepts the role names used on the command line.
func ParseRole(s string) (Role, error) {
	switch s {
	case "source", "src":
		return Source, nil
	case "dest", "destination", "dst":
		return Destination, nil
	}
	return "", errors.NotValidf("role %q (want source or dest)", s)
}

func (r Role) key() string {
	return "creds_" + string(r)
}

// Credentials are what it takes to call one site: its domain and an account's email + API token.
type Credentials struct {
	Domain   string `json:"domain"`
	Email    string `json:"email"`
	APIToken string `json:"apiToken"`
}

// View is Credentials with the token reduced to whether there is one.
type View struct {
	Domain   string `json:"domain"`
	Email    string `json:"email"`
	HasToken bool   `json:"hasToken"`
}

type Store struct {
	kv kvstore.Store
}

func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

// Save stores credentials for a role, normalising the domain.
func (s *Store) Save(ctx context.Context, role Role, creds Credentials) error {
	creds.Domain = confluence.CleanDomain(creds.Domain)
	if creds.Domain == "" {
		return errors.NotValidf("empty domain")
	}
	if err := s.kv.Set(ctx, role.key(), creds); err != nil {
		return fmt.Errorf("credentials: saving %s: %w", role, err)
	}
	return nil
}

// Load returns the full credentials of a role; a role with nothing saved is NotFound.
func (s *Store) Load(ctx context.Context, role Role) (Credentials, error) {
	var creds Credentials
	if err := s.kv.Get(ctx, role.key(), &creds); err != nil {
		if errors.Is(err, errors.NotFound) {
			return Credentials{}, errors.NotFoundf("%s credentials", role)
		}
		return Credentials{}, fmt.Errorf("credentials: loading %s: %w", role, err)
	}
	return creds, nil
}

// View returns what may be shown about a role's credentials, or nil when none are saved.
func (s *Store) View(ctx context.Context, role Role) (*View, error) {
	creds, err := s.Load(ctx, role)
	if errors.Is(err, errors.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &View{Domain: creds.Domain, Email: creds.Email, HasToken: creds.APIToken != ""}, nil
}

// Dial builds an API client for a role's site.
func Dial(creds Credentials) (*confluence.API, error) {
	return confluence.NewAPI(creds.Domain, creds.Email, creds.APIToken)
}
