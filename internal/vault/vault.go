package vault

import (
	"fmt"
	"os"

	"github.com/lockwhz/secregress/models"
)

// CredentialProvider returns clone credentials for a repository. A nil
// result means the repository is cloned anonymously.
type CredentialProvider interface {
	Credentials(repo models.Repository) (*Credentials, error)
}

type Credentials struct {
	Username string
	Token    string
}

// EnvProvider reads GITHUB_USERNAME and GITHUB_TOKEN.
type EnvProvider struct {
	// Lookup defaults to os.Getenv.
	Lookup func(string) string
}

func (v *EnvProvider) Credentials(repo models.Repository) (*Credentials, error) {
	lookup := v.Lookup
	if lookup == nil {
		lookup = os.Getenv
	}
	username := lookup("GITHUB_USERNAME")
	token := lookup("GITHUB_TOKEN")
	if username == "" || token == "" {
		return nil, fmt.Errorf("github credentials not found for %s", repo.Name)
	}
	return &Credentials{
		Username: username,
		Token:    token,
	}, nil
}

type NoOpProvider struct{}

func (v *NoOpProvider) Credentials(models.Repository) (*Credentials, error) {
	return nil, nil
}
