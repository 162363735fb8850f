package data

import (
	"github.com/rs/zerolog"

	"github.com/wabridge/wabridge/internal/biz/repo"
)

// Repositories contains all repositories.
type Repositories struct {
	Client  repo.ClientRepo
	Archive repo.ArchiveRepo
}

// NewRepositories creates all repositories.
func NewRepositories(gatewayURL, archiveDBPath string, log zerolog.Logger) (*Repositories, error) {
	archive, err := NewArchiveRepo(archiveDBPath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Client:  NewGatewayClient(gatewayURL, log),
		Archive: archive,
	}, nil
}

// Close releases repository resources.
func (r *Repositories) Close() error {
	return r.Archive.Close()
}
