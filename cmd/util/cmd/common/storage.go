package common

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/onflow/hotshot/consensus/hotshot/persister"
)

// WithPersister opens the consensus database in dir, runs f and closes the
// database again. A missing directory is an error rather than a new database.
func WithPersister(log zerolog.Logger, dir string, f func(*persister.Persister) error) (err error) {
	if _, statErr := os.Stat(dir); statErr != nil {
		return fmt.Errorf("could not access data directory %s: %w", dir, statErr)
	}
	p, err := persister.Open(log, dir)
	if err != nil {
		return fmt.Errorf("could not open consensus database: %w", err)
	}
	defer func() {
		if closeErr := p.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr).ErrorOrNil()
		}
	}()
	return f(p)
}
