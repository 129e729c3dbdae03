package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dbutrimov/trackersync/internal/tracker"
)

// RegisterCatalogRefresh schedules a periodic catalog freshness check
// for every configured site client. The check is cheap when the cached
// snapshot is still within its TTL.
func (s *Scheduler) RegisterCatalogRefresh(clients map[string]*tracker.Client, interval time.Duration) error {
	for name, client := range clients {
		client := client
		err := s.RegisterTask(TaskConfig{
			ID:         "catalog-refresh-" + name,
			Name:       fmt.Sprintf("Catalog refresh (%s)", name),
			Interval:   interval,
			RunOnStart: true,
			Func: func(ctx context.Context) error {
				err := client.RefreshCatalog(ctx)
				// A challenged or misconfigured site stays registered;
				// the next tick retries it.
				if tracker.IsChallengeError(err) || errors.Is(err, tracker.ErrConfiguration) {
					s.logger.Warn().
						Err(err).
						Str("site", client.Name()).
						Msg("Catalog refresh skipped")
					return nil
				}
				return err
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}
