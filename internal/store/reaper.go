package store

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RunReaper removes sessions idle longer than timeout, checking every
// timeout/2, until ctx is done. A non-positive timeout disables it.
func RunReaper(ctx context.Context, st Store, timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	ticker := time.NewTicker(timeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := st.Sweep(ctx, now.Add(-timeout)); n > 0 {
				log.Info().Int("removed", n).Int("active", st.Len()).Msg("reaped idle sessions")
			}
		}
	}
}
