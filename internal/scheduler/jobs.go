// internal/scheduler/jobs.go
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/lobbybot/internal/lobby"
	"github.com/jason-s-yu/lobbybot/internal/models"
	"github.com/sirupsen/logrus"
)

// Sweeper is the part of lobby.Sweeper the jobs use.
type Sweeper interface {
	SweepChannel(ctx context.Context, channelID string) (lobby.SweepReport, error)
	EnsurePinned(ctx context.Context, channelID, content string) error
}

// StaleCloser closes lobbies older than a cutoff.
type StaleCloser interface {
	CloseStale(ctx context.Context, maxAge time.Duration) (int, error)
}

// Indexer refreshes the searchable island copies.
type Indexer interface {
	IndexAll(ctx context.Context) (int, error)
	IndexTop(ctx context.Context) ([]models.Island, error)
}

// Job names.
const (
	JobSweepChannels = "sweep-channels"
	JobCloseStale    = "close-stale-lobbies"
	JobPins          = "ensure-pins"
	JobIndexTop      = "index-top-islands"
	JobIndexAll      = "index-all-islands"
)

// LobbyJobs returns channel maintenance jobs for channels.
func LobbyJobs(sw Sweeper, closer StaleCloser, channels []string, staleAge time.Duration, pinned string, logger *logrus.Logger) []Job {
	return []Job{
		{
			Name:    JobSweepChannels,
			Spec:    "*/15 * * * *",
			Timeout: 5 * time.Minute,
			Run: func(ctx context.Context) error {
				var errs []error
				for _, ch := range channels {
					report, err := sw.SweepChannel(ctx, ch)
					if err != nil {
						errs = append(errs, fmt.Errorf("sweep %s: %w", ch, err))
						continue
					}
					logger.WithFields(logrus.Fields{
						"channel_id":     ch,
						"scanned":        report.Scanned,
						"deleted":        report.Deleted,
						"lobbies_closed": report.LobbiesClosed,
						"failures":       report.Failures,
					}).Info("channel swept")
				}
				return errors.Join(errs...)
			},
		},
		{
			Name:    JobCloseStale,
			Spec:    "*/10 * * * *",
			Timeout: 2 * time.Minute,
			Run: func(ctx context.Context) error {
				n, err := closer.CloseStale(ctx, staleAge)
				if n > 0 {
					logger.WithField("closed", n).Info("closed stale lobbies")
				}
				return err
			},
		},
		{
			Name:    JobPins,
			Spec:    "@hourly",
			Timeout: time.Minute,
			Run: func(ctx context.Context) error {
				var errs []error
				for _, ch := range channels {
					if err := sw.EnsurePinned(ctx, ch, pinned); err != nil {
						errs = append(errs, fmt.Errorf("pin %s: %w", ch, err))
					}
				}
				return errors.Join(errs...)
			},
		},
	}
}

// IslandJobs returns the island indexing jobs.
func IslandJobs(ix Indexer) []Job {
	return []Job{
		{
			Name:    JobIndexTop,
			Spec:    "*/10 * * * *",
			Timeout: time.Minute,
			Run: func(ctx context.Context) error {
				_, err := ix.IndexTop(ctx)
				return err
			},
		},
		{
			Name:    JobIndexAll,
			Spec:    "0 4 * * *",
			Timeout: 30 * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := ix.IndexAll(ctx)
				return err
			},
		},
	}
}
