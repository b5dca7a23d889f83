package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Aun-shahid/TherapEase/internal/repository"
)

// CleanupJob periodically flips pending pairing requests past their expiry
// to the expired status, so stale requests never surface as approvable, and
// deletes resolved requests older than the retention window.
type CleanupJob struct {
	requests  repository.PatientPairingRequestRepository
	interval  time.Duration
	retention time.Duration
	done      chan struct{}
}

func NewCleanupJob(requests repository.PatientPairingRequestRepository, interval, retention time.Duration) *CleanupJob {
	return &CleanupJob{
		requests:  requests,
		interval:  interval,
		retention: retention,
		done:      make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()

	count, err := j.requests.ExpirePending(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("cleanup: expire pending pairing requests")
		return
	}
	if count > 0 {
		log.Info().Int64("count", count).Msg("cleanup: pairing requests expired")
	}

	deleted, err := j.requests.DeleteResolvedBefore(ctx, now.Add(-j.retention))
	if err != nil {
		log.Error().Err(err).Msg("cleanup: delete resolved pairing requests")
		return
	}
	if deleted > 0 {
		log.Info().Int64("count", deleted).Msg("cleanup: resolved pairing requests purged")
	}
}
