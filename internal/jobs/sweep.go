package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskUploadSweepTemp removes abandoned upload temp files.
	TaskUploadSweepTemp = "upload:sweep_tmp"

	defaultSweepAge = time.Hour
)

// SweepPayload carries the minimum age, in seconds, of a temp file before it is removed.
type SweepPayload struct {
	MaxAgeSeconds int64 `json:"max_age_seconds"`
}

// NewSweepTask builds the sweep task. A non-positive maxAge uses one hour.
func NewSweepTask(maxAge time.Duration) (*asynq.Task, error) {
	if maxAge <= 0 {
		maxAge = defaultSweepAge
	}
	data, err := json.Marshal(SweepPayload{MaxAgeSeconds: int64(maxAge / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUploadSweepTemp, data, asynq.Queue(QueueDefault)), nil
}

// TempSweeper is implemented by storage backends that stage writes in a temp directory.
type TempSweeper interface {
	SweepTemp(ctx context.Context, now time.Time, maxAge time.Duration) (int, error)
}

// SweepJob removes temp files left behind by interrupted uploads.
type SweepJob struct {
	storage TempSweeper
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewSweepJob constructs the job.
func NewSweepJob(storage TempSweeper, logger *slog.Logger, metrics *Metrics) *SweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepJob{storage: storage, logger: logger, metrics: metrics, now: time.Now}
}

// Handle processes TaskUploadSweepTemp.
func (j *SweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("%w: decode sweep payload: %v", asynq.SkipRetry, err)
		}
	}
	maxAge := time.Duration(payload.MaxAgeSeconds) * time.Second
	if maxAge <= 0 {
		maxAge = defaultSweepAge
	}

	tracker := j.metrics.Track(TaskUploadSweepTemp)
	removed, err := j.storage.SweepTemp(ctx, j.now(), maxAge)
	j.metrics.AddSwept(removed)
	if err != nil {
		j.logger.Error("sweep upload temp", slog.Int("removed", removed), slog.Any("error", err))
		return tracker.End(err)
	}
	if removed > 0 {
		j.logger.Info("swept upload temp", slog.Int("removed", removed), slog.Duration("max_age", maxAge))
	}
	return tracker.End(nil)
}
