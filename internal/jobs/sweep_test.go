package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/landhub/internal/upload"
)

type sweeperFunc func(ctx context.Context, now time.Time, maxAge time.Duration) (int, error)

func (f sweeperFunc) SweepTemp(ctx context.Context, now time.Time, maxAge time.Duration) (int, error) {
	return f(ctx, now, maxAge)
}

func TestNewSweepTaskDefaultsAge(t *testing.T) {
	task, err := NewSweepTask(0)
	require.NoError(t, err)
	assert.Equal(t, TaskUploadSweepTemp, task.Type())

	var payload SweepPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, int64(3600), payload.MaxAgeSeconds)
}

func TestSweepJobRemovesStaleTempFiles(t *testing.T) {
	storage, err := upload.NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)

	tmp := filepath.Join(storage.Root(), upload.TempDirName)
	stale := filepath.Join(tmp, "stale.part")
	fresh := filepath.Join(tmp, "fresh.part")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o600))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	metrics := NewMetrics(prometheus.NewRegistry())
	job := NewSweepJob(storage, nil, metrics)
	task, err := NewSweepTask(time.Hour)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.swept))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues(TaskUploadSweepTemp, "success")))
}

func TestSweepJobReportsFailure(t *testing.T) {
	boom := errors.New("disk gone")
	metrics := NewMetrics(prometheus.NewRegistry())
	job := NewSweepJob(sweeperFunc(func(context.Context, time.Time, time.Duration) (int, error) {
		return 0, boom
	}), nil, metrics)

	err := job.Handle(context.Background(), asynq.NewTask(TaskUploadSweepTemp, nil))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.failures.WithLabelValues(TaskUploadSweepTemp)))
}

func TestSweepJobUsesPayloadAge(t *testing.T) {
	var got time.Duration
	job := NewSweepJob(sweeperFunc(func(_ context.Context, _ time.Time, maxAge time.Duration) (int, error) {
		got = maxAge
		return 0, nil
	}), nil, nil)

	task, err := NewSweepTask(10 * time.Minute)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 10*time.Minute, got)

	err = job.Handle(context.Background(), asynq.NewTask(TaskUploadSweepTemp, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNewWorker(t *testing.T) {
	_, err := NewWorker(WorkerConfig{})
	require.Error(t, err)

	mr := miniredis.RunT(t)
	task, err := NewSweepTask(time.Hour)
	require.NoError(t, err)
	worker, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: mr.Addr()},
		Handlers:  []TaskHandler{{Type: TaskUploadSweepTemp, Handler: NewSweepJob(nil, nil, nil).Handle}, {}},
		Cron:      []CronRegistration{{Spec: "*/15 * * * *", Task: task}},
	})
	require.NoError(t, err)
	assert.NotNil(t, worker.scheduler)

	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: mr.Addr()},
		Cron:      []CronRegistration{{Spec: "not a cron", Task: task}},
	})
	assert.Error(t, err)
}
