package background

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/jobs"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// JobScheduler runs the periodic maintenance jobs
type JobScheduler struct {
	scheduler gocron.Scheduler
	log       *zap.Logger
	jobs      map[string]gocron.Job
}

// Options selects which jobs run and how often. A nil Archiver disables
// the archive export.
type Options struct {
	Alerts           *jobs.InventoryAlertService
	LowStockInterval time.Duration
	Archiver         *jobs.OrderArchiver
	ArchiveInterval  time.Duration
}

// NewJobScheduler creates a scheduler with the jobs selected by opts
func NewJobScheduler(opts Options, log *zap.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler: scheduler,
		log:       log,
		jobs:      make(map[string]gocron.Job),
	}

	if opts.Alerts != nil {
		if err := js.register("low-stock-alerts", opts.LowStockInterval, opts.Alerts.ScheduledLowStockCheck); err != nil {
			_ = scheduler.Shutdown()
			return nil, err
		}
	}
	if opts.Archiver != nil {
		archive := func(ctx context.Context) error {
			_, err := opts.Archiver.Export(ctx)
			return err
		}
		if err := js.register("order-archive", opts.ArchiveInterval, archive); err != nil {
			_ = scheduler.Shutdown()
			return nil, err
		}
	}

	log.Info("registered background jobs", zap.Int("count", len(js.jobs)))
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	js.log.Info("starting background job scheduler")
	js.scheduler.Start()
}

// Stop waits for running jobs and stops the scheduler
func (js *JobScheduler) Stop() error {
	js.log.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// JobNames lists the registered jobs
func (js *JobScheduler) JobNames() []string {
	names := make([]string, 0, len(js.jobs))
	for _, job := range js.scheduler.Jobs() {
		names = append(names, job.Name())
	}
	return names
}

func (js *JobScheduler) register(name string, every time.Duration, run func(ctx context.Context) error) error {
	if every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}

	task := func() {
		start := time.Now()
		if err := run(context.Background()); err != nil {
			js.log.Warn("background job failed", zap.String("job", name), zap.Error(err))
			return
		}
		js.log.Debug("background job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	}

	job, err := js.scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", name, err)
	}
	js.jobs[name] = job
	return nil
}
