// Package schedule runs periodic maintenance jobs on cron specs.
package schedule

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/GoDocRAG/pkg/logger_i"
	"github.com/robfig/cron/v3"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type CronScheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	ctx     context.Context
	logger  *logger_i.Logger
}

// NewCronScheduler accepts five-field specs and descriptors such as @daily.
func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
		ctx:     context.Background(),
		logger:  logger_i.NewLogger("Scheduler"),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	log := c.logger.With("job", job.Name(), "spec", spec)
	entryID, err := c.cron.AddFunc(spec, c.wrap(job, spec))
	if err != nil {
		log.Error("schedule job failed", "error", err)
		return err
	}
	c.entries[job.Name()] = entryID
	log.Info("job scheduled")
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx != nil {
		c.ctx = ctx
	}
	c.cron.Start()
}

// Stop waits for running jobs to finish.
func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

func (c *CronScheduler) wrap(job Job, spec string) func() {
	var running atomic.Bool
	return func() {
		log := c.logger.With("job", job.Name(), "spec", spec)
		if !running.CompareAndSwap(false, true) {
			log.Info("job skipped: still running")
			return
		}
		defer running.Store(false)

		start := time.Now()
		log.Info("job started")
		if err := job.Run(c.ctx); err != nil {
			log.Error("job finished", "error", err, "duration", time.Since(start))
			return
		}
		log.Info("job finished", "duration", time.Since(start))
	}
}
