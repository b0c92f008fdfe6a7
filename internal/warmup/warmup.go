// Package warmup force-refreshes hot keys on a cron schedule so readers keep
// hitting fresh records instead of paying for the upstream call themselves.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/unkn0wn-root/dealscache"
)

// Refresher is the part of DealsCache the scheduler drives.
type Refresher interface {
	PopularNow(ctx context.Context, limit int, force bool) (dealscache.Result[[]dealscache.Deal], error)
	HealthNow(ctx context.Context, force bool) (dealscache.Result[dealscache.HealthStatus], error)
}

// Config holds one schedule per job; an empty schedule disables the job.
// Schedules are standard 5-field cron expressions or descriptors such as
// "@every 5m".
type Config struct {
	Popular      string        `yaml:"popular"`
	PopularLimit int           `yaml:"popular_limit"` // 0 => the cache default
	Health       string        `yaml:"health"`
	Timeout      time.Duration `yaml:"timeout"` // per run; 0 => 30s
}

type job struct {
	name string
	run  func(ctx context.Context) dealscache.State
}

type Scheduler struct {
	c       *cron.Cron
	log     dealscache.Logger
	timeout time.Duration
	jobs    []job
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func New(r Refresher, cfg Config, log dealscache.Logger) (*Scheduler, error) {
	if log == nil {
		log = dealscache.NopLogger{}
	}
	s := &Scheduler{
		c:       cron.New(cron.WithParser(parser)),
		log:     log,
		timeout: cfg.Timeout,
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}

	var errs []error
	add := func(name, schedule string, run func(ctx context.Context) dealscache.State) {
		if schedule == "" {
			return
		}
		j := job{name: name, run: run}
		if _, err := s.c.AddFunc(schedule, func() { s.runJob(j) }); err != nil {
			errs = append(errs, fmt.Errorf("warmup %s %q: %w", name, schedule, err))
			return
		}
		s.jobs = append(s.jobs, j)
	}
	add(dealscache.OpPopular, cfg.Popular, func(ctx context.Context) dealscache.State {
		res, err := r.PopularNow(ctx, cfg.PopularLimit, true)
		if err != nil {
			return dealscache.StatePending
		}
		return res.State()
	})
	add(dealscache.OpHealth, cfg.Health, func(ctx context.Context) dealscache.State {
		res, err := r.HealthNow(ctx, true)
		if err != nil {
			return dealscache.StatePending
		}
		return res.State()
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) runJob(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	start := time.Now()
	state := j.run(ctx)
	f := dealscache.Fields{"job": j.name, "state": state.String(), "took": time.Since(start).String()}
	if state == dealscache.StateSuccess {
		s.log.Debug("warmup refreshed", f)
		return
	}
	s.log.Warn("warmup refresh failed", f)
}

// Jobs reports how many schedules are active.
func (s *Scheduler) Jobs() int { return len(s.jobs) }

func (s *Scheduler) Start() { s.c.Start() }

// Stop halts scheduling and waits for running jobs or ctx, whichever is first.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
