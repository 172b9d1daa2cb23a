// Package runner spawns and supervises the simulated user population.
package runner

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// User kinds reported in the active user gauge.
const (
	KindHTTP    = "http"
	KindBrowser = "browser"
)

// Population tracks how many users of each kind are running.
type Population interface {
	UserStarted(kind string)
	UserStopped(kind string)
}

// UserFunc runs one user until ctx is done. rng is owned by that user.
type UserFunc func(ctx context.Context, rng *rand.Rand) error

// Group is a homogeneous set of users.
type Group struct {
	Kind  string
	Count int
	Run   UserFunc
}

// Options control the run as a whole.
type Options struct {
	// SpawnRate is users started per second, across all groups.
	SpawnRate float64
	// RunTime bounds the run; zero runs until ctx is cancelled.
	RunTime time.Duration
}

type Runner struct {
	groups     []Group
	opts       Options
	population Population
	log        *zap.Logger
}

func New(opts Options, population Population, log *zap.Logger, groups ...Group) *Runner {
	return &Runner{
		groups:     groups,
		opts:       opts,
		population: population,
		log:        log,
	}
}

// Run spawns every group's users, interleaved, at the configured rate and
// returns once they have all exited.
func (r *Runner) Run(ctx context.Context) error {
	if r.opts.RunTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.RunTime)
		defer cancel()
	}

	limiter := rate.NewLimiter(rate.Limit(r.opts.SpawnRate), 1)
	var wg sync.WaitGroup
	spawned := 0

	r.log.Info("Spawning users",
		zap.Int("users", r.total()),
		zap.Float64("spawn_rate", r.opts.SpawnRate),
		zap.Duration("run_time", r.opts.RunTime),
	)

spawn:
	for _, g := range r.schedule() {
		if err := limiter.Wait(ctx); err != nil {
			break spawn
		}
		spawned++
		wg.Add(1)
		go func(g Group) {
			defer wg.Done()
			r.runUser(ctx, g)
		}(g)
	}
	if spawned == r.total() {
		r.log.Info("All users spawned", zap.Int("users", spawned))
	}

	<-ctx.Done()
	r.log.Info("Stopping users", zap.Int("users", spawned))
	wg.Wait()
	return nil
}

func (r *Runner) runUser(ctx context.Context, g Group) {
	r.population.UserStarted(g.Kind)
	defer r.population.UserStopped(g.Kind)

	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	if err := g.Run(ctx, rng); err != nil {
		r.log.Error("User exited with error", zap.String("kind", g.Kind), zap.Error(err))
	}
}

func (r *Runner) total() int {
	n := 0
	for _, g := range r.groups {
		n += max(g.Count, 0)
	}
	return n
}

// schedule interleaves groups round-robin so a small group is not starved
// behind a large one during ramp-up.
func (r *Runner) schedule() []Group {
	remaining := make([]int, len(r.groups))
	for i, g := range r.groups {
		remaining[i] = max(g.Count, 0)
	}
	order := make([]Group, 0, r.total())
	for len(order) < cap(order) {
		for i, g := range r.groups {
			if remaining[i] > 0 {
				remaining[i]--
				order = append(order, g)
			}
		}
	}
	return order
}
