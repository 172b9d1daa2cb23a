package browser

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskPrefix namespaces browser journeys in the task statistics.
const TaskPrefix = "browser_"

// TaskRecorder receives the outcome of every journey.
type TaskRecorder interface {
	RecordTask(name string, d time.Duration, err error)
}

// DriverFactory opens one browser session.
type DriverFactory func(ctx context.Context) (Driver, error)

// Config is shared by every browser user of a run.
type Config struct {
	BaseURL   string
	Timeouts  Timeouts
	ThinkMin  time.Duration
	ThinkMax  time.Duration
	Journeys  []Journey
	NewDriver DriverFactory
	Stats     TaskRecorder
	Log       *zap.Logger
}

// User is one simulated browser shopper owning a single browser session.
type User struct {
	cfg Config
	rng *rand.Rand
	log *zap.Logger
}

func NewUser(cfg Config, rng *rand.Rand) *User {
	if len(cfg.Journeys) == 0 {
		cfg.Journeys = DefaultJourneys()
	}
	return &User{cfg: cfg, rng: rng, log: cfg.Log}
}

// Run opens the browser and performs journeys until ctx is done. Only a
// failure to open the browser is returned.
func (u *User) Run(ctx context.Context) error {
	d, err := u.cfg.NewDriver(ctx)
	if err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	defer d.Close()

	u.log = u.log.With(zap.String("user_session", uuid.NewString()))
	u.log.Info("Starting browser session")

	for {
		if err := sleep(ctx, u.thinkTime()); err != nil {
			return nil
		}
		u.Step(ctx, d)
	}
}

// Step runs one randomly chosen journey and records its outcome.
func (u *User) Step(ctx context.Context, d Driver) error {
	j := u.cfg.Journeys[u.rng.IntN(len(u.cfg.Journeys))]
	log := u.log.With(zap.String("journey", j.Name))
	log.Info("Browser journey started")

	start := time.Now()
	err := RunJourney(ctx, d, j, u.cfg.BaseURL, u.cfg.Timeouts, log)
	if ctx.Err() != nil {
		return err
	}
	if err != nil {
		log.Error("Browser journey failed", zap.Error(err))
	}
	u.cfg.Stats.RecordTask(TaskPrefix+j.Name, time.Since(start), err)
	return err
}

func (u *User) thinkTime() time.Duration {
	spread := u.cfg.ThinkMax - u.cfg.ThinkMin
	if spread <= 0 {
		return u.cfg.ThinkMin
	}
	return u.cfg.ThinkMin + time.Duration(u.rng.Int64N(int64(spread)+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
