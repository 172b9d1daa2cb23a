// Package users simulates independent shoppers. Each User runs an unbounded
// loop of think time followed by one weighted-random behavior.
package users

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/yashrajoria/E-Commerce-loadgen/catalog"
	"github.com/yashrajoria/E-Commerce-loadgen/models"
)

// Storefront is the HTTP surface a shopper exercises.
type Storefront interface {
	Index(ctx context.Context) error
	Product(ctx context.Context, productID string) error
	Recommendations(ctx context.Context, productIDs ...string) error
	Ads(ctx context.Context, category string) error
	Cart(ctx context.Context) error
	AddToCart(ctx context.Context, req models.AddToCartRequest) error
	Checkout(ctx context.Context, person models.Person) error
}

// FlagEvaluator resolves integer feature flags, returning 0 on any failure.
type FlagEvaluator interface {
	Int(ctx context.Context, key string) int
}

// TaskRecorder receives the outcome of every behavior.
type TaskRecorder interface {
	RecordTask(name string, d time.Duration, err error)
}

// Deps are shared by every user of a run.
type Deps struct {
	Storefront Storefront
	Catalog    *catalog.Catalog
	Flags      FlagEvaluator
	Stats      TaskRecorder
	Picker     *Picker
	Log        *zap.Logger
}

// Options tune a single user.
type Options struct {
	ThinkMin time.Duration
	ThinkMax time.Duration
}

// User is one simulated shopper. It is not safe for concurrent use; each
// goroutine owns its User.
type User struct {
	store    Storefront
	catalog  *catalog.Catalog
	flags    FlagEvaluator
	stats    TaskRecorder
	picker   *Picker
	rng      *rand.Rand
	thinkMin time.Duration
	thinkMax time.Duration
	log      *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func New(deps Deps, opts Options, rng *rand.Rand) *User {
	return &User{
		store:    deps.Storefront,
		catalog:  deps.Catalog,
		flags:    deps.Flags,
		stats:    deps.Stats,
		picker:   deps.Picker,
		rng:      rng,
		thinkMin: opts.ThinkMin,
		thinkMax: opts.ThinkMax,
		log:      deps.Log,
		sleep:    sleep,
	}
}

// Run starts the session and loops until ctx is done.
func (u *User) Run(ctx context.Context) {
	u.OnStart(ctx)
	for {
		if err := u.sleep(ctx, u.thinkTime()); err != nil {
			return
		}
		u.Step(ctx)
	}
}

// OnStart tags the user's log lines with a fresh session id and fetches the
// index page.
func (u *User) OnStart(ctx context.Context) {
	sessionID := uuid.NewString()
	u.log = u.log.With(zap.String("user_session", sessionID))
	u.log.Info("Starting user session")
	u.execute(ctx, Behavior{Name: BehaviorIndex, Run: index})
}

// Step picks and runs one behavior and returns its name and error.
func (u *User) Step(ctx context.Context) (string, error) {
	b := u.picker.Pick(u.rng)
	return b.Name, u.execute(ctx, b)
}

func (u *User) execute(ctx context.Context, b Behavior) error {
	ctx, span := otel.Tracer("users").Start(ctx, "user."+b.Name)
	defer span.End()

	start := time.Now()
	err := b.Run(ctx, u)
	if ctx.Err() != nil {
		// Stopped mid-task; the outcome says nothing about the target.
		return err
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "behavior failed")
		u.log.Debug("Behavior failed", zap.String("behavior", b.Name), zap.Error(err))
	}
	u.stats.RecordTask(b.Name, time.Since(start), err)
	return err
}

// thinkTime is uniform over [thinkMin, thinkMax].
func (u *User) thinkTime() time.Duration {
	spread := u.thinkMax - u.thinkMin
	if spread <= 0 {
		return u.thinkMin
	}
	return u.thinkMin + time.Duration(u.rng.Int64N(int64(spread)+1))
}

// newSessionID returns a time-ordered id for a cart-owning flow.
func (u *User) newSessionID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
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
