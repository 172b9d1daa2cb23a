package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Driver is the subset of browser automation the journeys need. Selectors
// may be CSS or XPath.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	SelectOption(ctx context.Context, selector, value string) error
	// Settle returns once the page has loaded and the network has been quiet
	// for a short window, or when ctx is done.
	Settle(ctx context.Context) error
	Close() error
}

// Step is one bounded browser action.
type Step struct {
	Name string
	Do   func(ctx context.Context, d Driver) error
	// Settle steps use the settle timeout and may run out of time without
	// failing the journey.
	Settle bool
}

// Journey is a named sequence of steps relative to the storefront root.
type Journey struct {
	Name  string
	Steps func(baseURL string) []Step
}

const (
	JourneyChangeCurrency   = "change_currency"
	JourneyAddProductToCart = "add_product_to_cart"
)

const (
	currencySelector   = `[name="currency_code"]`
	currency           = "CHF"
	productSelector    = `//p[contains(., "Roof Binoculars")]`
	addToCartSelector  = `//button[contains(., "Add To Cart")]`
	pageLoadedSelector = "body"
)

// DefaultJourneys returns the browser journeys, picked with equal weight.
func DefaultJourneys() []Journey {
	return []Journey{
		{Name: JourneyChangeCurrency, Steps: changeCurrency},
		{Name: JourneyAddProductToCart, Steps: addProductToCart},
	}
}

func changeCurrency(baseURL string) []Step {
	return []Step{
		navigate(baseURL + "/cart"),
		waitVisible(currencySelector),
		{Name: "select " + currency, Do: func(ctx context.Context, d Driver) error {
			return d.SelectOption(ctx, currencySelector, currency)
		}},
		settle(),
	}
}

func addProductToCart(baseURL string) []Step {
	return []Step{
		navigate(baseURL + "/"),
		click(productSelector),
		waitVisible(addToCartSelector),
		click(addToCartSelector),
		waitVisible(pageLoadedSelector),
		settle(),
	}
}

func navigate(url string) Step {
	return Step{Name: "navigate " + url, Do: func(ctx context.Context, d Driver) error {
		return d.Navigate(ctx, url)
	}}
}

func waitVisible(selector string) Step {
	return Step{Name: "wait " + selector, Do: func(ctx context.Context, d Driver) error {
		return d.WaitVisible(ctx, selector)
	}}
}

func click(selector string) Step {
	return Step{Name: "click " + selector, Do: func(ctx context.Context, d Driver) error {
		return d.Click(ctx, selector)
	}}
}

func settle() Step {
	return Step{Name: "settle", Settle: true, Do: func(ctx context.Context, d Driver) error {
		return d.Settle(ctx)
	}}
}

// Timeouts bound individual steps.
type Timeouts struct {
	Step   time.Duration
	Settle time.Duration
}

// StepError reports which step of which journey failed.
type StepError struct {
	Journey string
	Step    string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Journey, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// RunJourney executes every step of j in order and stops at the first
// failure.
func RunJourney(ctx context.Context, d Driver, j Journey, baseURL string, t Timeouts, log *zap.Logger) error {
	for _, s := range j.Steps(baseURL) {
		timeout := t.Step
		if s.Settle {
			timeout = t.Settle
		}
		err := runStep(ctx, d, s, timeout)
		if err == nil {
			continue
		}
		if s.Settle && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			log.Debug("Page did not settle in time", zap.String("journey", j.Name))
			continue
		}
		return &StepError{Journey: j.Name, Step: s.Name, Err: err}
	}
	return nil
}

func runStep(ctx context.Context, d Driver, s Step, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.Do(ctx, d)
}
