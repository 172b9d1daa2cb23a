package browser

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultQuietWindow  = 500 * time.Millisecond
	settlePollInterval  = 100 * time.Millisecond
	readyStateCompleted = "complete"
)

// ChromeOptions configure a headless Chrome instance.
type ChromeOptions struct {
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
	// QuietWindow is how long the page must go without a request to settle.
	QuietWindow time.Duration
	Log         *zap.Logger
}

// ChromeDriver is a Driver backed by one headless Chrome tab. Every request
// the tab makes is paused, its baggage header extended with the synthetic
// marker, and then continued.
type ChromeDriver struct {
	ctx         context.Context
	cancel      context.CancelFunc
	quietWindow time.Duration
	log         *zap.Logger

	// lastRequest is the UnixNano time of the most recent paused request.
	lastRequest atomic.Int64
}

// NewChromeDriver launches Chrome and enables request interception.
func NewChromeDriver(ctx context.Context, opts ChromeOptions) (*ChromeDriver, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", true), chromedp.NoSandbox)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	d := &ChromeDriver{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
		quietWindow: opts.QuietWindow,
		log:         opts.Log,
	}
	if d.quietWindow <= 0 {
		d.quietWindow = defaultQuietWindow
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}

	chromedp.ListenTarget(tabCtx, d.onEvent)
	if err := chromedp.Run(tabCtx, fetch.Enable(), runtime.Enable()); err != nil {
		d.cancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return d, nil
}

func (d *ChromeDriver) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *fetch.EventRequestPaused:
		d.lastRequest.Store(time.Now().UnixNano())
		// Event handlers must not block the target's event loop.
		go d.continueRequest(e)
	case *runtime.EventConsoleAPICalled:
		args := make([]string, 0, len(e.Args))
		for _, a := range e.Args {
			if a.Value != nil {
				args = append(args, string(a.Value))
			} else {
				args = append(args, a.Description)
			}
		}
		d.log.Debug("Browser console",
			zap.String("type", string(e.Type)),
			zap.String("text", strings.Join(args, " ")),
		)
	}
}

func (d *ChromeDriver) continueRequest(e *fetch.EventRequestPaused) {
	c := chromedp.FromContext(d.ctx)
	if c == nil || c.Target == nil {
		return
	}
	ctx := cdp.WithExecutor(d.ctx, c.Target)
	err := fetch.ContinueRequest(e.RequestID).
		WithHeaders(markedHeaders(e.Request.Headers)).
		Do(ctx)
	if err != nil && d.ctx.Err() == nil {
		d.log.Debug("Failed to continue intercepted request", zap.String("url", e.Request.URL), zap.Error(err))
	}
}

// markedHeaders copies h with the synthetic marker appended to baggage.
func markedHeaders(h network.Headers) []*fetch.HeaderEntry {
	entries := make([]*fetch.HeaderEntry, 0, len(h)+1)
	existing := ""
	for name, v := range h {
		value := fmt.Sprint(v)
		if strings.EqualFold(name, BaggageHeader) {
			existing = value
			continue
		}
		entries = append(entries, &fetch.HeaderEntry{Name: name, Value: value})
	}
	return append(entries, &fetch.HeaderEntry{Name: BaggageHeader, Value: AppendSyntheticMarker(existing)})
}

// run executes actions in the tab, bounded by ctx as well as the tab.
func (d *ChromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, chromedp.Navigate(url))
}

func (d *ChromeDriver) WaitVisible(ctx context.Context, selector string) error {
	return d.run(ctx, chromedp.WaitVisible(selector, chromedp.BySearch))
}

func (d *ChromeDriver) Click(ctx context.Context, selector string) error {
	return d.run(ctx, chromedp.Click(selector, chromedp.BySearch))
}

// SelectOption sets the select's value through the native setter so that
// framework-controlled inputs observe the change event.
func (d *ChromeDriver) SelectOption(ctx context.Context, selector, value string) error {
	script := fmt.Sprintf(`(() => {
	const el = document.querySelector(%q);
	if (!el) return false;
	const setter = Object.getOwnPropertyDescriptor(HTMLSelectElement.prototype, "value").set;
	setter.call(el, %q);
	el.dispatchEvent(new Event("change", { bubbles: true }));
	return el.value === %q;
})()`, selector, value, value)

	var ok bool
	if err := d.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("option %q not selectable in %s", value, selector)
	}
	return nil
}

func (d *ChromeDriver) Settle(ctx context.Context) error {
	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()
	for {
		var state string
		if err := d.run(ctx, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
			return err
		}
		last := time.Unix(0, d.lastRequest.Load())
		if state == readyStateCompleted && time.Since(last) >= d.quietWindow {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *ChromeDriver) Close() error {
	d.cancel()
	return nil
}
