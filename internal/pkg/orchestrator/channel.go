// Package orchestrator runs debounced, cancellable lookups for a moving viewport.
//
// A Channel owns at most one unit of work at a time. Every Trigger supersedes
// whatever the channel was doing: a pending timer is stopped, an in-flight call
// has its context cancelled, and any result it still produces is discarded.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/samirrijal/darkhorizon/internal/pkg/metrics"
)

// State is the observable lifecycle of a channel.
type State int

const (
	Idle State = iota
	Pending
	InFlight
	Delivered
	NoResult
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InFlight:
		return "in_flight"
	case Delivered:
		return "delivered"
	case NoResult:
		return "no_result"
	default:
		return "idle"
	}
}

// Worker performs one lookup. It must honour ctx.
type Worker[In, Out any] func(ctx context.Context, in In) (Out, error)

// Options configures a Channel.
type Options[Out any] struct {
	Name  string
	Delay time.Duration
	// Clock defaults to the wall clock.
	Clock clock.Clock
	// OnResult and OnError run with the channel lock held and must not call back into it.
	OnResult func(Out)
	OnError  func(error)
}

// Channel debounces triggers and keeps a single current unit of work.
type Channel[In, Out any] struct {
	name     string
	delay    time.Duration
	clock    clock.Clock
	work     Worker[In, Out]
	onResult func(Out)
	onError  func(error)

	mu     sync.Mutex
	gen    uint64
	timer  *clock.Timer
	cancel context.CancelFunc
	state  State
	closed bool
}

// New creates an idle channel.
func New[In, Out any](work Worker[In, Out], opts Options[Out]) *Channel[In, Out] {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Channel[In, Out]{
		name:     opts.Name,
		delay:    opts.Delay,
		clock:    clk,
		work:     work,
		onResult: opts.OnResult,
		onError:  opts.OnError,
	}
}

// Name returns the channel label used in metrics and error reports.
func (c *Channel[In, Out]) Name() string { return c.name }

// State returns the current lifecycle state.
func (c *Channel[In, Out]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Trigger supersedes any current work and schedules in to run after the debounce delay.
func (c *Channel[In, Out]) Trigger(in In) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.supersede()
	c.gen++
	gen := c.gen
	c.state = Pending
	c.timer = c.clock.AfterFunc(c.delay, func() { c.fire(gen, in) })
	metrics.ChannelTriggers.WithLabelValues(c.name).Inc()
}

// CancelAll drops pending and in-flight work without scheduling anything new.
func (c *Channel[In, Out]) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supersede()
	c.gen++
	c.state = Idle
}

// Close cancels all work. Later triggers are ignored.
func (c *Channel[In, Out]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supersede()
	c.gen++
	c.state = Idle
	c.closed = true
}

// supersede stops the timer and aborts in-flight work. Caller holds c.mu.
func (c *Channel[In, Out]) supersede() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
		metrics.ChannelSuperseded.WithLabelValues(c.name).Inc()
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
		metrics.ChannelSuperseded.WithLabelValues(c.name).Inc()
	}
}

func (c *Channel[In, Out]) fire(gen uint64, in In) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.timer = nil
	c.cancel = cancel
	c.state = InFlight
	c.mu.Unlock()

	go c.run(ctx, cancel, gen, in)
}

func (c *Channel[In, Out]) run(ctx context.Context, cancel context.CancelFunc, gen uint64, in In) {
	out, err := c.work(ctx, in)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer cancel()

	if gen != c.gen {
		return
	}
	aborted := ctx.Err() != nil
	c.cancel = nil

	if err != nil {
		c.state = NoResult
		if !aborted {
			metrics.ChannelFailures.WithLabelValues(c.name).Inc()
			if c.onError != nil {
				c.onError(err)
			}
		}
		return
	}

	c.state = Delivered
	metrics.ChannelDelivered.WithLabelValues(c.name).Inc()
	if c.onResult != nil {
		c.onResult(out)
	}
}
