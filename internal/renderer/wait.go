package renderer

import (
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/config"
)

type waitKind int

const (
	waitDOMReady waitKind = iota
	waitNetworkIdle
	waitFixedDelay
)

// networkQuietPeriod is how long no request may be in flight before the
// page counts as network idle.
const networkQuietPeriod = 500 * time.Millisecond

// WaitStrategy decides when a navigated page is ready to snapshot.
type WaitStrategy struct {
	kind  waitKind
	delay time.Duration
}

// DOMReady waits until the body element is ready.
func DOMReady() WaitStrategy { return WaitStrategy{kind: waitDOMReady} }

// NetworkIdle waits until no request has been in flight for 500ms.
func NetworkIdle() WaitStrategy { return WaitStrategy{kind: waitNetworkIdle} }

// FixedDelay sleeps for d after the load event.
func FixedDelay(d time.Duration) WaitStrategy { return WaitStrategy{kind: waitFixedDelay, delay: d} }

// String returns the config name of the strategy.
func (w WaitStrategy) String() string {
	switch w.kind {
	case waitNetworkIdle:
		return config.WaitNetworkIdle
	case waitFixedDelay:
		return fmt.Sprintf("%s(%s)", config.WaitFixedDelay, w.delay)
	default:
		return config.WaitDOMReady
	}
}

// ParseWaitStrategy maps a config value to a WaitStrategy.
func ParseWaitStrategy(name string, delay time.Duration) (WaitStrategy, error) {
	switch name {
	case config.WaitDOMReady:
		return DOMReady(), nil
	case config.WaitNetworkIdle, "":
		return NetworkIdle(), nil
	case config.WaitFixedDelay:
		if delay <= 0 {
			return WaitStrategy{}, fmt.Errorf("renderer: fixed_delay needs a positive delay, got %s", delay)
		}
		return FixedDelay(delay), nil
	default:
		return WaitStrategy{}, fmt.Errorf("renderer: unknown wait strategy %q", name)
	}
}
