package renderer

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
)

func TestIdleTracker(t *testing.T) {
	t.Parallel()

	now := time.Unix(0, 0)
	tracker := newIdleTracker()
	tracker.now = func() time.Time { return now }
	tracker.reset()

	tracker.observe(&network.EventRequestWillBeSent{RequestID: "1"})
	tracker.observe(&network.EventRequestWillBeSent{RequestID: "2"})
	now = now.Add(time.Second)
	assert.False(t, tracker.idle(networkQuietPeriod), "requests in flight")

	tracker.observe(&network.EventLoadingFinished{RequestID: "1"})
	tracker.observe(&network.EventLoadingFailed{RequestID: "2"})
	assert.False(t, tracker.idle(networkQuietPeriod), "quiet period not elapsed")

	now = now.Add(networkQuietPeriod)
	assert.True(t, tracker.idle(networkQuietPeriod))

	tracker.observe(&network.EventLoadingFinished{RequestID: "unknown"})
	assert.True(t, tracker.idle(networkQuietPeriod), "unknown request ids are ignored")

	tracker.observe(&network.EventRequestWillBeSent{RequestID: "3"})
	tracker.reset()
	now = now.Add(networkQuietPeriod)
	assert.True(t, tracker.idle(networkQuietPeriod), "reset drops in-flight requests")
}
