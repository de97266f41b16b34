package frontier

import (
	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
)

// Frontier is a FIFO crawl queue that remembers every URL it has seen.
// Each URL is queued at most once and, once visited or failed, stays
// there. It is owned by a single coordinator and is not safe for
// concurrent use.
type Frontier struct {
	entries map[string]*domain.FrontierEntry
	order   []string
	queue   []string
}

// New returns an empty frontier.
func New() *Frontier {
	return &Frontier{entries: make(map[string]*domain.FrontierEntry)}
}

// Seed queues a start URL. It reports false for invalid or known URLs.
func (f *Frontier) Seed(rawURL string) bool {
	return f.Enqueue(rawURL, "")
}

// Enqueue queues rawURL, discovered on page from. It reports false when the
// URL cannot be normalized or is already known in any state.
func (f *Frontier) Enqueue(rawURL, from string) bool {
	key, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}
	if _, known := f.entries[key]; known {
		return false
	}

	f.entries[key] = &domain.FrontierEntry{
		URL:            key,
		DiscoveredFrom: from,
		State:          domain.StateQueued,
	}
	f.order = append(f.order, key)
	f.queue = append(f.queue, key)
	return true
}

// Next dequeues the oldest queued entry. The entry stays queued until it
// is marked visited or failed.
func (f *Frontier) Next() (domain.FrontierEntry, bool) {
	for len(f.queue) > 0 {
		key := f.queue[0]
		f.queue[0] = ""
		f.queue = f.queue[1:]

		entry := f.entries[key]
		if entry.State == domain.StateQueued {
			return *entry, true
		}
	}
	return domain.FrontierEntry{}, false
}

// MarkVisited records a successful retrieval.
func (f *Frontier) MarkVisited(rawURL string) {
	f.transition(rawURL, domain.StateVisited, "")
}

// MarkFailed records a failed retrieval with its reason.
func (f *Frontier) MarkFailed(rawURL, reason string) {
	f.transition(rawURL, domain.StateFailed, reason)
}

// State returns the state of rawURL, or false when it was never queued.
func (f *Frontier) State(rawURL string) (domain.URLState, bool) {
	entry := f.lookup(rawURL)
	if entry == nil {
		return "", false
	}
	return entry.State, true
}

// Len is the number of entries waiting in the queue.
func (f *Frontier) Len() int {
	return len(f.queue)
}

// Known is the number of distinct URLs ever queued.
func (f *Frontier) Known() int {
	return len(f.order)
}

// Visited lists visited URLs in discovery order.
func (f *Frontier) Visited() []string {
	return f.inState(domain.StateVisited)
}

// Failed lists failed URLs in discovery order.
func (f *Frontier) Failed() []string {
	return f.inState(domain.StateFailed)
}

// Entries returns a copy of every entry in discovery order.
func (f *Frontier) Entries() []domain.FrontierEntry {
	out := make([]domain.FrontierEntry, 0, len(f.order))
	for _, key := range f.order {
		out = append(out, *f.entries[key])
	}
	return out
}

// transition only moves queued entries; terminal states are final.
func (f *Frontier) transition(rawURL string, state domain.URLState, reason string) {
	entry := f.lookup(rawURL)
	if entry == nil || entry.State != domain.StateQueued {
		return
	}
	entry.State = state
	entry.Error = reason
}

func (f *Frontier) lookup(rawURL string) *domain.FrontierEntry {
	if entry, ok := f.entries[rawURL]; ok {
		return entry
	}
	key, err := NormalizeURL(rawURL)
	if err != nil {
		return nil
	}
	return f.entries[key]
}

func (f *Frontier) inState(state domain.URLState) []string {
	var out []string
	for _, key := range f.order {
		if f.entries[key].State == state {
			out = append(out, key)
		}
	}
	return out
}
