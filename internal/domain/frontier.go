package domain

// URLState is the lifecycle position of a frontier entry.
type URLState string

// Frontier states. An entry moves from queued to exactly one of visited or
// failed and never returns to queued.
const (
	StateQueued  URLState = "queued"
	StateVisited URLState = "visited"
	StateFailed  URLState = "failed"
)

// FrontierEntry tracks one discovered URL.
type FrontierEntry struct {
	URL            string   `json:"url"`
	DiscoveredFrom string   `json:"discovered_from,omitempty"`
	State          URLState `json:"state"`
	Error          string   `json:"error,omitempty"`
}
