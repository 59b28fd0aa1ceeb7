package threadcap

// Event kinds reported through Callbacks.
const (
	// EventWarning reports a recoverable oddity (an unwrapped activity
	// envelope, an unusable replies shape).
	EventWarning = "warning"
	// EventProcessLevel fires before and after each BFS level.
	EventProcessLevel = "process-level"
	// EventNodeProcessed fires after each part (comment or replies) of
	// a node has been considered; Updated reports whether a fetch
	// actually happened or the part was still fresh.
	EventNodeProcessed = "node-processed"
	// EventWaitingForRateLimit fires before the rate-limited fetcher
	// sleeps.
	EventWaitingForRateLimit = "waiting-for-rate-limit"
)

// Event is one crawl progress notification.
type Event struct {
	Kind    string `json:"kind"`
	NodeID  string `json:"nodeId,omitempty"`
	Part    string `json:"part,omitempty"` // "comment" or "replies"
	Updated bool   `json:"updated,omitempty"`
	Level   int    `json:"level,omitempty"`
	Phase   string `json:"phase,omitempty"` // "before" or "after"
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
	Millis  int64  `json:"millis,omitempty"`
}

// Callbacks receives crawl progress events.
type Callbacks interface {
	OnEvent(event Event)
}

// CallbacksFunc adapts a function to the Callbacks interface.
type CallbacksFunc func(event Event)

func (f CallbacksFunc) OnEvent(event Event) { f(event) }
