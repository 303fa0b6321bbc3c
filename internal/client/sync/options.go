package sync

import "time"

// NetworkProfile sizes timeouts and retry budgets per connection class.
// Constrained links get more retries and a longer per-attempt timeout.
type NetworkProfile struct {
	Name           string
	AttemptTimeout time.Duration
	MaxRetries     uint64
	BackoffBase    time.Duration
}

var (
	// ProfileReliable suits wired/wifi connections.
	ProfileReliable = NetworkProfile{
		Name:           "reliable",
		AttemptTimeout: 5 * time.Second,
		MaxRetries:     2,
		BackoffBase:    500 * time.Millisecond,
	}

	// ProfileConstrained suits mobile or flaky links.
	ProfileConstrained = NetworkProfile{
		Name:           "constrained",
		AttemptTimeout: 15 * time.Second,
		MaxRetries:     4,
		BackoffBase:    time.Second,
	}
)

// ProfileByName resolves a configured profile name, defaulting to reliable.
func ProfileByName(name string) NetworkProfile {
	if name == ProfileConstrained.Name {
		return ProfileConstrained
	}
	return ProfileReliable
}

// Options tune the orchestrator's guard windows.
type Options struct {
	// MinInterval is the cool-down between sync attempts, measured from
	// the last attempt regardless of its outcome. Re-entry inside the
	// window is rejected, which caps retry storms at the front door.
	MinInterval time.Duration

	// DebounceDelay is the quiet period after the last local mutation
	// before an automatic push fires.
	DebounceDelay time.Duration

	// PostSyncQuiet suppresses automatic pushes after any sync completes.
	// Applying a merge or pull mutates local state; without this window
	// the debounce loop would feed on its own output.
	PostSyncQuiet time.Duration

	// StaleAfter is the age of the last successful sync beyond which a
	// manual-sync suggestion is raised (when auto-sync is off).
	StaleAfter time.Duration

	// AutoSync reports whether background pushes are enabled at all.
	AutoSync bool

	Profile NetworkProfile
}

// DefaultOptions returns the production guard windows.
func DefaultOptions() Options {
	return Options{
		MinInterval:   5 * time.Second,
		DebounceDelay: 3 * time.Second,
		PostSyncQuiet: 10 * time.Second,
		StaleAfter:    12 * time.Hour,
		AutoSync:      true,
		Profile:       ProfileReliable,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinInterval == 0 {
		o.MinInterval = d.MinInterval
	}
	if o.DebounceDelay == 0 {
		o.DebounceDelay = d.DebounceDelay
	}
	if o.PostSyncQuiet == 0 {
		o.PostSyncQuiet = d.PostSyncQuiet
	}
	if o.StaleAfter == 0 {
		o.StaleAfter = d.StaleAfter
	}
	if o.Profile.Name == "" {
		o.Profile = d.Profile
	}
	return o
}
