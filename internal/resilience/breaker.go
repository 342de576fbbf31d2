package resilience

import (
	"sync"
	"time"

	"github.com/relaypoint/message-relay/internal/domain"
)

// State represents the current state of the circuit breaker
type State int

const (
	// StateClosed allows calls to pass through
	StateClosed State = iota
	// StateOpen rejects all calls
	StateOpen
	// StateHalfOpen allows a single probe call to test recovery
	StateHalfOpen
)

// String returns the string representation of the breaker state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// StateChange describes a breaker transition, exposed for observability.
type StateChange struct {
	From State
	To   State
	At   time.Time
}

// Settings controls when the breaker trips and recovers.
type Settings struct {
	// SamplingWindow is the trailing duration over which outcomes are counted.
	SamplingWindow time.Duration
	// FailureRatio is the failure fraction at which the breaker opens.
	FailureRatio float64
	// MinimumThroughput is the minimum number of recorded outcomes in the
	// window before the ratio is evaluated.
	MinimumThroughput int
	// BreakDuration is how long the breaker stays open before probing.
	BreakDuration time.Duration
}

type outcome struct {
	at      time.Time
	failure bool
}

// Breaker is a sliding-window circuit breaker shared by all concurrent calls
// to one provider endpoint. The window records one outcome per logical call:
// a success or a breaker-relevant failure. Safe for concurrent use.
type Breaker struct {
	mu sync.Mutex

	settings      Settings
	now           func() time.Time
	onStateChange func(StateChange)

	state      State
	generation uint64
	window     []outcome
	openedAt   time.Time
	probing    bool
}

// NewBreaker creates a breaker with the given settings. Zero settings fall
// back to defaults that protect against flapping while allowing recovery.
func NewBreaker(settings Settings) *Breaker {
	if settings.SamplingWindow <= 0 {
		settings.SamplingWindow = 30 * time.Second
	}
	if settings.FailureRatio <= 0 || settings.FailureRatio > 1 {
		settings.FailureRatio = 0.5
	}
	if settings.MinimumThroughput <= 0 {
		settings.MinimumThroughput = 10
	}
	if settings.BreakDuration <= 0 {
		settings.BreakDuration = 15 * time.Second
	}

	return &Breaker{
		settings: settings,
		now:      time.Now,
		state:    StateClosed,
	}
}

// OnStateChange registers a hook that fires on every transition. The hook
// runs while the breaker lock is held; keep it fast and do not call back
// into the breaker.
func (b *Breaker) OnStateChange(fn func(StateChange)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Permit is the admission handed to one logical call. Exactly one of
// Success, Failure, Excluded or Abandon must be called when the call
// resolves; later calls are ignored.
type Permit struct {
	breaker    *Breaker
	generation uint64
	probe      bool
	done       bool
}

// Acquire admits a logical call. It returns domain.ErrCircuitOpen while the
// breaker is open, or while another caller holds the half-open probe. The
// transition from open to half-open happens here, on the first acquisition
// after the break duration elapses, and the claiming caller becomes the
// single probe.
func (b *Breaker) Acquire() (*Permit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return &Permit{breaker: b, generation: b.generation}, nil

	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.settings.BreakDuration {
			b.transition(StateHalfOpen)
			b.probing = true
			return &Permit{breaker: b, probe: true}, nil
		}
		return nil, domain.ErrCircuitOpen

	case StateHalfOpen:
		// A previous probe was abandoned; the slot is free again.
		if !b.probing {
			b.probing = true
			return &Permit{breaker: b, probe: true}, nil
		}
		return nil, domain.ErrCircuitOpen

	default:
		return nil, domain.ErrCircuitOpen
	}
}

type verdict int

const (
	verdictSuccess verdict = iota
	verdictFailure
	verdictExcluded
	verdictAbandoned
)

// Success records the logical call as a provider-health success.
func (p *Permit) Success() { p.breaker.resolve(p, verdictSuccess) }

// Failure records the logical call as a breaker-relevant failure.
func (p *Permit) Failure() { p.breaker.resolve(p, verdictFailure) }

// Excluded resolves the call without recording an outcome. Used for 4xx
// responses: the provider answered, so it is not a health failure, but it is
// not counted as a success either.
func (p *Permit) Excluded() { p.breaker.resolve(p, verdictExcluded) }

// Abandon resolves the call after caller-initiated cancellation. Nothing is
// recorded; an abandoned probe frees the half-open slot for the next caller.
func (p *Permit) Abandon() { p.breaker.resolve(p, verdictAbandoned) }

func (b *Breaker) resolve(p *Permit, v verdict) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p.done {
		return
	}
	p.done = true

	if p.probe {
		b.probing = false
		switch v {
		case verdictSuccess, verdictExcluded:
			// The provider responded; close and start with a clean window.
			b.window = b.window[:0]
			b.transition(StateClosed)
		case verdictFailure:
			b.openedAt = b.now()
			b.transition(StateOpen)
		case verdictAbandoned:
			// Stay half-open; the next Acquire claims the probe.
		}
		return
	}

	// Calls admitted while closed only count while that closed period lasts;
	// outcomes arriving after a trip must not disturb the open/half-open
	// cycle or a window that restarted after recovery.
	if b.state != StateClosed || p.generation != b.generation {
		return
	}

	switch v {
	case verdictSuccess:
		b.record(false)
	case verdictFailure:
		b.record(true)
		b.evaluate()
	}
}

// record appends an outcome and prunes entries older than the sampling window.
func (b *Breaker) record(failure bool) {
	now := b.now()
	b.prune(now)
	b.window = append(b.window, outcome{at: now, failure: failure})
}

// evaluate trips the breaker when the window holds enough outcomes and the
// failure ratio reaches the threshold.
func (b *Breaker) evaluate() {
	b.prune(b.now())

	total := len(b.window)
	if total < b.settings.MinimumThroughput {
		return
	}

	failures := 0
	for _, o := range b.window {
		if o.failure {
			failures++
		}
	}

	if float64(failures)/float64(total) >= b.settings.FailureRatio {
		b.openedAt = b.now()
		b.transition(StateOpen)
	}
}

func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.settings.SamplingWindow)
	i := 0
	for i < len(b.window) && b.window[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		b.window = append(b.window[:0], b.window[i:]...)
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	if from == StateClosed {
		b.generation++
	}
	b.state = to
	if b.onStateChange != nil {
		b.onStateChange(StateChange{From: from, To: to, At: b.now()})
	}
}

// CurrentState returns the breaker state as of now, accounting for an open
// period that has already expired.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.BreakDuration {
		return StateHalfOpen
	}
	return b.state
}

// Stats is a point-in-time snapshot of the breaker for monitoring.
type Stats struct {
	State         string    `json:"state"`
	Outcomes      int       `json:"outcomes"`
	Failures      int       `json:"failures"`
	FailureRatio  float64   `json:"failure_ratio"`
	OpenedAt      time.Time `json:"opened_at,omitempty"`
	ProbeInFlight bool      `json:"probe_in_flight"`
}

// Snapshot returns the current statistics of the breaker.
func (b *Breaker) Snapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(b.now())

	failures := 0
	for _, o := range b.window {
		if o.failure {
			failures++
		}
	}

	s := Stats{
		State:         b.state.String(),
		Outcomes:      len(b.window),
		Failures:      failures,
		ProbeInFlight: b.probing,
	}
	if len(b.window) > 0 {
		s.FailureRatio = float64(failures) / float64(len(b.window))
	}
	if b.state != StateClosed {
		s.OpenedAt = b.openedAt
	}
	return s
}
