package publisher

import "sync"

// Status is the externally observable state of one destination. It is
// monotonic: processing → posted or processing → error, never out of a
// terminal state.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusPosted     Status = "posted"
	StatusError      Status = "error"
)

// Phase is the fine-grained step a destination's workflow is on, exposed
// for progress display. Invalid step orders are unrepresentable: only the
// workflow advances the phase, and only in declaration order.
type Phase string

const (
	PhasePending            Phase = "pending"
	PhaseCreatingContainers Phase = "creating_containers"
	PhaseAwaitingContainers Phase = "awaiting_containers"
	PhaseCreatingCarousel   Phase = "creating_carousel"
	PhaseAwaitingCarousel   Phase = "awaiting_carousel"
	PhasePublishing         Phase = "publishing"
	PhasePersisting         Phase = "persisting"
	PhasePosted             Phase = "posted"
	PhaseError              Phase = "error"
)

// DestinationState is one destination's progress snapshot.
type DestinationState struct {
	Status     Status
	Phase      Phase
	ExternalID string
	Err        string
}

func (s DestinationState) terminal() bool {
	return s.Status == StatusPosted || s.Status == StatusError
}

// StateMap holds per-destination state written concurrently by the
// destination workflows. Every update sets exactly one key; concurrent
// writers to different keys never clobber each other. Absence of a key
// means the destination's workflow has not started.
type StateMap struct {
	mu     sync.Mutex
	states map[string]DestinationState
}

// NewStateMap creates an empty StateMap.
func NewStateMap() *StateMap {
	return &StateMap{states: make(map[string]DestinationState)}
}

// set writes one destination's state. Writes against a terminal state are
// dropped, which keeps the processing → posted/error sequence monotonic
// even if a late workflow step races a terminal transition.
func (m *StateMap) set(id string, s DestinationState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.states[id]; ok && cur.terminal() {
		return
	}
	m.states[id] = s
}

func (m *StateMap) markProcessing(id string) {
	m.set(id, DestinationState{Status: StatusProcessing, Phase: PhasePending})
}

// advance moves a processing destination to the given phase, preserving
// any fields already recorded.
func (m *StateMap) advance(id string, phase Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.states[id]
	if !ok || cur.terminal() {
		return
	}
	cur.Phase = phase
	m.states[id] = cur
}

func (m *StateMap) markPosted(id, externalID string) {
	m.set(id, DestinationState{Status: StatusPosted, Phase: PhasePosted, ExternalID: externalID})
}

func (m *StateMap) markError(id string, err error) {
	m.set(id, DestinationState{Status: StatusError, Phase: PhaseError, Err: err.Error()})
}

// Get returns one destination's state. ok is false if the destination's
// workflow has not been started.
func (m *StateMap) Get(id string) (DestinationState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[id]
	return s, ok
}

// Snapshot returns a copy of the full mapping, safe to read while
// workflows are still in flight.
func (m *StateMap) Snapshot() map[string]DestinationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]DestinationState, len(m.states))
	for k, v := range m.states {
		out[k] = v
	}
	return out
}

// Settled reports whether every started destination has reached a
// terminal state.
func (m *StateMap) Settled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.states {
		if !s.terminal() {
			return false
		}
	}
	return true
}
