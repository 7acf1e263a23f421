package session

import (
	"slices"

	"suitcase-link/internal/domain"
	"suitcase-link/internal/usecase/threshold"
)

// Snapshot is a consistent copy of the session's observable state.
type Snapshot struct {
	State       domain.ConnectionState `json:"state"`
	Transport   domain.TransportKind   `json:"transport,omitempty"`
	Devices     []domain.Device        `json:"devices"`
	Latest      *domain.Reading        `json:"latest,omitempty"`
	Class       domain.ClassOfTravel   `json:"class"`
	Threshold   float64                `json:"threshold"`
	OverLimit   bool                   `json:"over_limit"`
	Zone        threshold.Zone         `json:"zone,omitempty"`
	RSSI        *int                   `json:"rssi,omitempty"`
	AlertActive bool                   `json:"alert_active"`
}

// Snapshot returns the state as of the last completed loop step. It never
// waits on the loop.
func (s *Session) Snapshot() Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	out := s.snap
	out.Devices = slices.Clone(s.snap.Devices)
	return out
}

// Latest returns the most recent reading, or false when there is none.
func (s *Session) Latest() (domain.Reading, bool) {
	snap := s.Snapshot()
	if snap.Latest == nil {
		return domain.Reading{}, false
	}
	return *snap.Latest, true
}

// publishSnapshot copies loop-owned state for readers. Loop goroutine only,
// plus once from New before the loop starts.
func (s *Session) publishSnapshot() {
	snap := Snapshot{
		State:       s.state,
		Devices:     s.devicesCopy(),
		Class:       s.class,
		Threshold:   s.class.ThresholdPounds(),
		AlertActive: s.alert.Active(),
	}
	if s.active != nil {
		snap.Transport = s.active.Kind()
	}
	if s.state.Device != nil {
		d := *s.state.Device
		snap.State.Device = &d
	}
	if s.latest != nil {
		r := *s.latest
		snap.Latest = &r
		pounds := r.Pounds()
		snap.OverLimit = pounds > snap.Threshold
		snap.Zone = threshold.ZoneOf(pounds, s.class)
	}
	if s.rssi != nil {
		v := *s.rssi
		snap.RSSI = &v
	}

	s.snapMu.Lock()
	s.snap = snap
	s.snapMu.Unlock()
}
