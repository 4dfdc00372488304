package pool

import "github.com/koustreak/ConnRi/internal/lifecycle"

// Status is a non-blocking snapshot of pool occupancy and retry history.
// It is eventually consistent with concurrent leases and releases.
type Status struct {
	Connected  bool   `json:"connected"`   // state == Ready
	State      string `json:"state"`       // full lifecycle state name
	Total      int32  `json:"total"`       // physical connections open
	Idle       int32  `json:"idle"`        // open connections not leased
	Waiting    int32  `json:"waiting"`     // callers blocked waiting for a handle
	RetryCount int    `json:"retry_count"` // failed attempts during the last Init
}

// Status reads live pool counters. Safe to poll from any goroutine at any
// point in the lifecycle; before Init the counters are zero.
func (m *Manager) Status() Status {
	st := m.machine.State()

	var s Stat
	m.mu.Lock()
	up := m.poolUp
	m.mu.Unlock()
	if up {
		s = m.drv.Stat()
	}

	return Status{
		Connected:  st == lifecycle.Ready,
		State:      st.String(),
		Total:      s.Total,
		Idle:       s.Idle,
		Waiting:    int32(m.waiting.Load()),
		RetryCount: int(m.retries.Load()),
	}
}
