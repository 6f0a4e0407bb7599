package daemon

import (
	"sync"

	"github.com/oshokin/sayit-alarm/internal/delivery"
)

// sessionRegistry indexes live delivery sessions by alarm id.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[int64]*delivery.Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[int64]*delivery.Session)}
}

// get returns the live session of an alarm or nil.
func (r *sessionRegistry) get(alarmID int64) *delivery.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sessions[alarmID]
}

// put stores session and returns the one it replaced, if any.
func (r *sessionRegistry) put(session *delivery.Session) *delivery.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.sessions[session.AlarmID()]
	r.sessions[session.AlarmID()] = session

	return previous
}

// remove drops session unless a newer session of the same alarm replaced it.
func (r *sessionRegistry) remove(session *delivery.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[session.AlarmID()] == session {
		delete(r.sessions, session.AlarmID())
	}
}
