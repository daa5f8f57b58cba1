// Package txn gives in-memory state all-or-nothing semantics.
//
// Every participant is snapshotted when a scope opens and restored if the
// scope's function fails. Scopes nest: an inner failure rolls back only the
// inner scope, an outer failure rolls back everything, including inner scopes
// that already succeeded. Commit callbacks run once, when the outermost scope
// succeeds.
//
// A Manager is not safe for concurrent use; operations are serialized by the caller.
package txn

// Participant is state that can be captured and put back.
type Participant interface {
	Snapshot() any
	Restore(snapshot any)
}

// Manager coordinates savepoints across participants.
type Manager struct {
	participants []Participant
	onCommit     []func()
	depth        int
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds a participant. Must be called before any scope is open.
func (m *Manager) Register(p Participant) {
	m.participants = append(m.participants, p)
}

// OnCommit registers fn to run after every successful outermost scope.
func (m *Manager) OnCommit(fn func()) {
	m.onCommit = append(m.onCommit, fn)
}

// Depth returns how many scopes are currently open.
func (m *Manager) Depth() int {
	return m.depth
}

// Run executes fn inside a scope. If fn returns an error or panics, every
// participant is restored to its state at scope entry.
func (m *Manager) Run(fn func() error) (err error) {
	snaps := make([]any, len(m.participants))
	for i, p := range m.participants {
		snaps[i] = p.Snapshot()
	}

	m.depth++
	committed := false
	defer func() {
		m.depth--
		if !committed {
			m.restore(snaps)
		}
	}()

	if err = fn(); err != nil {
		return err
	}
	committed = true

	if m.depth == 1 {
		for _, cb := range m.onCommit {
			cb()
		}
	}
	return nil
}

func (m *Manager) restore(snaps []any) {
	for i, p := range m.participants {
		p.Restore(snaps[i])
	}
}
