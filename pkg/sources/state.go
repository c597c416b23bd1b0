package sources

// FSM drives the per-source reputation state machine:
//
//	new → probation after 2 successful checks
//	probation → trusted at reputation ≥ 0.8 with enough checks
//	any → probation on a reputation drop below the trust threshold
//	probation/trusted → suspended after SuspendAfter consecutive failures
//	suspended → probation after RecoverAfter consecutive successes
type FSM struct {
	SuspendAfter int
	RecoverAfter int
}

// trust thresholds for the probation → trusted promotion.
const (
	trustReputation = 0.8
	trustMinChecks  = 5
)

// NewFSM creates the FSM with the configured streak thresholds.
func NewFSM(suspendAfter, recoverAfter int) *FSM {
	if suspendAfter <= 0 {
		suspendAfter = 3
	}
	if recoverAfter <= 0 {
		recoverAfter = 2
	}
	return &FSM{SuspendAfter: suspendAfter, RecoverAfter: recoverAfter}
}

// Advance computes the source's next state from its counters and
// reputation, and applies it. It returns the new state.
func (f *FSM) Advance(m *Metadata) State {
	if m.State == "" {
		m.State = StateNew
	}

	switch m.State {
	case StateNew:
		if m.SuccessCount >= 2 {
			m.State = StateProbation
		}
	case StateProbation:
		if m.ConsecFailures >= f.SuspendAfter {
			m.State = StateSuspended
		} else if m.ReputationScore >= trustReputation && m.SuccessCount+m.FailureCount >= trustMinChecks {
			m.State = StateTrusted
		}
	case StateTrusted:
		if m.ConsecFailures >= f.SuspendAfter {
			m.State = StateSuspended
		} else if m.ReputationScore < trustReputation {
			m.State = StateProbation
		}
	case StateSuspended:
		if m.ConsecSuccesses >= f.RecoverAfter {
			m.State = StateProbation
		}
	}

	return m.State
}

// Fetchable reports whether a source in this state may be fetched.
func Fetchable(m *Metadata) bool {
	return !m.IsBlacklisted && m.State != StateSuspended
}
