package strategy

import "sync"

// StateMachine tracks one symbol's pipeline lifecycle. Any stage can bail
// back to idle with EventSkip; only a confirmed submission reaches OPEN.
type StateMachine struct {
	mu    sync.Mutex
	State State
}

func NewStateMachine() *StateMachine {
	return &StateMachine{State: StateIdle}
}

func (s *StateMachine) Apply(event Event) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = nextState(s.State, event)
	return s.State
}

func (s *StateMachine) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

func nextState(current State, event Event) State {
	switch current {
	case StateIdle:
		if event == EventDispatch {
			return StateEvaluating
		}
	case StateEvaluating:
		if event == EventSignal {
			return StateSizing
		}
		if event == EventSkip {
			return StateIdle
		}
	case StateSizing:
		if event == EventSized {
			return StateSubmitting
		}
		if event == EventSkip {
			return StateIdle
		}
	case StateSubmitting:
		if event == EventAccepted {
			return StateOpen
		}
		if event == EventSkip {
			return StateIdle
		}
	case StateOpen:
		if event == EventClosed {
			return StateClosed
		}
	case StateClosed:
		if event == EventReset {
			return StateIdle
		}
	}
	return current
}
