package transduction

import (
	"fmt"
	"sync"
)

// Kind names a transduction operation.
type Kind string

const (
	KindMap      Kind = "map"
	KindReduce   Kind = "reduce"
	KindGenerate Kind = "generate"
)

// ParseKind accepts the operation names used in configuration. "amap" and
// "areduce" are accepted as aliases.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "map", "amap", "":
		return KindMap, nil
	case "reduce", "areduce":
		return KindReduce, nil
	case "generate":
		return KindGenerate, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownKind, s)
}

// Status is the lifecycle state of one invocation:
//
//	PENDING -> RUNNING -> COMPLETED
//	                   -> FAILED
//
// COMPLETED and FAILED are terminal. An invocation that fails before it
// starts may move from PENDING straight to FAILED.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether s may move to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusFailed
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// invocation tracks the status of one run.
type invocation struct {
	mu     sync.Mutex
	id     string
	kind   Kind
	status Status
}

func newInvocation(id string, kind Kind) *invocation {
	return &invocation{id: id, kind: kind, status: StatusPending}
}

func (i *invocation) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

func (i *invocation) transition(next Status) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.status, next)
	}
	i.status = next
	return nil
}
