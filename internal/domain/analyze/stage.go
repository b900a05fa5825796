package analyze

import (
	"sync"
	"time"
)

// Stage is the pipeline's externally observable state. Stages are strictly
// sequential; later stages consume aggregate results of earlier ones.
type Stage int

const (
	StageChunking Stage = iota
	StageScoring
	StageRefining
	StagePlatformOptimizing
	StageVisualPlanning
	StageAssemblySynthesizing
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageChunking:
		return "chunking"
	case StageScoring:
		return "scoring"
	case StageRefining:
		return "refining"
	case StagePlatformOptimizing:
		return "platform-optimizing"
	case StageVisualPlanning:
		return "visual-planning"
	case StageAssemblySynthesizing:
		return "assembly-synthesizing"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is one point-in-time view of pipeline progress.
type Snapshot struct {
	Stage         Stage
	FailureReason string
	UpdatedAt     time.Time
}

// Status is the explicit progress record the pipeline updates as it moves
// between stages. Observers are notified synchronously on every transition;
// pipeline logic itself never reads ambient state from here.
type Status struct {
	mu        sync.Mutex
	current   Snapshot
	observers []func(Snapshot)
}

func NewStatus() *Status {
	return &Status{current: Snapshot{Stage: StageChunking, UpdatedAt: time.Now()}}
}

// Observe registers fn for transition notifications and immediately delivers
// the current snapshot.
func (s *Status) Observe(fn func(Snapshot)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	cur := s.current
	s.mu.Unlock()
	fn(cur)
}

func (s *Status) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Status) set(snap Snapshot) {
	snap.UpdatedAt = time.Now()
	s.mu.Lock()
	s.current = snap
	observers := make([]func(Snapshot), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}

func (s *Status) enter(stage Stage) { s.set(Snapshot{Stage: stage}) }

func (s *Status) fail(reason string) {
	s.set(Snapshot{Stage: StageFailed, FailureReason: reason})
}
