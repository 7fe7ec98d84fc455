package agent

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrNotInitialized is returned by store operations after Clear (or
	// before any plan was created).
	ErrNotInitialized = errors.New("plan store: no active plan")
	// ErrInvalidTransition is returned when a task is not in the expected
	// source state for the requested transition. This is a programming
	// error, not a recoverable tool failure.
	ErrInvalidTransition = errors.New("plan store: invalid task transition")
)

// PlanStore owns the task plan. It is the only shared mutable state in the
// system: every mutation happens, and its event is emitted, inside a single
// critical section. Listeners are read-only observers and must not call
// back into the store from their callback.
type PlanStore struct {
	mu        sync.Mutex
	plan      *TaskPlan
	listeners map[int]func(PlanEvent)
	nextSub   int
}

func NewPlanStore() *PlanStore {
	return &PlanStore{
		listeners: make(map[int]func(PlanEvent)),
	}
}

// CreatePlan initializes a new plan for a goal. The order must be a
// permutation of the task ids.
func (s *PlanStore) CreatePlan(goal string, tasks []Task, order []string) (TaskPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(tasks) == 0 {
		return TaskPlan{}, fmt.Errorf("plan store: plan needs at least one task")
	}

	ids := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			return TaskPlan{}, fmt.Errorf("plan store: task %q has empty id", t.Title)
		}
		if ids[t.ID] {
			return TaskPlan{}, fmt.Errorf("plan store: duplicate task id %q", t.ID)
		}
		ids[t.ID] = true
	}
	if len(order) != len(tasks) {
		return TaskPlan{}, fmt.Errorf("plan store: execution order has %d entries, want %d", len(order), len(tasks))
	}
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if !ids[id] {
			return TaskPlan{}, fmt.Errorf("plan store: execution order references unknown task %q", id)
		}
		if seen[id] {
			return TaskPlan{}, fmt.Errorf("plan store: execution order repeats task %q", id)
		}
		seen[id] = true
	}
	for i, t := range tasks {
		for _, dep := range t.Dependencies {
			if !ids[dep] {
				return TaskPlan{}, fmt.Errorf("plan store: task %q depends on unknown task %q", t.ID, dep)
			}
		}
		if tasks[i].Status == "" {
			tasks[i].Status = TaskPending
		}
	}

	plan := &TaskPlan{
		ID:             uuid.NewString(),
		OriginalGoal:   goal,
		Tasks:          make([]Task, len(tasks)),
		ExecutionOrder: append([]string(nil), order...),
	}
	copy(plan.Tasks, tasks)
	s.plan = plan

	s.emit(PlanEvent{Type: PlanEventCreated, PlanID: plan.ID, Plan: s.snapshot()})
	return s.snapshot(), nil
}

// Plan returns a copy of the current plan.
func (s *PlanStore) Plan() (TaskPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan == nil {
		return TaskPlan{}, ErrNotInitialized
	}
	return s.snapshot(), nil
}

// HasNext reports whether an executable pending task remains.
func (s *PlanStore) HasNext() (bool, error) {
	_, ok, err := s.NextTask()
	return ok, err
}

// NextTask returns the first task in execution order that is pending and
// whose dependencies are all completed. A pending task with an incomplete
// dependency is passed over even if it appears earlier in the order.
func (s *PlanStore) NextTask() (Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan == nil {
		return Task{}, false, ErrNotInitialized
	}

	for _, id := range s.plan.ExecutionOrder {
		t := s.find(id)
		if t == nil || t.Status != TaskPending {
			continue
		}
		if s.depsCompleted(t) {
			return *t, true, nil
		}
	}
	return Task{}, false, nil
}

// MarkInProgress transitions a pending task to in_progress.
func (s *PlanStore) MarkInProgress(id string) error {
	return s.transition(id, TaskPending, TaskInProgress, nil)
}

// MarkCompleted transitions an in_progress task to completed and records
// its result.
func (s *PlanStore) MarkCompleted(id string, result TaskResult) error {
	return s.transition(id, TaskInProgress, TaskCompleted, &result)
}

// MarkFailed transitions an in_progress task to failed, records the result,
// and blocks every pending task that directly depends on it.
func (s *PlanStore) MarkFailed(id string, result TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan == nil {
		return ErrNotInitialized
	}

	t := s.find(id)
	if t == nil {
		return fmt.Errorf("plan store: unknown task %q", id)
	}
	if t.Status != TaskInProgress {
		return fmt.Errorf("%w: task %q is %s, want %s", ErrInvalidTransition, id, t.Status, TaskInProgress)
	}
	t.Status = TaskFailed
	t.Result = &result

	blocked := []string{}
	for i := range s.plan.Tasks {
		dep := &s.plan.Tasks[i]
		if dep.Status != TaskPending {
			continue
		}
		for _, d := range dep.Dependencies {
			if d == id {
				dep.Status = TaskBlocked
				blocked = append(blocked, dep.ID)
				break
			}
		}
	}

	snap := s.snapshot()
	s.emit(PlanEvent{Type: PlanEventTaskUpdated, PlanID: s.plan.ID, TaskID: id, Plan: snap})
	for _, bid := range blocked {
		s.emit(PlanEvent{Type: PlanEventTaskUpdated, PlanID: s.plan.ID, TaskID: bid, Plan: snap})
	}
	return nil
}

// MarkSkipped transitions a pending task to skipped (replan drop).
func (s *PlanStore) MarkSkipped(id string) error {
	return s.transition(id, TaskPending, TaskSkipped, nil)
}

// Subscribe registers a listener for plan events and returns its
// unsubscribe function.
func (s *PlanStore) Subscribe(fn func(PlanEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Clear discards the plan and terminates the epoch. Subsequent operations
// fail with ErrNotInitialized until a new plan is created.
func (s *PlanStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan == nil {
		return
	}
	planID := s.plan.ID
	snap := s.snapshot()
	s.plan = nil
	s.emit(PlanEvent{Type: PlanEventCleared, PlanID: planID, Plan: snap})
}

// transition performs a single-task state change under the lock and emits
// the corresponding event in the same critical section.
func (s *PlanStore) transition(id string, from, to TaskStatus, result *TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan == nil {
		return ErrNotInitialized
	}

	t := s.find(id)
	if t == nil {
		return fmt.Errorf("plan store: unknown task %q", id)
	}
	if t.Status != from {
		return fmt.Errorf("%w: task %q is %s, want %s", ErrInvalidTransition, id, t.Status, from)
	}
	t.Status = to
	if result != nil {
		t.Result = result
	}

	s.emit(PlanEvent{Type: PlanEventTaskUpdated, PlanID: s.plan.ID, TaskID: id, Plan: s.snapshot()})
	return nil
}

func (s *PlanStore) find(id string) *Task {
	for i := range s.plan.Tasks {
		if s.plan.Tasks[i].ID == id {
			return &s.plan.Tasks[i]
		}
	}
	return nil
}

func (s *PlanStore) depsCompleted(t *Task) bool {
	for _, dep := range t.Dependencies {
		d := s.find(dep)
		if d == nil || d.Status != TaskCompleted {
			return false
		}
	}
	return true
}

// snapshot deep-copies the plan. Callers must hold the lock.
func (s *PlanStore) snapshot() TaskPlan {
	snap := TaskPlan{
		ID:             s.plan.ID,
		OriginalGoal:   s.plan.OriginalGoal,
		Tasks:          make([]Task, len(s.plan.Tasks)),
		ExecutionOrder: append([]string(nil), s.plan.ExecutionOrder...),
	}
	for i, t := range s.plan.Tasks {
		snap.Tasks[i] = t
		snap.Tasks[i].Dependencies = append([]string(nil), t.Dependencies...)
		if t.Result != nil {
			r := *t.Result
			snap.Tasks[i].Result = &r
		}
	}
	return snap
}

// emit delivers an event to every listener. Callers must hold the lock;
// delivery inside the critical section is what keeps mutation and emission
// atomic.
func (s *PlanStore) emit(evt PlanEvent) {
	for _, fn := range s.listeners {
		fn(evt)
	}
}
