package agent

// TaskStatus is the lifecycle state of one task in a plan.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	// TaskBlocked marks a pending task whose dependency failed.
	TaskBlocked TaskStatus = "blocked"
	// TaskSkipped marks a pending task dropped by a replan.
	TaskSkipped TaskStatus = "skipped"
)

// Terminal reports whether no further transition is allowed from s.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskBlocked, TaskSkipped:
		return true
	}
	return false
}

// Task is one unit of a decomposed goal.
type Task struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Status       TaskStatus  `json:"status"`
	Dependencies []string    `json:"dependencies,omitempty"`
	Result       *TaskResult `json:"result,omitempty"`
}

// TaskResult is produced once per executed task and is immutable after
// creation.
type TaskResult struct {
	Success   bool   `json:"success"`
	Cancelled bool   `json:"cancelled,omitempty"`
	Output    string `json:"output,omitempty"`
	Summary   string `json:"summary"`
	Error     string `json:"error,omitempty"`
}

// TaskPlan is the ordered set of tasks derived from a single user goal. It
// is created once per goal, mutated in place through the run, and cleared
// when the goal's turn ends.
type TaskPlan struct {
	ID             string   `json:"id"`
	OriginalGoal   string   `json:"originalGoal"`
	Tasks          []Task   `json:"tasks"`
	ExecutionOrder []string `json:"executionOrder"`
}

// QueryAnalysis is an ephemeral classification of the user goal used to
// parameterize plan creation. It is never persisted.
type QueryAnalysis struct {
	TaskType       string
	Complexity     string
	EstimatedTasks int
}

// PlanningConfig bounds plan creation and execution. Immutable once handed
// to the controller.
type PlanningConfig struct {
	MaxTasks        int
	MaxStepsPerTask int
	MaxReplans      int
}

// DefaultPlanningConfig mirrors the budgets the assistant ships with.
func DefaultPlanningConfig() PlanningConfig {
	return PlanningConfig{
		MaxTasks:        8,
		MaxStepsPerTask: 10,
		MaxReplans:      2,
	}
}

// PlanEventType categorizes plan store mutations.
type PlanEventType string

const (
	PlanEventCreated     PlanEventType = "plan_created"
	PlanEventTaskUpdated PlanEventType = "task_updated"
	PlanEventCleared     PlanEventType = "plan_cleared"
)

// PlanEvent is emitted on every plan store mutation. It carries a snapshot
// of the plan taken inside the same critical section as the mutation, so
// subscribers never observe a half-updated plan.
type PlanEvent struct {
	Type   PlanEventType
	PlanID string
	TaskID string
	Plan   TaskPlan
}
