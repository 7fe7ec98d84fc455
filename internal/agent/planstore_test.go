package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeTaskPlan() ([]Task, []string) {
	tasks := []Task{
		{ID: "a", Title: "inspect the failing test"},
		{ID: "b", Title: "fix the bug", Dependencies: []string{"a"}},
		{ID: "c", Title: "run the suite"},
	}
	return tasks, []string{"a", "b", "c"}
}

func TestPlanStore_CreatePlanValidation(t *testing.T) {
	cases := map[string]struct {
		tasks []Task
		order []string
	}{
		"empty plan":       {nil, nil},
		"empty task id":    {[]Task{{ID: "", Title: "x"}}, []string{""}},
		"duplicate id":     {[]Task{{ID: "a"}, {ID: "a"}}, []string{"a", "a"}},
		"order too short":  {[]Task{{ID: "a"}, {ID: "b"}}, []string{"a"}},
		"order unknown id": {[]Task{{ID: "a"}}, []string{"z"}},
		"order repeats":    {[]Task{{ID: "a"}, {ID: "b"}}, []string{"a", "a"}},
		"unknown dep":      {[]Task{{ID: "a", Dependencies: []string{"z"}}}, []string{"a"}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s := NewPlanStore()
			_, err := s.CreatePlan("goal", tc.tasks, tc.order)
			assert.Error(t, err)

			_, err = s.Plan()
			assert.ErrorIs(t, err, ErrNotInitialized)
		})
	}
}

func TestPlanStore_CreatePlanDefaultsPendingStatus(t *testing.T) {
	s := NewPlanStore()
	tasks, order := threeTaskPlan()

	plan, err := s.CreatePlan("fix the build", tasks, order)
	require.NoError(t, err)

	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, "fix the build", plan.OriginalGoal)
	for _, task := range plan.Tasks {
		assert.Equal(t, TaskPending, task.Status)
	}
}

func TestPlanStore_NextTaskHonorsDependencies(t *testing.T) {
	s := NewPlanStore()
	tasks := []Task{
		{ID: "a", Title: "first"},
		{ID: "b", Title: "needs a", Dependencies: []string{"a"}},
	}
	_, err := s.CreatePlan("goal", tasks, []string{"b", "a"})
	require.NoError(t, err)

	// b is first in order but its dependency is not complete.
	next, ok, err := s.NextTask()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", next.ID)

	require.NoError(t, s.MarkInProgress("a"))
	require.NoError(t, s.MarkCompleted("a", TaskResult{Success: true, Summary: "done"}))

	next, ok, err = s.NextTask()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", next.ID)
}

func TestPlanStore_InvalidTransitions(t *testing.T) {
	s := NewPlanStore()
	tasks, order := threeTaskPlan()
	_, err := s.CreatePlan("goal", tasks, order)
	require.NoError(t, err)

	// Completing a task that was never started.
	err = s.MarkCompleted("a", TaskResult{Success: true})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, s.MarkInProgress("a"))
	require.NoError(t, s.MarkCompleted("a", TaskResult{Success: true, Summary: "ok"}))

	// Terminal tasks accept no further transitions.
	assert.ErrorIs(t, s.MarkInProgress("a"), ErrInvalidTransition)
	assert.ErrorIs(t, s.MarkSkipped("a"), ErrInvalidTransition)

	// Unknown task id.
	assert.Error(t, s.MarkInProgress("zz"))
}

func TestPlanStore_MarkFailedBlocksDirectDependents(t *testing.T) {
	s := NewPlanStore()
	tasks, order := threeTaskPlan()
	_, err := s.CreatePlan("goal", tasks, order)
	require.NoError(t, err)

	require.NoError(t, s.MarkInProgress("a"))
	require.NoError(t, s.MarkFailed("a", TaskResult{Summary: "exploded", Error: "exploded"}))

	plan, err := s.Plan()
	require.NoError(t, err)
	byID := map[string]Task{}
	for _, task := range plan.Tasks {
		byID[task.ID] = task
	}

	assert.Equal(t, TaskFailed, byID["a"].Status)
	assert.Equal(t, TaskBlocked, byID["b"].Status)
	assert.Equal(t, TaskPending, byID["c"].Status)

	// c has no dependency on a and must still be offered.
	next, ok, err := s.NextTask()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c", next.ID)
}

func TestPlanStore_ResultRecordedOnTask(t *testing.T) {
	s := NewPlanStore()
	tasks, order := threeTaskPlan()
	_, err := s.CreatePlan("goal", tasks, order)
	require.NoError(t, err)

	require.NoError(t, s.MarkInProgress("a"))
	require.NoError(t, s.MarkCompleted("a", TaskResult{Success: true, Output: "all green", Summary: "tests pass"}))

	plan, err := s.Plan()
	require.NoError(t, err)
	require.NotNil(t, plan.Tasks[0].Result)
	assert.True(t, plan.Tasks[0].Result.Success)
	assert.Equal(t, "tests pass", plan.Tasks[0].Result.Summary)
}

func TestPlanStore_SubscribeAndClear(t *testing.T) {
	s := NewPlanStore()

	var events []PlanEvent
	unsubscribe := s.Subscribe(func(evt PlanEvent) {
		events = append(events, evt)
	})

	tasks, order := threeTaskPlan()
	_, err := s.CreatePlan("goal", tasks, order)
	require.NoError(t, err)
	require.NoError(t, s.MarkInProgress("a"))
	s.Clear()

	require.Len(t, events, 3)
	assert.Equal(t, PlanEventCreated, events[0].Type)
	assert.Equal(t, PlanEventTaskUpdated, events[1].Type)
	assert.Equal(t, "a", events[1].TaskID)
	assert.Equal(t, PlanEventCleared, events[2].Type)

	// Every event carries a consistent snapshot.
	assert.Len(t, events[0].Plan.Tasks, 3)
	for _, task := range events[1].Plan.Tasks {
		if task.ID == "a" {
			assert.Equal(t, TaskInProgress, task.Status)
		}
	}

	// After Clear the store is uninitialized again.
	_, err = s.Plan()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, _, err = s.NextTask()
	assert.ErrorIs(t, err, ErrNotInitialized)

	// Unsubscribed listeners hear nothing.
	unsubscribe()
	_, err = s.CreatePlan("again", []Task{{ID: "x", Title: "t"}}, []string{"x"})
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestPlanStore_SnapshotIsolation(t *testing.T) {
	s := NewPlanStore()
	tasks, order := threeTaskPlan()
	_, err := s.CreatePlan("goal", tasks, order)
	require.NoError(t, err)

	snap, err := s.Plan()
	require.NoError(t, err)
	snap.Tasks[0].Status = TaskCompleted
	snap.Tasks[0].Title = "mutated"

	fresh, err := s.Plan()
	require.NoError(t, err)
	assert.Equal(t, TaskPending, fresh.Tasks[0].Status)
	assert.Equal(t, "inspect the failing test", fresh.Tasks[0].Title)
}

func TestPlanStore_MarkFailedEmitsEventPerBlockedTask(t *testing.T) {
	s := NewPlanStore()
	tasks := []Task{
		{ID: "a", Title: "root"},
		{ID: "b", Title: "dep one", Dependencies: []string{"a"}},
		{ID: "c", Title: "dep two", Dependencies: []string{"a"}},
	}
	_, err := s.CreatePlan("goal", tasks, []string{"a", "b", "c"})
	require.NoError(t, err)

	var updated []string
	s.Subscribe(func(evt PlanEvent) {
		if evt.Type == PlanEventTaskUpdated {
			updated = append(updated, evt.TaskID)
		}
	})

	require.NoError(t, s.MarkInProgress("a"))
	require.NoError(t, s.MarkFailed("a", TaskResult{Error: "no"}))

	// in_progress, then the failure, then one event per blocked dependent.
	assert.Equal(t, []string{"a", "a", "b", "c"}, updated)
}
