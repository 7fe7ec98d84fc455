package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeHistory struct {
	messages []string
}

func (f *fakeHistory) AddMessage(sessionID, role, content string) error {
	f.messages = append(f.messages, role+": "+content)
	return nil
}

func (f *fakeHistory) GetHistory(sessionID string, limit int) ([]llms.MessageContent, error) {
	return nil, nil
}

func newTestController(t *testing.T, model *fakeModel, tools ...*fakeTool) (*PlanController, *PlanStore) {
	t.Helper()
	if len(tools) == 0 {
		tools = []*fakeTool{{name: "echo", desc: "echo input"}}
	}
	reg := newTestRegistry(t)
	for _, tool := range tools {
		require.NoError(t, reg.Register(tool))
	}
	store := NewPlanStore()
	c := NewPlanController(model, reg, store, nil, nil, nil, nil, DefaultPlanningConfig())
	return c, store
}

func TestRun_TwoTasksCompleteInOrder(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("", makeCall("p1", "propose_plan", `{
			"tasks": [
				{"id": "t1", "title": "read the failing test"},
				{"id": "t2", "title": "apply the fix", "dependencies": ["t1"]}
			]
		}`)),
		textResponse("found the assertion"),
		textResponse("patched the comparison"),
		textResponse("The test was reading stale state; the comparison is fixed."),
	}}
	c, store := newTestController(t, model)

	var finished []string
	c.OnTaskResult = func(task Task, result TaskResult) {
		finished = append(finished, task.ID)
		assert.True(t, result.Success)
	}

	history := &fakeHistory{}
	c.History = history

	answer, err := c.Run(context.Background(), "session-1", "fix the flaky test")
	require.NoError(t, err)
	assert.Equal(t, "The test was reading stale state; the comparison is fixed.", answer)
	assert.Equal(t, []string{"t1", "t2"}, finished)

	// The plan epoch ends with the run.
	_, err = store.Plan()
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.Len(t, history.messages, 2)
	assert.Equal(t, "human: fix the flaky test", history.messages[0])
}

func TestRun_TaskUsesNativeToolCall(t *testing.T) {
	echo := &fakeTool{name: "echo", desc: "echo input"}
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("", makeCall("p1", "propose_plan", `{"tasks": [{"id": "t1", "title": "inspect"}]}`)),
		toolResponse("", makeCall("c1", "echo", `{"text": "hello"}`)),
		textResponse("done inspecting"),
		textResponse("Inspection finished."),
	}}
	c, _ := newTestController(t, model, echo)

	answer, err := c.Run(context.Background(), "s", "inspect the repo")
	require.NoError(t, err)
	assert.Equal(t, "Inspection finished.", answer)
	assert.Equal(t, 1, echo.callCount())

	// The tool result travels back to the model as a tool message.
	secondTurn := model.requests[2]
	var sawToolMessage bool
	for _, msg := range secondTurn {
		if msg.Role == llms.ChatMessageTypeTool {
			sawToolMessage = true
		}
	}
	assert.True(t, sawToolMessage, "tool result missing from follow-up request")
}

func TestRun_TaskUsesEmbeddedToolCall(t *testing.T) {
	echo := &fakeTool{name: "echo", desc: "echo input"}
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("", makeCall("p1", "propose_plan", `{"tasks": [{"id": "t1", "title": "inspect"}]}`)),
		textResponse("Running it now.\n<tool_call>{\"name\": \"echo\", \"arguments\": {\"text\": \"hi\"}}</tool_call>"),
		textResponse("done"),
		textResponse("Finished."),
	}}
	c, _ := newTestController(t, model, echo)

	answer, err := c.Run(context.Background(), "s", "inspect the repo")
	require.NoError(t, err)
	assert.Equal(t, "Finished.", answer)
	assert.Equal(t, 1, echo.callCount())
}

func TestRun_UnknownToolGetsErrorResultAndRunContinues(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("", makeCall("p1", "propose_plan", `{"tasks": [{"id": "t1", "title": "inspect"}]}`)),
		toolResponse("", makeCall("c1", "does_not_exist", `{}`)),
		textResponse("recovered without the tool"),
		textResponse("Finished without the missing tool."),
	}}
	c, _ := newTestController(t, model)

	answer, err := c.Run(context.Background(), "s", "inspect the repo")
	require.NoError(t, err)
	assert.Equal(t, "Finished without the missing tool.", answer)

	// The error result for the unknown tool reaches the model.
	secondTurn := model.requests[2]
	var sawError bool
	for _, msg := range secondTurn {
		for _, part := range msg.Parts {
			if res, ok := part.(llms.ToolCallResponse); ok {
				assert.Contains(t, res.Content, "does not exist")
				sawError = true
			}
		}
	}
	assert.True(t, sawError)
}

func TestRun_FailedTaskBlocksDependentAndReports(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("", makeCall("p1", "propose_plan", `{
			"tasks": [
				{"id": "t1", "title": "compile"},
				{"id": "t2", "title": "deploy", "dependencies": ["t1"]}
			]
		}`)),
		nil, // task t1: model error -> task fails
		nil, // final consolidation also errors -> plain report
	}}
	c, _ := newTestController(t, model)

	var results []TaskResult
	c.OnTaskResult = func(task Task, result TaskResult) {
		results = append(results, result)
	}

	answer, err := c.Run(context.Background(), "s", "ship it")
	require.NoError(t, err)

	require.Len(t, results, 1, "the blocked task must never execute")
	assert.False(t, results[0].Success)

	assert.Contains(t, answer, "failed")
	assert.Contains(t, answer, "compile")
	assert.Contains(t, answer, "blocked")
	assert.Contains(t, answer, "deploy")
}

// One early failure must not bleed replan budget out of the successes that
// follow: every independent pending task still runs.
func TestRun_SuccessesAfterFailureDoNotDrainReplanBudget(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("", makeCall("p1", "propose_plan", `{
			"tasks": [
				{"id": "a", "title": "compile"},
				{"id": "b", "title": "deploy", "dependencies": ["a"]},
				{"id": "c", "title": "lint"},
				{"id": "d", "title": "docs"},
				{"id": "e", "title": "changelog"}
			]
		}`)),
		nil, // task a: model error -> task fails, b becomes blocked
		textResponse("lint clean"),
		textResponse("docs updated"),
		textResponse("changelog written"),
		textResponse("Everything except the deploy is done."),
	}}
	c, _ := newTestController(t, model)
	c.Config.MaxReplans = 2

	var executed []string
	c.OnTaskResult = func(task Task, result TaskResult) {
		executed = append(executed, task.ID)
	}

	answer, err := c.Run(context.Background(), "s", "ship the release")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c", "d", "e"}, executed,
		"independent tasks after the failure must all run")
	assert.Equal(t, "Everything except the deploy is done.", answer)
}

func TestRun_StepBudgetExhaustion(t *testing.T) {
	echo := &fakeTool{name: "echo", desc: "echo input"}
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("", makeCall("p1", "propose_plan", `{"tasks": [{"id": "t1", "title": "loop forever"}]}`)),
		toolResponse("", makeCall("c1", "echo", `{}`)),
		nil, // final consolidation errors -> plain report
	}}
	c, _ := newTestController(t, model, echo)
	c.Config.MaxStepsPerTask = 1

	var result TaskResult
	c.OnTaskResult = func(task Task, r TaskResult) { result = r }

	answer, err := c.Run(context.Background(), "s", "spin")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "did not complete within 1 steps")
	assert.Contains(t, answer, "failed")
}

func TestRun_CancelledBeforePlanning(t *testing.T) {
	model := &fakeModel{}
	c, _ := newTestController(t, model)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Run(ctx, "s", "anything")
	assert.Error(t, err)
	assert.Empty(t, model.requests, "no model call after cancellation")
}

func TestRun_CancelledMidTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	trigger := &fakeTool{name: "trigger", desc: "cancels the run", execute: func(c context.Context, in string) (string, error) {
		cancel()
		return "done", nil
	}}
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("", makeCall("p1", "propose_plan", `{
			"tasks": [
				{"id": "t1", "title": "first"},
				{"id": "t2", "title": "second"}
			]
		}`)),
		toolResponse("", makeCall("c1", "trigger", `{}`)),
	}}
	c, _ := newTestController(t, model, trigger)

	var results []TaskResult
	c.OnTaskResult = func(task Task, r TaskResult) { results = append(results, r) }

	answer, err := c.Run(ctx, "s", "goal")
	require.NoError(t, err)

	require.Len(t, results, 1, "second task must not start after cancellation")
	assert.True(t, results[0].Cancelled)
	assert.Contains(t, answer, "cancelled")
}
