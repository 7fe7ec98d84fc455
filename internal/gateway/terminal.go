package gateway

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/sahayak/internal/agent"
)

// TerminalGateway is the interactive stdin/stdout session. It subscribes to
// plan events so the user sees task progress while a run is in flight.
type TerminalGateway struct {
	Assistant agent.Assistant
	Store     *agent.PlanStore
	SessionID string

	in          io.Reader
	out         io.Writer
	unsubscribe func()
	done        chan struct{}
}

func NewTerminalGateway(assistant agent.Assistant, store *agent.PlanStore) *TerminalGateway {
	return &TerminalGateway{
		Assistant: assistant,
		Store:     store,
		SessionID: "terminal",
		in:        os.Stdin,
		out:       os.Stdout,
		done:      make(chan struct{}),
	}
}

func (tg *TerminalGateway) Start() error {
	if tg.Store != nil {
		tg.unsubscribe = tg.Store.Subscribe(tg.onPlanEvent)
	}

	fmt.Fprintln(tg.out, "Type a goal and press enter. Ctrl-D to quit.")

	scanner := bufio.NewScanner(tg.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(tg.out, "\n> ")
		if !scanner.Scan() {
			break
		}
		goal := strings.TrimSpace(scanner.Text())
		if goal == "" {
			continue
		}
		if goal == "exit" || goal == "quit" {
			break
		}

		answer, err := tg.Assistant.Run(context.Background(), tg.SessionID, goal)
		if err != nil {
			log.Printf("Run failed: %v", err)
			fmt.Fprintf(tg.out, "Something went wrong: %v\n", err)
			continue
		}
		fmt.Fprintf(tg.out, "\n%s\n", answer)

		select {
		case <-tg.done:
			return scanner.Err()
		default:
		}
	}
	return scanner.Err()
}

func (tg *TerminalGateway) Send(sessionID string, text string) error {
	_, err := fmt.Fprintf(tg.out, "\n%s\n", text)
	return err
}

func (tg *TerminalGateway) Stop() error {
	if tg.unsubscribe != nil {
		tg.unsubscribe()
		tg.unsubscribe = nil
	}
	close(tg.done)
	return nil
}

// onPlanEvent prints a one-line progress update per event. It runs inside
// the store's critical section, so it only formats and writes.
func (tg *TerminalGateway) onPlanEvent(evt agent.PlanEvent) {
	switch evt.Type {
	case agent.PlanEventCreated:
		fmt.Fprintf(tg.out, "Plan: %d task(s)\n", len(evt.Plan.Tasks))
		for _, t := range evt.Plan.Tasks {
			fmt.Fprintf(tg.out, "  [ ] %s\n", t.Title)
		}
	case agent.PlanEventTaskUpdated:
		for _, t := range evt.Plan.Tasks {
			if t.ID != evt.TaskID {
				continue
			}
			fmt.Fprintf(tg.out, "  %s %s\n", statusMarker(t.Status), t.Title)
		}
	}
}

func statusMarker(status agent.TaskStatus) string {
	switch status {
	case agent.TaskInProgress:
		return "[>]"
	case agent.TaskCompleted:
		return "[x]"
	case agent.TaskFailed:
		return "[!]"
	case agent.TaskBlocked, agent.TaskSkipped:
		return "[-]"
	default:
		return "[ ]"
	}
}

// DisplayToolResult lets the terminal double as the run's result display.
func (tg *TerminalGateway) DisplayToolResult(call llms.ToolCall, result llms.ToolCallResponse) {
	content := result.Content
	if len(content) > 200 {
		content = content[:197] + "..."
	}
	fmt.Fprintf(tg.out, "  · %s: %s\n", call.FunctionCall.Name, content)
}
