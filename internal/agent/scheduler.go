package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rahul/sahayak/internal/store"
)

// Messenger is the outbound half of a gateway: a way to push text to a
// session without a pending request.
type Messenger interface {
	Send(sessionID string, text string) error
}

// JobSource lists jobs whose schedule has elapsed.
type JobSource interface {
	DueJobs() ([]store.Job, error)
	UpdateJobLastRun(id int) error
	DeleteJob(id int) error
}

// Scheduler polls the job store and runs due jobs through the assistant.
type Scheduler struct {
	Assistant Assistant
	Jobs      JobSource
	Gateway   Messenger
}

func NewScheduler(assistant Assistant, jobs JobSource, gateway Messenger) *Scheduler {
	return &Scheduler{
		Assistant: assistant,
		Jobs:      jobs,
		Gateway:   gateway,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	log.Println("Job scheduler started...")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollAndExecute(ctx)
		}
	}
}

func (s *Scheduler) pollAndExecute(ctx context.Context) {
	jobs, err := s.Jobs.DueJobs()
	if err != nil {
		log.Printf("Error polling jobs: %v", err)
		return
	}

	for _, j := range jobs {
		log.Printf("Executing scheduled job %d for session %s: %s", j.ID, j.SessionID, j.Goal)

		answer, err := s.Assistant.Run(ctx, j.SessionID, fmt.Sprintf("[SYSTEM: This is the execution of a previously scheduled job: %q. Carry it out now. DO NOT schedule it again.]", j.Goal))
		if err != nil {
			log.Printf("Error executing scheduled job %d: %v", j.ID, err)
			continue
		}

		if err := s.Jobs.UpdateJobLastRun(j.ID); err != nil {
			log.Printf("Error updating last run for job %d: %v", j.ID, err)
		}

		// One-shot jobs (interval = 0) run once and disappear.
		if j.IntervalSeconds == 0 {
			if err := s.Jobs.DeleteJob(j.ID); err != nil {
				log.Printf("Error deleting one-time job %d: %v", j.ID, err)
			}
		}

		if s.Gateway != nil {
			s.Gateway.Send(j.SessionID, "⏰ Scheduled job finished\n\n"+answer)
		}
	}
}
