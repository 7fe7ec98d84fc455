package store

// Job is a recurring goal registered through the schedule_task tool and
// executed by the background scheduler.
type Job struct {
	ID              int
	SessionID       string
	Goal            string
	IntervalSeconds int
}
