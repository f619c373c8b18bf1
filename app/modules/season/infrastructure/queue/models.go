package seasonqueue

// SeasonEndJob ends a season at its scheduled time and optionally activates the next one.
type SeasonEndJob struct {
	SeasonID     int64  `json:"season_id"`
	NextSeasonID *int64 `json:"next_season_id,omitempty"`
}

// Kind returns the job type identifier for River
func (SeasonEndJob) Kind() string { return "season_end" }

// JobInfo describes a scheduled season job.
type JobInfo struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	SeasonID    int64  `json:"season_id"`
	State       string `json:"state"`
	ScheduledAt string `json:"scheduled_at"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
}
