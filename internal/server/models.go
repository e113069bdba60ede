package server

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// IDResponse is a generic id response wrapper.
type IDResponse struct {
	ID string `json:"id"`
}

// CreateSubscriptionRequest registers a standing briefing target.
type CreateSubscriptionRequest struct {
	City         string `json:"city"`
	State        string `json:"state"`
	Country      string `json:"country"`
	ScheduleCron string `json:"schedule_cron"`
}

// UpdateScheduleRequest changes a subscription's cron schedule.
type UpdateScheduleRequest struct {
	ScheduleCron string `json:"schedule_cron"`
}

// TriggerRunRequest optionally overrides the briefing date.
type TriggerRunRequest struct {
	Date string `json:"date"`
}

// RunResponse is a run's status view.
type RunResponse struct {
	ID         string      `json:"id"`
	Status     string      `json:"status"`
	Degraded   bool        `json:"degraded"`
	Error      string      `json:"error,omitempty"`
	Metrics    interface{} `json:"metrics,omitempty"`
	StartedAt  string      `json:"started_at"`
	FinishedAt string      `json:"finished_at,omitempty"`
}

// BriefingResponse is a finished briefing document.
type BriefingResponse struct {
	ID        string      `json:"id"`
	RunID     string      `json:"run_id"`
	Markdown  string      `json:"markdown"`
	Summary   interface{} `json:"summary,omitempty"`
	CreatedAt string      `json:"created_at"`
}
