package triage

import "time"

// TicketStatus tracks where a ticket is in its support lifecycle.
type TicketStatus string

const (
	// StatusOpen means submitted, not yet picked up
	StatusOpen TicketStatus = "open"

	// StatusInProgress means routed to a team and being worked
	StatusInProgress TicketStatus = "in_progress"

	// StatusResolved means a fix or answer was delivered
	StatusResolved TicketStatus = "resolved"

	// StatusClosed means no further work will happen
	StatusClosed TicketStatus = "closed"
)

// Sentiment is the coarse tone detected in ticket text.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Priority is the final urgency level assigned to a ticket.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Ticket is a support request record. It is owned by the backend; triage
// only writes back the fields carried by TicketUpdate.
type Ticket struct {
	ID                    string       `json:"ticket_id" yaml:"ticket_id"`
	Subject               string       `json:"subject" yaml:"subject"`
	Description           string       `json:"description" yaml:"description"`
	CustomerID            string       `json:"customer_id,omitempty" yaml:"customer_id"`
	Status                TicketStatus `json:"status,omitempty" yaml:"status"`
	Category              string       `json:"category,omitempty" yaml:"category"`
	Priority              Priority     `json:"priority,omitempty" yaml:"priority"`
	AssignedTeam          string       `json:"assigned_team,omitempty" yaml:"assigned_team"`
	Tags                  []string     `json:"tags,omitempty" yaml:"tags"`
	CreatedAt             time.Time    `json:"created_at,omitzero" yaml:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at,omitzero" yaml:"updated_at"`
	ResolutionTimeMinutes *int         `json:"resolution_time_minutes,omitempty" yaml:"resolution_time_minutes"`
}

// TicketUpdate is the set of fields the workflow writes back to a ticket.
type TicketUpdate struct {
	Category     string       `json:"category"`
	Priority     Priority     `json:"priority"`
	AssignedTeam string       `json:"assigned_team"`
	Status       TicketStatus `json:"status"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Customer is the account record behind a ticket.
type Customer struct {
	ID                string    `json:"customer_id" yaml:"customer_id"`
	Plan              string    `json:"plan" yaml:"plan"`
	SatisfactionScore float64   `json:"satisfaction_score" yaml:"satisfaction_score"`
	CreatedAt         time.Time `json:"created_at,omitzero" yaml:"created_at"`
}

// Article is a knowledge-base article as stored. Content and tags are
// searched but not returned by SearchKB.
type Article struct {
	ID           string   `json:"article_id" yaml:"article_id"`
	Title        string   `json:"title" yaml:"title"`
	Content      string   `json:"content" yaml:"content"`
	Category     string   `json:"category" yaml:"category"`
	Tags         []string `json:"tags,omitempty" yaml:"tags"`
	HelpfulCount int      `json:"helpful_count" yaml:"helpful_count"`
}

// AnalysisResult holds the text signals derived from a ticket.
type AnalysisResult struct {
	Sentiment       Sentiment `json:"sentiment"`
	UrgencyKeywords []string  `json:"urgency_keywords"`
	NegativeCount   int       `json:"negative_count"`
	PositiveCount   int       `json:"positive_count"`
}

// SimilarTicket is a resolved ticket that matched the incoming one.
type SimilarTicket struct {
	ID                    string   `json:"ticket_id"`
	Subject               string   `json:"subject"`
	Category              string   `json:"category"`
	Priority              Priority `json:"priority"`
	ResolutionTimeMinutes *int     `json:"resolution_time,omitempty"`
	Score                 float64  `json:"score"`
}

// KBArticle is a knowledge-base article that matched the incoming ticket.
type KBArticle struct {
	ID           string  `json:"article_id"`
	Title        string  `json:"title"`
	Category     string  `json:"category"`
	HelpfulCount int     `json:"helpful_count"`
	Score        float64 `json:"score"`
}

// CustomerHistory summarizes the customer behind a ticket.
type CustomerHistory struct {
	CustomerID        string   `json:"customer_id,omitempty"`
	Plan              string   `json:"plan"`
	SatisfactionScore float64  `json:"satisfaction_score"`
	TotalTickets      int      `json:"total_tickets"`
	PastTickets       []Ticket `json:"past_tickets"`
}

// ContextBundle is everything retrieved to inform scoring. Read-only once built.
type ContextBundle struct {
	SimilarTickets  []SimilarTicket `json:"similar_tickets"`
	KBArticles      []KBArticle     `json:"kb_articles"`
	CustomerHistory CustomerHistory `json:"customer_history"`
}

// Factors is the breakdown of inputs that drove the priority score.
type Factors struct {
	UrgencyKeywords      int       `json:"urgency_keywords"`
	Sentiment            Sentiment `json:"sentiment"`
	CustomerPlan         string    `json:"customer_plan"`
	CustomerSatisfaction float64   `json:"customer_satisfaction"`
}

// ScoringResult is the numeric assessment of a ticket.
type ScoringResult struct {
	PriorityScore      int            `json:"priority_score"`
	PredictedCategory  string         `json:"predicted_category"`
	CategoryConfidence float64        `json:"category_confidence"`
	RecommendedTeam    string         `json:"recommended_team"`
	TeamWorkload       map[string]int `json:"team_workload"`
	Factors            Factors        `json:"factors"`
}

// Reasoning is the snapshot kept alongside a decision for later inspection.
type Reasoning struct {
	PriorityFactors    Factors `json:"priority_factors"`
	SimilarTicketsUsed int     `json:"similar_tickets_used"`
	KBArticlesFound    int     `json:"kb_articles_found"`
}

// Decision is the final routing outcome for a ticket.
type Decision struct {
	Category         string    `json:"category"`
	Priority         Priority  `json:"priority"`
	AssignedTeam     string    `json:"assigned_team"`
	Confidence       float64   `json:"confidence"`
	NeedsHumanReview bool      `json:"needs_human_review"`
	Reasoning        Reasoning `json:"reasoning"`
}

// ActionKind identifies a workflow step.
type ActionKind string

const (
	ActionTicketUpdate ActionKind = "ticket_update"
	ActionAssignment   ActionKind = "assignment"
	ActionNotification ActionKind = "notification"
	ActionReviewFlag   ActionKind = "review_flag"
)

// Outcome is how a workflow step ended.
type Outcome string

const (
	// OutcomeSucceeded means the side effect was applied
	OutcomeSucceeded Outcome = "succeeded"

	// OutcomeFailed means the side effect was attempted and failed
	OutcomeFailed Outcome = "failed"

	// OutcomeSimulated means the step was recorded without an external effect
	OutcomeSimulated Outcome = "simulated"
)

// WorkflowAction is one recorded step of the workflow.
type WorkflowAction struct {
	Kind        ActionKind `json:"kind"`
	Outcome     Outcome    `json:"outcome"`
	Description string     `json:"description"`
	Err         error      `json:"-"`
}

// WorkflowResult is the ordered record of what the workflow did.
type WorkflowResult struct {
	Actions     []WorkflowAction `json:"-"`
	Status      string           `json:"status"`
	CompletedAt time.Time        `json:"timestamp"`
}

// Descriptions renders the action list as text, in order.
func (w *WorkflowResult) Descriptions() []string {
	out := make([]string, 0, len(w.Actions))
	for _, a := range w.Actions {
		out = append(out, a.Description)
	}
	return out
}

// Failed returns the actions whose side effect failed.
func (w *WorkflowResult) Failed() []WorkflowAction {
	var out []WorkflowAction
	for _, a := range w.Actions {
		if a.Outcome == OutcomeFailed {
			out = append(out, a)
		}
	}
	return out
}

// ActionDetails is the decision snapshot stored on an audit record.
type ActionDetails struct {
	Category     string   `json:"category"`
	Priority     Priority `json:"priority"`
	AssignedTeam string   `json:"assigned_team"`
	NeedsReview  bool     `json:"needs_review"`
}

// AgentAction is a write-once audit record of one triage decision.
type AgentAction struct {
	ActionID        string        `json:"action_id"`
	TicketID        string        `json:"ticket_id"`
	AgentName       string        `json:"agent_name"`
	ActionType      string        `json:"action_type"`
	Details         ActionDetails `json:"details"`
	ConfidenceScore float64       `json:"confidence_score"`
	Timestamp       time.Time     `json:"timestamp"`
}

// ContextSummary is the outward view of what retrieval found.
type ContextSummary struct {
	SimilarTicketsFound int             `json:"similar_tickets_found"`
	KBArticlesFound     int             `json:"kb_articles_found"`
	CustomerHistory     CustomerHistory `json:"customer_history"`
}

// Result is the outcome of triaging one ticket.
type Result struct {
	ID                string         `json:"id"`
	TicketID          string         `json:"ticket_id"`
	OriginalStatus    TicketStatus   `json:"original_status"`
	Decision          Decision       `json:"triage_decision"`
	Context           ContextSummary `json:"context"`
	Scoring           ScoringResult  `json:"analysis"`
	Workflow          WorkflowResult `json:"workflow_result"`
	SuggestedResponse string         `json:"suggested_response"`
	ProcessingTime    time.Duration  `json:"-"`
	AuditRecorded     bool           `json:"audit_recorded"`
	Stage             Stage          `json:"stage"`
}
