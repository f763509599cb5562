package attacks

import (
	"time"

	"attackwatch/internal/auth"
)

type Status string

const (
	StatusNew        Status = "new"
	StatusWorking    Status = "working"
	StatusEscalated  Status = "escalated"
	StatusRemediated Status = "remediated"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusWorking, StatusEscalated, StatusRemediated:
		return true
	}
	return false
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

type ActionType string

const (
	ActionStatusChange ActionType = "status_change"
	ActionBlockIP      ActionType = "block_ip"
	ActionQuarantine   ActionType = "quarantine"
	ActionThrottle     ActionType = "throttle"
	ActionAddNote      ActionType = "add_note"
	ActionEscalate     ActionType = "escalate"
)

func (a ActionType) Valid() bool {
	switch a {
	case ActionStatusChange, ActionBlockIP, ActionQuarantine, ActionThrottle, ActionAddNote, ActionEscalate:
		return true
	}
	return false
}

// Broadcast event names.
const (
	EventNewAttack     = "new-attack"
	EventAttackUpdated = "attack-updated"
)

// AttackEvent is one simulated intrusion-detection record.
type AttackEvent struct {
	// ID is assigned by the store; EventID is the human-facing sequence number.
	ID        int64     `json:"id"`
	EventID   int64     `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`

	PredictedLabel int       `json:"predictedLabel"`
	LabelName      string    `json:"labelName"`
	Confidence     float64   `json:"confidence"`
	RiskLevel      RiskLevel `json:"riskLevel"`

	SrcIP        string `json:"srcIP"`
	DstIP        string `json:"dstIP"`
	DstPort      int    `json:"dstPort"`
	Protocol     int    `json:"protocol"`
	ProtocolName string `json:"protocolName"`
	// Flow holds the flow statistics (durations, packet and byte counts,
	// inter-arrival times, flag counts) keyed by feature name.
	Flow map[string]float64 `json:"flow"`

	Status       Status      `json:"status"`
	AssignedToID *int64      `json:"-"`
	AssignedTo   *auth.Ref   `json:"assignedTo"`
	AnalystNotes string      `json:"analystNotes"`
	Actions      []ActionLog `json:"actions"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// decorate fills the display-only derived fields.
func (e *AttackEvent) decorate() {
	e.LabelName = LabelName(e.PredictedLabel)
	e.ProtocolName = ProtocolName(e.Protocol)
	if e.Flow == nil {
		e.Flow = map[string]float64{}
	}
	if e.Actions == nil {
		e.Actions = []ActionLog{}
	}
}

// ActionLog is an immutable audit entry for one analyst action on one event.
type ActionLog struct {
	ID         int64          `json:"id"`
	AttackID   int64          `json:"attack"`
	UserID     int64          `json:"-"`
	User       *auth.Ref      `json:"user"`
	ActionType ActionType     `json:"actionType"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"timestamp"`
}

// Filter selects a page of events. Zero values mean "no constraint".
type Filter struct {
	Page     int
	PageSize int
	Status   Status
	Risk     RiskLevel
	Search   string
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize clamps paging parameters to their defaults and bounds.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

func (f Filter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

type Page struct {
	Items      []AttackEvent `json:"items"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
	Total      int           `json:"total"`
}

// Changes is a partial update to an event's workflow fields; nil fields are
// left untouched.
type Changes struct {
	Status       *Status
	AssignedTo   *int64
	AnalystNotes *string
}

func (c Changes) Empty() bool {
	return c.Status == nil && c.AssignedTo == nil && c.AnalystNotes == nil
}

type Stats struct {
	Total    int               `json:"total"`
	ByStatus map[Status]int    `json:"byStatus"`
	ByRisk   map[RiskLevel]int `json:"byRisk"`
}

func newStats() *Stats {
	s := &Stats{
		ByStatus: map[Status]int{},
		ByRisk:   map[RiskLevel]int{},
	}
	for _, st := range []Status{StatusNew, StatusWorking, StatusEscalated, StatusRemediated} {
		s.ByStatus[st] = 0
	}
	for _, r := range []RiskLevel{RiskLow, RiskMedium, RiskHigh} {
		s.ByRisk[r] = 0
	}
	return s
}

// Renumber records one eventId rewritten by a resequence pass.
type Renumber struct {
	ID   int64 `json:"id"`
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

type ResequenceResult struct {
	Total   int        `json:"total"`
	Changes []Renumber `json:"changes"`
	DryRun  bool       `json:"dryRun"`
}
