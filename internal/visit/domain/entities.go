// Package domain holds the visit and action entities, the access
// policy over them, and the repository contract.
package domain

import (
	"time"

	"github.com/edureach/fieldops/internal/shared/errors"
	"github.com/edureach/fieldops/internal/shared/types"
)

// VisitStatus defines the status of a visit
type VisitStatus string

const (
	VisitStatusInProgress VisitStatus = "in_progress"
	VisitStatusCompleted  VisitStatus = "completed"
)

// ActionStatus defines the status of a visit action
type ActionStatus string

const (
	ActionStatusPending    ActionStatus = "pending"
	ActionStatusInProgress ActionStatus = "in_progress"
	ActionStatusCompleted  ActionStatus = "completed"
)

// ActionType defines the type of a visit action
type ActionType string

const (
	ActionPrincipalMeeting            ActionType = "principal_meeting"
	ActionLeadershipMeeting           ActionType = "leadership_meeting"
	ActionClassroomObservation        ActionType = "classroom_observation"
	ActionGroupStudentDiscussion      ActionType = "group_student_discussion"
	ActionIndividualStudentDiscussion ActionType = "individual_student_discussion"
	ActionIndividualStaffMeeting      ActionType = "individual_staff_meeting"
	ActionTeamStaffMeeting            ActionType = "team_staff_meeting"
	ActionTeacherFeedback             ActionType = "teacher_feedback"
)

// Valid returns true when the action type is a supported value.
func (t ActionType) Valid() bool {
	switch t {
	case ActionPrincipalMeeting, ActionLeadershipMeeting, ActionClassroomObservation,
		ActionGroupStudentDiscussion, ActionIndividualStudentDiscussion,
		ActionIndividualStaffMeeting, ActionTeamStaffMeeting, ActionTeacherFeedback:
		return true
	default:
		return false
	}
}

// Visit is a recorded school visit owned by a program manager
type Visit struct {
	ID          types.ID       `json:"id"`
	SchoolCode  string         `json:"school_code"`
	PMEmail     string         `json:"pm_email"`
	VisitDate   time.Time      `json:"visit_date"`
	Status      VisitStatus    `json:"status"`
	Data        map[string]any `json:"data"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewVisit creates a new in-progress visit
func NewVisit(schoolCode, pmEmail string, visitDate time.Time) (*Visit, error) {
	if schoolCode == "" {
		return nil, errors.Validation("invalid visit", map[string]string{"school_code": "school code is required"})
	}
	if pmEmail == "" {
		return nil, errors.Validation("invalid visit", map[string]string{"pm_email": "pm email is required"})
	}

	now := time.Now()
	return &Visit{
		ID:         types.NewID(),
		SchoolCode: schoolCode,
		PMEmail:    pmEmail,
		VisitDate:  visitDate,
		Status:     VisitStatusInProgress,
		Data:       map[string]any{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Locked reports whether the visit is completed and therefore
// immutable, actions included, for every actor.
func (v *Visit) Locked() bool {
	return v.Status == VisitStatusCompleted
}

// Action is a timed, GPS-stamped sub-task within a visit
type Action struct {
	ID      types.ID   `json:"id"`
	VisitID types.ID   `json:"visit_id"`
	Type    ActionType `json:"action_type"`

	Status ActionStatus   `json:"status"`
	Data   map[string]any `json:"data"`

	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	StartLat      *float64 `json:"start_lat,omitempty"`
	StartLng      *float64 `json:"start_lng,omitempty"`
	StartAccuracy *float64 `json:"start_accuracy,omitempty"`
	EndLat        *float64 `json:"end_lat,omitempty"`
	EndLng        *float64 `json:"end_lng,omitempty"`
	EndAccuracy   *float64 `json:"end_accuracy,omitempty"`

	DeletedAt *time.Time `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewAction creates a new pending action under a visit
func NewAction(visitID types.ID, actionType ActionType) (*Action, error) {
	if visitID.IsZero() {
		return nil, errors.BadRequest("visit id is required")
	}
	if !actionType.Valid() {
		return nil, errors.BadRequest("invalid action type")
	}

	now := time.Now()
	return &Action{
		ID:        types.NewID(),
		VisitID:   visitID,
		Type:      actionType,
		Status:    ActionStatusPending,
		Data:      map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
