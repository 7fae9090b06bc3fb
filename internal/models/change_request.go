package models

import "time"

// ChangeRequestStatus captures workflow states for location change requests.
type ChangeRequestStatus string

const (
	ChangeRequestPendingDataEntry ChangeRequestStatus = "pending_data_entry"
	ChangeRequestPendingTeamLead  ChangeRequestStatus = "pending_team_lead"
	ChangeRequestAccepted         ChangeRequestStatus = "accepted"
	ChangeRequestRejected         ChangeRequestStatus = "rejected"
)

// ChangeRequestAction is an input to the change-request state machine.
type ChangeRequestAction string

const (
	ActionApproveByDataEntry ChangeRequestAction = "approve_by_data_entry"
	ActionRejectByDataEntry  ChangeRequestAction = "reject_by_data_entry"
	ActionApproveByTeamLead  ChangeRequestAction = "approve_by_team_lead"
	ActionRejectByTeamLead   ChangeRequestAction = "reject_by_team_lead"
)

// changeRequestTransitions is the complete set of legal moves. Terminal
// states have no entry.
var changeRequestTransitions = map[ChangeRequestStatus]map[ChangeRequestAction]ChangeRequestStatus{
	ChangeRequestPendingDataEntry: {
		ActionApproveByDataEntry: ChangeRequestPendingTeamLead,
		ActionRejectByDataEntry:  ChangeRequestRejected,
	},
	ChangeRequestPendingTeamLead: {
		ActionApproveByTeamLead: ChangeRequestAccepted,
		ActionRejectByTeamLead:  ChangeRequestRejected,
	},
}

// Next returns the status reached by applying action, and false when the move is illegal.
func (s ChangeRequestStatus) Next(action ChangeRequestAction) (ChangeRequestStatus, bool) {
	next, ok := changeRequestTransitions[s][action]
	return next, ok
}

// Terminal reports whether no further transition is possible.
func (s ChangeRequestStatus) Terminal() bool {
	return len(changeRequestTransitions[s]) == 0
}

// Valid reports whether s is a known status.
func (s ChangeRequestStatus) Valid() bool {
	switch s {
	case ChangeRequestPendingDataEntry, ChangeRequestPendingTeamLead, ChangeRequestAccepted, ChangeRequestRejected:
		return true
	}
	return false
}

// OpenChangeRequestStatuses lists the non-terminal statuses.
var OpenChangeRequestStatuses = []ChangeRequestStatus{ChangeRequestPendingDataEntry, ChangeRequestPendingTeamLead}

// Rejects reports whether the action is a rejection.
func (a ChangeRequestAction) Rejects() bool {
	return a == ActionRejectByDataEntry || a == ActionRejectByTeamLead
}

// ChangeRequest asks to move the requester to a target district, optionally
// swapping with the district's incumbent.
type ChangeRequest struct {
	ID                   string              `db:"id" json:"id"`
	RequesterID          string              `db:"requester_id" json:"requester_id"`
	TargetDistrictID     string              `db:"target_district_id" json:"target_district_id"`
	ExchangeWithUserID   *string             `db:"exchange_with_user_id" json:"exchange_with_user_id,omitempty"`
	Status               ChangeRequestStatus `db:"status" json:"status"`
	Reason               *string             `db:"reason" json:"reason,omitempty"`
	RequestedAt          time.Time           `db:"requested_at" json:"requested_at"`
	DataEntryRespondedAt *time.Time          `db:"data_entry_responded_at" json:"data_entry_responded_at,omitempty"`
	TeamLeadRespondedAt  *time.Time          `db:"team_lead_responded_at" json:"team_lead_responded_at,omitempty"`
	CompletedAt          *time.Time          `db:"completed_at" json:"completed_at,omitempty"`
}

// IsExchange reports whether approval swaps two users.
func (c *ChangeRequest) IsExchange() bool {
	return c != nil && c.ExchangeWithUserID != nil && *c.ExchangeWithUserID != ""
}

// ChangeRequestFilter constrains listing queries. Scope fields are OR-ed so a
// user sees requests they filed, requests targeting their district, or
// requests inside their region.
type ChangeRequestFilter struct {
	Status           []ChangeRequestStatus
	RequesterID      string
	TargetDistrictID string
	RegionID         string
	Limit            int
	Offset           int
}
