package service

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/noah-isme/region-ops-api/internal/models"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
)

// notificationIntent is a message the engine wants delivered once the
// transition has committed.
type notificationIntent struct {
	UserID  string
	Message string
}

// locationMove reassigns a user as part of a completed request.
type locationMove struct {
	UserID     string
	LocationID *string
}

// creationInput is everything decideCreation needs, already loaded.
type creationInput struct {
	Requester  *models.User
	Target     *models.Location
	Open       *models.ChangeRequest
	Incumbent  *models.User
	TeamLead   *models.User
	IsExchange bool
	Now        time.Time
}

// transitionInput is the locked state a transition is decided against.
type transitionInput struct {
	Request   models.ChangeRequest
	Action    models.ChangeRequestAction
	Actor     *models.User
	Requester *models.User
	Target    *models.Location
	TeamLead  *models.User
	Partner   *models.User
	Reason    string
	MinReason int
	Now       time.Time
}

// workflowOutcome is the decided next state plus its side effects.
type workflowOutcome struct {
	Request       models.ChangeRequest
	Moves         []locationMove
	Notifications []notificationIntent
}

func decideCreation(in creationInput) (*workflowOutcome, error) {
	requester := in.Requester
	if requester == nil || requester.Role != models.RoleDataEntry {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only data entry users can request a location change")
	}
	if in.Target == nil || !in.Target.IsDistrict() {
		return nil, appErrors.ErrInvalidTarget
	}
	if requester.AssignedTo(in.Target.ID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target district must differ from the current location")
	}
	if in.Open != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an open change request already exists")
	}
	if in.Incumbent == nil && in.TeamLead == nil {
		return nil, appErrors.ErrNoApproverFound
	}

	request := models.ChangeRequest{
		RequesterID:      requester.ID,
		TargetDistrictID: in.Target.ID,
		RequestedAt:      in.Now,
	}
	outcome := &workflowOutcome{}
	if in.Incumbent != nil {
		request.Status = models.ChangeRequestPendingDataEntry
		if in.IsExchange {
			if requester.LocationID == nil {
				return nil, appErrors.Clone(appErrors.ErrInvalidTarget, "requester has no district to exchange")
			}
			partner := in.Incumbent.ID
			request.ExchangeWithUserID = &partner
		}
		outcome.notify(in.Incumbent.ID, requestMessage(requester, in.Target, request.IsExchange()))
	} else {
		request.Status = models.ChangeRequestPendingTeamLead
		outcome.notify(in.TeamLead.ID, requestMessage(requester, in.Target, false))
	}
	outcome.Request = request
	return outcome, nil
}

func decideTransition(in transitionInput) (*workflowOutcome, error) {
	current := in.Request
	if current.Status.Terminal() {
		return nil, appErrors.ErrInvalidState
	}
	next, ok := current.Status.Next(in.Action)
	if !ok {
		return nil, appErrors.ErrInvalidState
	}
	if err := authorizeTransition(in); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(in.Reason)
	if in.Action.Rejects() && utf8.RuneCountInString(reason) < in.MinReason {
		return nil, appErrors.Clone(appErrors.ErrInvalidReason, fmt.Sprintf("reason must be at least %d characters", in.MinReason))
	}

	request := current
	request.Status = next
	outcome := &workflowOutcome{}
	districtName := targetName(in.Target, current.TargetDistrictID)

	switch in.Action {
	case models.ActionApproveByDataEntry:
		if in.TeamLead == nil {
			return nil, appErrors.ErrNoApproverFound
		}
		stamp := notBefore(in.Now, current.RequestedAt)
		request.DataEntryRespondedAt = &stamp
		outcome.notify(current.RequesterID, fmt.Sprintf("Your change request to %s was approved by the incumbent and awaits team lead review.", districtName))
		outcome.notify(in.TeamLead.ID, fmt.Sprintf("A change request from %s for %s awaits your approval.", requesterName(in.Requester), districtName))

	case models.ActionRejectByDataEntry:
		stamp := notBefore(in.Now, current.RequestedAt)
		request.DataEntryRespondedAt = &stamp
		request.CompletedAt = &stamp
		request.Reason = &reason
		outcome.notify(current.RequesterID, fmt.Sprintf("Your change request to %s was rejected by the incumbent: %s", districtName, reason))

	case models.ActionApproveByTeamLead:
		if in.Target == nil || !in.Target.IsDistrict() {
			return nil, appErrors.ErrInvalidTarget
		}
		if in.Requester == nil || in.Requester.Role != models.RoleDataEntry {
			return nil, appErrors.Clone(appErrors.ErrInvalidTarget, "requester is no longer a data entry user")
		}
		stamp := stageTwoStamp(in.Now, current)
		request.TeamLeadRespondedAt = &stamp
		request.CompletedAt = &stamp

		targetID := in.Target.ID
		if current.IsExchange() {
			partner := in.Partner
			if partner == nil || partner.ID != *current.ExchangeWithUserID || partner.Role != models.RoleDataEntry || !partner.AssignedTo(targetID) {
				return nil, appErrors.Clone(appErrors.ErrInvalidTarget, "exchange partner no longer holds the target district")
			}
			if in.Requester.LocationID == nil {
				return nil, appErrors.Clone(appErrors.ErrInvalidTarget, "requester no longer holds a district to exchange")
			}
			prior := *in.Requester.LocationID
			outcome.Moves = append(outcome.Moves,
				locationMove{UserID: current.RequesterID, LocationID: &targetID},
				locationMove{UserID: partner.ID, LocationID: &prior},
			)
			outcome.notify(partner.ID, fmt.Sprintf("Your exchange with %s was approved. You have been moved.", in.Requester.Name))
		} else {
			outcome.Moves = append(outcome.Moves, locationMove{UserID: current.RequesterID, LocationID: &targetID})
		}
		outcome.notify(current.RequesterID, fmt.Sprintf("Your change request to %s was approved. You are now assigned to %s.", districtName, districtName))

	case models.ActionRejectByTeamLead:
		stamp := stageTwoStamp(in.Now, current)
		request.TeamLeadRespondedAt = &stamp
		request.CompletedAt = &stamp
		request.Reason = &reason
		outcome.notify(current.RequesterID, fmt.Sprintf("Your change request to %s was rejected by the team lead: %s", districtName, reason))
	}

	outcome.Request = request
	return outcome, nil
}

// authorizeTransition checks the actor against the stage being acted on.
func authorizeTransition(in transitionInput) error {
	actor := in.Actor
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	switch in.Action {
	case models.ActionApproveByDataEntry, models.ActionRejectByDataEntry:
		if actor.Role != models.RoleDataEntry || actor.ID == in.Request.RequesterID || !actor.AssignedTo(in.Request.TargetDistrictID) {
			return appErrors.Clone(appErrors.ErrForbidden, "only the incumbent of the target district can respond")
		}
		if in.Request.IsExchange() && *in.Request.ExchangeWithUserID != actor.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the exchange partner can respond")
		}
	case models.ActionApproveByTeamLead, models.ActionRejectByTeamLead:
		if in.Target == nil || in.Target.ParentID == nil {
			if in.Action == models.ActionApproveByTeamLead {
				return appErrors.ErrInvalidTarget
			}
			return appErrors.Clone(appErrors.ErrForbidden, "target district has no region")
		}
		if actor.Role != models.RoleTeamLead || !actor.AssignedTo(*in.Target.ParentID) {
			return appErrors.Clone(appErrors.ErrForbidden, "only the team lead of the target region can respond")
		}
	}
	return nil
}

func (o *workflowOutcome) notify(userID, message string) {
	if userID == "" {
		return
	}
	o.Notifications = append(o.Notifications, notificationIntent{UserID: userID, Message: message})
}

// notBefore keeps response stamps monotonic when clocks drift.
func notBefore(now, floor time.Time) time.Time {
	if now.Before(floor) {
		return floor
	}
	return now
}

func stageTwoStamp(now time.Time, request models.ChangeRequest) time.Time {
	floor := request.RequestedAt
	if request.DataEntryRespondedAt != nil && request.DataEntryRespondedAt.After(floor) {
		floor = *request.DataEntryRespondedAt
	}
	return notBefore(now, floor)
}

func requestMessage(requester *models.User, target *models.Location, exchange bool) string {
	name := requesterName(requester)
	district := targetName(target, "")
	if exchange {
		return fmt.Sprintf("%s requests an exchange of districts with you for %s.", name, district)
	}
	return fmt.Sprintf("%s requests a transfer to %s.", name, district)
}

func requesterName(requester *models.User) string {
	if requester != nil && requester.Name != "" {
		return requester.Name
	}
	return "A data entry user"
}

func targetName(target *models.Location, fallback string) string {
	if target != nil && target.Name != "" {
		return target.Name
	}
	if fallback != "" {
		return fallback
	}
	return "the target district"
}
