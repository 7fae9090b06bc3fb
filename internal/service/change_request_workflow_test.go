package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/region-ops-api/internal/models"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
)

func strPtr(v string) *string { return &v }

func timePtr(v time.Time) *time.Time { return &v }

var (
	wfRegion   = &models.Location{ID: "r1", Code: "REG-01", Name: "North", Type: models.LocationRegion}
	wfDistrict = &models.Location{ID: "d2", Code: "DIS-02", Name: "Cocody", Type: models.LocationDistrict, ParentID: strPtr("r1")}
	wfNow      = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
)

func wfUser(id string, role models.UserRole, location string) *models.User {
	u := &models.User{ID: id, Name: "user " + id, Role: role}
	if location != "" {
		u.LocationID = strPtr(location)
	}
	return u
}

func TestDecideCreation(t *testing.T) {
	requester := wfUser("req", models.RoleDataEntry, "d1")
	incumbent := wfUser("inc", models.RoleDataEntry, "d2")
	lead := wfUser("lead", models.RoleTeamLead, "r1")

	t.Run("incumbent gates first stage", func(t *testing.T) {
		outcome, err := decideCreation(creationInput{Requester: requester, Target: wfDistrict, Incumbent: incumbent, TeamLead: lead, Now: wfNow})
		require.NoError(t, err)
		assert.Equal(t, models.ChangeRequestPendingDataEntry, outcome.Request.Status)
		assert.Nil(t, outcome.Request.ExchangeWithUserID)
		require.Len(t, outcome.Notifications, 1)
		assert.Equal(t, "inc", outcome.Notifications[0].UserID)
	})

	t.Run("exchange records partner", func(t *testing.T) {
		outcome, err := decideCreation(creationInput{Requester: requester, Target: wfDistrict, Incumbent: incumbent, IsExchange: true, Now: wfNow})
		require.NoError(t, err)
		require.NotNil(t, outcome.Request.ExchangeWithUserID)
		assert.Equal(t, "inc", *outcome.Request.ExchangeWithUserID)
		assert.Contains(t, outcome.Notifications[0].Message, "exchange")
	})

	t.Run("vacant district goes to team lead", func(t *testing.T) {
		outcome, err := decideCreation(creationInput{Requester: requester, Target: wfDistrict, TeamLead: lead, IsExchange: true, Now: wfNow})
		require.NoError(t, err)
		assert.Equal(t, models.ChangeRequestPendingTeamLead, outcome.Request.Status)
		assert.False(t, outcome.Request.IsExchange())
		assert.Equal(t, "lead", outcome.Notifications[0].UserID)
	})

	t.Run("unplaced requester can transfer", func(t *testing.T) {
		unplaced := wfUser("fresh", models.RoleDataEntry, "")
		outcome, err := decideCreation(creationInput{Requester: unplaced, Target: wfDistrict, Incumbent: incumbent, TeamLead: lead, Now: wfNow})
		require.NoError(t, err)
		assert.Equal(t, models.ChangeRequestPendingDataEntry, outcome.Request.Status)
		assert.Nil(t, outcome.Request.ExchangeWithUserID)
	})

	cases := []struct {
		name string
		in   creationInput
		want *appErrors.Error
	}{
		{"no approver", creationInput{Requester: requester, Target: wfDistrict}, appErrors.ErrNoApproverFound},
		{"region target", creationInput{Requester: requester, Target: wfRegion, TeamLead: lead}, appErrors.ErrInvalidTarget},
		{"missing target", creationInput{Requester: requester, TeamLead: lead}, appErrors.ErrInvalidTarget},
		{"same district", creationInput{Requester: wfUser("req", models.RoleDataEntry, "d2"), Target: wfDistrict, TeamLead: lead}, appErrors.ErrValidation},
		{"not data entry", creationInput{Requester: lead, Target: wfDistrict, TeamLead: lead}, appErrors.ErrForbidden},
		{"unplaced exchange", creationInput{Requester: wfUser("fresh", models.RoleDataEntry, ""), Target: wfDistrict, Incumbent: incumbent, IsExchange: true}, appErrors.ErrInvalidTarget},
		{"already open", creationInput{Requester: requester, Target: wfDistrict, TeamLead: lead, Open: &models.ChangeRequest{ID: "old"}}, appErrors.ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decideCreation(tc.in)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, tc.want), "got %v", err)
		})
	}
}

func pendingRequest(status models.ChangeRequestStatus, exchange bool) models.ChangeRequest {
	request := models.ChangeRequest{
		ID:               "cr-1",
		RequesterID:      "req",
		TargetDistrictID: "d2",
		Status:           status,
		RequestedAt:      wfNow.Add(-time.Hour),
	}
	if exchange {
		request.ExchangeWithUserID = strPtr("inc")
	}
	if status == models.ChangeRequestPendingTeamLead {
		request.DataEntryRespondedAt = timePtr(wfNow.Add(-30 * time.Minute))
	}
	return request
}

func TestDecideTransitionStageOne(t *testing.T) {
	requester := wfUser("req", models.RoleDataEntry, "d1")
	incumbent := wfUser("inc", models.RoleDataEntry, "d2")
	lead := wfUser("lead", models.RoleTeamLead, "r1")

	outcome, err := decideTransition(transitionInput{
		Request: pendingRequest(models.ChangeRequestPendingDataEntry, true), Action: models.ActionApproveByDataEntry,
		Actor: incumbent, Requester: requester, Target: wfDistrict, TeamLead: lead, MinReason: 10, Now: wfNow,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestPendingTeamLead, outcome.Request.Status)
	require.NotNil(t, outcome.Request.DataEntryRespondedAt)
	assert.Equal(t, wfNow, *outcome.Request.DataEntryRespondedAt)
	assert.Nil(t, outcome.Request.CompletedAt)
	assert.Empty(t, outcome.Moves)
	require.Len(t, outcome.Notifications, 2)
	assert.Equal(t, "req", outcome.Notifications[0].UserID)
	assert.Equal(t, "lead", outcome.Notifications[1].UserID)

	_, err = decideTransition(transitionInput{
		Request: pendingRequest(models.ChangeRequestPendingDataEntry, false), Action: models.ActionApproveByDataEntry,
		Actor: incumbent, Requester: requester, Target: wfDistrict, MinReason: 10, Now: wfNow,
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrNoApproverFound))

	_, err = decideTransition(transitionInput{
		Request: pendingRequest(models.ChangeRequestPendingDataEntry, true), Action: models.ActionApproveByDataEntry,
		Actor: wfUser("other", models.RoleDataEntry, "d2"), Requester: requester, Target: wfDistrict, TeamLead: lead, Now: wfNow,
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestDecideTransitionReasonLength(t *testing.T) {
	requester := wfUser("req", models.RoleDataEntry, "d1")
	incumbent := wfUser("inc", models.RoleDataEntry, "d2")
	base := transitionInput{
		Request: pendingRequest(models.ChangeRequestPendingDataEntry, false), Action: models.ActionRejectByDataEntry,
		Actor: incumbent, Requester: requester, Target: wfDistrict, MinReason: 10, Now: wfNow,
	}

	short := base
	short.Reason = "too late"
	_, err := decideTransition(short)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	padded := base
	padded.Reason = "   short      "
	_, err = decideTransition(padded)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidReason))

	exact := base
	exact.Reason = "no room ok"
	outcome, err := decideTransition(exact)
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestRejected, outcome.Request.Status)
	require.NotNil(t, outcome.Request.CompletedAt)
	require.NotNil(t, outcome.Request.Reason)
	assert.Equal(t, "no room ok", *outcome.Request.Reason)
	assert.Contains(t, outcome.Notifications[0].Message, "no room ok")
}

func TestDecideTransitionStageTwo(t *testing.T) {
	requester := wfUser("req", models.RoleDataEntry, "d1")
	incumbent := wfUser("inc", models.RoleDataEntry, "d2")
	lead := wfUser("lead", models.RoleTeamLead, "r1")

	t.Run("exchange swaps both users", func(t *testing.T) {
		outcome, err := decideTransition(transitionInput{
			Request: pendingRequest(models.ChangeRequestPendingTeamLead, true), Action: models.ActionApproveByTeamLead,
			Actor: lead, Requester: requester, Target: wfDistrict, TeamLead: lead, Partner: incumbent, Now: wfNow,
		})
		require.NoError(t, err)
		assert.Equal(t, models.ChangeRequestAccepted, outcome.Request.Status)
		require.Len(t, outcome.Moves, 2)
		assert.Equal(t, "req", outcome.Moves[0].UserID)
		assert.Equal(t, "d2", *outcome.Moves[0].LocationID)
		assert.Equal(t, "inc", outcome.Moves[1].UserID)
		assert.Equal(t, "d1", *outcome.Moves[1].LocationID)
		assert.Equal(t, outcome.Request.CompletedAt, outcome.Request.TeamLeadRespondedAt)
	})

	t.Run("plain transfer moves requester only", func(t *testing.T) {
		outcome, err := decideTransition(transitionInput{
			Request: pendingRequest(models.ChangeRequestPendingTeamLead, false), Action: models.ActionApproveByTeamLead,
			Actor: lead, Requester: requester, Target: wfDistrict, TeamLead: lead, Now: wfNow,
		})
		require.NoError(t, err)
		require.Len(t, outcome.Moves, 1)
		assert.Equal(t, "req", outcome.Moves[0].UserID)
	})

	t.Run("partner moved away", func(t *testing.T) {
		_, err := decideTransition(transitionInput{
			Request: pendingRequest(models.ChangeRequestPendingTeamLead, true), Action: models.ActionApproveByTeamLead,
			Actor: lead, Requester: requester, Target: wfDistrict, TeamLead: lead,
			Partner: wfUser("inc", models.RoleDataEntry, "d9"), Now: wfNow,
		})
		assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTarget))
	})

	t.Run("requester promoted meanwhile", func(t *testing.T) {
		_, err := decideTransition(transitionInput{
			Request: pendingRequest(models.ChangeRequestPendingTeamLead, false), Action: models.ActionApproveByTeamLead,
			Actor: lead, Requester: wfUser("req", models.RoleTeamLead, "r2"), Target: wfDistrict, TeamLead: lead, Now: wfNow,
		})
		assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTarget))
	})

	t.Run("partner promoted meanwhile", func(t *testing.T) {
		_, err := decideTransition(transitionInput{
			Request: pendingRequest(models.ChangeRequestPendingTeamLead, true), Action: models.ActionApproveByTeamLead,
			Actor: lead, Requester: requester, Target: wfDistrict, TeamLead: lead,
			Partner: wfUser("inc", models.RoleTeamLead, "d2"), Now: wfNow,
		})
		assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTarget))
	})

	t.Run("target turned into region", func(t *testing.T) {
		reparented := &models.Location{ID: "d2", Type: models.LocationRegion, ParentID: strPtr("r1")}
		_, err := decideTransition(transitionInput{
			Request: pendingRequest(models.ChangeRequestPendingTeamLead, false), Action: models.ActionApproveByTeamLead,
			Actor: lead, Requester: requester, Target: reparented, TeamLead: lead, Now: wfNow,
		})
		assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTarget))
	})

	t.Run("lead of another region", func(t *testing.T) {
		_, err := decideTransition(transitionInput{
			Request: pendingRequest(models.ChangeRequestPendingTeamLead, false), Action: models.ActionRejectByTeamLead,
			Actor: wfUser("lead2", models.RoleTeamLead, "r2"), Requester: requester, Target: wfDistrict, Reason: "not possible now", MinReason: 10, Now: wfNow,
		})
		assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	})

	t.Run("stamps never precede the first response", func(t *testing.T) {
		request := pendingRequest(models.ChangeRequestPendingTeamLead, false)
		skewed := wfNow.Add(-2 * time.Hour)
		outcome, err := decideTransition(transitionInput{
			Request: request, Action: models.ActionRejectByTeamLead, Actor: lead, Requester: requester,
			Target: wfDistrict, Reason: "budget freeze in effect", MinReason: 10, Now: skewed,
		})
		require.NoError(t, err)
		assert.False(t, outcome.Request.TeamLeadRespondedAt.Before(*request.DataEntryRespondedAt))
		assert.Equal(t, models.ChangeRequestRejected, outcome.Request.Status)
	})
}

func TestDecideTransitionTerminalAndWrongStage(t *testing.T) {
	lead := wfUser("lead", models.RoleTeamLead, "r1")
	for _, status := range []models.ChangeRequestStatus{models.ChangeRequestAccepted, models.ChangeRequestRejected} {
		request := pendingRequest(status, false)
		for _, action := range []models.ChangeRequestAction{
			models.ActionApproveByDataEntry, models.ActionRejectByDataEntry,
			models.ActionApproveByTeamLead, models.ActionRejectByTeamLead,
		} {
			_, err := decideTransition(transitionInput{Request: request, Action: action, Actor: lead, Target: wfDistrict, Reason: "long enough reason", Now: wfNow})
			assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState), "%s/%s", status, action)
		}
	}

	_, err := decideTransition(transitionInput{
		Request: pendingRequest(models.ChangeRequestPendingDataEntry, false), Action: models.ActionApproveByTeamLead,
		Actor: lead, Target: wfDistrict, TeamLead: lead, Now: wfNow,
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))
}
