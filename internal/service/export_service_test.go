package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/region-ops-api/internal/dto"
	"github.com/noah-isme/region-ops-api/internal/models"
	"github.com/noah-isme/region-ops-api/internal/repository"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
)

type exportSubmissionStub struct {
	subs         []models.Submission
	pages        []int
	monthlyIDs   []string
	monthlySince time.Time
	buckets      []repository.MonthlyMembers
}

func (s *exportSubmissionStub) List(_ context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	s.pages = append(s.pages, filter.Page)
	allowed := map[string]bool{}
	for _, id := range filter.LocationIDs {
		allowed[id] = true
	}
	var matched []models.Submission
	for _, sub := range s.subs {
		if allowed[sub.LocationID] {
			matched = append(matched, sub)
		}
	}
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(matched) {
		return nil, len(matched), nil
	}
	end := start + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

func (s *exportSubmissionStub) MonthlyMembers(_ context.Context, ids []string, since time.Time) ([]repository.MonthlyMembers, error) {
	s.monthlyIDs = ids
	s.monthlySince = since
	return s.buckets, nil
}

func newExportFixture(subs []models.Submission) (*ExportService, *exportSubmissionStub) {
	locations := &stubLocations{items: []models.Location{
		{ID: "r1", Code: "NRT", Name: "North", Type: models.LocationRegion},
		{ID: "d1", Code: "ABO", Name: "Abobo", Type: models.LocationDistrict, ParentID: strPtr("r1")},
		{ID: "d9", Code: "BAS", Name: "Bassam", Type: models.LocationDistrict, ParentID: strPtr("r2")},
	}}
	stub := &exportSubmissionStub{subs: subs}
	svc := NewExportService(stub, locations, nil)
	svc.now = func() time.Time { return time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC) }
	return svc, stub
}

func TestExportRegionSubmissionsCSV(t *testing.T) {
	subs := weeklySubmissions(150, 1000, strPtr("fine"))
	subs[0].LocationID = "d9"
	svc, stub := newExportFixture(subs)

	file, err := svc.ExportRegionSubmissions(context.Background(), dto.RegionExportQuery{RegionID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
	assert.True(t, strings.HasPrefix(file.Filename, "submissions_nrt_20240615_"))
	assert.True(t, strings.HasSuffix(file.Filename, ".csv"))
	assert.Equal(t, []int{1, 2}, stub.pages)

	lines := strings.Split(strings.TrimSpace(string(file.Payload)), "\n")
	require.Len(t, lines, 150)
	assert.Equal(t, "Date,Location,Members,Children,Men,Women,Tithe,Comment", lines[0])
	assert.Equal(t, "2024-03-10,Abobo,10,4,3,3,1000.00,fine", lines[1])
}

func TestExportRegionSubmissionsPDF(t *testing.T) {
	svc, _ := newExportFixture(weeklySubmissions(3, 500, nil))

	file, err := svc.ExportRegionSubmissions(context.Background(), dto.RegionExportQuery{RegionID: "r1", Format: dto.ExportPDF})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Payload, []byte("%PDF")))
}

func TestExportRegionSubmissionsValidation(t *testing.T) {
	svc, _ := newExportFixture(nil)
	ctx := context.Background()

	_, err := svc.ExportRegionSubmissions(ctx, dto.RegionExportQuery{RegionID: "r1", Format: "xlsx"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.ExportRegionSubmissions(ctx, dto.RegionExportQuery{RegionID: "d1"})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestExportMonthlyMembers(t *testing.T) {
	svc, stub := newExportFixture(nil)
	stub.buckets = []repository.MonthlyMembers{
		{Month: time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC), Members: 40},
		{Month: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Members: 12},
	}

	file, err := svc.ExportMonthlyMembers(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, stub.monthlyIDs)
	assert.Equal(t, time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC), stub.monthlySince)

	lines := strings.Split(strings.TrimSpace(string(file.Payload)), "\n")
	require.Len(t, lines, 13)
	assert.Equal(t, "2023-07,40", lines[1])
	assert.Equal(t, "2023-08,0", lines[2])
	assert.Equal(t, "2024-06,12", lines[12])

	_, err = svc.ExportMonthlyMembers(context.Background(), "r1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r1", "d1"}, stub.monthlyIDs)
}
