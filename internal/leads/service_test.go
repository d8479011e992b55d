package leads

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brickline/realty-leads/internal/observability/metrics"
	"github.com/brickline/realty-leads/pkg/logging"
)

type testClock struct{ t time.Time }

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("lead-%d", n)
	}
}

func newTestService(t *testing.T, opts ...Option) (*Service, *InMemoryRepository, *testClock) {
	t.Helper()
	repo := NewInMemoryRepository()
	clock := newTestClock()
	base := []Option{
		WithClock(clock.Now),
		WithIDGenerator(sequentialIDs()),
		WithMetrics(metrics.NewLeadMetrics(prometheus.NewRegistry())),
	}
	svc := NewService(repo, logging.Default(), append(base, opts...)...)
	return svc, repo, clock
}

func validRequest() CreateLeadRequest {
	return CreateLeadRequest{
		Name:              "A",
		Email:             "a@x.com",
		Phone:             "9999999999",
		PropertyType:      PropertyType2BHK,
		BudgetRange:       Budget50To75,
		PreferredLocality: LocalityMalad,
	}
}

func TestCreateAppliesDefaults(t *testing.T) {
	svc, _, clock := newTestService(t)

	lead, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "lead-1", lead.ID)
	assert.Equal(t, StatusNew, lead.Status)
	assert.Equal(t, PriorityMedium, lead.Priority)
	assert.Equal(t, SourceWebsiteForm, lead.Source)
	assert.Equal(t, clock.Now(), lead.CreatedAt)
	assert.NotNil(t, lead.Notes)
	assert.Empty(t, lead.Notes)
	assert.Nil(t, lead.LastContactedAt)
	assert.Nil(t, lead.ConvertedAt)
}

func TestCreateKeepsExplicitOverrides(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := validRequest()
	req.Source = SourceReferral
	req.Priority = PriorityUrgent
	req.Status = StatusNegotiation

	lead, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, SourceReferral, lead.Source)
	assert.Equal(t, PriorityUrgent, lead.Priority)
	assert.Equal(t, StatusNegotiation, lead.Status)
}

func TestCreateCapturesIntakeMetadata(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := validRequest()
	req.IPAddress = "203.0.113.7"
	req.UserAgent = "Mozilla/5.0"
	req.UTMSource = "google"
	req.UTMCampaign = "monsoon-offer"

	lead, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, Intake{IPAddress: "203.0.113.7", UserAgent: "Mozilla/5.0", UTMSource: "google", UTMCampaign: "monsoon-offer"}, lead.Intake)
}

func TestCreateRejectsInvalidPayloads(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*CreateLeadRequest)
		field string
	}{
		{"missing name", func(r *CreateLeadRequest) { r.Name = "   " }, "name"},
		{"missing phone", func(r *CreateLeadRequest) { r.Phone = "" }, "phone"},
		{"bad email", func(r *CreateLeadRequest) { r.Email = "not-an-email" }, "email"},
		{"unknown property type", func(r *CreateLeadRequest) { r.PropertyType = "5bhk" }, "property_type"},
		{"unknown budget", func(r *CreateLeadRequest) { r.BudgetRange = "0-10" }, "budget_range"},
		{"unknown locality", func(r *CreateLeadRequest) { r.PreferredLocality = "bandra" }, "preferred_locality"},
		{"unknown source", func(r *CreateLeadRequest) { r.Source = "billboard" }, "source"},
		{"unknown status", func(r *CreateLeadRequest) { r.Status = "qualified" }, "status"},
		{"unknown priority", func(r *CreateLeadRequest) { r.Priority = "critical" }, "priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newTestService(t)
			req := validRequest()
			tt.edit(&req)

			_, err := svc.Create(context.Background(), req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)

			_, total, err := repo.List(context.Background(), ListFilter{})
			require.NoError(t, err)
			assert.Zero(t, total, "nothing stored on validation failure")
		})
	}
}

func TestGetReturnsViewAndNotFound(t *testing.T) {
	svc, _, clock := newTestService(t)
	lead, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	clock.Advance(49 * time.Hour)
	view, err := svc.Get(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, view.DaysSinceCreated)
	assert.Equal(t, "₹50-75 Lakhs", view.FormattedBudget)
	assert.Equal(t, "2 BHK", view.FormattedPropertyType)
	assert.Equal(t, "Malad", view.FormattedLocality)

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrLeadNotFound)
}

type fakeDirectory struct {
	staff map[string]string
	err   error
}

func (d fakeDirectory) StaffNames(_ context.Context, ids []string) (map[string]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	out := map[string]string{}
	for _, id := range ids {
		if name, ok := d.staff[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func (d fakeDirectory) PropertyTitle(_ context.Context, id string) (string, error) {
	return "Sunrise Heights " + id, d.err
}

func TestGetResolvesReferences(t *testing.T) {
	dir := fakeDirectory{staff: map[string]string{"staff-1": "Meera", "staff-2": "Karan"}}
	svc, _, _ := newTestService(t, WithDirectory(dir))
	ctx := context.Background()

	lead, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	owner, prop := "staff-1", "prop-7"
	_, err = svc.Update(ctx, lead.ID, Changes{AssignedTo: &owner, ConvertedProperty: &prop})
	require.NoError(t, err)
	_, err = svc.AppendNote(ctx, lead.ID, "called back", "staff-2")
	require.NoError(t, err)

	view, err := svc.Get(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"staff-1": "Meera", "staff-2": "Karan"}, view.StaffNames)
	assert.Equal(t, "Sunrise Heights prop-7", view.ConvertedPropertyName)
}

func TestGetFailsWhenDirectoryFails(t *testing.T) {
	dirErr := errors.New("directory offline")
	svc, _, _ := newTestService(t, WithDirectory(fakeDirectory{err: dirErr}))
	ctx := context.Background()

	lead, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	owner := "staff-1"
	_, err = svc.Update(ctx, lead.ID, Changes{AssignedTo: &owner})
	require.NoError(t, err)

	_, err = svc.Get(ctx, lead.ID)
	assert.ErrorIs(t, err, dirErr)
}

func TestChangeStatusToContactedStampsLastContacted(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	lead, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	clock.Advance(time.Hour)
	transitionAt := clock.Now()
	updated, err := svc.ChangeStatus(ctx, lead.ID, StatusContacted)
	require.NoError(t, err)
	require.NotNil(t, updated.LastContactedAt)
	assert.False(t, updated.LastContactedAt.Before(transitionAt))
	assert.Equal(t, transitionAt, updated.UpdatedAt)
}

func TestChangeStatusSkippingContactLeavesLastContactedUnset(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	lead, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	updated, err := svc.ChangeStatus(ctx, lead.ID, StatusNegotiation)
	require.NoError(t, err)
	assert.Equal(t, StatusNegotiation, updated.Status)
	assert.Nil(t, updated.LastContactedAt)
	assert.Nil(t, updated.ConvertedAt)
}

func TestConvertedAtSurvivesLeavingConverted(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	lead, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	converted, err := svc.ChangeStatus(ctx, lead.ID, StatusConverted)
	require.NoError(t, err)
	require.NotNil(t, converted.ConvertedAt)
	stamp := *converted.ConvertedAt

	clock.Advance(24 * time.Hour)
	closed, err := svc.ChangeStatus(ctx, lead.ID, StatusClosed)
	require.NoError(t, err)
	require.NotNil(t, closed.ConvertedAt)
	assert.Equal(t, stamp, *closed.ConvertedAt)

	stored, err := svc.Get(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, stamp, *stored.ConvertedAt)
}

func TestChangeStatusErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	lead, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, lead.ID, "archived")
	assert.True(t, IsValidation(err), "got %v", err)

	_, err = svc.ChangeStatus(ctx, "missing", StatusContacted)
	assert.ErrorIs(t, err, ErrLeadNotFound)
}

func TestUpdateAppliesAllowListWithoutSideEffects(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	lead, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	status := StatusConverted
	deal := 5200000.0
	follow := clock.Now().Add(72 * time.Hour)
	updated, err := svc.Update(ctx, lead.ID, Changes{Status: &status, DealValue: &deal, FollowUpDate: &follow})
	require.NoError(t, err)

	assert.Equal(t, StatusConverted, updated.Status)
	assert.Nil(t, updated.ConvertedAt, "generic update must not stamp conversion")
	assert.Equal(t, deal, *updated.DealValue)
	assert.Equal(t, follow, *updated.FollowUpDate)
	assert.Equal(t, "A", updated.Name)
}

func TestUpdateRejects(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	lead, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	_, err = svc.Update(ctx, lead.ID, Changes{})
	assert.True(t, IsValidation(err), "empty change set: %v", err)

	negative := -1.0
	_, err = svc.Update(ctx, lead.ID, Changes{DealValue: &negative})
	assert.True(t, IsValidation(err), "negative deal value: %v", err)

	bad := Priority("whenever")
	_, err = svc.Update(ctx, lead.ID, Changes{Priority: &bad})
	assert.True(t, IsValidation(err), "bad priority: %v", err)

	owner := "staff-1"
	_, err = svc.Update(ctx, "missing", Changes{AssignedTo: &owner})
	assert.ErrorIs(t, err, ErrLeadNotFound)
}

func TestAppendNote(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	lead, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	first, err := svc.AppendNote(ctx, lead.ID, "  first call  ", "staff-1")
	require.NoError(t, err)
	require.Len(t, first.Notes, 1)
	assert.Equal(t, Note{Message: "first call", AddedBy: "staff-1", AddedAt: clock.Now()}, first.Notes[0])

	clock.Advance(time.Minute)
	second, err := svc.AppendNote(ctx, lead.ID, "sent brochure", "staff-2")
	require.NoError(t, err)
	require.Len(t, second.Notes, 2)
	assert.Equal(t, first.Notes[0], second.Notes[0], "prior notes keep order and content")
	assert.Equal(t, "sent brochure", second.Notes[1].Message)
}

func TestAppendNoteValidationLeavesNotesUnchanged(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	lead, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	_, err = svc.AppendNote(ctx, lead.ID, "kept", "staff-1")
	require.NoError(t, err)

	long := make([]rune, maxNoteLength+1)
	for i := range long {
		long[i] = 'x'
	}
	for name, call := range map[string]func() error{
		"empty":     func() error { _, err := svc.AppendNote(ctx, lead.ID, "   ", "staff-1"); return err },
		"too long":  func() error { _, err := svc.AppendNote(ctx, lead.ID, string(long), "staff-1"); return err },
		"no author": func() error { _, err := svc.AppendNote(ctx, lead.ID, "hello", ""); return err },
	} {
		err := call()
		assert.True(t, IsValidation(err), "%s: %v", name, err)
	}

	view, err := svc.Get(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, view.Notes, 1)
	assert.Equal(t, "kept", view.Notes[0].Message)

	_, err = svc.AppendNote(ctx, "missing", "hello", "staff-1")
	assert.ErrorIs(t, err, ErrLeadNotFound)
}

func TestDelete(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	lead, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, lead.ID))
	_, err = svc.Get(ctx, lead.ID)
	assert.ErrorIs(t, err, ErrLeadNotFound)

	err = svc.Delete(ctx, lead.ID)
	assert.ErrorIs(t, err, ErrLeadNotFound, "deleting a missing id is not a silent success")
}

func TestBulkUpdateSkipsSideEffects(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		lead, err := svc.Create(ctx, validRequest())
		require.NoError(t, err)
		ids = append(ids, lead.ID)
	}

	closed := StatusClosed
	result, err := svc.BulkUpdate(ctx, ids, Changes{Status: &closed})
	require.NoError(t, err)
	assert.Equal(t, &BulkResult{Requested: 3, Modified: 3, Matched: 3}, result)

	for _, id := range ids {
		view, err := svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusClosed, view.Status)
		assert.Nil(t, view.LastContactedAt)
		assert.Nil(t, view.ConvertedAt)
	}

	contacted := StatusContacted
	_, err = svc.BulkUpdate(ctx, ids[:1], Changes{Status: &contacted})
	require.NoError(t, err)
	view, err := svc.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Nil(t, view.LastContactedAt, "bulk status change never stamps")
}

func TestBulkUpdateReportsRequestedAndMatched(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	lead, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	high := PriorityHigh
	result, err := svc.BulkUpdate(ctx, []string{lead.ID, "ghost-1", "ghost-2"}, Changes{Priority: &high})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Requested)
	assert.Equal(t, 3, result.Modified)
	assert.Equal(t, 1, result.Matched)

	_, err = svc.BulkUpdate(ctx, nil, Changes{Priority: &high})
	assert.True(t, IsValidation(err))

	_, err = svc.BulkUpdate(ctx, []string{lead.ID}, Changes{})
	assert.True(t, IsValidation(err))
}

type failingRepo struct {
	*InMemoryRepository
	err error
}

func (r failingRepo) GetByID(context.Context, string) (*Lead, error) { return nil, r.err }
func (r failingRepo) Delete(context.Context, string) error          { return r.err }

func TestStoreErrorsPropagate(t *testing.T) {
	storeFailure := storeErr("select", errors.New("connection refused"))
	svc := NewService(failingRepo{InMemoryRepository: NewInMemoryRepository(), err: storeFailure}, logging.Default())

	_, err := svc.Get(context.Background(), "lead-1")
	assert.True(t, IsStore(err))
	assert.False(t, errors.Is(err, ErrLeadNotFound))

	err = svc.Delete(context.Background(), "lead-1")
	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "select", se.Op)
}

func TestListFiltersSortsAndPages(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	names := []string{"Esha", "Bhavin", "Chitra", "Arjun", "Dev"}
	for i, name := range names {
		req := validRequest()
		req.Name = name
		if i%2 == 1 {
			req.PreferredLocality = LocalityBorivali
		}
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	page, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, defaultPageSize, page.PageSize)
	assert.Equal(t, "Dev", page.Leads[0].Name, "default sort is newest first")

	page, err = svc.List(ctx, ListFilter{SortBy: SortByName, PageSize: 2, Page: 2})
	require.NoError(t, err)
	require.Len(t, page.Leads, 2)
	assert.Equal(t, "Chitra", page.Leads[0].Name)
	assert.Equal(t, "Dev", page.Leads[1].Name)
	assert.Equal(t, 3, page.TotalPages)

	page, err = svc.List(ctx, ListFilter{Locality: LocalityBorivali})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = svc.List(ctx, ListFilter{Status: StatusLost})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Leads, "empty result is an empty list, not an error")

	page, err = svc.List(ctx, ListFilter{PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, page.PageSize)

	_, err = svc.List(ctx, ListFilter{Status: "pending"})
	assert.True(t, IsValidation(err))
}

func TestListClampsOversizedPageToMaximum(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < maxPageSize+10; i++ {
		_, err := svc.Create(ctx, validRequest())
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, ListFilter{PageSize: 150})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, page.PageSize)
	assert.Len(t, page.Leads, maxPageSize)
	assert.Equal(t, 2, page.TotalPages)

	page, err = svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, defaultPageSize, page.PageSize)
}

func TestEndToEndPipeline(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	lead, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusNew, lead.Status)

	clock.Advance(time.Hour)
	contacted, err := svc.ChangeStatus(ctx, lead.ID, StatusContacted)
	require.NoError(t, err)
	assert.NotNil(t, contacted.LastContactedAt)

	clock.Advance(time.Hour)
	converted, err := svc.ChangeStatus(ctx, lead.ID, StatusConverted)
	require.NoError(t, err)
	assert.NotNil(t, converted.ConvertedAt)

	stats, err := svc.PipelineStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Converted)
	assert.Equal(t, "100.0%", stats.ConversionRate)
}
