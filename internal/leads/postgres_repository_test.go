package leads

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

var leadRowColumns = []string{
	"id", "name", "email", "phone", "message", "property_type", "budget_range", "preferred_locality",
	"source", "status", "priority", "assigned_to", "follow_up_date", "last_contacted_at", "notes",
	"converted_property", "converted_at", "deal_value",
	"ip_address", "user_agent", "utm_source", "utm_medium", "utm_campaign", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, newPostgresRepositoryWithDB(mock)
}

func TestPostgresRepository_GetByID(t *testing.T) {
	mock, repo := newMockRepo(t)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	deal := 4500000.0

	mock.ExpectQuery(`SELECT .* FROM leads WHERE id = \$1`).
		WithArgs("lead-1").
		WillReturnRows(pgxmock.NewRows(leadRowColumns).AddRow(
			"lead-1", "Asha", "asha@example.com", "9820000000", "", "2bhk", "50-75", "malad",
			"referral", "converted", "high", "staff-7", (*time.Time)(nil), &created,
			[]byte(`[{"message":"called","added_by":"staff-7","added_at":"2024-03-02T10:00:00Z"}]`),
			"prop-9", &created, &deal,
			"10.0.0.1", "curl", "", "", "", created, created,
		))

	lead, err := repo.GetByID(context.Background(), "lead-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if lead.Status != StatusConverted || lead.PreferredLocality != LocalityMalad {
		t.Errorf("unexpected enums: %+v", lead)
	}
	if len(lead.Notes) != 1 || lead.Notes[0].AddedBy != "staff-7" {
		t.Errorf("notes = %+v", lead.Notes)
	}
	if lead.DealValue == nil || *lead.DealValue != deal {
		t.Errorf("DealValue = %v, want %v", lead.DealValue, deal)
	}
	if lead.FollowUpDate != nil {
		t.Errorf("FollowUpDate = %v, want nil", lead.FollowUpDate)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_GetByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectQuery(`SELECT .* FROM leads WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
}

func TestPostgresRepository_GetByIDStoreError(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectQuery(`SELECT .* FROM leads WHERE id = \$1`).
		WithArgs("lead-1").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetByID(context.Background(), "lead-1")
	if !IsStore(err) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestPostgresRepository_Delete(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectExec(`DELETE FROM leads WHERE id = \$1`).
		WithArgs("lead-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM leads WHERE id = \$1`).
		WithArgs("lead-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.Delete(context.Background(), "lead-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repo.Delete(context.Background(), "lead-1"); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("second delete: expected ErrLeadNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_ReplaceMissing(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectExec(`UPDATE leads\s+SET status = \$2`).
		WithArgs(
			"ghost",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	lead := &Lead{ID: "ghost", Status: StatusContacted, Priority: PriorityLow}
	if err := repo.Replace(context.Background(), lead); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_UpdateMany(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	status := StatusContacted
	owner := "staff-3"

	mock.ExpectExec(`UPDATE leads SET status = \$1, assigned_to = \$2, updated_at = \$3 WHERE id = ANY\(\$4\)`).
		WithArgs("contacted", "staff-3", now, []string{"a", "b", "c"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := repo.UpdateMany(context.Background(), []string{"a", "b", "c"}, Changes{Status: &status, AssignedTo: &owner}, now)
	if err != nil {
		t.Fatalf("UpdateMany failed: %v", err)
	}
	if n != 2 {
		t.Errorf("matched = %d, want 2", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_ListBuildsFilterAndPaging(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM leads WHERE status = \$1 AND preferred_locality = \$2`).
		WithArgs("new", "borivali").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM leads WHERE status = \$1 AND preferred_locality = \$2 ORDER BY created_at DESC, id DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("new", "borivali", 10, 10).
		WillReturnRows(pgxmock.NewRows(leadRowColumns))

	leads, total, err := repo.List(context.Background(), ListFilter{
		Status:   StatusNew,
		Locality: LocalityBorivali,
		SortBy:   SortByCreatedAt,
		SortDesc: true,
		Page:     2,
		PageSize: 10,
	})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 0 || len(leads) != 0 {
		t.Errorf("got total=%d len=%d, want empty", total, len(leads))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_Aggregates(t *testing.T) {
	mock, repo := newMockRepo(t)
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM leads GROUP BY status`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("new", int64(4)).
			AddRow("converted", int64(1)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM leads WHERE created_at >= \$1`).
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(`SELECT budget_range, COUNT\(\*\) FROM leads GROUP BY budget_range`).
		WillReturnRows(pgxmock.NewRows([]string{"budget_range", "count"}).
			AddRow("30-50", int64(2)).
			AddRow("above-150", int64(3)))

	counts, err := repo.StatusCounts(context.Background())
	if err != nil {
		t.Fatalf("StatusCounts failed: %v", err)
	}
	if counts[StatusNew] != 4 || counts[StatusConverted] != 1 {
		t.Errorf("counts = %v", counts)
	}

	n, err := repo.CountCreatedSince(context.Background(), since)
	if err != nil || n != 3 {
		t.Fatalf("CountCreatedSince = %d, %v", n, err)
	}

	buckets, err := repo.Distribution(context.Background(), DimensionBudget)
	if err != nil {
		t.Fatalf("Distribution failed: %v", err)
	}
	if len(buckets) != 2 || buckets[1].Key != "above-150" || buckets[1].Count != 3 {
		t.Errorf("buckets = %+v", buckets)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
