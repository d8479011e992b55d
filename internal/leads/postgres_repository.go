package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxDB is the subset of pgxpool.Pool the repository uses, so tests can inject pgxmock.
type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads in the relational database. Notes live in a
// JSONB array on the lead row.
type PostgresRepository struct {
	db pgxDB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db pgxDB) *PostgresRepository {
	if db == nil {
		panic("leads: db required")
	}
	return &PostgresRepository{db: db}
}

const leadColumns = `id, name, email, phone, message, property_type, budget_range, preferred_locality,
	source, status, priority, assigned_to, follow_up_date, last_contacted_at, notes,
	converted_property, converted_at, deal_value,
	ip_address, user_agent, utm_source, utm_medium, utm_campaign, created_at, updated_at`

// Insert adds a new row.
func (r *PostgresRepository) Insert(ctx context.Context, lead *Lead) error {
	notes, err := marshalNotes(lead.Notes)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO leads (` + leadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`
	if _, err := r.db.Exec(ctx, query,
		lead.ID,
		lead.Name,
		lead.Email,
		lead.Phone,
		lead.Message,
		string(lead.PropertyType),
		string(lead.BudgetRange),
		string(lead.PreferredLocality),
		string(lead.Source),
		string(lead.Status),
		string(lead.Priority),
		lead.AssignedTo,
		lead.FollowUpDate,
		lead.LastContactedAt,
		notes,
		lead.ConvertedProperty,
		lead.ConvertedAt,
		lead.DealValue,
		lead.Intake.IPAddress,
		lead.Intake.UserAgent,
		lead.Intake.UTMSource,
		lead.Intake.UTMMedium,
		lead.Intake.UTMCampaign,
		lead.CreatedAt,
		lead.UpdatedAt,
	); err != nil {
		return storeErr("insert", err)
	}
	return nil
}

// GetByID fetches one lead.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	lead, err := scanLead(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, storeErr("select", err)
	}
	return lead, nil
}

// Replace writes the mutable columns. Identity and intake columns are never in the SET list.
func (r *PostgresRepository) Replace(ctx context.Context, lead *Lead) error {
	notes, err := marshalNotes(lead.Notes)
	if err != nil {
		return err
	}
	query := `
		UPDATE leads
		SET status = $2, priority = $3, assigned_to = $4, follow_up_date = $5,
			last_contacted_at = $6, notes = $7, converted_property = $8,
			converted_at = $9, deal_value = $10, updated_at = $11
		WHERE id = $1
	`
	ct, err := r.db.Exec(ctx, query,
		lead.ID,
		string(lead.Status),
		string(lead.Priority),
		lead.AssignedTo,
		lead.FollowUpDate,
		lead.LastContactedAt,
		notes,
		lead.ConvertedProperty,
		lead.ConvertedAt,
		lead.DealValue,
		lead.UpdatedAt,
	)
	if err != nil {
		return storeErr("update", err)
	}
	if ct.RowsAffected() == 0 {
		return notFound(lead.ID)
	}
	return nil
}

// Delete removes the row permanently.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return storeErr("delete", err)
	}
	if ct.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

// List returns one page plus the total match count.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Lead, int, error) {
	filter = filter.normalize()
	where, args := filterClause(filter)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&total); err != nil {
		return nil, 0, storeErr("count", err)
	}

	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	n := len(args)
	query := `SELECT ` + leadColumns + ` FROM leads` + where +
		` ORDER BY ` + string(filter.SortBy) + ` ` + direction + `, id ` + direction +
		` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, filter.PageSize, filter.offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, storeErr("list", err)
	}
	defer rows.Close()

	leads := []*Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, storeErr("scan", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr("list", err)
	}
	return leads, total, nil
}

func filterClause(f ListFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(col string, v string) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.Status != "" {
		add("status", string(f.Status))
	}
	if f.Priority != "" {
		add("priority", string(f.Priority))
	}
	if f.Locality != "" {
		add("preferred_locality", string(f.Locality))
	}
	if f.Budget != "" {
		add("budget_range", string(f.Budget))
	}
	if f.AssignedTo != "" {
		add("assigned_to", f.AssignedTo)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// UpdateMany runs a single UPDATE over the id set and returns the rows matched.
func (r *PostgresRepository) UpdateMany(ctx context.Context, ids []string, changes Changes, now time.Time) (int, error) {
	cols := changes.columns()
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	for _, c := range cols {
		args = append(args, c.value)
		sets = append(sets, fmt.Sprintf("%s = $%d", c.name, len(args)))
	}
	args = append(args, now)
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, ids)

	query := `UPDATE leads SET ` + strings.Join(sets, ", ") + fmt.Sprintf(` WHERE id = ANY($%d)`, len(args))
	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, storeErr("bulk update", err)
	}
	return int(ct.RowsAffected()), nil
}

func (r *PostgresRepository) StatusCounts(ctx context.Context) (map[Status]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, storeErr("count by status", err)
	}
	defer rows.Close()

	counts := make(map[Status]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, storeErr("count by status", err)
		}
		counts[Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("count by status", err)
	}
	return counts, nil
}

func (r *PostgresRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM leads WHERE created_at >= $1`, since).Scan(&n); err != nil {
		return 0, storeErr("count created", err)
	}
	return n, nil
}

func (r *PostgresRepository) Distribution(ctx context.Context, dim Dimension) ([]Bucket, error) {
	if !dim.valid() {
		return nil, &ValidationError{Field: "dimension", Reason: "is not an allowed value"}
	}
	col := string(dim)
	rows, err := r.db.Query(ctx, `SELECT `+col+`, COUNT(*) FROM leads GROUP BY `+col)
	if err != nil {
		return nil, storeErr("distribution", err)
	}
	defer rows.Close()

	var buckets []Bucket
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Key, &b.Count); err != nil {
			return nil, storeErr("distribution", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("distribution", err)
	}
	return buckets, nil
}

func marshalNotes(notes []Note) ([]byte, error) {
	if notes == nil {
		notes = []Note{}
	}
	data, err := json.Marshal(notes)
	if err != nil {
		return nil, storeErr("encode notes", err)
	}
	return data, nil
}

func scanLead(row pgx.Row) (*Lead, error) {
	var (
		lead                           Lead
		propertyType, budget, locality string
		source, status, priority       string
		notes                          []byte
	)
	if err := row.Scan(
		&lead.ID,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&lead.Message,
		&propertyType,
		&budget,
		&locality,
		&source,
		&status,
		&priority,
		&lead.AssignedTo,
		&lead.FollowUpDate,
		&lead.LastContactedAt,
		&notes,
		&lead.ConvertedProperty,
		&lead.ConvertedAt,
		&lead.DealValue,
		&lead.Intake.IPAddress,
		&lead.Intake.UserAgent,
		&lead.Intake.UTMSource,
		&lead.Intake.UTMMedium,
		&lead.Intake.UTMCampaign,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	); err != nil {
		return nil, err
	}
	lead.PropertyType = PropertyType(propertyType)
	lead.BudgetRange = BudgetRange(budget)
	lead.PreferredLocality = Locality(locality)
	lead.Source = Source(source)
	lead.Status = Status(status)
	lead.Priority = Priority(priority)
	lead.Notes = []Note{}
	if len(notes) > 0 {
		if err := json.Unmarshal(notes, &lead.Notes); err != nil {
			return nil, fmt.Errorf("decode notes: %w", err)
		}
	}
	return &lead, nil
}
