package leads

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/brickline/realty-leads/internal/observability/metrics"
	"github.com/brickline/realty-leads/pkg/logging"
)

var leadsTracer = otel.Tracer("realty/leads")

const maxNoteLength = 2000

// Directory resolves staff and property references for display. It is
// provided by the surrounding platform; the service works without one.
type Directory interface {
	StaffNames(ctx context.Context, ids []string) (map[string]string, error)
	PropertyTitle(ctx context.Context, id string) (string, error)
}

// Service implements lead lifecycle operations over a Repository.
type Service struct {
	repo      Repository
	logger    *logging.Logger
	metrics   *metrics.LeadMetrics
	directory Directory
	now       func() time.Time
	newID     func() string
	location  *time.Location
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides lead id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func WithMetrics(m *metrics.LeadMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithDirectory(d Directory) Option {
	return func(s *Service) { s.directory = d }
}

// WithReportLocation sets the time zone that decides where a calendar month starts.
func WithReportLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// NewService creates a lead service.
func NewService(repo Repository, logger *logging.Logger, opts ...Option) *Service {
	if repo == nil {
		panic("leads: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		repo:     repo,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates an intake request, applies defaults and stores the new lead.
func (s *Service) Create(ctx context.Context, req CreateLeadRequest) (lead *Lead, err error) {
	ctx, span := leadsTracer.Start(ctx, "leads.create")
	defer s.finish(span, "create", time.Now(), &err)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	lead = req.newLead(s.newID(), s.now())
	if err := s.repo.Insert(ctx, lead); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("lead.id", lead.ID), attribute.String("lead.source", string(lead.Source)))
	s.metrics.ObserveCreated(string(lead.Source))
	s.logger.Debug("lead created", "lead_id", lead.ID, "source", lead.Source)
	return lead, nil
}

// Get returns a lead with its derived display fields.
func (s *Service) Get(ctx context.Context, id string) (view *LeadView, err error) {
	ctx, span := leadsTracer.Start(ctx, "leads.get", trace.WithAttributes(attribute.String("lead.id", id)))
	defer s.finish(span, "get", time.Now(), &err)

	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v := NewView(lead, s.now())
	if err := s.resolve(ctx, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Service) resolve(ctx context.Context, v *LeadView) error {
	if s.directory == nil {
		return nil
	}
	var staff []string
	if v.AssignedTo != "" {
		staff = append(staff, v.AssignedTo)
	}
	for _, note := range v.Notes {
		if note.AddedBy != "" {
			staff = append(staff, note.AddedBy)
		}
	}
	if len(staff) > 0 {
		names, err := s.directory.StaffNames(ctx, staff)
		if err != nil {
			return err
		}
		v.StaffNames = names
	}
	if v.ConvertedProperty != "" {
		title, err := s.directory.PropertyTitle(ctx, v.ConvertedProperty)
		if err != nil {
			return err
		}
		v.ConvertedPropertyName = title
	}
	return nil
}

// List returns one page of leads matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (page *ListPage, err error) {
	ctx, span := leadsTracer.Start(ctx, "leads.list")
	defer s.finish(span, "list", time.Now(), &err)

	if err := filter.validate(); err != nil {
		return nil, err
	}
	filter = filter.normalize()
	leads, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]LeadView, 0, len(leads))
	for _, lead := range leads {
		views = append(views, NewView(lead, now))
	}
	span.SetAttributes(attribute.Int("leads.total", total))
	return &ListPage{
		Leads:      views,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: (total + filter.PageSize - 1) / filter.PageSize,
	}, nil
}

// ChangeStatus is the dedicated pipeline operation. It is the only path that
// applies the Transition side effects.
func (s *Service) ChangeStatus(ctx context.Context, id string, to Status) (lead *Lead, err error) {
	ctx, span := leadsTracer.Start(ctx, "leads.change_status", trace.WithAttributes(
		attribute.String("lead.id", id),
		attribute.String("lead.status", string(to)),
	))
	defer s.finish(span, "change_status", time.Now(), &err)

	if err := validateStatus(to); err != nil {
		return nil, err
	}
	lead, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	from, err := Transition(lead, to, now)
	if err != nil {
		return nil, err
	}
	lead.UpdatedAt = now
	if err := s.repo.Replace(ctx, lead); err != nil {
		return nil, err
	}
	s.metrics.ObserveStatusChange(string(from), string(to))
	s.logger.Debug("lead status changed", "lead_id", id, "from", from, "to", to)
	return lead, nil
}

// Update sets allow-listed fields on one lead without pipeline side effects.
func (s *Service) Update(ctx context.Context, id string, changes Changes) (lead *Lead, err error) {
	ctx, span := leadsTracer.Start(ctx, "leads.update", trace.WithAttributes(attribute.String("lead.id", id)))
	defer s.finish(span, "update", time.Now(), &err)

	if err := changes.Validate(); err != nil {
		return nil, err
	}
	if changes.Empty() {
		return nil, &ValidationError{Reason: "no updatable fields supplied"}
	}
	lead, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	changes.Apply(lead)
	lead.UpdatedAt = s.now()
	if err := s.repo.Replace(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// AppendNote adds a note to the end of the lead's note list. The record is read,
// extended and written back whole, so two concurrent appends can lose one note.
// An unknown id yields ErrLeadNotFound, the same as every other id-addressed call.
func (s *Service) AppendNote(ctx context.Context, id, message, authorID string) (lead *Lead, err error) {
	ctx, span := leadsTracer.Start(ctx, "leads.append_note", trace.WithAttributes(attribute.String("lead.id", id)))
	defer s.finish(span, "append_note", time.Now(), &err)

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &ValidationError{Field: "message", Reason: "is required"}
	}
	if utf8.RuneCountInString(message) > maxNoteLength {
		return nil, &ValidationError{Field: "message", Reason: "must be at most 2000 characters"}
	}
	if strings.TrimSpace(authorID) == "" {
		return nil, &ValidationError{Field: "added_by", Reason: "is required"}
	}
	lead, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	lead.Notes = append(lead.Notes, Note{Message: message, AddedBy: authorID, AddedAt: now})
	lead.UpdatedAt = now
	if err := s.repo.Replace(ctx, lead); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("lead.notes", len(lead.Notes)))
	s.metrics.ObserveNoteAppended()
	return lead, nil
}

// Delete permanently removes a lead. References held elsewhere are not touched.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	ctx, span := leadsTracer.Start(ctx, "leads.delete", trace.WithAttributes(attribute.String("lead.id", id)))
	defer s.finish(span, "delete", time.Now(), &err)

	return s.repo.Delete(ctx, id)
}

// BulkResult reports a bulk update.
//
// Modified is the number of ids supplied, not the number changed; existing
// API clients read this field and rely on that. Matched is what the store
// actually matched.
type BulkResult struct {
	Requested int `json:"requested_count"`
	Modified  int `json:"modified_count"`
	Matched   int `json:"matched_count"`
}

// BulkUpdate applies changes to every id as a raw field set. No pipeline side
// effects run, even when changes sets a status. The update is not
// transactional: on a store error some ids may already have been updated.
func (s *Service) BulkUpdate(ctx context.Context, ids []string, changes Changes) (result *BulkResult, err error) {
	ctx, span := leadsTracer.Start(ctx, "leads.bulk_update", trace.WithAttributes(attribute.Int("leads.requested", len(ids))))
	defer s.finish(span, "bulk_update", time.Now(), &err)

	if len(ids) == 0 {
		return nil, &ValidationError{Field: "ids", Reason: "must not be empty"}
	}
	if err := changes.Validate(); err != nil {
		return nil, err
	}
	if changes.Empty() {
		return nil, &ValidationError{Reason: "no updatable fields supplied"}
	}
	matched, err := s.repo.UpdateMany(ctx, ids, changes, s.now())
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("leads.matched", matched))
	s.metrics.ObserveBulkUpdate(len(ids), matched)
	return &BulkResult{Requested: len(ids), Modified: len(ids), Matched: matched}, nil
}

// finish closes span and records the operation outcome.
func (s *Service) finish(span trace.Span, op string, start time.Time, errp *error) {
	outcome := outcomeOf(*errp)
	if *errp != nil && outcome == "store_error" {
		span.RecordError(*errp)
		span.SetStatus(codes.Error, (*errp).Error())
	}
	span.End()
	s.metrics.ObserveOperation(op, outcome, time.Since(start).Seconds())
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsValidation(err):
		return "validation"
	case errors.Is(err, ErrLeadNotFound):
		return "not_found"
	default:
		return "store_error"
	}
}

func (f ListFilter) validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "is not an allowed value"}
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: "is not an allowed value"}
	}
	if f.Locality != "" && !f.Locality.Valid() {
		return &ValidationError{Field: "locality", Reason: "is not an allowed value"}
	}
	if f.Budget != "" && !f.Budget.Valid() {
		return &ValidationError{Field: "budget", Reason: "is not an allowed value"}
	}
	return nil
}
