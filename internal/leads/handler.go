package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	httpmiddleware "github.com/brickline/realty-leads/internal/http/middleware"
	"github.com/brickline/realty-leads/pkg/logging"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// Notifier is told about every lead accepted through intake.
type Notifier interface {
	LeadCreated(ctx context.Context, lead *Lead) error
}

// Handler exposes the lead service over HTTP.
type Handler struct {
	service  *Service
	logger   *logging.Logger
	notifier Notifier
}

// NewHandler creates a new leads handler. notifier may be nil.
func NewHandler(service *Service, logger *logging.Logger, notifier Notifier) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger, notifier: notifier}
}

// Create handles POST /leads from the public enquiry form.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.IPAddress = clientIP(r)
	req.UserAgent = r.UserAgent()
	q := r.URL.Query()
	if req.UTMSource == "" {
		req.UTMSource = q.Get("utm_source")
	}
	if req.UTMMedium == "" {
		req.UTMMedium = q.Get("utm_medium")
	}
	if req.UTMCampaign == "" {
		req.UTMCampaign = q.Get("utm_campaign")
	}

	lead, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, "failed to create lead", err)
		return
	}
	h.logger.Info("lead created", "lead_id", lead.ID, "source", lead.Source, "locality", lead.PreferredLocality)

	if h.notifier != nil {
		if err := h.notifier.LeadCreated(r.Context(), lead); err != nil {
			h.logger.Error("failed to send new lead alert", "error", err, "lead_id", lead.ID)
		}
	}
	writeJSON(w, http.StatusCreated, lead)
}

// List handles GET /admin/leads.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		h.fail(w, "invalid list query", err)
		return
	}
	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "failed to list leads", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{
		Status:     Status(q.Get("status")),
		Priority:   Priority(q.Get("priority")),
		Locality:   Locality(q.Get("locality")),
		Budget:     BudgetRange(q.Get("budget")),
		AssignedTo: q.Get("assigned_to"),
	}
	if sortBy := q.Get("sort"); sortBy != "" {
		filter.SortBy = SortField(strings.TrimPrefix(sortBy, "-"))
		filter.SortDesc = strings.HasPrefix(sortBy, "-")
		if !filter.SortBy.valid() {
			return filter, &ValidationError{Field: "sort", Reason: "is not an allowed value"}
		}
	}
	switch strings.ToLower(q.Get("order")) {
	case "":
	case "asc":
		filter.SortDesc = false
	case "desc":
		filter.SortDesc = true
	default:
		return filter, &ValidationError{Field: "order", Reason: "must be asc or desc"}
	}
	var err error
	if filter.Page, err = intParam(q.Get("page"), "page"); err != nil {
		return filter, err
	}
	if filter.PageSize, err = intParam(q.Get("page_size"), "page_size"); err != nil {
		return filter, err
	}
	return filter, nil
}

func intParam(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &ValidationError{Field: field, Reason: "must be a non-negative integer"}
	}
	return n, nil
}

// Get handles GET /admin/leads/{leadID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(r.Context(), chi.URLParam(r, "leadID"))
	if err != nil {
		h.fail(w, "failed to get lead", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Update handles PATCH /admin/leads/{leadID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var changes Changes
	if err := decodeBody(w, r, &changes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	lead, err := h.service.Update(r.Context(), chi.URLParam(r, "leadID"), changes)
	if err != nil {
		h.fail(w, "failed to update lead", err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

type statusRequest struct {
	Status Status `json:"status"`
}

// ChangeStatus handles PUT /admin/leads/{leadID}/status.
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	lead, err := h.service.ChangeStatus(r.Context(), chi.URLParam(r, "leadID"), req.Status)
	if err != nil {
		h.fail(w, "failed to change lead status", err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

type noteRequest struct {
	Message string `json:"message"`
}

// AppendNote handles POST /admin/leads/{leadID}/notes. The author is the
// authenticated staff member.
func (h *Handler) AppendNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	author, _ := httpmiddleware.StaffIDFromContext(r.Context())
	lead, err := h.service.AppendNote(r.Context(), chi.URLParam(r, "leadID"), req.Message, author)
	if err != nil {
		h.fail(w, "failed to append note", err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

// Delete handles DELETE /admin/leads/{leadID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "leadID")); err != nil {
		h.fail(w, "failed to delete lead", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkRequest struct {
	IDs     []string `json:"ids"`
	Updates Changes  `json:"updates"`
}

// BulkUpdate handles POST /admin/leads/bulk-update.
func (h *Handler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.service.BulkUpdate(r.Context(), req.IDs, req.Updates)
	if err != nil {
		h.fail(w, "failed to bulk update leads", err)
		return
	}
	h.logger.Info("leads bulk updated", "requested", result.Requested, "matched", result.Matched)
	writeJSON(w, http.StatusOK, result)
}

// Report handles GET /admin/leads/report. Locality and budget distributions are
// returned as {key, count} buckets, key being the locality or budget code.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Report(r.Context())
	if err != nil {
		h.fail(w, "failed to build lead report", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// fail maps service errors onto status codes. Store failures are logged and
// hidden behind a generic message.
func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, ErrLeadNotFound):
		writeError(w, http.StatusNotFound, "lead not found")
	default:
		h.logger.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
