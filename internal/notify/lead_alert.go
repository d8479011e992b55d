package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/brickline/realty-leads/internal/leads"
	"github.com/brickline/realty-leads/internal/observability/metrics"
	"github.com/brickline/realty-leads/pkg/logging"
)

const leadAlertCategory = "new-lead"

// LeadAlerter emails the sales inbox when a lead comes in through intake.
type LeadAlerter struct {
	sender     EmailSender
	recipients []string
	location   *time.Location
	logger     *logging.Logger
	metrics    *metrics.LeadMetrics
}

// NewLeadAlerter returns nil when there is no sender or no recipient, which
// callers treat as alerts disabled.
func NewLeadAlerter(sender EmailSender, recipients []string, loc *time.Location, logger *logging.Logger, m *metrics.LeadMetrics) *LeadAlerter {
	var to []string
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			to = append(to, r)
		}
	}
	if sender == nil || len(to) == 0 {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &LeadAlerter{sender: sender, recipients: to, location: loc, logger: logger, metrics: m}
}

// LeadCreated sends one alert per recipient and returns every failure joined.
func (a *LeadAlerter) LeadCreated(ctx context.Context, lead *leads.Lead) error {
	if a == nil || lead == nil {
		return nil
	}
	msg := a.message(lead)

	var errs []error
	for _, to := range a.recipients {
		msg.To = to
		if err := a.sender.Send(ctx, msg); err != nil {
			a.metrics.ObserveAlert(false)
			errs = append(errs, fmt.Errorf("alert %s: %w", to, err))
			continue
		}
		a.metrics.ObserveAlert(true)
		a.logger.Debug("new lead alert sent", "to", to, "lead_id", lead.ID)
	}
	return errors.Join(errs...)
}

func (a *LeadAlerter) message(lead *leads.Lead) EmailMessage {
	propertyType := leads.FormattedPropertyType(string(lead.PropertyType))
	locality := leads.FormattedLocality(string(lead.PreferredLocality))
	budget := leads.FormattedBudget(string(lead.BudgetRange))
	received := lead.CreatedAt.In(a.location).Format("2 Jan 2006, 3:04 PM MST")

	rows := [][2]string{
		{"Name", lead.Name},
		{"Phone", lead.Phone},
		{"Email", lead.Email},
		{"Looking for", propertyType},
		{"Budget", budget},
		{"Locality", locality},
		{"Source", string(lead.Source)},
		{"Received", received},
	}
	if lead.Message != "" {
		rows = append(rows, [2]string{"Message", lead.Message})
	}
	if lead.Intake.UTMCampaign != "" {
		rows = append(rows, [2]string{"Campaign", lead.Intake.UTMCampaign})
	}

	var text strings.Builder
	fmt.Fprintf(&text, "A new enquiry has arrived.\n\n")
	var table strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&text, "%s: %s\n", row[0], row[1])
		fmt.Fprintf(&table, `<tr><td style="padding: 6px 12px;"><strong>%s</strong></td><td style="padding: 6px 12px;">%s</td></tr>`,
			html.EscapeString(row[0]), html.EscapeString(row[1]))
	}
	fmt.Fprintf(&text, "\nLead ID: %s\n", lead.ID)

	body := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>New lead: %s</h2>
<table style="border-collapse: collapse;">%s</table>
<p style="color: #6b7280; font-size: 12px;">Lead ID %s</p>
</div>`, html.EscapeString(lead.Name), table.String(), html.EscapeString(lead.ID))

	return EmailMessage{
		ReplyTo:  lead.Email,
		Subject:  fmt.Sprintf("New lead: %s (%s, %s)", lead.Name, propertyType, locality),
		Body:     text.String(),
		HTML:     body,
		Category: leadAlertCategory,
	}
}

var _ leads.Notifier = (*LeadAlerter)(nil)
