// Package notify implements C6: batches confirmed matches into per-subscriber
// emails, composes operator progress/summary mail, signs deep links, and
// records a durable delivery-attempt per send.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/google/uuid"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
	"github.com/karlennis/fiscan/internal/models"
)

// renderedMatch is an EnrichedMatch plus its signed deep link, the shape the
// email templates render against.
type renderedMatch struct {
	interfaces.EnrichedMatch
	DeepLink string
}

// Dispatcher sends the three notification kinds the worker composes and
// persists a DeliveryAttempt for each.
type Dispatcher struct {
	host, user, password string
	port                 int
	fromAddr             string
	deepLinks            *DeepLinkSigner
	deliveries           interfaces.DeliveryStore
	sendMail             func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger               *common.Logger
}

// New creates a Dispatcher.
func New(cfg common.NotifyConfig, deliveries interfaces.DeliveryStore, logger *common.Logger) *Dispatcher {
	return &Dispatcher{
		host:       cfg.SMTPHost,
		port:       cfg.SMTPPort,
		user:       cfg.SMTPUser,
		password:   cfg.SMTPPassword,
		fromAddr:   cfg.FromAddress,
		deepLinks:  NewDeepLinkSigner(cfg.DeepLinkBase, cfg.HMACSecret),
		deliveries: deliveries,
		sendMail:   smtp.SendMail,
		logger:     logger,
	}
}

// SendBatch sends one subscriber's matched-document digest.
func (d *Dispatcher) SendBatch(ctx context.Context, batch interfaces.EmailBatch) error {
	rendered := make([]renderedMatch, 0, len(batch.Matches))
	for _, m := range batch.Matches {
		rendered = append(rendered, renderedMatch{EnrichedMatch: m, DeepLink: d.deepLinks.Sign(m.ObjectKey, m.ProjectID)})
	}

	var buf bytes.Buffer
	if err := batchTemplate.Execute(&buf, struct {
		Subscriber  models.Subscriber
		Matches     []renderedMatch
		ReportTypes []string
	}{batch.Subscriber, rendered, batch.ReportTypes}); err != nil {
		return fmt.Errorf("failed to render batch email: %w", err)
	}

	sendErr := d.send(ctx, batch.Subscriber.Email, buf.Bytes())
	d.recordDelivery(ctx, batch.JobID, batch.Subscriber.ID, "batch", len(batch.Matches), sendErr)
	return sendErr
}

// SendProgress sends an operator mid-run progress update.
func (d *Dispatcher) SendProgress(ctx context.Context, adminAddr string, p interfaces.ProgressPayload) error {
	var buf bytes.Buffer
	if err := progressTemplate.Execute(&buf, p); err != nil {
		return fmt.Errorf("failed to render progress email: %w", err)
	}
	sendErr := d.send(ctx, adminAddr, buf.Bytes())
	d.recordDelivery(ctx, p.JobName, "", "progress", len(p.RecentMatches), sendErr)
	return sendErr
}

// SendSummary sends the end-of-run operator summary.
func (d *Dispatcher) SendSummary(ctx context.Context, adminAddr string, s interfaces.SummaryPayload) error {
	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, s); err != nil {
		return fmt.Errorf("failed to render summary email: %w", err)
	}
	sendErr := d.send(ctx, adminAddr, buf.Bytes())
	d.recordDelivery(ctx, s.JobName, "", "summary", s.MatchesFound, sendErr)
	return sendErr
}

func (d *Dispatcher) send(ctx context.Context, to string, body []byte) error {
	if d.host == "" {
		d.logger.Debug().Str("to", to).Msg("smtp not configured, skipping send")
		return nil
	}

	addr := fmt.Sprintf("%s:%d", d.host, d.port)
	var auth smtp.Auth
	if d.user != "" {
		auth = smtp.PlainAuth("", d.user, d.password, d.host)
	}

	msg := append([]byte(fmt.Sprintf("From: %s\r\nTo: %s\r\n", d.fromAddr, to)), body...)

	if err := d.sendMail(addr, auth, d.fromAddr, []string{to}, msg); err != nil {
		return fmt.Errorf("%w: smtp send to %s: %v", common.ErrTransient, to, err)
	}
	return nil
}

func (d *Dispatcher) recordDelivery(ctx context.Context, jobID, subscriberID, kind string, matchCount int, sendErr error) {
	if d.deliveries == nil {
		return
	}
	attempt := &models.DeliveryAttempt{
		ID:           uuid.New().String(),
		JobID:        jobID,
		SubscriberID: subscriberID,
		Kind:         kind,
		Status:       models.DeliveryStatusSent,
		MatchCount:   matchCount,
		SentAt:       time.Now(),
	}
	if sendErr != nil {
		attempt.Status = models.DeliveryStatusFailed
		attempt.Error = sendErr.Error()
	}
	if err := d.deliveries.Save(ctx, attempt); err != nil {
		d.logger.Warn().Err(err).Str("kind", kind).Msg("failed to persist delivery attempt")
	}
}

var _ interfaces.EmailClient = (*Dispatcher)(nil)
