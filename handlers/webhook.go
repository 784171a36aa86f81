package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document/service"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/events"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/signing"
	"github.com/TGSE-nepuro/cloudsign-APImok/pkg/logger"
	"github.com/TGSE-nepuro/cloudsign-APImok/pkg/metrics"
)

// Event types the signing service delivers.
const (
	EventDocumentCompleted = "document.completed"
	EventDocumentDeclined  = "document.declined"
	EventDocumentCanceled  = "document.canceled"
	EventSMSVerified       = "participant.sms_verified"
)

// EventSink answers whether an event was already applied and records it once
// it has been. Satisfied by *events.Store.
type EventSink interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, ev *events.Event) (bool, error)
}

// WebhookHandler receives event callbacks from the signing service and folds
// them into the local lifecycle. Deliveries are at-least-once; the event sink
// deduplicates by event ID so a redelivered event is acknowledged without
// being applied twice.
type WebhookHandler struct {
	svc  *service.Service
	orch *signing.Orchestrator
	sink EventSink
}

func NewWebhookHandler(svc *service.Service, orch *signing.Orchestrator, sink EventSink) *WebhookHandler {
	return &WebhookHandler{svc: svc, orch: orch, sink: sink}
}

// RegisterWebhookRoutes registers the callback endpoint, normally behind
// middleware.WebhookAuthMiddleware.
func (h *WebhookHandler) RegisterWebhookRoutes(r *gin.Engine, mw ...gin.HandlerFunc) {
	g := r.Group("/api/webhooks", mw...)
	g.POST("/cloudsign", h.Receive)
}

type webhookPayload struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	DocumentID    string    `json:"document_id"`
	ParticipantID string    `json:"participant_id,omitempty"`
	ConsentToken  string    `json:"consent_token,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Receive acknowledges with 200 once the event is applied and recorded.
// Events for unknown documents return 404 so the sender retries later; a
// delivery that was already processed returns 200 without re-applying.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var p webhookPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if p.EventID == "" || p.EventType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_id and event_type are required"})
		return
	}
	metrics.WebhookEvents.WithLabelValues(p.EventType).Inc()

	seen, err := h.sink.Processed(c.Request.Context(), p.EventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if seen {
		logger.Debugf("webhook event %s already processed", p.EventID)
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	// apply first, record second: a failed application must leave the event
	// unrecorded so the sender's retry is not answered as a duplicate
	if err := h.apply(c.Request.Context(), &p); err != nil {
		writeError(c, err)
		return
	}
	if _, err := h.sink.MarkProcessed(c.Request.Context(), &events.Event{
		EventID:          p.EventID,
		Type:             p.EventType,
		RemoteDocumentID: p.DocumentID,
		ParticipantID:    p.ParticipantID,
		ConsentToken:     p.ConsentToken,
		OccurredAt:       p.OccurredAt,
	}); err != nil {
		// the event was applied; application is idempotent, so a redelivery
		// caused by this 500 is harmless
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *WebhookHandler) apply(ctx context.Context, p *webhookPayload) error {
	switch p.EventType {
	case EventSMSVerified:
		rec, err := h.orch.ConfirmConsent(ctx, p.ConsentToken)
		if err != nil {
			return err
		}
		if rec == nil {
			// unknown or expired token, nothing to advance
			return nil
		}
		_, err = h.svc.ApplyRemoteStatus(ctx, rec.DocumentID, document.StatusInProgress)
		return err
	case EventDocumentCompleted, EventDocumentDeclined, EventDocumentCanceled:
		doc, err := h.svc.GetByRemoteID(ctx, p.DocumentID)
		if err != nil {
			return err
		}
		_, err = h.svc.ApplyRemoteStatus(ctx, doc.ID, eventStatus(p.EventType))
		return err
	default:
		logger.Warnf("ignoring unknown webhook event type %s", p.EventType)
		return nil
	}
}

func eventStatus(eventType string) document.Status {
	switch eventType {
	case EventDocumentCompleted:
		return document.StatusCompleted
	case EventDocumentDeclined:
		return document.StatusDeclined
	default:
		return document.StatusCanceled
	}
}
