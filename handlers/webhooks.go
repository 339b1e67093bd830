package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imaginify/imaginify/backend/go-services/internal/apperror"
	"github.com/imaginify/imaginify/backend/go-services/internal/webhooks"
	"github.com/imaginify/imaginify/backend/go-services/pkg/logger"
	"github.com/imaginify/imaginify/backend/go-services/pkg/metrics"
)

// Archiver stores verified delivery bodies. *storage.MinIOStorage satisfies it.
type Archiver interface {
	Archive(ctx context.Context, msgID string, receivedAt time.Time, body []byte) error
}

const defaultMaxBodyBytes = 1 << 20

// WebhookHandler receives identity provider deliveries.
type WebhookHandler struct {
	verifier     *webhooks.Verifier
	dispatcher   *webhooks.Dispatcher
	deduper      webhooks.Deduper
	archive      Archiver
	maxBodyBytes int64
	now          func() time.Time
}

// NewWebhookHandler wires the pipeline. deduper and archive may be nil.
func NewWebhookHandler(v *webhooks.Verifier, d *webhooks.Dispatcher, dedupe webhooks.Deduper, archive Archiver, maxBodyBytes int64) *WebhookHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &WebhookHandler{
		verifier:     v,
		dispatcher:   d,
		deduper:      dedupe,
		archive:      archive,
		maxBodyBytes: maxBodyBytes,
		now:          time.Now,
	}
}

func (h *WebhookHandler) Register(r gin.IRouter, mw ...gin.HandlerFunc) {
	r.POST("/api/webhooks/clerk", append(mw, h.Receive)...)
}

// verificationFailure maps a verifier error to its plain-text response and
// metric reason.
func verificationFailure(err error) (int, string, string) {
	switch {
	case errors.Is(err, apperror.ErrConfiguration):
		return http.StatusInternalServerError, "Internal Server Error", "config"
	case errors.Is(err, apperror.ErrMissingHeaders):
		return http.StatusBadRequest, "Missing svix headers", "missing_headers"
	case errors.Is(err, apperror.ErrMalformedBody):
		return http.StatusBadRequest, "Error parsing request body", "malformed_body"
	default:
		return http.StatusBadRequest, "Error verifying webhook", "signature"
	}
}

// Receive verifies, deduplicates, archives and dispatches one delivery.
func (h *WebhookHandler) Receive(c *gin.Context) {
	ctx := c.Request.Context()
	receivedAt := h.now()

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		metrics.WebhookVerificationFailures.WithLabelValues("malformed_body").Inc()
		c.String(http.StatusBadRequest, "Error parsing request body")
		return
	}

	evt, err := h.verifier.Verify(c.Request.Header, body)
	if err != nil {
		status, msg, reason := verificationFailure(err)
		metrics.WebhookVerificationFailures.WithLabelValues(reason).Inc()
		if status >= 500 {
			logger.Errorf("webhook rejected: %s", apperror.Message(err))
		} else {
			logger.Warnf("webhook rejected (%s): %s", reason, apperror.Message(err))
		}
		c.String(status, msg)
		return
	}

	msgID := c.GetHeader(webhooks.HeaderID)
	if h.deduper != nil {
		seen, err := h.deduper.Seen(ctx, msgID)
		if err != nil {
			logger.Warnf("webhook dedupe lookup for %s failed, processing anyway: %v", msgID, err)
		} else if seen {
			metrics.WebhookDuplicates.Inc()
			logger.Infof("webhook %s already processed", msgID)
			c.String(http.StatusOK, "Webhook already processed")
			return
		}
	}

	if h.archive != nil {
		actx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := h.archive.Archive(actx, msgID, receivedAt, body); err != nil {
			metrics.WebhookArchiveFailures.Inc()
			logger.Warnf("webhook archive failed: %v", err)
		}
		cancel()
	}

	res := h.dispatcher.Dispatch(ctx, evt)
	metrics.WebhookEvents.WithLabelValues(evt.Type(), strconv.Itoa(res.Status)).Inc()

	if res.Status >= 200 && res.Status < 300 && h.deduper != nil {
		if err := h.deduper.Mark(ctx, msgID); err != nil {
			logger.Warnf("webhook dedupe mark for %s failed: %v", msgID, err)
		}
	}

	if _, unhandled := evt.(webhooks.Unhandled); unhandled || res.Status >= 300 {
		c.String(res.Status, res.Message)
		return
	}
	c.JSON(res.Status, gin.H{"message": res.Message, "user": res.User})
}
