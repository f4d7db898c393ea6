package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	extratelimit "github.com/vnmchuo/ratelimiter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vnmchuo/fleet-billing/internal/billing"
	"github.com/vnmchuo/fleet-billing/internal/logger"
	"github.com/vnmchuo/fleet-billing/internal/metrics"
	"github.com/vnmchuo/fleet-billing/internal/odometer"
)

const (
	maxBodyBytes  = 1 << 20
	retryAfterSec = 60
)

const (
	msgEmptyBody   = "Request body is empty."
	msgInvalidJSON = "Invalid JSON format in request body."
	msgUnreadable  = "Unable to read request body."
	msgTooLarge    = "Request body is too large."
)

type Biller interface {
	Bill(ctx context.Context, req *billing.BillingRequest) (*billing.BillResult, error)
}

// RateLimiter meters reading service calls per customer.
type RateLimiter interface {
	Allow(ctx context.Context, customer string, readings int) (*extratelimit.Result, error)
}

type Handler struct {
	biller     Biller
	limiter    RateLimiter
	formatters *Formatters
	metrics    metrics.Sink
	tracer     trace.Tracer
	log        logger.Logger
}

// NewHandler builds the billing handler. limiter may be nil to disable rate
// limiting.
func NewHandler(biller Biller, limiter RateLimiter, sink metrics.Sink, tracer trace.Tracer, log logger.Logger) *Handler {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("api")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Handler{
		biller:     biller,
		limiter:    limiter,
		formatters: DefaultFormatters(),
		metrics:    sink,
		tracer:     tracer,
		log:        log,
	}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "fleet-billing"})
}

func (h *Handler) HandleBill(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "api.bill")
	defer span.End()
	log := h.log.With(map[string]any{"request_id": GetRequestID(ctx)})

	req, status, msg := decodeRequest(w, r)
	if msg != "" {
		log.Warnf("rejected billing request: %s", msg)
		h.metrics.ObserveBill(metrics.OutcomeRejected)
		writeText(w, status, msg)
		return
	}
	span.SetAttributes(
		attribute.String("customer", req.Customer),
		attribute.Int("vehicles", len(req.Vehicles)),
	)

	if err := billing.Validate(req); err != nil {
		log.Warnf("Validation failed: %s", err)
		h.metrics.ObserveBill(metrics.OutcomeRejected)
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	if res := h.allow(ctx, log, req); res != nil && !res.Allowed {
		h.metrics.ObserveBill(metrics.OutcomeRateLimited)
		retryAfter := retryAfterSec
		if s := int(res.ResetAfter / time.Second); s > 0 {
			retryAfter = s
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(max(res.Remaining, 0), 10))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}

	res, err := h.biller.Bill(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.writeBillError(w, r, log, err)
		return
	}

	h.metrics.ObserveBill(metrics.OutcomeBilled)
	h.metrics.AddBilledMiles(res.Miles)
	log.Infof("billed %s %s for %s miles", res.Customer, res.Amount.StringFixed(2), res.Miles.StringFixed(2))

	formatter := h.formatters.For(r.Header.Get("Accept"))
	body, err := formatter.Format(res)
	if err != nil {
		log.Errorf("render bill: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to render bill"})
		return
	}
	w.Header().Set("Content-Type", formatter.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// decodeRequest returns the parsed request, or the status and message to
// reject it with.
func decodeRequest(w http.ResponseWriter, r *http.Request) (*billing.BillingRequest, int, string) {
	if r.Body == nil {
		return nil, http.StatusBadRequest, msgEmptyBody
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, msgTooLarge
		}
		return nil, http.StatusBadRequest, msgUnreadable
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, http.StatusBadRequest, msgEmptyBody
	}
	if bytes.Equal(body, []byte("null")) {
		return nil, http.StatusBadRequest, billing.MsgInvalidRequest
	}
	var req billing.BillingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, http.StatusBadRequest, msgInvalidJSON
	}
	return &req, 0, ""
}

// allow meters two readings per vehicle. A nil result lets the bill through.
func (h *Handler) allow(ctx context.Context, log logger.Logger, req *billing.BillingRequest) *extratelimit.Result {
	if h.limiter == nil {
		return nil
	}
	res, err := h.limiter.Allow(ctx, req.Customer, 2*len(req.Vehicles))
	if err != nil {
		log.Warnf("rate limiter unavailable, allowing request: %v", err)
		return nil
	}
	return res
}

func (h *Handler) writeBillError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	var verr *billing.ValidationError
	var rse *odometer.ReadingServiceError
	switch {
	case errors.As(err, &verr):
		h.metrics.ObserveBill(metrics.OutcomeRejected)
		writeText(w, http.StatusBadRequest, verr.Error())
	case r.Context().Err() != nil:
		h.metrics.ObserveBill(metrics.OutcomeCanceled)
		log.Infof("billing request abandoned by caller: %v", err)
	case errors.Is(err, context.DeadlineExceeded):
		h.metrics.ObserveBill(metrics.OutcomeUpstream)
		log.Errorf("billing timed out: %v", err)
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": err.Error()})
	case errors.As(err, &rse):
		h.metrics.ObserveBill(metrics.OutcomeUpstream)
		log.Errorf("billing failed: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": rse.Error()})
	default:
		h.metrics.ObserveBill(metrics.OutcomeUpstream)
		log.Errorf("billing failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}
