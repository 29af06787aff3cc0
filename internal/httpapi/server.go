package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"ticketpay/internal/domain"
	"ticketpay/internal/payment"
)

const (
	sessionHeader        = "X-Session-Identifier"
	webhookSignature     = "X-Razorpay-Signature"
	webhookDeliveryID    = "X-Razorpay-Event-Id"
	verificationFailed   = "Payment verification failed"
	webhookSecretMissing = "Webhook secret not configured"
)

type OrderCreator interface {
	CreateProviderOrder(ctx context.Context, orderShortID, sessionID string) (*payment.CreateOrderResponse, error)
}

type PaymentVerifier interface {
	Verify(ctx context.Context, eventID int64, orderShortID string, in payment.VerifyPaymentInput) (*domain.Order, error)
}

type WebhookHandler interface {
	Handle(ctx context.Context, d payment.WebhookDelivery) error
}

type Refunder interface {
	Refund(ctx context.Context, eventID, orderID int64, amount *decimal.Decimal) (*domain.Order, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Creator   OrderCreator
	Verifier  PaymentVerifier
	Webhooks  WebhookHandler
	Refunds   Refunder
	Health    Pinger
	Websocket http.HandlerFunc
	// Authorize guards organizer actions. Nil rejects every request.
	Authorize Middleware
}

type Server struct {
	deps     Deps
	validate *validatorv10.Validate
	logger   *slog.Logger
	mux      *http.ServeMux
}

func NewServer(deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		deps:     deps,
		validate: newValidator(),
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /events/{eventID}/order/{orderShortID}/razorpay/order", s.createOrder)
	s.mux.HandleFunc("POST /events/{eventID}/order/{orderShortID}/razorpay/verify", s.verifyPayment)
	s.mux.HandleFunc("POST /webhooks/razorpay", s.webhook)
	authorize := s.deps.Authorize
	if authorize == nil {
		authorize = denyAll
	}
	s.mux.Handle("POST /events/{eventID}/orders/{orderID}/refund", authorize(http.HandlerFunc(s.refund)))
	if s.deps.Websocket != nil {
		s.mux.HandleFunc("GET /events/{eventID}/order/{orderShortID}/ws", s.deps.Websocket)
	}
	s.mux.HandleFunc("GET /health", s.health)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	resp, err := s.deps.Creator.CreateProviderOrder(r.Context(), r.PathValue("orderShortID"), r.Header.Get(sessionHeader))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		case errors.Is(err, domain.ErrResourceConflict):
			writeError(w, http.StatusConflict, domain.ErrResourceConflict.Error())
		case errors.Is(err, domain.ErrCreateOrderFailed):
			writeError(w, http.StatusUnprocessableEntity, domain.ErrCreateOrderFailed.Error())
		default:
			s.logger.Error("create razorpay order", "order_short_id", r.PathValue("orderShortID"), "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathInt(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, verificationFailed)
		return
	}

	var in payment.VerifyPaymentInput
	if err := bindAndValidate(w, r, &in, s.validate, false); err != nil {
		s.logger.Warn("invalid payment verification request", "err", err)
		writeError(w, http.StatusBadRequest, verificationFailed)
		return
	}

	if _, err := s.deps.Verifier.Verify(r.Context(), eventID, r.PathValue("orderShortID"), in); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		s.logger.Error("razorpay payment verification failed", "order_short_id", r.PathValue("orderShortID"), "err", err)
		writeError(w, http.StatusBadRequest, verificationFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	err = s.deps.Webhooks.Handle(r.Context(), payment.WebhookDelivery{
		Body:       body,
		Signature:  r.Header.Get(webhookSignature),
		DeliveryID: r.Header.Get(webhookDeliveryID),
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, domain.ErrWebhookSecretMissing):
		writeError(w, http.StatusInternalServerError, webhookSecretMissing)
	case errors.Is(err, domain.ErrSignatureInvalid):
		writeError(w, http.StatusBadRequest, "Invalid signature")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Invalid payload")
	default:
		s.logger.Error("razorpay webhook", "err", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
}

func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathInt(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	orderID, err := pathInt(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req refundRequest
	if err := bindAndValidate(w, r, &req, s.validate, true); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	order, err := s.deps.Refunds.Refund(r.Context(), eventID, orderID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, domain.ErrRefundNotPossible), errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.logger.Error("refund order", "order_id", orderID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathInt(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
