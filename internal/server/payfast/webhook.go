// Package payfast handles the processor's ITN callback. The request is
// not session-authenticated — the caller is the processor, not a user —
// so authenticity rests entirely on the verifier's four checks.
package payfast

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"shopfast/internal/domain/notification"
	"shopfast/internal/domain/order"
	"shopfast/internal/services/alert"
	"shopfast/internal/services/verification"
	"shopfast/pkg/logger"
)

// maxBodySize bounds the notification body; ITN payloads are small.
const maxBodySize = 64 << 10

type Handler struct {
	store    order.Store
	verifier *verification.Verifier
	notifier *alert.Notifier

	// trustForwarded selects X-Forwarded-For over the TCP peer address
	// as the origin candidate. See config.PayFastConfig.
	trustForwarded bool

	log logger.Logger
}

func NewHandler(store order.Store, verifier *verification.Verifier, notifier *alert.Notifier, trustForwarded bool, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Noop()
	}
	return &Handler{
		store:          store,
		verifier:       verifier,
		notifier:       notifier,
		trustForwarded: trustForwarded,
		log:            log,
	}
}

type response struct {
	Message string                `json:"message"`
	Order   *orderResponse        `json:"order,omitempty"`
	Verdict *verification.Verdict `json:"verdict,omitempty"`
}

type orderResponse struct {
	ID          string         `json:"id"`
	TotalPrice  float64        `json:"totalPrice"`
	IsPaid      bool           `json:"isPaid"`
	PaidAt      *time.Time     `json:"paidAt,omitempty"`
	Payment     *paymentResult `json:"paymentResult,omitempty"`
	IsDelivered bool           `json:"isDelivered"`
	DeliveredAt *time.Time     `json:"deliveredAt,omitempty"`
}

type paymentResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Email  string `json:"email_address"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		h.log.Warn("failed to read notification body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, response{Message: "unreadable request body"})
		return
	}

	payload, err := notification.Parse(body)
	if err != nil {
		h.log.Warn("malformed notification", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, response{Message: "malformed notification"})
		return
	}

	if err := payload.Require(
		notification.FieldItemName,
		notification.FieldAmountGross,
		notification.SignatureField,
	); err != nil {
		h.log.Warn("incomplete notification", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, response{Message: err.Error()})
		return
	}

	ctx := r.Context()
	orderID := payload.OrderID()

	// Unknown order is terminal: no checks run, nothing mutates.
	o, err := h.store.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, response{Message: "order not found"})
			return
		}
		h.log.Error("order lookup failed", zap.String("order_id", orderID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, response{Message: "internal error"})
		return
	}

	verdict := h.verifier.Validate(ctx, h.sourceAddr(r), payload, o)
	if !verdict.OK() {
		// Best effort, off the request path: the processor's response
		// must not wait on the alert channel.
		go h.notifier.PaymentRejected(orderID, verdict)
		writeJSON(w, http.StatusBadRequest, response{
			Message: "payment verification failed",
			Verdict: &verdict,
		})
		return
	}

	result := order.PaymentResult{
		TransactionID: payload.TransactionID(),
		Status:        payload.PaymentStatus(),
		PayerEmail:    payload.PayerEmail(),
	}

	paid, err := h.store.MarkPaid(ctx, orderID, time.Now().UTC(), result)
	switch {
	case errors.Is(err, order.ErrAlreadyPaid):
		// Processor retry after a successful application: confirm
		// without re-applying anything.
		writeJSON(w, http.StatusOK, response{Message: "order already paid", Order: toResponse(paid)})
		return
	case errors.Is(err, order.ErrNotFound):
		writeJSON(w, http.StatusNotFound, response{Message: "order not found"})
		return
	case err != nil:
		h.log.Error("failed to mark order paid", zap.String("order_id", orderID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, response{Message: "internal error"})
		return
	}

	h.log.Info("order paid",
		zap.String("order_id", orderID),
		zap.String("transaction_id", result.TransactionID),
	)
	go h.notifier.PaymentAccepted(orderID, paid.TotalPrice)
	writeJSON(w, http.StatusOK, response{Message: "order paid", Order: toResponse(paid)})
}

// sourceAddr picks the origin candidate for the trusted-origin check.
func (h *Handler) sourceAddr(r *http.Request) string {
	if h.trustForwarded {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			return forwarded
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func toResponse(o *order.Order) *orderResponse {
	resp := &orderResponse{
		ID:          o.ID,
		TotalPrice:  o.TotalPrice,
		IsPaid:      o.IsPaid,
		PaidAt:      o.PaidAt,
		IsDelivered: o.IsDelivered,
		DeliveredAt: o.DeliveredAt,
	}
	if o.Payment != nil {
		resp.Payment = &paymentResult{
			ID:     o.Payment.TransactionID,
			Status: o.Payment.Status,
			Email:  o.Payment.PayerEmail,
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
