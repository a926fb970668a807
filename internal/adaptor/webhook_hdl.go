package adaptor

import (
	"errors"
	"io"
	"net/http"

	"agro-booking/internal/dto/response"
	"agro-booking/internal/gateway"
	"agro-booking/internal/usecase"
	"agro-booking/pkg/utils"

	"go.uber.org/zap"
)

// maxWebhookBody caps provider callbacks. Oversized bodies are rejected, never truncated.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	service usecase.WebhookService
	log     *zap.Logger
}

func NewWebhookHandler(service usecase.WebhookService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		log:     log.With(zap.String("handler", "webhook")),
	}
}

// HandlePayment handles POST /api/payments/webhook (public, signed by the provider)
func (h *WebhookHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.log.Error("Webhook body exceeds limit, event not processed",
				zap.Int64("limit", tooLarge.Limit),
				zap.Int64("content_length", r.ContentLength),
			)
			utils.ResponseJSON(w, http.StatusRequestEntityTooLarge, false, "Request body too large", nil, nil)
			return
		}
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	outcome, err := h.service.HandleWebhook(r.Context(), payload, r.Header.Get(gateway.SignatureHeader))
	if err != nil {
		handleServiceError(w, h.log, err, "handle payment webhook")
		return
	}

	h.log.Debug("Payment webhook acknowledged", zap.String("outcome", string(outcome)))
	utils.ResponseSuccess(w, "success", response.WebhookResponse{Received: true})
}
