package adaptor

import (
	"net/http"
	"strings"

	"agro-booking/internal/dto/request"
	"agro-booking/internal/usecase"
	"agro-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ActivityHandler struct {
	quote usecase.QuoteService
	log   *zap.Logger
}

func NewActivityHandler(quote usecase.QuoteService, log *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		quote: quote,
		log:   log.With(zap.String("handler", "activity")),
	}
}

// GetQuote handles GET /api/activities/{id}/quote (public)
func (h *ActivityHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var req request.QuoteRequest
	invalid := map[string]string{}
	for key, target := range map[string]*int{
		"adults":   &req.Adults,
		"children": &req.Children,
		"seniors":  &req.Seniors,
	} {
		n, ok := utils.ParseCount(query.Get(key))
		if !ok {
			invalid[key] = "must be a non-negative integer"
			continue
		}
		*target = n
	}
	if len(invalid) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", invalid)
		return
	}
	req.Date = query.Get("date")
	req.Currency = strings.ToUpper(query.Get("currency"))

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	quote, err := h.quote.Quote(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "quote activity")
		return
	}

	utils.ResponseSuccess(w, "success", quote)
}
