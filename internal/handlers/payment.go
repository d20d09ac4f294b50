package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/aslakhn/chargebill/internal/apperrors"
	"github.com/aslakhn/chargebill/internal/handlers/render"
	"github.com/aslakhn/chargebill/internal/handlers/userctx"
	"github.com/aslakhn/chargebill/internal/logger"
	"github.com/aslakhn/chargebill/internal/service/payment"
)

// Payloads above this are not webhook events, they are abuse
const maxWebhookBody = 1 << 20

func handleWebhook(processor webhookProcessor, l logger.Logger) http.Handler {
	type response struct {
		Received bool `json:"received"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			render.ServiceError(w, "Can't read request body", http.StatusBadRequest)
			return
		}

		err = processor.HandleEvent(r.Context(), payload, r.Header.Get(payment.SignatureHeader))

		switch {
		case err == nil:
			render.JSON(w, response{Received: true})
		case errors.Is(err, apperrors.ErrInvalidSignature):
			l.Warn("Webhook rejected", "error", err)
			render.ServiceError(w, "Invalid signature", http.StatusBadRequest)
		default:
			// Transient: let the gateway redeliver
			l.Error("Webhook processing failed", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleCreateIntent(gateway paymentGateway, l logger.Logger) http.Handler {
	type request struct {
		Amount decimal.Decimal `json:"amount" validate:"required"`
	}

	type response struct {
		ClientSecret string `json:"clientSecret"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}
		if req.Amount.Sign() <= 0 {
			render.ServiceError(w, "Amount must be positive", http.StatusBadRequest)
			return
		}

		secret, err := gateway.CreatePaymentIntent(r.Context(), user.ID, req.Amount)
		if err != nil {
			l.Error("Failed to create payment intent", "user_id", user.ID, "error", err)
			render.ServiceError(w, "Payment preparation failed, try again later", http.StatusBadGateway)
			return
		}

		render.JSON(w, response{ClientSecret: secret})
	})
}
