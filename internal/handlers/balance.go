package handlers

import (
	"net/http"

	"github.com/aslakhn/chargebill/internal/handlers/render"
	"github.com/aslakhn/chargebill/internal/handlers/userctx"
	"github.com/aslakhn/chargebill/internal/logger"
)

func handleBalance(balanceService balanceService, l logger.Logger) http.Handler {
	type response struct {
		AccountBalance float64 `json:"accountBalance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		balance, err := balanceService.GetBalance(r.Context(), user.ID)

		switch err {
		case nil:
			current, _ := balance.Current.Float64()
			render.JSON(w, response{AccountBalance: current})
		default:
			l.Error("Failed to get balance", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
