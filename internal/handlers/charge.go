package handlers

import (
	"errors"
	"net/http"

	"github.com/aslakhn/chargebill/internal/apperrors"
	"github.com/aslakhn/chargebill/internal/handlers/render"
	"github.com/aslakhn/chargebill/internal/handlers/userctx"
	"github.com/aslakhn/chargebill/internal/logger"
)

func handleChargeStart(chargeService chargeService, l logger.Logger) http.Handler {
	type request struct {
		ChargerID string `json:"chargerId" validate:"required"`
	}

	type response struct {
		Message string `json:"message"`
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

		err = chargeService.Start(r.Context(), user.ID, req.ChargerID)

		switch {
		case err == nil:
			render.JSON(w, response{Message: "Charging started on charger " + req.ChargerID})
		case errors.Is(err, apperrors.ErrBalanceInsufficient):
			render.ServiceError(w, "Balance too low, top up before charging", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrCommandFailed), errors.Is(err, apperrors.ErrAuthenticationFailed):
			l.Error("Start command failed", "charger_id", req.ChargerID, "error", err)
			render.ServiceError(w, "Charger did not accept the command, try again later", http.StatusInternalServerError)
		default:
			l.Error("Failed to start charging", "charger_id", req.ChargerID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleChargeStop(chargeService chargeService, l logger.Logger) http.Handler {
	type request struct {
		ChargerID string `json:"chargerId" validate:"required"`
	}

	type response struct {
		Message    string   `json:"message"`
		Cost       *float64 `json:"cost,omitempty"`
		NewBalance *float64 `json:"newBalance,omitempty"`
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

		result, err := chargeService.Stop(r.Context(), user.ID, req.ChargerID)

		switch {
		case err == nil && result.Settled:
			cost, _ := result.Cost.Float64()
			balance, _ := result.NewBalance.Float64()
			render.JSON(w, response{
				Message:    "Charging stopped",
				Cost:       &cost,
				NewBalance: &balance,
			})
		case err == nil:
			render.JSON(w, response{
				Message: "Charging stopped, settlement pending",
			})
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrCommandFailed), errors.Is(err, apperrors.ErrAuthenticationFailed):
			l.Error("Stop command failed", "charger_id", req.ChargerID, "error", err)
			render.ServiceError(w, "Charger did not accept the command, try again later", http.StatusInternalServerError)
		default:
			l.Error("Failed to stop charging", "charger_id", req.ChargerID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleChargeStatus(chargeService chargeService, l logger.Logger) http.Handler {
	type response struct {
		Charging           bool    `json:"charging"`
		EnergyConsumed     float64 `json:"energyConsumed"`
		LiveCost           float64 `json:"liveCost"`
		RemainingBalance   float64 `json:"remainingBalance"`
		InstantaneousPower float64 `json:"instantaneousPower"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		chargerID := r.PathValue("chargerID")
		status, err := chargeService.GetStatus(r.Context(), user.ID, chargerID)

		switch {
		case err == nil:
			energy, _ := status.EnergyConsumed.Float64()
			liveCost, _ := status.LiveCost.Float64()
			remaining, _ := status.RemainingBalance.Float64()
			render.JSON(w, response{
				Charging:           status.Charging,
				EnergyConsumed:     energy,
				LiveCost:           liveCost,
				RemainingBalance:   remaining,
				InstantaneousPower: status.PowerKW,
			})
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("Failed to get charging status", "charger_id", chargerID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListChargers(chargeService chargeService, l logger.Logger) http.Handler {
	type charger struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chargers, err := chargeService.ListChargers(r.Context())
		if err != nil {
			l.Error("Failed to list chargers", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		out := make([]charger, 0, len(chargers))
		for _, ch := range chargers {
			out = append(out, charger{ID: ch.ID, Name: ch.Name})
		}
		render.JSON(w, out)
	})
}
