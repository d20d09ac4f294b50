package apperrors

import (
	"errors"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")

	// Operator API failures
	ErrAuthenticationFailed = errors.New("operator authentication failed")
	ErrCommandFailed        = errors.New("charger command failed")
	ErrSessionUnavailable   = errors.New("session unavailable")

	// Business rejections, not failures
	ErrBalanceInsufficient = errors.New("insufficient balance")

	// Payment webhook
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrUnresolvableTarget  = errors.New("webhook target user unresolvable")
	ErrTopUpAlreadyApplied = errors.New("top-up already applied")
)
