package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aslakhn/chargebill/internal/apperrors"
)

// SignatureHeader carries the gateway's webhook signature:
// "t=<unix>,v1=<hex hmac-sha256>"
const SignatureHeader = "Gateway-Signature"

// Webhook deliveries older than this are treated as forged replays
const signatureTolerance = 5 * time.Minute

// VerifySignature checks the gateway's signature over the raw payload.
// The signed message is "<t>.<payload>" keyed with the shared signing
// secret. Every failure mode maps to ErrInvalidSignature: callers don't
// need to distinguish a bad MAC from a stale timestamp.
func VerifySignature(payload []byte, header string, secret string, now time.Time) error {
	var timestamp int64 = -1
	var signature []byte

	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}

		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad timestamp", apperrors.ErrInvalidSignature)
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				return fmt.Errorf("%w: bad hex", apperrors.ErrInvalidSignature)
			}
			signature = sig
		}
	}

	if timestamp < 0 || signature == nil {
		return fmt.Errorf("%w: missing parts", apperrors.ErrInvalidSignature)
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", apperrors.ErrInvalidSignature)
	}

	if !hmac.Equal(signature, computeSignature(payload, secret, timestamp)) {
		return fmt.Errorf("%w: mac mismatch", apperrors.ErrInvalidSignature)
	}

	return nil
}

// SignPayload produces a valid signature header for the payload.
// Used by tests and by the local gateway stub.
func SignPayload(payload []byte, secret string, t time.Time) string {
	mac := computeSignature(payload, secret, t.Unix())
	return fmt.Sprintf("t=%d,v1=%s", t.Unix(), hex.EncodeToString(mac))
}

func computeSignature(payload []byte, secret string, timestamp int64) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}
