package render

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, map[string]string{"chargerId": "EH-001"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"chargerId":"EH-001"}`, w.Body.String())
}

func TestServiceError(t *testing.T) {
	w := httptest.NewRecorder()

	ServiceError(w, "Balance too low, top up before charging", http.StatusBadRequest)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"service_error","message":"Balance too low, top up before charging"}`, w.Body.String())
}

func TestBindAndValidate(t *testing.T) {
	type startRequest struct {
		ChargerID string `json:"chargerId" validate:"required"`
		Amount    string `json:"amount,omitempty"`
	}

	t.Run("valid body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"chargerId":"EH-001"}`))

		value, err := BindAndValidate[startRequest](w, r)

		require.NoError(t, err)
		assert.Equal(t, "EH-001", value.ChargerID)
		assert.Equal(t, http.StatusOK, w.Code, "no error response should be written")
	})

	t.Run("not json at all", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/", strings.NewReader(`not-json`))

		_, err := BindAndValidate[startRequest](w, r)

		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), DecodingErrorType)
	})

	t.Run("wrong field type", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"chargerId":42}`))

		_, err := BindAndValidate[startRequest](w, r)

		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "chargerId", "message should name the json field")
	})

	t.Run("missing required field", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"amount":"100.00"}`))

		_, err := BindAndValidate[startRequest](w, r)

		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), ValidationErrorType)
		assert.Contains(t, w.Body.String(), `"chargerId":"This field is required"`)
	})
}
