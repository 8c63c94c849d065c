package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"audioscribe/internal/apperr"
)

func render(t *testing.T, fn func(c *gin.Context)) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	return w.Code, body
}

func TestError_AppError(t *testing.T) {
	status, body := render(t, func(c *gin.Context) {
		Error(c, apperr.ProviderStatus("deepgram", 401, "bad key"))
	})
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d", status)
	}
	if body["success"] != false || body["error"] != "invalid credentials" || body["code"] != "PROVIDER_ERROR" {
		t.Errorf("body = %v", body)
	}
	details, _ := body["details"].(map[string]any)
	if details["message"] != "bad key" {
		t.Errorf("details = %v", details)
	}
}

func TestError_PlainErrorIsHidden(t *testing.T) {
	status, body := render(t, func(c *gin.Context) {
		Error(c, errors.New("pq: password authentication failed"))
	})
	if status != http.StatusInternalServerError || body["code"] != "INTERNAL_ERROR" {
		t.Errorf("status=%d body=%v", status, body)
	}
	if body["error"] == "pq: password authentication failed" {
		t.Error("internal error text leaked")
	}
	if _, ok := body["details"]; ok {
		t.Error("unexpected details")
	}
}

func TestSuccess(t *testing.T) {
	status, body := render(t, func(c *gin.Context) {
		Success(c, gin.H{"status": "ok"})
	})
	data, _ := body["data"].(map[string]any)
	if status != http.StatusOK || body["success"] != true || data["status"] != "ok" {
		t.Errorf("status=%d body=%v", status, body)
	}
}
