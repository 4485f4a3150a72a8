package util

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return resp
}

func TestNotFoundMessage(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	NotFound(c, "测试会话不存在")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.Message != "测试会话不存在" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestNotFoundDefaultMessage(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	NotFound(c, "")

	resp := decodeResponse(t, w)
	if resp.Message != "Resource not found" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestSuccessEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Success(c, gin.H{"id": 1})

	resp := decodeResponse(t, w)
	if resp.Code != http.StatusOK || resp.Message != "success" {
		t.Errorf("envelope = %+v", resp)
	}
	if resp.Data == nil {
		t.Error("data missing")
	}
}
