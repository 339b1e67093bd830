package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/imaginify/imaginify/backend/go-services/pkg/logger"
	"github.com/stretchr/testify/require"
)

func TestRequestID_GeneratesUUID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/", func(c *gin.Context) { seen = c.GetString(RequestIDKey) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	require.Equal(t, seen, w.Header().Get(RequestIDHeader))
}

func TestRequestID_PrefersIncomingHeaders(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("svix-id", "msg_1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "msg_1", w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("svix-id", "msg_1")
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}

func TestRequestLogger_WritesAccessLine(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.Init("info")
	defer logger.SetOutput(os.Stdout)

	r := gin.New()
	r.Use(RequestID(), RequestLogger())
	r.GET("/things/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	req := httptest.NewRequest(http.MethodGet, "/things/7", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "warn", line["level"])
	require.Equal(t, "/things/:id", line["path"])
	require.Equal(t, float64(http.StatusTeapot), line["status"])
	require.Equal(t, "req-1", line["request_id"])
}
