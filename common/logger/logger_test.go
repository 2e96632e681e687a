package logger_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/NewtonMutugi/ict-innovations-africa-backend/common/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TeesIntoSink(t *testing.T) {
	var sink bytes.Buffer
	log, err := logger.New("production", &sink)
	require.NoError(t, err)

	log.Info("payment initialized")
	_ = log.Sync()

	assert.Contains(t, sink.String(), `"msg":"payment initialized"`)
	assert.Contains(t, sink.String(), `"timestamp"`)
}

func TestRequestID(t *testing.T) {
	assert.Equal(t, "unknown", logger.RequestID(context.Background()))

	ctx := logger.WithContext(context.Background(), "req-1")
	assert.Equal(t, "req-1", logger.RequestID(ctx))

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	c.Set(logger.RequestIDKey, "req-2")
	assert.Equal(t, "req-2", logger.RequestID(c))
}
