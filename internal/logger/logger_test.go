package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextWithRequestID(t *testing.T) {
	ctx, rlog := ContextWithRequestID(context.Background(), "")
	require.NotNil(t, rlog)
	id := RequestIDFromContext(ctx)
	assert.NotEmpty(t, id)

	// a second call keeps the existing logger
	ctx2, _ := ContextWithRequestID(ctx, "other")
	assert.Equal(t, id, RequestIDFromContext(ctx2))
}

func TestContextWithLoggerIdentity(t *testing.T) {
	ctx, _ := ContextWithRequestID(context.Background(), "req-1")
	ctx, rlog := ContextWithLoggerIdentity(ctx, "alice")

	assert.Equal(t, "alice", rlog.Data[identityLoggerKey])
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "alice", FromContext(ctx).Data[identityLoggerKey])
}

func TestFromContextWithoutLogger(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("nonsense"))
}
