package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func TestRunStatus(t *testing.T) {
	tests := []struct {
		name     string
		required Check
		optional Check
		want     Status
	}{
		{"all up", up, up, StatusUp},
		{"optional down", up, down, StatusDegraded},
		{"required down", down, up, StatusDown},
		{"both down", down, down, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			c.Require("corpus", tt.required)
			c.Optional("redis", tt.optional)

			report := c.Run(context.Background())
			assert.Equal(t, tt.want, report.Status)
			assert.Len(t, report.Components, 2)
			assert.True(t, report.Components["corpus"].Required)
		})
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Require("corpus", up)
	c.Optional("kafka", down)

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "connection refused", report.Components["kafka"].Message)

	c.Require("corpus", down)
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest("GET", "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
