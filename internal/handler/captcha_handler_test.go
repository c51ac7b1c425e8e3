package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/homepage-api/internal/domain/entity"
)

func TestGetCaptcha(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/captcha", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png:AB3X", parseJSONResponse(t, w)["captcha"])
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestGetCaptcha_RateLimited(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 10; i++ {
		w := env.do(http.MethodGet, "/captcha", nil, nil)
		require.Equal(t, http.StatusOK, w.Code, "запрос %d", i+1)
	}

	w := env.do(http.MethodGet, "/captcha", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	resp := parseJSONResponse(t, w)
	assert.Equal(t, "rate_limited", resp["error_type"])
	assert.NotEmpty(t, resp["error"])
}

func TestSendEmailCode(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/send_email_code", map[string]string{"email": "new@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := parseJSONResponse(t, w)
	assert.Equal(t, true, resp["success"])
	assert.NotEmpty(t, resp["message"])

	require.Equal(t, 1, env.mailer.count())
	assert.Equal(t, "new@example.com", env.mailer.sent[0].to)
	assert.Contains(t, env.mailer.sent[0].body, "123456")
}

func TestSendEmailCode_Errors(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, env *testEnv)
		email      string
		wantStatus int
		wantType   string
	}{
		{
			name:       "invalid format",
			email:      "not-an-email",
			wantStatus: http.StatusBadRequest,
			wantType:   "validation_error",
		},
		{
			name:       "empty body",
			email:      "",
			wantStatus: http.StatusBadRequest,
			wantType:   "validation_error",
		},
		{
			name: "already registered",
			setup: func(t *testing.T, env *testEnv) {
				env.createUser(t, "taken", "taken@example.com", "Str0ng!Pass", entity.RoleUser)
			},
			email:      "taken@example.com",
			wantStatus: http.StatusConflict,
			wantType:   "already_registered",
		},
		{
			name: "dispatch timeout",
			setup: func(t *testing.T, env *testEnv) {
				env.mailer.err = context.DeadlineExceeded
			},
			email:      "new@example.com",
			wantStatus: http.StatusInternalServerError,
			wantType:   "dispatch_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.setup != nil {
				tt.setup(t, env)
			}

			w := env.do(http.MethodPost, "/send_email_code", map[string]string{"email": tt.email}, nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			resp := parseJSONResponse(t, w)
			assert.Equal(t, false, resp["success"])
			assert.Equal(t, tt.wantType, resp["error_type"])
			assert.NotEmpty(t, resp["message"])
		})
	}
}

func TestSendEmailCode_RecipientLimit(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]string{"email": "new@example.com"}

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/send_email_code", body, nil).Code)
	}

	w := env.do(http.MethodPost, "/send_email_code", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))
	assert.Equal(t, 5, env.mailer.count())
}

func TestSendEmailCode_MalformedBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/send_email_code", strings.NewReader(`{"email": "new@example.com"`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := parseJSONResponse(t, w)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "validation_error", resp["error_type"])
	assert.Equal(t, "malformed request body", resp["message"])
	assert.Zero(t, env.mailer.count())
}
