package service

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/homepage-api/internal/config"
)

func TestNewMailDispatcher(t *testing.T) {
	log := zap.NewNop()

	tests := []struct {
		name     string
		cfg      config.MailConfig
		wantType interface{}
		wantErr  bool
	}{
		{name: "smtp", cfg: config.MailConfig{Provider: "smtp", Server: "localhost", Port: 25, Username: "me@example.com"}, wantType: &SMTPDispatcher{}},
		{name: "smtp without sender", cfg: config.MailConfig{Provider: "smtp", Server: "localhost", Port: 25}, wantErr: true},
		{name: "resend", cfg: config.MailConfig{Provider: "resend", ResendAPIKey: "re_x", From: "a@b.com"}, wantType: &ResendDispatcher{}},
		{name: "resend without key", cfg: config.MailConfig{Provider: "resend", From: "a@b.com"}, wantErr: true},
		{name: "sendgrid", cfg: config.MailConfig{Provider: "sendgrid", SendGridAPIKey: "SG.x", From: "a@b.com"}, wantType: &SendGridDispatcher{}},
		{name: "noop", cfg: config.MailConfig{Provider: "noop"}, wantType: &NoopDispatcher{}},
		{name: "unknown", cfg: config.MailConfig{Provider: "fax"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewMailDispatcher(tt.cfg, log)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, d)
		})
	}
}

func TestSMTPDispatcher_ConnectionRefused(t *testing.T) {
	d, err := NewSMTPDispatcher(config.MailConfig{Server: "127.0.0.1", Port: 1, TimeoutSec: 2}, "me@example.com")
	require.NoError(t, err)

	err = d.Send(context.Background(), "you@example.com", "subject", "body")
	require.Error(t, err)
	assert.Equal(t, DispatchConnection, ClassifyDispatchError(err))
}

func TestSendGridDispatcher_Send(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer SG.test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d, err := NewSendGridDispatcher("SG.test", "noreply@example.com", srv.URL)
	require.NoError(t, err)

	require.NoError(t, d.Send(context.Background(), "you@example.com", "Code", "Your code is 123456"))
	assert.Equal(t, "Code", got["subject"])
}

func TestSendGridDispatcher_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	d, err := NewSendGridDispatcher("SG.bad", "noreply@example.com", srv.URL)
	require.NoError(t, err)

	err = d.Send(context.Background(), "you@example.com", "Code", "body")
	require.Error(t, err)
	assert.Equal(t, DispatchAuth, ClassifyDispatchError(err))
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyDispatchError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want DispatchCategory
	}{
		{name: "nil", err: nil, want: ""},
		{name: "deadline", err: fmt.Errorf("dial: %w", context.DeadlineExceeded), want: DispatchTimeout},
		{name: "net timeout", err: &net.OpError{Op: "read", Err: timeoutError{}}, want: DispatchTimeout},
		{name: "refused", err: &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, want: DispatchConnection},
		{name: "unknown ca", err: fmt.Errorf("handshake: %w", x509.UnknownAuthorityError{}), want: DispatchTLS},
		{name: "smtp auth", err: fmt.Errorf("SMTP AUTH failed: %w", &textproto.Error{Code: 535, Msg: "bad credentials"}), want: DispatchAuth},
		{name: "smtp rejected", err: &textproto.Error{Code: 550, Msg: "mailbox unavailable"}, want: DispatchRejected},
		{name: "provider 403", err: &ProviderStatusError{Provider: "sendgrid", StatusCode: 403}, want: DispatchAuth},
		{name: "provider 500", err: &ProviderStatusError{Provider: "sendgrid", StatusCode: 500}, want: DispatchRejected},
		{name: "text closed", err: errors.New("connection unexpectedly closed"), want: DispatchConnection},
		{name: "text ssl", err: errors.New("ssl handshake failure"), want: DispatchTLS},
		{name: "text api key", err: errors.New("API key is invalid"), want: DispatchAuth},
		{name: "other", err: errors.New("boom"), want: DispatchUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyDispatchError(tt.err))
		})
	}
}

func TestResendRetryDelay(t *testing.T) {
	wait, ok := resendRetryDelay(&net.OpError{Op: "read", Err: timeoutError{}}, 1)
	assert.True(t, ok)
	assert.Equal(t, time.Second, wait)

	_, ok = resendRetryDelay(errors.New("validation_error"), 0)
	assert.False(t, ok)
}

func TestDispatchError_Is(t *testing.T) {
	err := fmt.Errorf("issue email: %w", &DispatchError{Category: DispatchTimeout, Err: context.DeadlineExceeded})
	assert.ErrorIs(t, err, ErrDispatchFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, DispatchTimeout, de.Category)
}
