package service

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/yourusername/homepage-api/internal/config"
)

// MailDispatcher отправляет одно текстовое письмо
type MailDispatcher interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewMailDispatcher выбирает транспорт по cfg.Provider
func NewMailDispatcher(cfg config.MailConfig, log *zap.Logger) (MailDispatcher, error) {
	from := cfg.From
	if from == "" {
		// отправителем по умолчанию служит учетная запись SMTP
		from = cfg.Username
	}

	switch cfg.Provider {
	case "smtp":
		return NewSMTPDispatcher(cfg, from)
	case "resend":
		return NewResendDispatcher(cfg.ResendAPIKey, from)
	case "sendgrid":
		return NewSendGridDispatcher(cfg.SendGridAPIKey, from, "")
	case "noop":
		return &NoopDispatcher{log: log.Named("mail")}, nil
	default:
		return nil, fmt.Errorf("unsupported mail provider: %q", cfg.Provider)
	}
}

// NoopDispatcher ничего не отправляет и только пишет в лог (локальная разработка)
type NoopDispatcher struct {
	log *zap.Logger
}

func (d *NoopDispatcher) Send(_ context.Context, to, subject, body string) error {
	d.log.Info("noop mail", zap.String("to", to), zap.String("subject", subject), zap.String("body", body))
	return nil
}

// SMTPDispatcher отправляет письма через SMTP-релей
type SMTPDispatcher struct {
	from string
	opts []gomail.Option
	host string
}

func NewSMTPDispatcher(cfg config.MailConfig, from string) (*SMTPDispatcher, error) {
	if cfg.Server == "" {
		return nil, fmt.Errorf("mail server is required")
	}
	if from == "" {
		return nil, fmt.Errorf("mail sender is required (MAIL_FROM or MAIL_USERNAME)")
	}

	var opts []gomail.Option
	if cfg.Port > 0 {
		opts = append(opts, gomail.WithPort(cfg.Port))
	}
	if cfg.TimeoutSec > 0 {
		opts = append(opts, gomail.WithTimeout(time.Duration(cfg.TimeoutSec)*time.Second))
	}
	switch {
	case cfg.UseSSL:
		opts = append(opts, gomail.WithSSL())
	case cfg.UseTLS:
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	default:
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	return &SMTPDispatcher{from: from, opts: opts, host: cfg.Server}, nil
}

func (d *SMTPDispatcher) Send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(d.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	client, err := gomail.NewClient(d.host, d.opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// ResendDispatcher отправляет письма через Resend REST API
type ResendDispatcher struct {
	from   string
	client *resend.Client
}

func NewResendDispatcher(apiKey, from string) (*ResendDispatcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendDispatcher{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

func (d *ResendDispatcher) Send(ctx context.Context, to, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    d.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := d.client.Emails.SendWithContext(ctx, params)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 5 {
				seconds = 5
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}

// ProviderStatusError - HTTP-ответ почтового API с неуспешным статусом
type ProviderStatusError struct {
	Provider   string
	StatusCode int
}

func (e *ProviderStatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
}

// SendGridDispatcher отправляет письма через SendGrid v3 API
type SendGridDispatcher struct {
	apiKey string
	host   string
	from   *sgmail.Email
}

// NewSendGridDispatcher создает транспорт; пустой host означает api.sendgrid.com
func NewSendGridDispatcher(apiKey, from, host string) (*SendGridDispatcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	if host == "" {
		host = "https://api.sendgrid.com"
	}
	return &SendGridDispatcher{apiKey: apiKey, host: host, from: sgmail.NewEmail("", from)}, nil
}

func (d *SendGridDispatcher) Send(ctx context.Context, to, subject, body string) error {
	message := sgmail.NewSingleEmail(d.from, subject, sgmail.NewEmail("", to), body, "")

	request := sendgrid.GetRequest(d.apiKey, "/v3/mail/send", d.host)
	request.Method = http.MethodPost
	request.Body = sgmail.GetRequestBody(message)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if response.StatusCode >= http.StatusBadRequest {
		return &ProviderStatusError{Provider: "sendgrid", StatusCode: response.StatusCode}
	}
	return nil
}

// ClassifyDispatchError сводит ошибку любого транспорта к грубой категории
func ClassifyDispatchError(err error) DispatchCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return DispatchTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return DispatchTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return DispatchConnection
	}

	var (
		recordErr   tls.RecordHeaderError
		unknownCA   x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		certErr     x509.CertificateInvalidError
	)
	if errors.As(err, &recordErr) || errors.As(err, &unknownCA) ||
		errors.As(err, &hostnameErr) || errors.As(err, &certErr) {
		return DispatchTLS
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		if protoErr.Code == 530 || protoErr.Code == 534 || protoErr.Code == 535 {
			return DispatchAuth
		}
		return DispatchRejected
	}

	var statusErr *ProviderStatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden {
			return DispatchAuth
		}
		return DispatchRejected
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return DispatchConnection
	}

	// ошибки без типизации (обертки SDK) разбираем по тексту
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection unexpectedly closed"),
		strings.Contains(msg, "no such host"):
		return DispatchConnection
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return DispatchTimeout
	case strings.Contains(msg, "auth"), strings.Contains(msg, "api key"):
		return DispatchAuth
	case strings.Contains(msg, "tls"), strings.Contains(msg, "ssl"), strings.Contains(msg, "certificate"):
		return DispatchTLS
	}
	return DispatchUnknown
}
