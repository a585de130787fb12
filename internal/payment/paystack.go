package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/logging"
)

const maxAttempts = 3

// Paystack REST-клиент шлюза
type Paystack struct {
	baseURL   string
	secretKey string
	timeout   time.Duration
	client    *http.Client
	initCB    *gobreaker.CircuitBreaker
	verifyCB  *gobreaker.CircuitBreaker
	logger    *zap.Logger
	tracer    trace.Tracer
	retryWait time.Duration
}

var _ Provider = (*Paystack)(nil)

func NewPaystack(cfg config.Payment, logger *zap.Logger) *Paystack {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Paystack{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		timeout:   timeout,
		client:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		initCB:    newBreaker("Paystack.Initialize", logger),
		verifyCB:  newBreaker("Paystack.Verify", logger),
		logger:    logger,
		tracer:    otel.Tracer("paystack"),
		retryWait: 200 * time.Millisecond,
	}
}

func (p *Paystack) Name() string { return "paystack" }

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializePayload struct {
	Email       string       `json:"email"`
	Amount      int64        `json:"amount"`
	Currency    string       `json:"currency"`
	Reference   string       `json:"reference"`
	Metadata    Metadata     `json:"metadata"`
	CallbackURL string       `json:"callback_url"`
	Channels    []string     `json:"channels,omitempty"`
	MobileMoney *MobileMoney `json:"mobile_money,omitempty"`
}

func (p *Paystack) Initialize(ctx context.Context, req InitializeRequest) (*Authorization, error) {
	ctx, span := p.tracer.Start(ctx, "Paystack.Initialize")
	defer span.End()
	span.SetAttributes(
		attribute.String("reference", req.Reference),
		attribute.Int64("amount_minor", req.AmountMinor),
	)

	body, err := json.Marshal(initializePayload{
		Email:       req.Email,
		Amount:      req.AmountMinor,
		Currency:    req.Currency,
		Reference:   req.Reference,
		Metadata:    req.Metadata,
		CallbackURL: req.CallbackURL,
		Channels:    req.Channels,
		MobileMoney: req.MobileMoney,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitializeFailed, err)
	}

	env, err := p.call(ctx, p.initCB, http.MethodPost, "/transaction/initialize", body, req.Reference)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "initialize failed")
		return nil, fmt.Errorf("%w: %w", ErrInitializeFailed, err)
	}

	var auth Authorization
	if err := json.Unmarshal(env.Data, &auth); err != nil {
		return nil, fmt.Errorf("%w: decode data: %v", ErrInitializeFailed, err)
	}
	if auth.Reference == "" {
		auth.Reference = req.Reference
	}

	logging.Info(ctx, p.logger, "Paystack transaction initialized", zap.String("reference", auth.Reference))
	return &auth, nil
}

type verifyData struct {
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (p *Paystack) Verify(ctx context.Context, reference string) (*Verification, error) {
	ctx, span := p.tracer.Start(ctx, "Paystack.Verify")
	defer span.End()
	span.SetAttributes(attribute.String("reference", reference))

	env, err := p.call(ctx, p.verifyCB, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verify failed")
		return nil, fmt.Errorf("%w: %w", ErrVerifyFailed, err)
	}

	var data verifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: decode data: %v", ErrVerifyFailed, err)
	}

	v := &Verification{
		Status:      data.Status,
		Reference:   data.Reference,
		AmountMinor: data.Amount,
		Currency:    data.Currency,
	}
	// шлюз отдаёт metadata либо объектом, либо пустой строкой
	if len(data.Metadata) > 0 && data.Metadata[0] == '{' {
		if err := json.Unmarshal(data.Metadata, &v.Metadata); err != nil {
			logging.Warn(ctx, p.logger, "Unreadable verification metadata", zap.String("reference", reference), zap.Error(err))
		}
	}
	if v.Reference == "" {
		v.Reference = reference
	}
	span.SetAttributes(attribute.String("status", v.Status))
	return v, nil
}

func (p *Paystack) VerifyWebhookSignature(body []byte, signature string) error {
	return verifySignature(p.secretKey, body, signature)
}

type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway responded %d: %s", e.code, e.message)
}

// call выполняет запрос через breaker операции; сетевые ошибки и 5xx повторяются, остальное сразу наверх
func (p *Paystack) call(ctx context.Context, cb *gobreaker.CircuitBreaker, method, path string, body []byte, idempotencyKey string) (*paystackEnvelope, error) {
	return executeWithBreaker(cb, func() (*paystackEnvelope, error) {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = p.retryWait
		policy := backoff.WithContext(backoff.WithMaxRetries(b, maxAttempts-1), ctx)

		var env *paystackEnvelope
		op := func() error {
			res, err := p.do(ctx, method, path, body, idempotencyKey)
			if err != nil {
				var se *statusError
				if errors.As(err, &se) && se.code < http.StatusInternalServerError {
					return backoff.Permanent(err)
				}
				return err
			}
			env = res
			return nil
		}
		notify := func(err error, wait time.Duration) {
			logging.Warn(ctx, p.logger, "Retrying gateway call",
				zap.String("path", path),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}
		if err := backoff.RetryNotify(op, policy, notify); err != nil {
			return nil, err
		}
		return env, nil
	})
}

func (p *Paystack) do(ctx context.Context, method, path string, body []byte, idempotencyKey string) (*paystackEnvelope, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var env paystackEnvelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &statusError{code: resp.StatusCode, message: msg}
	}
	if decodeErr != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", decodeErr))
	}
	if !env.Status {
		return nil, backoff.Permanent(&statusError{code: resp.StatusCode, message: "rejected: " + env.Message})
	}
	return &env, nil
}
