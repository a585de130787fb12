package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Sandbox локальный шлюз без сети: каждая инициализированная ссылка проверяется как успешная
type Sandbox struct {
	secret  string
	baseURL string

	mu   sync.Mutex
	refs map[string]InitializeRequest
}

var _ Provider = (*Sandbox)(nil)

func NewSandbox(secret, baseURL string) *Sandbox {
	if baseURL == "" {
		baseURL = "http://localhost"
	}
	return &Sandbox{
		secret:  secret,
		baseURL: strings.TrimRight(baseURL, "/"),
		refs:    make(map[string]InitializeRequest),
	}
}

func (s *Sandbox) Name() string { return "sandbox" }

func (s *Sandbox) Initialize(_ context.Context, req InitializeRequest) (*Authorization, error) {
	if req.Reference == "" || req.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: reference and positive amount required", ErrInitializeFailed)
	}

	s.mu.Lock()
	s.refs[req.Reference] = req
	s.mu.Unlock()

	return &Authorization{
		AuthorizationURL: s.baseURL + "/sandbox/checkout/" + url.PathEscape(req.Reference),
		AccessCode:       "sandbox_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (s *Sandbox) Verify(_ context.Context, reference string) (*Verification, error) {
	s.mu.Lock()
	req, ok := s.refs[reference]
	s.mu.Unlock()

	if !ok {
		return &Verification{Status: "failed", Reference: reference}, nil
	}
	return &Verification{
		Status:      StatusSuccess,
		Reference:   reference,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Metadata:    req.Metadata,
	}, nil
}

func (s *Sandbox) VerifyWebhookSignature(body []byte, signature string) error {
	return verifySignature(s.secret, body, signature)
}
