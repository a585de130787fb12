package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"storefront/internal/config"
)

const maxSMSLength = 1600

var (
	ErrInvalidPhone = errors.New("invalid phone number")
	e164            = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
)

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Twilio отправка SMS через REST API
type Twilio struct {
	apiURL     string
	accountSID string
	authToken  string
	from       string
	client     *http.Client
}

func NewTwilio(cfg config.SMS) *Twilio {
	return &Twilio{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		client:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: cfg.Timeout},
	}
}

func (t *Twilio) SendSMS(ctx context.Context, to, body string) error {
	to = strings.ReplaceAll(strings.TrimSpace(to), " ", "")
	if !e164.MatchString(to) {
		return ErrInvalidPhone
	}
	body = truncateRunes(body, maxSMSLength)
	if body == "" {
		return errors.New("sms body is empty")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.apiURL, url.PathEscape(t.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("twilio responded %d", resp.StatusCode)
	}
	return nil
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
