package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/logging"
)

type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type EmailSender interface {
	SendEmail(ctx context.Context, e Email) error
}

const sendPulseTokenKey = "sendpulse:access_token"

// SendPulse HTTP-провайдер писем; OAuth-токен живёт в кэше до истечения минус 5 секунд
type SendPulse struct {
	apiURL       string
	clientID     string
	clientSecret string
	fromEmail    string
	fromName     string
	client       *http.Client
	tokens       *cache.TTL[string]
	tracer       trace.Tracer
}

func NewSendPulse(cfg config.Email, tokens *cache.TTL[string]) *SendPulse {
	return &SendPulse{
		apiURL:       strings.TrimRight(cfg.APIURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		fromEmail:    cfg.From,
		fromName:     cfg.FromName,
		client:       &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: cfg.Timeout},
		tokens:       tokens,
		tracer:       otel.Tracer("notify/sendpulse"),
	}
}

func (s *SendPulse) token(ctx context.Context) (string, error) {
	if tok, ok := s.tokens.Get(sendPulseTokenKey); ok {
		return tok, nil
	}

	body, _ := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     s.clientID,
		"client_secret": s.clientSecret,
	})
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := s.post(ctx, "/oauth/access_token", "", body, &out); err != nil {
		return "", fmt.Errorf("sendpulse token: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.New("sendpulse token: empty access token")
	}

	ttl := time.Duration(out.ExpiresIn)*time.Second - 5*time.Second
	if ttl > 0 {
		s.tokens.SetWithTTL(sendPulseTokenKey, out.AccessToken, ttl)
	}
	return out.AccessToken, nil
}

func (s *SendPulse) SendEmail(ctx context.Context, e Email) error {
	ctx, span := s.tracer.Start(ctx, "SendPulse.SendEmail")
	defer span.End()
	span.SetAttributes(attribute.String("to.email", e.To))

	tok, err := s.token(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}

	html, text := e.HTML, e.Text
	if html == "" {
		html = text
	}
	if text == "" {
		text = html
	}
	payload := map[string]any{
		"email": map[string]any{
			"html":    html,
			"text":    text,
			"subject": e.Subject,
			"from":    map[string]string{"name": s.fromName, "email": s.fromEmail},
			"to":      []map[string]string{{"email": e.To}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := s.post(ctx, "/smtp/emails", tok, body, nil); err != nil {
		span.RecordError(err)
		return fmt.Errorf("sendpulse send: %w", err)
	}
	return nil
}

func (s *SendPulse) post(ctx context.Context, path, bearer string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// SMTPSender запасной канал через net/smtp
type SMTPSender struct {
	host     string
	port     string
	user     string
	password string
	from     string
	fromName string
	logger   *zap.Logger
	tracer   trace.Tracer
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg config.Email, logger *zap.Logger) *SMTPSender {
	from := cfg.From
	if from == "" {
		from = cfg.SMTPUser
	}
	return &SMTPSender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     from,
		fromName: cfg.FromName,
		logger:   logger,
		tracer:   otel.Tracer("notify/smtp"),
		send:     smtp.SendMail,
	}
}

func (s *SMTPSender) SendEmail(ctx context.Context, e Email) error {
	ctx, span := s.tracer.Start(ctx, "smtp.SendEmail")
	defer span.End()
	span.SetAttributes(attribute.String("to.email", e.To))

	content, contentType := e.HTML, "text/html"
	if content == "" {
		content, contentType = e.Text, "text/plain"
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", s.fromName), s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", e.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", e.Subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: %s; charset=\"UTF-8\"\r\n\r\n", contentType)
	msg.WriteString(content)

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}

	if err := s.send(addr, auth, s.from, []string{e.To}, []byte(msg.String())); err != nil {
		span.RecordError(err)
		logging.Error(ctx, s.logger, "Error sending email", zap.String("to", e.To), zap.Error(err))
		return fmt.Errorf("failed to send mail: %w", err)
	}

	logging.Info(ctx, s.logger, "Sent email via SMTP", zap.String("to", e.To))
	return nil
}

// Mailer пробует провайдеров по порядку и возвращает ошибку, только если не сработал ни один
type Mailer struct {
	senders []EmailSender
	logger  *zap.Logger
}

func NewMailer(logger *zap.Logger, senders ...EmailSender) *Mailer {
	return &Mailer{senders: senders, logger: logger}
}

// NewMailerFromConfig подключает SendPulse и SMTP, если для них заданы учётные данные
func NewMailerFromConfig(cfg config.Email, tokens *cache.TTL[string], logger *zap.Logger) *Mailer {
	var senders []EmailSender
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		senders = append(senders, NewSendPulse(cfg, tokens))
	}
	if cfg.SMTPHost != "" {
		senders = append(senders, NewSMTPSender(cfg, logger))
	}
	return NewMailer(logger, senders...)
}

func (m *Mailer) SendEmail(ctx context.Context, e Email) error {
	if e.To == "" || (e.Text == "" && e.HTML == "") {
		return errors.New("email recipient and content required")
	}
	if len(m.senders) == 0 {
		return ErrNoProvider
	}

	var errs []error
	for _, s := range m.senders {
		err := s.SendEmail(ctx, e)
		if err == nil {
			return nil
		}
		logging.Warn(ctx, m.logger, "Email provider failed, trying next", zap.String("to", e.To), zap.Error(err))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
