package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"storefront/internal/config"
)

type PushResult struct {
	Success int
	Failure int
	// Invalid токены, которые провайдер больше не принимает
	Invalid []string
}

type PushSender interface {
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (*PushResult, error)
}

// FCM multicast через HTTP API
type FCM struct {
	apiURL    string
	serverKey string
	client    *http.Client
}

func NewFCM(cfg config.Push) *FCM {
	return &FCM{
		apiURL:    cfg.APIURL,
		serverKey: cfg.ServerKey,
		client:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: cfg.Timeout},
	}
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

func (f *FCM) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (*PushResult, error) {
	payload, err := json.Marshal(map[string]any{
		"registration_ids": tokens,
		"notification":     map[string]string{"title": title, "body": body},
		"data":             data,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "key="+f.serverKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fcm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fcm responded %d", resp.StatusCode)
	}

	var out fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode fcm response: %w", err)
	}

	res := &PushResult{Success: out.Success, Failure: out.Failure}
	for i, r := range out.Results {
		if i >= len(tokens) {
			break
		}
		if r.Error == "NotRegistered" || r.Error == "InvalidRegistration" {
			res.Invalid = append(res.Invalid, tokens[i])
		}
	}
	return res, nil
}
