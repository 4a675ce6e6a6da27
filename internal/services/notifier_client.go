package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotifierClient talks to the outbound notification service that emails legal
// notices and delivers one-time passwords.
type NotifierClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewNotifierClient(baseURL string, log *zap.Logger) *NotifierClient {
	return &NotifierClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type DispatchReceipt struct {
	MessageID string `json:"message_id"`
}

func (c *NotifierClient) Dispatch(ctx context.Context, caseID uuid.UUID, institution string) (*DispatchReceipt, error) {
	var receipt DispatchReceipt
	err := c.post(ctx, "/internal/legal/dispatch", map[string]any{
		"case_id":     caseID.String(),
		"institution": institution,
	}, &receipt)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *NotifierClient) SendOTP(ctx context.Context, phone, code string) error {
	return c.post(ctx, "/internal/otp/send", map[string]any{
		"phone": phone,
		"code":  code,
	}, nil)
}

func (c *NotifierClient) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notifier unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("notifier request failed", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("notifier returned %d: %s", resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
