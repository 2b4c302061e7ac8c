package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ravi1997/spars/internal/config"
)

// Client talks to the SMS gateway over its form-encoded HTTP API. When no
// gateway is configured the message is logged instead of sent, which keeps
// local development working without credentials.
type Client struct {
	cfg    config.SMSConfig
	http   *http.Client
	logger *zap.Logger
}

func NewClient(cfg config.SMSConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Send delivers one message to one mobile number.
func (c *Client) Send(ctx context.Context, mobile, message string) error {
	if c.cfg.Server == "" {
		c.logger.Info("sms gateway not configured, message not sent",
			zap.String("mobile", mobile),
			zap.String("message", message))
		return nil
	}

	form := url.Values{}
	form.Set("username", c.cfg.Username)
	form.Set("password", c.cfg.Password)
	form.Set("senderid", c.cfg.SenderID)
	form.Set("mobileNos", mobile)
	form.Set("message", message)
	form.Set("templateid1", c.cfg.TemplateID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Server, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}
