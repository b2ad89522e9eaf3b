package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hms-backend/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// SMSSender delivers a text message to a phone number
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// NewSMSSender returns a Twilio sender when credentials are configured and a
// logging sender otherwise
func NewSMSSender(cfg config.SMSConfig, log *zap.Logger) SMSSender {
	if !cfg.Enabled() {
		log.Warn("Twilio credentials are not fully configured, SMS sending is disabled")
		return NewLogSender(log)
	}
	return NewTwilioSender(cfg, log)
}

// LogSender logs messages instead of sending them
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, to, body string) error {
	s.log.Info("SMS not sent (Twilio not configured)", zap.String("to", to), zap.String("body", body))
	return nil
}

type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// TwilioSender sends messages through the Twilio Messages API
type TwilioSender struct {
	httpClient  *resty.Client
	accountSID  string
	from        string
	countryCode string
	log         *zap.Logger
}

func NewTwilioSender(cfg config.SMSConfig, log *zap.Logger) *TwilioSender {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(10*time.Second).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetHeader("Accept", "application/json")

	return &TwilioSender{
		httpClient:  client,
		accountSID:  cfg.AccountSID,
		from:        cfg.FromPhone,
		countryCode: cfg.DefaultCountryCode,
		log:         log,
	}
}

// NormalizeNumber prefixes the default country code to numbers without one
func (s *TwilioSender) NormalizeNumber(to string) string {
	to = strings.TrimSpace(to)
	if strings.HasPrefix(to, "+") {
		return to
	}
	return s.countryCode + to
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	to = s.NormalizeNumber(to)

	var result twilioMessage
	var apiErr twilioError
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   to,
			"From": s.from,
			"Body": body,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", s.accountSID))
	if err != nil {
		return fmt.Errorf("failed to call Twilio: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("twilio error %d: %s (status: %d)", apiErr.Code, apiErr.Message, resp.StatusCode())
	}

	s.log.Info("SMS sent", zap.String("to", to), zap.String("sid", result.SID))
	return nil
}
