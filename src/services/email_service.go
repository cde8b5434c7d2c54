// backend/src/services/email_service.go
package services

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/username/tradejournal/backend/src/config"
	"github.com/username/tradejournal/backend/src/logger"
)

type EmailService interface {
	SendVerificationEmail(toEmail, username, token string) error
	SendPasswordResetEmail(toEmail, username, token string) error
}

// emailContent is a rendered message, independent of the delivery provider.
type emailContent struct {
	Subject string
	Text    string
	Tag     string
}

type emailLinks struct {
	VerificationBaseURL  string
	PasswordResetBaseURL string
	ResetExpiry          time.Duration
}

func (l emailLinks) verification(username, token string) emailContent {
	link := fmt.Sprintf("%s?token=%s", l.VerificationBaseURL, token)
	return emailContent{
		Subject: "Verify your email address for Trade Journal",
		Text: fmt.Sprintf(`Hi %s,

Welcome to Trade Journal! Please verify your email address by opening the link below:
%s

If you did not create an account using this email address, please ignore this email.`, username, link),
		Tag: "verification",
	}
}

func (l emailLinks) passwordReset(username, token string) emailContent {
	link := fmt.Sprintf("%s?token=%s", l.PasswordResetBaseURL, token)
	return emailContent{
		Subject: "Password reset request for Trade Journal",
		Text: fmt.Sprintf(`Hi %s,

You requested a password reset for your Trade Journal account. Open the following link to choose a new password:
%s

If you did not request a password reset, please ignore this email. This link will expire in %s.`, username, link, l.ResetExpiry),
		Tag: "password-reset",
	}
}

// NewEmailService picks the provider named in the configuration. Incomplete provider
// settings fall back to the mock, which only logs.
func NewEmailService() EmailService {
	if config.Cfg == nil {
		logger.L.Error("Configuration is nil. Email service will default to mock.")
		return &MockEmailService{}
	}
	cfg := config.Cfg
	links := emailLinks{
		VerificationBaseURL:  cfg.VerificationEmailBaseURL,
		PasswordResetBaseURL: cfg.PasswordResetBaseURL,
		ResetExpiry:          cfg.PasswordResetTokenExpiry,
	}

	provider := strings.ToLower(cfg.EmailServiceProvider)
	logger.L.Info("Initializing email service", "provider", provider)

	switch provider {
	case "mailgun":
		if cfg.MailgunDomain == "" || cfg.MailgunPrivateAPIKey == "" || cfg.SenderEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete. Falling back to MockEmailService.")
			return &MockEmailService{links: links}
		}
		return &MailgunEmailService{
			mg:    mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunPrivateAPIKey),
			from:  fmt.Sprintf("%s <%s>", cfg.SenderName, cfg.SenderEmail),
			links: links,
		}
	case "smtp":
		if cfg.SMTPServer == "" || cfg.SMTPUser == "" || cfg.SMTPPassword == "" || cfg.SenderEmail == "" {
			logger.L.Warn("SMTP configuration incomplete. Falling back to MockEmailService.")
			return &MockEmailService{links: links}
		}
		return &SMTPEmailService{
			addr:     fmt.Sprintf("%s:%d", cfg.SMTPServer, cfg.SMTPPort),
			auth:     smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPServer),
			from:     cfg.SenderEmail,
			links:    links,
			sendMail: smtp.SendMail,
		}
	default:
		return &MockEmailService{links: links}
	}
}

type SMTPEmailService struct {
	addr     string
	auth     smtp.Auth
	from     string
	links    emailLinks
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (s *SMTPEmailService) send(toEmail string, content emailContent) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", toEmail)
	fmt.Fprintf(&msg, "Subject: %s\r\n", content.Subject)
	msg.WriteString("MIME-version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(content.Text)

	if err := s.sendMail(s.addr, s.auth, s.from, []string{toEmail}, []byte(msg.String())); err != nil {
		logger.L.Error("Failed to send email via SMTP", "error", err, "to", toEmail, "tag", content.Tag)
		return fmt.Errorf("failed to send %s email via SMTP: %w", content.Tag, err)
	}
	logger.L.Info("Email sent via SMTP", "to", toEmail, "tag", content.Tag)
	return nil
}

func (s *SMTPEmailService) SendVerificationEmail(toEmail, username, token string) error {
	return s.send(toEmail, s.links.verification(username, token))
}

func (s *SMTPEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	return s.send(toEmail, s.links.passwordReset(username, token))
}

type MailgunEmailService struct {
	mg    mailgun.Mailgun
	from  string
	links emailLinks
}

func (s *MailgunEmailService) send(toEmail string, content emailContent) error {
	message := s.mg.NewMessage(s.from, content.Subject, content.Text, toEmail)
	if err := message.AddTag(content.Tag); err != nil {
		logger.L.Warn("Failed to tag Mailgun message", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send email via Mailgun", "error", err, "to", toEmail, "tag", content.Tag, "mailgunResp", resp)
		return fmt.Errorf("mailgun send failed: %w", err)
	}
	logger.L.Info("Email sent via Mailgun", "to", toEmail, "tag", content.Tag, "id", id)
	return nil
}

func (s *MailgunEmailService) SendVerificationEmail(toEmail, username, token string) error {
	return s.send(toEmail, s.links.verification(username, token))
}

func (s *MailgunEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	return s.send(toEmail, s.links.passwordReset(username, token))
}

// MockEmailService logs the messages it would send. Sent keeps them for inspection.
type MockEmailService struct {
	links emailLinks
	Sent  []string
}

func (m *MockEmailService) SendVerificationEmail(toEmail, username, token string) error {
	content := m.links.verification(username, token)
	m.Sent = append(m.Sent, toEmail+": "+content.Subject)
	logger.L.Info("MockEmailService: would send verification email", "to", toEmail, "username", username)
	return nil
}

func (m *MockEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	content := m.links.passwordReset(username, token)
	m.Sent = append(m.Sent, toEmail+": "+content.Subject)
	logger.L.Info("MockEmailService: would send password reset email", "to", toEmail, "username", username)
	return nil
}
