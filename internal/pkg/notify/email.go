package notify

import (
	"fmt"
	"html"
	"log/slog"
	"strings"

	"lostfound/internal/config"

	"gopkg.in/gomail.v2"
)

// EmailNotifier 实现邮件通知。
type EmailNotifier struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewEmailNotifier 创建一个新的邮件通知器。
func NewEmailNotifier(cfg *config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

// SendContactMessage 把联系表单内容发到管理处邮箱。
func (n *EmailNotifier) SendContactMessage(name, fromEmail, subject, message string) error {
	if n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" || n.cfg.FromEmail == "" {
		n.logger.Warn("email config missing, skip contact message")
		return nil
	}
	if strings.TrimSpace(n.cfg.ContactEmail) == "" {
		n.logger.Warn("contact email not configured, skip contact message")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", n.cfg.ContactEmail)
	if fromEmail != "" {
		m.SetHeader("Reply-To", fromEmail)
	}
	m.SetHeader("Subject", fmt.Sprintf("[Lost & Found] %s", subject))
	m.SetBody("text/html", n.buildContactBody(name, fromEmail, message))

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send contact email: %w", err)
	}

	n.logger.Info("contact message forwarded",
		slog.String("from", fromEmail),
		slog.String("to", n.cfg.ContactEmail))
	return nil
}

func (n *EmailNotifier) buildContactBody(name, fromEmail, message string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>失物招领联系表单</h2>
    <p><strong>姓名:</strong> %s</p>
    <p><strong>邮箱:</strong> %s</p>
    <hr/>
    <p>%s</p>
  </div>
</body>
</html>`,
		html.EscapeString(name),
		html.EscapeString(fromEmail),
		strings.ReplaceAll(html.EscapeString(message), "\n", "<br/>"))
}
