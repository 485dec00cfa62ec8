package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"Gin_postgres_redis_campus_rent/config"

	"github.com/jordan-wright/email"
	"github.com/rs/zerolog/log"
)

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer 通过 SMTP 发送纯文本邮件
type SMTPMailer struct {
	host     string
	user     string
	password string
	from     string
	addr     string
}

// New 未配置 SMTP_HOST 时退回到只写日志的实现（开发环境）
func New(cfg *config.Config) Sender {
	if cfg.SMTPHost == "" {
		return LogMailer{}
	}
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUsername
	}
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     from,
		addr:     fmt.Sprintf("%s:%s", cfg.SMTPHost, cfg.SMTPPort),
	}
}

func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	e := email.NewEmail()
	e.From = m.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	if err := e.Send(m.addr, auth); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}

type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, body string) error {
	log.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("mail (dev, not sent)")
	return nil
}
