package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	mail "github.com/go-mail/mail"

	"github.com/dropDatabas3/secproto/internal/observability/logger"
	"github.com/dropDatabas3/secproto/internal/report"
	"github.com/dropDatabas3/secproto/internal/util"
)

// SMTPConfig del aviso por mail.
type SMTPConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	From               string
	To                 []string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
}

// SMTP implementa Notifier con go-mail.
type SMTP struct {
	cfg SMTPConfig
	// sender reemplaza el dialer real en tests.
	sender mail.Sender
}

func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" || cfg.From == "" || len(cfg.To) == 0 {
		return nil, errors.New("notify: smtp host, from and to are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	return &SMTP{cfg: cfg}, nil
}

func (s *SMTP) RollbackFailed(ctx context.Context, fr report.FleetReport, clusters []report.ClusterReport) error {
	if len(clusters) == 0 {
		return nil
	}
	log := logger.From(ctx).With(
		logger.Component("notify"),
		logger.String("host", s.cfg.Host),
		logger.Int("port", s.cfg.Port),
		logger.Strings("to", util.MaskEmails(s.cfg.To)),
	)

	subject, body := compose(fr, clusters)
	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", s.cfg.To...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	var err error
	if s.sender != nil {
		err = mail.Send(s.sender, m)
	} else {
		err = s.dialer().DialAndSend(m)
	}
	if err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Info("manual action alert sent", logger.Count(len(clusters)))
	return nil
}

func (s *SMTP) dialer() *mail.Dialer {
	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
	}
	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si el server lo ofrece
	}
	return d
}
