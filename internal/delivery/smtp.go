package delivery

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strings"

	"github.com/wneessen/go-mail"

	"quickscribe/internal/config"
	"quickscribe/internal/document"
	"quickscribe/internal/logger"
)

const (
	Subject = "Your Transcript"
	body    = "Hello,\n\nYour transcript is attached.\n"
)

// Sender delivers a finished document to a recipient.
type Sender interface {
	Send(ctx context.Context, docPath, to string) error
}

// SMTPSender mails the document through an authenticated relay.
type SMTPSender struct {
	cfg       config.SMTP
	policy    mail.TLSPolicy
	tlsConfig *tls.Config // nil uses go-mail's default for the host
	log       *logger.Logger
}

func NewSMTPSender(cfg config.SMTP, log *logger.Logger) (*SMTPSender, error) {
	policy, err := parseTLSPolicy(cfg.TLSPolicy)
	if err != nil {
		return nil, err
	}
	return &SMTPSender{cfg: cfg, policy: policy, log: log.WithComponent("delivery")}, nil
}

func (s *SMTPSender) Send(ctx context.Context, docPath, to string) error {
	msg, err := buildMessage(s.cfg.From, to, docPath)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(s.policy),
	}
	if s.tlsConfig != nil {
		opts = append(opts, mail.WithTLSConfig(s.tlsConfig))
	}
	// the mechanism is picked from what the relay advertises; on an
	// unencrypted session only challenge-response mechanisms qualify
	if s.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
			mail.WithUsername(s.cfg.User),
			mail.WithPassword(s.cfg.Pass),
		)
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	log := s.log.WithField("relay", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)).WithField("to", to)
	log.Info("sending transcript")
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return err
	}
	log.Info("transcript sent")
	return nil
}

func buildMessage(from, to, docPath string) (*mail.Msg, error) {
	if _, err := os.Stat(docPath); err != nil {
		return nil, fmt.Errorf("attachment: %w", err)
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	m.Subject(Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, body)
	m.AttachFile(docPath,
		mail.WithFileName(document.FileName),
		mail.WithFileContentType(mail.ContentType(document.ContentType)),
	)
	return m, nil
}

func parseTLSPolicy(raw string) (mail.TLSPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "mandatory":
		return mail.TLSMandatory, nil
	case "opportunistic":
		return mail.TLSOpportunistic, nil
	case "none":
		return mail.NoTLS, nil
	default:
		return 0, fmt.Errorf("unknown SMTP TLS policy: %s", raw)
	}
}
