package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/russross/blackfriday/v2"

	"SelfLetter/internal/config"
	"SelfLetter/internal/ports"
)

const (
	implicitTLSPort = 465
	subjectPrefix   = "Daily AI Digest - "
	dayLayout       = "2006-01-02"
)

const htmlTemplate = `<html>
<head>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; }
h1 { color: #1a1a1a; border-bottom: 2px solid #eee; padding-bottom: 10px; }
h2 { color: #2c3e50; margin-top: 30px; border-bottom: 1px solid #eee; }
h3 { color: #34495e; margin-top: 20px; }
a { color: #3498db; text-decoration: none; }
code { background-color: #f8f8f8; padding: 2px 4px; border-radius: 4px; font-family: monospace; }
hr { border: 0; border-top: 1px solid #eee; margin: 30px 0; }
blockquote { border-left: 4px solid #eee; padding-left: 15px; color: #666; font-style: italic; }
</style>
</head>
<body>
%s
</body>
</html>
`

// Mailer emails the daily newsletter as HTML with a Markdown plain-text part.
type Mailer struct {
	cfg    config.EmailConfig
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.NewsletterMailer = (*Mailer)(nil)

// NewMailer wires the SMTP settings.
func NewMailer(cfg config.EmailConfig, log *slog.Logger) *Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Mailer{cfg: cfg, logger: log, now: time.Now}
}

// SendNewsletter reads the newsletter at path and mails it to every recipient.
func (m *Mailer) SendNewsletter(ctx context.Context, day time.Time, path string) error {
	if !m.cfg.Enabled() {
		return errors.New("email delivery is not configured")
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read newsletter: %w", err)
	}

	msg, err := m.compose(subjectPrefix+day.Format(dayLayout), string(body))
	if err != nil {
		return err
	}
	if err := m.deliver(ctx, msg); err != nil {
		return fmt.Errorf("smtp %s:%d: %w", m.cfg.Host, m.cfg.Port, err)
	}

	if m.logger != nil {
		m.logger.Info("newsletter emailed", "to", strings.Join(m.cfg.To, ","), "path", path)
	}
	return nil
}

// RenderHTML converts the newsletter Markdown into a styled HTML document.
func RenderHTML(markdown string) string {
	rendered := blackfriday.Run([]byte(markdown))
	return fmt.Sprintf(htmlTemplate, bytes.TrimSpace(rendered))
}

func (m *Mailer) compose(subject, markdown string) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := []string{
		"From: " + m.cfg.Sender(),
		"To: " + strings.Join(m.cfg.To, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"Date: " + m.now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=" + strconv.Quote(mw.Boundary()),
	}
	var out bytes.Buffer
	out.WriteString(strings.Join(header, "\r\n"))
	out.WriteString("\r\n\r\n")

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", markdown},
		{"text/html; charset=utf-8", RenderHTML(markdown)},
	}
	for _, p := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, fmt.Errorf("create part: %w", err)
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(p.body)); err != nil {
			return nil, fmt.Errorf("encode part: %w", err)
		}
		if err := qp.Close(); err != nil {
			return nil, fmt.Errorf("encode part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	out.Write(buf.Bytes())
	return out.Bytes(), nil
}

func (m *Mailer) deliver(ctx context.Context, msg []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	dialer := &net.Dialer{Timeout: m.cfg.Timeout}
	tlsConfig := &tls.Config{ServerName: m.cfg.Host}

	var (
		conn net.Conn
		err  error
	)
	if m.cfg.Port == implicitTLSPort {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(m.cfg.Timeout))
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("greeting: %w", err)
	}
	defer client.Close()

	if m.cfg.Port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	if ok, _ := client.Extension("AUTH"); ok {
		if err := client.Auth(smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(m.cfg.Sender()); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range m.cfg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish body: %w", err)
	}
	return client.Quit()
}
