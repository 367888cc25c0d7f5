// Package mailer emails the zipped run report over SMTP.
package mailer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   *slog.Logger
}

func New(host string, port int, username, password, from string, logger *slog.Logger) *Mailer {
	if port <= 0 {
		port = 25
	}
	if from == "" {
		from = username
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{host: host, port: port, username: username, password: password, from: from, logger: logger}
}

// SendReport mails the HTML body with the zipped report attached.
func (m *Mailer) SendReport(recipients []string, subject, htmlBody, zipPath string) error {
	attachment, err := os.ReadFile(zipPath)
	if err != nil {
		return fmt.Errorf("read attachment: %w", err)
	}

	msg, err := BuildMessage(m.from, recipients, subject, htmlBody, filepath.Base(zipPath), attachment)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := smtp.SendMail(addr, auth, m.from, recipients, msg); err != nil {
		return fmt.Errorf("send mail via %s: %w", addr, err)
	}

	m.logger.Info("report mailed", "recipients", len(recipients), "attachment", filepath.Base(zipPath))
	return nil
}

// BuildMessage assembles a multipart/mixed MIME message: an HTML body part
// plus one zip attachment.
func BuildMessage(from string, to []string, subject, htmlBody, attachmentName string, attachment []byte) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n", mw.Boundary())
	fmt.Fprintf(&buf, "\r\n")

	body, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/html; charset="utf-8"`},
	})
	if err != nil {
		return nil, fmt.Errorf("create body part: %w", err)
	}
	if _, err := body.Write([]byte(htmlBody)); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}

	att, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"application/zip"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", attachmentName)},
	})
	if err != nil {
		return nil, fmt.Errorf("create attachment part: %w", err)
	}
	if _, err := att.Write([]byte(wrapBase64(attachment))); err != nil {
		return nil, fmt.Errorf("write attachment: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close message: %w", err)
	}
	return buf.Bytes(), nil
}

// wrapBase64 encodes data with RFC 2045 76-column line breaks.
func wrapBase64(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var sb strings.Builder
	for len(encoded) > 76 {
		sb.WriteString(encoded[:76])
		sb.WriteString("\r\n")
		encoded = encoded[76:]
	}
	sb.WriteString(encoded)
	return sb.String()
}
