package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/config"
)

// SMTPTransport delivers messages over a mail relay (Transport A).
type SMTPTransport struct {
	cfg       config.SMTP
	encrypter *Encrypter
	now       func() time.Time
}

// NewSMTPTransport returns an SMTP transport. enc may be nil.
func NewSMTPTransport(cfg config.SMTP, enc *Encrypter) *SMTPTransport {
	return &SMTPTransport{cfg: cfg, encrypter: enc, now: time.Now}
}

func (t *SMTPTransport) Name() string {
	return string(ProviderSMTP)
}

// Address returns host:port of the relay.
func (t *SMTPTransport) Address() string {
	return net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
}

// Send delivers msg and returns the generated Message-ID as the result id.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) (Result, error) {
	if t.cfg.Host == "" {
		return Result{}, &Error{Message: "SMTP_HOST no está configurado", Code: CodeConfig}
	}

	from, err := envelopeAddress(msg.From)
	if err != nil {
		return Result{}, &Error{Message: "Remitente inválido", Detail: err.Error(), Code: CodeMessage, Err: err}
	}
	rcpts := make([]string, 0, len(msg.To))
	for _, to := range msg.To {
		addr, err := envelopeAddress(to)
		if err != nil {
			return Result{}, &Error{Message: "Destinatario inválido", Detail: err.Error(), Code: CodeMessage, Err: err}
		}
		rcpts = append(rcpts, addr)
	}
	if len(rcpts) == 0 {
		return Result{}, &Error{Message: "No hay destinatarios configurados (MAIL_TO)", Code: CodeConfig}
	}

	id := newMessageID(from)
	var raw []byte
	if t.encrypter != nil {
		raw, err = t.encrypter.buildEncrypted(msg, id, t.now())
	} else {
		raw, err = buildMIME(msg, id, t.now())
	}
	if err != nil {
		return Result{}, &Error{Message: "No se pudo construir el correo", Detail: err.Error(), Code: CodeMessage, Err: err}
	}

	sess, err := t.connect(ctx)
	if err != nil {
		return Result{}, t.wrapErr(ctx, err)
	}
	defer sess.close()

	if err := sess.deliver(from, rcpts, raw); err != nil {
		return Result{}, t.wrapErr(ctx, err)
	}
	return Result{ID: id, Transport: t.Name()}, nil
}

// Verify opens a session (greeting, EHLO, STARTTLS, AUTH) and closes it
// without sending anything.
func (t *SMTPTransport) Verify(ctx context.Context) error {
	if t.cfg.Host == "" {
		return &Error{Message: "SMTP_HOST no está configurado", Code: CodeConfig}
	}
	sess, err := t.connect(ctx)
	if err != nil {
		return t.wrapErr(ctx, err)
	}
	defer sess.close()

	if err := sess.client.Noop(); err != nil {
		return t.wrapErr(ctx, err)
	}
	if err := sess.client.Quit(); err != nil {
		return t.wrapErr(ctx, err)
	}
	return nil
}

type smtpSession struct {
	client *smtp.Client
	stop   func() bool
}

func (s *smtpSession) deliver(from string, rcpts []string, raw []byte) error {
	if err := s.client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, rcpt := range rcpts {
		if err := s.client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := s.client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	return s.client.Quit()
}

func (s *smtpSession) close() {
	s.stop()
	_ = s.client.Close()
}

// connect dials the relay and walks the session up to an authenticated state.
// The greeting timeout bounds the wait for the banner; after that the socket
// timeout bounds silence on the connection. ctx cancellation closes the socket.
func (t *SMTPTransport) connect(ctx context.Context) (*smtpSession, error) {
	dialer := net.Dialer{Timeout: t.cfg.ConnectionTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", t.Address())
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = raw.Close() })

	idle := &idleConn{Conn: raw, timeout: t.cfg.GreetingTimeout}
	var conn net.Conn = idle
	if t.cfg.Secure {
		conn = tls.Client(idle, t.tlsConfig())
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		stop()
		_ = conn.Close()
		return nil, fmt.Errorf("greeting: %w", err)
	}
	idle.timeout = t.cfg.SocketTimeout
	sess := &smtpSession{client: client, stop: stop}

	if !t.cfg.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(t.tlsConfig()); err != nil {
				sess.close()
				return nil, fmt.Errorf("STARTTLS: %w", err)
			}
		}
	}

	if t.cfg.User != "" && t.cfg.Pass != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", t.cfg.User, t.cfg.Pass, t.cfg.Host)
			if err := client.Auth(auth); err != nil {
				sess.close()
				return nil, fmt.Errorf("AUTH: %w", err)
			}
		}
	}
	return sess, nil
}

// idleConn moves the deadline forward before every read and write, so a
// long DATA transfer survives as long as bytes keep moving.
type idleConn struct {
	net.Conn
	timeout time.Duration
}

func (c *idleConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *idleConn) Write(b []byte) (int, error) {
	if err := c.Conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}

func (t *SMTPTransport) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         t.cfg.Host,
		InsecureSkipVerify: t.cfg.IgnoreTLS,
		MinVersion:         tls.VersionTLS12,
	}
}

// wrapErr turns a raw session error into a structured *Error. Timeouts and
// refused connections name the relay and point at the HTTP provider.
func (t *SMTPTransport) wrapErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return &Error{Message: "Envío cancelado: el cliente cerró la conexión", Detail: err.Error(), Code: CodeCanceled, Err: err}
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		// The socket was closed under us; the read error says nothing useful.
		return t.unreachable(CodeTimeout, fmt.Errorf("%w: %w", ctx.Err(), err))
	}

	if code, ok := timeoutCode(err); ok {
		return t.unreachable(code, err)
	}

	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return &Error{
			Message: "El servidor SMTP rechazó el mensaje",
			Detail:  err.Error(),
			Code:    fmt.Sprintf("SMTP_%d", tpErr.Code),
			Err:     err,
		}
	}
	return &Error{Message: "Falló el envío por SMTP", Detail: err.Error(), Code: CodeSMTP, Err: err}
}

func (t *SMTPTransport) unreachable(code string, err error) *Error {
	host := t.cfg.Host
	if host == "" {
		host = "(sin host)"
	}
	return &Error{
		Message: fmt.Sprintf("No se pudo conectar al servidor SMTP %s:%d. "+
			"Verifica las reglas de firewall o considera usar MAIL_PROVIDER=resend para enviar vía HTTP.", host, t.cfg.Port),
		Detail: err.Error(),
		Code:   code,
		Err:    err,
	}
}

func envelopeAddress(s string) (string, error) {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return "", fmt.Errorf("%q: %w", s, err)
	}
	return addr.Address, nil
}

func newMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}
