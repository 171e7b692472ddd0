package mailer

import (
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/config"
)

func testMessage() Message {
	return Message{
		From:    "Radicación <no-reply@example.org>",
		To:      []string{"cuentas@example.org"},
		Subject: "Radicación F-100",
		HTML:    "<p>Hola</p>",
		Attachments: []Attachment{
			{Filename: "factura.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 test")},
		},
	}
}

func TestBuildMIMEHeaders(t *testing.T) {
	date := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	raw, err := buildMIME(testMessage(), "<abc@example.org>", date)
	require.NoError(t, err)
	result := string(raw)

	cases := []struct {
		name string
		want string
	}{
		{"from header", "From: Radicación <no-reply@example.org>"},
		{"to header", "To: cuentas@example.org"},
		{"subject header", "Subject: =?utf-8?q?Radicaci=C3=B3n_F-100?="},
		{"message id", "Message-ID: <abc@example.org>"},
		{"mime header", "MIME-Version: 1.0"},
		{"multipart", "Content-Type: multipart/mixed; boundary="},
		{"html part", "Content-Type: text/html; charset=UTF-8"},
		{"attachment", "Content-Disposition: attachment; filename=factura.pdf"},
		{"base64", "Content-Transfer-Encoding: base64"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !strings.Contains(result, tc.want) {
				t.Errorf("expected %q in message, got:\n%s", tc.want, result)
			}
		})
	}
}

func TestBuildMIMEMultipleRecipients(t *testing.T) {
	msg := testMessage()
	msg.To = []string{"a@example.org", "b@example.org"}

	raw, err := buildMIME(msg, "<id@example.org>", time.Now())
	require.NoError(t, err)
	if !strings.Contains(string(raw), "To: a@example.org, b@example.org") {
		t.Errorf("expected multiple recipients in To header, got:\n%s", raw)
	}
}

func TestBuildMIMEStripsHeaderInjection(t *testing.T) {
	msg := testMessage()
	msg.Subject = "F-1\r\nBcc: spam@example.com"
	msg.Attachments[0].Filename = "invoice.pdf\r\nBcc:spam@example.com"

	raw, err := buildMIME(msg, "<id@example.org>", time.Now())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "\r\nBcc:")
	assert.NotContains(t, string(raw), "\nBcc:")
}

// fakeRelay accepts one SMTP session and reports the DATA payload it received.
func fakeRelay(t *testing.T) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 localhost ESMTP fake")
		var data string
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(cmd, "EHLO"):
				_ = tp.PrintfLine("250-localhost")
				_ = tp.PrintfLine("250 8BITMIME")
			case strings.HasPrefix(cmd, "HELO"),
				strings.HasPrefix(cmd, "MAIL FROM"),
				strings.HasPrefix(cmd, "RCPT TO"),
				strings.HasPrefix(cmd, "NOOP"):
				_ = tp.PrintfLine("250 OK")
			case strings.HasPrefix(cmd, "DATA"):
				_ = tp.PrintfLine("354 go ahead")
				b, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				data = string(b)
				_ = tp.PrintfLine("250 queued")
			case strings.HasPrefix(cmd, "QUIT"):
				_ = tp.PrintfLine("221 bye")
				received <- data
				return
			default:
				_ = tp.PrintfLine("502 not implemented")
			}
		}
	}()
	return ln.Addr().String(), received
}

func testSMTPConfig(t *testing.T, addr string) config.SMTP {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return config.SMTP{
		Host:              host,
		Port:              port,
		ConnectionTimeout: 2 * time.Second,
		GreetingTimeout:   2 * time.Second,
		SocketTimeout:     2 * time.Second,
	}
}

func TestSMTPSendDeliversToRelay(t *testing.T) {
	addr, received := fakeRelay(t)
	tr := NewSMTPTransport(testSMTPConfig(t, addr), nil)

	res, err := tr.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, "smtp", res.Transport)
	assert.True(t, strings.HasSuffix(res.ID, "@example.org>"), "unexpected id %q", res.ID)

	select {
	case data := <-received:
		assert.Contains(t, data, "Message-ID: "+res.ID)
		assert.Contains(t, data, "filename=factura.pdf")
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not receive the message")
	}
}

func TestSMTPVerify(t *testing.T) {
	addr, received := fakeRelay(t)
	tr := NewSMTPTransport(testSMTPConfig(t, addr), nil)

	require.NoError(t, tr.Verify(context.Background()))
	assert.Empty(t, <-received)
}

func TestSMTPGreetingTimeoutIsClassified(t *testing.T) {
	cfg := testSMTPConfig(t, silentRelay(t))
	cfg.GreetingTimeout = 100 * time.Millisecond
	tr := NewSMTPTransport(cfg, nil)

	_, err := tr.Send(context.Background(), testMessage())
	require.Error(t, err)

	var me *Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, CodeTimeout, me.Code)
	assert.Contains(t, me.Message, tr.Address())
	assert.Contains(t, me.Message, "MAIL_PROVIDER=resend")
	assert.True(t, IsTimeout(err))
}

// silentRelay accepts connections and never sends a greeting.
func silentRelay(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(io.Discard, conn)
	}()
	return ln.Addr().String()
}

func TestSMTPVerifyDeadlineIsClassified(t *testing.T) {
	cfg := testSMTPConfig(t, silentRelay(t))
	cfg.ConnectionTimeout = 10 * time.Second
	cfg.GreetingTimeout = 10 * time.Second
	cfg.SocketTimeout = 60 * time.Second
	tr := NewSMTPTransport(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := tr.Verify(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var me *Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, CodeTimeout, me.Code)
	assert.Contains(t, me.Message, tr.Address())
	assert.Contains(t, me.Message, "MAIL_PROVIDER=resend")
	assert.True(t, IsTimeout(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIdleConnExtendsDeadlineWhileBytesMove(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	go func() { _, _ = io.Copy(io.Discard, server) }()

	conn := &idleConn{Conn: client, timeout: 150 * time.Millisecond}
	start := time.Now()
	for i := 0; i < 4; i++ {
		time.Sleep(100 * time.Millisecond)
		_, err := conn.Write([]byte("chunk"))
		require.NoError(t, err, "write %d", i)
	}
	assert.Greater(t, time.Since(start), conn.timeout)

	_, err := conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestSMTPConnectionRefusedIsClassified(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	tr := NewSMTPTransport(testSMTPConfig(t, addr), nil)
	err = tr.Verify(context.Background())
	require.Error(t, err)

	var me *Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, CodeConnection, me.Code)
	assert.Contains(t, me.Message, addr)
}

func TestSMTPMissingHost(t *testing.T) {
	tr := NewSMTPTransport(config.SMTP{Port: 587}, nil)

	_, err := tr.Send(context.Background(), testMessage())
	var me *Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, CodeConfig, me.Code)
}

func TestIsTimeout(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", errors.Join(errors.New("greeting"), context.DeadlineExceeded), true},
		{"timed out text", errors.New("Connection timed out"), true},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"auth rejected", &textproto.Error{Code: 535, Msg: "bad credentials"}, false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTimeout(tc.err))
		})
	}
}

func generateTestKey(t *testing.T) (publickey, privatekey string) {
	t.Helper()

	entity, err := openpgp.NewEntity("Test User", "", "test@example.org", nil)
	if err != nil {
		t.Fatalf("generate test key: %v", err)
	}

	var pubBuf, privBuf strings.Builder
	pubWriter, _ := armor.Encode(&pubBuf, "PGP PUBLIC KEY BLOCK", nil)
	entity.Serialize(pubWriter)
	pubWriter.Close()

	privWriter, _ := armor.Encode(&privBuf, "PGP PRIVATE KEY BLOCK", nil)
	entity.SerializePrivate(privWriter, nil)
	privWriter.Close()

	return pubBuf.String(), privBuf.String()
}

func mustDecrypt(t *testing.T, armoredPrivKey, armoredMsg string) string {
	t.Helper()

	keyring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armoredPrivKey))
	if err != nil {
		t.Fatalf("mustDecrypt: read private key: %v", err)
	}

	block, err := armor.Decode(strings.NewReader(armoredMsg))
	if err != nil {
		t.Fatalf("mustDecrypt: decode armor: %v", err)
	}

	md, err := openpgp.ReadMessage(block.Body, keyring, nil, nil)
	if err != nil {
		t.Fatalf("mustDecrypt: read message: %v", err)
	}

	var buf strings.Builder
	if _, err := io.Copy(&buf, md.UnverifiedBody); err != nil {
		t.Fatalf("mustDecrypt: read body: %v", err)
	}
	return buf.String()
}

func TestBuildEncryptedMessage(t *testing.T) {
	pubKey, privKey := generateTestKey(t)
	enc, err := NewEncrypter(strings.NewReader(pubKey))
	require.NoError(t, err)

	raw, err := enc.buildEncrypted(testMessage(), "<id@example.org>", time.Now())
	require.NoError(t, err)
	out := string(raw)

	assert.Contains(t, out, `Content-Type: multipart/encrypted; protocol="application/pgp-encrypted"`)
	assert.Contains(t, out, "Version: 1")
	assert.NotContains(t, out, "factura.pdf", "attachment names must only appear inside the encrypted payload")

	start := strings.Index(out, "-----BEGIN PGP MESSAGE-----")
	end := strings.Index(out, "-----END PGP MESSAGE-----")
	require.True(t, start >= 0 && end > start, "expected an armored PGP block")
	armored := out[start : end+len("-----END PGP MESSAGE-----")]

	decrypted := mustDecrypt(t, privKey, armored)
	assert.Contains(t, decrypted, "Content-Type: multipart/mixed")
	assert.Contains(t, decrypted, "<p>Hola</p>")
	assert.Contains(t, decrypted, "factura.pdf")
}

func TestNewEncrypterRejectsGarbage(t *testing.T) {
	_, err := NewEncrypter(strings.NewReader("not a key"))
	assert.Error(t, err)
}
