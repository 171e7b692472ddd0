package mailer

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// Encrypter wraps outgoing SMTP messages in PGP/MIME (RFC 3156).
type Encrypter struct {
	keys openpgp.EntityList
}

// LoadEncrypter reads an armored public key ring from path.
func LoadEncrypter(path string) (*Encrypter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read PGP public key at %s: %w", path, err)
	}
	defer f.Close()

	enc, err := NewEncrypter(f)
	if err != nil {
		return nil, fmt.Errorf("cannot parse PGP public key at %s: %w", path, err)
	}
	return enc, nil
}

// NewEncrypter parses an armored public key ring.
func NewEncrypter(armored io.Reader) (*Encrypter, error) {
	keys, err := openpgp.ReadArmoredKeyRing(armored)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("key ring is empty")
	}
	return &Encrypter{keys: keys}, nil
}

// buildEncrypted builds a PGP/MIME message. The full MIME body (HTML +
// attachments) is encrypted as a single blob; only the envelope headers stay
// in the clear.
func (e *Encrypter) buildEncrypted(msg Message, messageID string, date time.Time) ([]byte, error) {
	inner, err := buildMIMEEntity(msg)
	if err != nil {
		return nil, fmt.Errorf("building MIME body: %w", err)
	}

	encrypted, err := e.encrypt(inner)
	if err != nil {
		return nil, fmt.Errorf("pgp encryption: %w", err)
	}

	var body bytes.Buffer
	envelope := multipart.NewWriter(&body)

	// Part 1: PGP/MIME version identification
	versionHeader := textproto.MIMEHeader{}
	versionHeader.Set("Content-Type", "application/pgp-encrypted")
	versionPart, err := envelope.CreatePart(versionHeader)
	if err != nil {
		return nil, err
	}
	if _, err := versionPart.Write([]byte("Version: 1\r\n")); err != nil {
		return nil, err
	}

	// Part 2: encrypted payload
	encHeader := textproto.MIMEHeader{}
	encHeader.Set("Content-Type", "application/octet-stream")
	encPart, err := envelope.CreatePart(encHeader)
	if err != nil {
		return nil, err
	}
	if _, err := encPart.Write(encrypted); err != nil {
		return nil, err
	}
	if err := envelope.Close(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writeHeaders(&buf, msg, messageID, date)
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/encrypted; protocol=\"application/pgp-encrypted\"; boundary=%s\r\n", envelope.Boundary()))
	buf.WriteString("\r\n")
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

func (e *Encrypter) encrypt(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	armorWriter, err := armor.Encode(&buf, "PGP MESSAGE", nil)
	if err != nil {
		return nil, fmt.Errorf("creating armor writer: %w", err)
	}

	encWriter, err := openpgp.Encrypt(armorWriter, e.keys, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating encrypt writer: %w", err)
	}
	if _, err := encWriter.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing encrypted data: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return nil, err
	}
	if err := armorWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
