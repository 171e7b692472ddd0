package mailer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"time"
)

// buildMIME renders msg as an RFC 5322 message with a multipart/mixed body:
// the HTML part first, then one base64 part per attachment.
func buildMIME(msg Message, messageID string, date time.Time) ([]byte, error) {
	body, boundary, err := buildParts(msg)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writeHeaders(&buf, msg, messageID, date)
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%s\r\n", boundary))
	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// buildMIMEEntity renders the body parts as a standalone MIME entity (its own
// Content-Type header followed by the parts), suitable for encryption.
func buildMIMEEntity(msg Message) ([]byte, error) {
	body, boundary, err := buildParts(msg)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%s\r\n\r\n", boundary))
	buf.Write(body)
	return buf.Bytes(), nil
}

func writeHeaders(buf *bytes.Buffer, msg Message, messageID string, date time.Time) {
	buf.WriteString(fmt.Sprintf("From: %s\r\n", sanitizeHeader(msg.From)))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", sanitizeHeader(strings.Join(msg.To, ", "))))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", sanitizeHeader(msg.Subject))))
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", date.Format(time.RFC1123Z)))
	buf.WriteString(fmt.Sprintf("Message-ID: %s\r\n", messageID))
	buf.WriteString("MIME-Version: 1.0\r\n")
}

func buildParts(msg Message) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	// HTML part
	htmlHeader := textproto.MIMEHeader{}
	htmlHeader.Set("Content-Type", "text/html; charset=UTF-8")
	htmlHeader.Set("Content-Transfer-Encoding", "quoted-printable")
	htmlPart, err := writer.CreatePart(htmlHeader)
	if err != nil {
		return nil, "", err
	}
	qp := quotedprintable.NewWriter(htmlPart)
	if _, err := qp.Write([]byte(msg.HTML)); err != nil {
		return nil, "", err
	}
	if err := qp.Close(); err != nil {
		return nil, "", err
	}

	// Attachment parts
	for _, att := range msg.Attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		filename := sanitizeHeader(att.Filename)

		attHeader := textproto.MIMEHeader{}
		attHeader.Set("Content-Type", mime.FormatMediaType(contentType, map[string]string{"name": filename}))
		attHeader.Set("Content-Transfer-Encoding", "base64")
		attHeader.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))

		attPart, err := writer.CreatePart(attHeader)
		if err != nil {
			return nil, "", err
		}

		encoded := base64.StdEncoding.EncodeToString(att.Data)
		// Write in 76-character lines per RFC 2045
		for i := 0; i < len(encoded); i += 76 {
			end := min(i+76, len(encoded))
			if _, err := attPart.Write([]byte(encoded[i:end] + "\r\n")); err != nil {
				return nil, "", err
			}
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.Boundary(), nil
}

// sanitizeHeader strips CR, LF and NUL so values cannot inject headers.
func sanitizeHeader(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', 0:
			return -1
		}
		return r
	}, s)
}
