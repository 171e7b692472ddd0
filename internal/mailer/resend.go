package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/config"
)

// ResendTransport posts messages to a Resend-compatible HTTP API (Transport B).
type ResendTransport struct {
	cfg    config.Resend
	client *http.Client
	logger *slog.Logger
}

func NewResendTransport(cfg config.Resend, logger *slog.Logger) *ResendTransport {
	return &ResendTransport{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (t *ResendTransport) Name() string {
	return string(ProviderResend)
}

type resendAttachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

type resendRequest struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html"`
	Attachments []resendAttachment `json:"attachments,omitempty"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (t *ResendTransport) Send(ctx context.Context, msg Message) (Result, error) {
	if t.cfg.APIKey == "" {
		return Result{}, &Error{Message: "RESEND_API_KEY no está configurado", Code: CodeConfig}
	}

	payload := resendRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: sanitizeHeader(msg.Subject),
		HTML:    msg.HTML,
	}
	for _, att := range msg.Attachments {
		payload.Attachments = append(payload.Attachments, resendAttachment{
			Filename:    sanitizeHeader(att.Filename),
			Content:     base64.StdEncoding.EncodeToString(att.Data),
			ContentType: att.ContentType,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, &Error{Message: "No se pudo construir el correo", Detail: err.Error(), Code: CodeMessage, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return Result{}, &Error{Message: "RESEND_BASE_URL inválido", Detail: err.Error(), Code: CodeConfig, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return Result{}, t.wrapErr(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Result{}, t.wrapErr(ctx, err)
	}

	var parsed resendResponse
	parseErr := json.Unmarshal(respBody, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := parsed.Message
		if detail == "" {
			detail = strings.TrimSpace(string(respBody))
		}
		code := "RESEND_" + strconv.Itoa(resp.StatusCode)
		if parsed.Name != "" {
			code = "RESEND_" + strings.ToUpper(parsed.Name)
		}
		return Result{}, &Error{
			Message: fmt.Sprintf("El proveedor resend respondió %d", resp.StatusCode),
			Detail:  detail,
			Code:    code,
		}
	}

	if parseErr != nil || parsed.ID == "" {
		// Accepted upstream; only the id is lost.
		t.logger.Warn("mailer: resend accepted the message without a readable id",
			"status", resp.StatusCode, "err", parseErr, "body", truncate(string(respBody), 512))
	}
	return Result{ID: parsed.ID, Transport: t.Name()}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (t *ResendTransport) wrapErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return &Error{Message: "Envío cancelado: el cliente cerró la conexión", Detail: err.Error(), Code: CodeCanceled, Err: err}
	}
	if code, ok := timeoutCode(err); ok && code == CodeTimeout {
		return &Error{
			Message: fmt.Sprintf("No se obtuvo respuesta del proveedor resend en %dms.", t.cfg.Timeout.Milliseconds()),
			Detail:  err.Error(),
			Code:    "RESEND_TIMEOUT",
			Err:     err,
		}
	}
	return &Error{Message: "No se pudo contactar al proveedor resend", Detail: err.Error(), Code: "RESEND_UNREACHABLE", Err: err}
}
