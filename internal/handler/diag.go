package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/mailer"
)

// ProbeTimeout bounds the SMTP reachability check.
const ProbeTimeout = 7 * time.Second

// SMTPProbe checks that the relay answers without sending anything.
type SMTPProbe interface {
	Verify(ctx context.Context) error
	Address() string
}

type DiagHandler struct {
	BaseHandler
	probe     SMTPProbe
	transport string
	timeout   time.Duration
}

func NewDiagHandler(logger *slog.Logger, probe SMTPProbe, transport string) *DiagHandler {
	return &DiagHandler{
		BaseHandler: BaseHandler{Logger: logger},
		probe:       probe,
		transport:   transport,
		timeout:     ProbeTimeout,
	}
}

type smtpStatus struct {
	Reachable bool   `json:"reachable"`
	Address   string `json:"address"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
}

// SMTP reports whether the relay is reachable. It never changes state and
// always answers 200; the outcome is in the body.
func (h *DiagHandler) SMTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := smtpStatus{Address: h.probe.Address()}
	start := time.Now()
	if err := h.probe.Verify(ctx); err != nil {
		status.Error = err.Error()
		var me *mailer.Error
		if errors.As(err, &me) {
			status.Code = me.Code
		}
		h.Logger.Warn("diag: smtp unreachable", "address", status.Address, "err", err, "elapsed", time.Since(start))
	} else {
		status.Reachable = true
	}

	env := envelope{
		"ok":        true,
		"transport": h.transport,
		"smtp":      status,
	}
	if err := h.writeJSON(w, http.StatusOK, env, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}
