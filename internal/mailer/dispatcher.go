package mailer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/config"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/metrics"
)

// DryRunPrefix starts every synthetic id returned in dry-run mode.
const DryRunPrefix = "dryrun-"

// Dispatcher sends composed messages through the resolved transport, or
// short-circuits when dry run is enabled.
type Dispatcher struct {
	transport Transport
	dryRun    bool
	logger    *slog.Logger
}

func NewDispatcher(t Transport, dryRun bool, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{transport: t, dryRun: dryRun, logger: logger}
}

// New resolves the provider, builds its transport and returns the
// dispatcher together with the selection so the caller can report it.
func New(cfg config.Mail, logger *slog.Logger) (*Dispatcher, Selection) {
	sel := Resolve(cfg)

	var t Transport
	switch sel.Effective {
	case ProviderResend:
		t = NewResendTransport(cfg.Resend, logger)
	default:
		var enc *Encrypter
		if cfg.PGPPublicKeyPath != "" {
			var err error
			enc, err = LoadEncrypter(cfg.PGPPublicKeyPath)
			if err != nil {
				sel.warn("PGP encryption disabled: %v", err)
			}
		}
		t = NewSMTPTransport(cfg.SMTP, enc)
	}
	return NewDispatcher(t, cfg.DryRun, logger), sel
}

// Transport returns the name of the path messages take.
func (d *Dispatcher) Transport() string {
	if d.dryRun {
		return string(ProviderDryRun)
	}
	return d.transport.Name()
}

// Send dispatches msg. Every failure is returned as *Error.
func (d *Dispatcher) Send(ctx context.Context, msg Message) (Result, error) {
	if d.dryRun {
		res := Result{ID: DryRunPrefix + uuid.NewString(), Transport: string(ProviderDryRun)}
		d.logger.Info("mailer: dry run, message not sent", "id", res.ID, "attachments", len(msg.Attachments))
		metrics.ObserveDispatch(res.Transport, "ok", 0)
		return res, nil
	}

	name := d.transport.Name()
	start := time.Now()
	res, err := d.transport.Send(ctx, msg)
	elapsed := time.Since(start)

	if err != nil {
		var me *Error
		if !errors.As(err, &me) {
			me = &Error{Message: "No se pudo enviar el correo", Detail: err.Error(), Err: err}
		}
		metrics.ObserveDispatch(name, "error", elapsed)
		d.logger.Error("mailer: dispatch failed", "transport", name, "code", me.Code, "err", me, "elapsed", elapsed)
		return Result{}, me
	}

	metrics.ObserveDispatch(name, "ok", elapsed)
	d.logger.Info("mailer: message sent", "transport", name, "id", res.ID, "elapsed", elapsed)
	return res, nil
}
