package mailer

import (
	"fmt"
	"strings"

	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/config"
)

type Provider string

const (
	ProviderSMTP   Provider = "smtp"
	ProviderResend Provider = "resend"
	ProviderDryRun Provider = "dry-run"
)

// Selection is the outcome of resolving MAIL_PROVIDER against the rest of the
// mail configuration.
type Selection struct {
	Requested Provider
	Effective Provider
	DryRun    bool
	Warnings  []string
}

// Downgraded reports whether the requested provider could not be honoured.
func (s Selection) Downgraded() bool {
	return s.Requested != s.Effective
}

// Resolve picks the transport that will actually be used. It never fails:
// an unusable HTTP provider falls back to SMTP and the reason is recorded in
// Warnings for the caller to log.
func Resolve(cfg config.Mail) Selection {
	sel := Selection{
		Requested: Provider(cfg.Provider),
		Effective: ProviderSMTP,
		DryRun:    cfg.DryRun,
	}

	switch sel.Requested {
	case ProviderResend:
		if cfg.Resend.APIKey == "" {
			sel.warn("MAIL_PROVIDER=resend but RESEND_API_KEY is missing; falling back to SMTP")
		} else {
			sel.Effective = ProviderResend
		}
	case ProviderSMTP:
	default:
		sel.warn("unknown MAIL_PROVIDER %q; using SMTP", cfg.Provider)
	}

	if sel.Effective == ProviderSMTP {
		var missing []string
		if cfg.SMTP.Host == "" {
			missing = append(missing, "SMTP_HOST")
		}
		if cfg.SMTP.User == "" {
			missing = append(missing, "SMTP_USER")
		}
		if cfg.SMTP.Pass == "" {
			missing = append(missing, "SMTP_PASS")
		}
		if len(missing) > 0 {
			sel.warn("SMTP settings missing: %s", strings.Join(missing, ", "))
		}
	}

	if cfg.PGPPublicKeyPath != "" && sel.Effective != ProviderSMTP {
		sel.warn("MAIL_PGP_PUBLIC_KEY_PATH only applies to SMTP; messages sent through %s are not encrypted", sel.Effective)
	}
	return sel
}

func (s *Selection) warn(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}
