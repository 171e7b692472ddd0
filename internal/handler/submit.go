package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/mailer"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/metrics"
	appmw "github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/middleware"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/submission"
)

// Slack on top of the attachment bytes for the text fields and multipart
// framing.
const formOverhead = 1 << 20

type dispatcher interface {
	Send(ctx context.Context, msg mailer.Message) (mailer.Result, error)
}

// SubmitOptions configures a SubmitHandler.
type SubmitOptions struct {
	Limits        submission.Limits
	Composer      submission.Composer
	Window        submission.Window
	EnforceWindow bool
}

// SubmitHandler runs the upload pipeline: read, window check, validate,
// compose, dispatch.
type SubmitHandler struct {
	BaseHandler
	opts SubmitOptions
	mail dispatcher
	now  func() time.Time
}

func NewSubmitHandler(logger *slog.Logger, opts SubmitOptions, mail dispatcher) *SubmitHandler {
	return &SubmitHandler{
		BaseHandler: BaseHandler{Logger: logger},
		opts:        opts,
		mail:        mail,
		now:         time.Now,
	}
}

// Create handles POST /api/radicaciones.
func (h *SubmitHandler) Create(w http.ResponseWriter, r *http.Request) {
	limits := h.opts.Limits
	maxBody := int64(limits.MaxFiles+1)*limits.MaxFileBytes + formOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	mr, err := r.MultipartReader()
	if err != nil {
		h.reject(w, r, http.StatusBadRequest, "Se esperaba un formulario multipart/form-data")
		return
	}

	s, err := submission.ReadMultipart(r.Context(), mr, limits)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			metrics.ObserveSubmission("canceled")
			h.Logger.Info("submit: client went away during upload", "err", err)
		case errors.As(err, &maxBytesErr):
			h.reject(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("La solicitud excede el tamaño máximo permitido (%s)", humanize.IBytes(uint64(maxBytesErr.Limit))))
		default:
			h.Logger.Debug("submit: unreadable form", "err", err)
			h.reject(w, r, http.StatusBadRequest, "Formulario inválido")
		}
		return
	}

	if claims := appmw.ClaimsFromContext(r.Context()); claims != nil {
		s.Username = claims.Username
		s.Name = claims.Name
		s.Email = claims.Email
		s.Role = string(claims.Role)
		s.DNI = claims.DNI
	}

	if h.opts.EnforceWindow {
		if st := h.opts.Window.At(s.Role, h.now()); !st.Open {
			metrics.ObserveSubmission("closed")
			h.textError(w, http.StatusForbidden,
				fmt.Sprintf("La radicación está habilitada solo del día %d al %d de cada mes", st.From, st.To))
			return
		}
	}

	if err := limits.Validate(s); err != nil {
		var ve *submission.ValidationError
		if errors.As(err, &ve) {
			h.Logger.Info("submit: rejected", "field", ve.Field, "file", ve.Filename, "reason", ve.Reason)
			h.reject(w, r, http.StatusBadRequest, ve.Reason)
			return
		}
		h.serverErrorResponse(w, r, err)
		return
	}

	msg, err := h.opts.Composer.Compose(s)
	if err != nil {
		metrics.ObserveSubmission("failed")
		h.serverErrorResponse(w, r, err)
		return
	}

	res, err := h.mail.Send(r.Context(), msg)
	if err != nil {
		metrics.ObserveSubmission("failed")
		h.dispatchError(w, r, err)
		return
	}

	metrics.ObserveSubmission("sent")
	h.Logger.Info("submit: radicación sent",
		"numero", s.Numero,
		"username", s.Username,
		"files", len(s.Attachments),
		"size", humanize.IBytes(uint64(s.TotalBytes())),
		"id", res.ID,
		"transport", res.Transport,
	)

	env := envelope{"ok": true, "id": res.ID, "count": len(s.Attachments)}
	if err := h.writeJSON(w, http.StatusOK, env, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

func (h *SubmitHandler) reject(w http.ResponseWriter, r *http.Request, status int, reason string) {
	metrics.ObserveSubmission("rejected")
	h.textError(w, status, reason)
}

func (h *SubmitHandler) dispatchError(w http.ResponseWriter, r *http.Request, err error) {
	env := envelope{"ok": false, "error": "No se pudo enviar el correo"}

	var me *mailer.Error
	if errors.As(err, &me) {
		env["error"] = me.Message
		if me.Detail != "" {
			env["detail"] = me.Detail
		}
		if me.Code != "" {
			env["code"] = me.Code
		}
	} else {
		env["detail"] = err.Error()
	}

	h.logError(r, err)
	if werr := h.writeJSON(w, http.StatusInternalServerError, env, nil); werr != nil {
		h.logError(r, werr)
	}
}
