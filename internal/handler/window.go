package handler

import (
	"log/slog"
	"net/http"
	"time"

	appmw "github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/middleware"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/submission"
)

type WindowHandler struct {
	BaseHandler
	window submission.Window
	now    func() time.Time
}

func NewWindowHandler(logger *slog.Logger, window submission.Window) *WindowHandler {
	return &WindowHandler{BaseHandler: BaseHandler{Logger: logger}, window: window, now: time.Now}
}

// Get reports whether the caller's role may upload today, together with the
// invoice consecutive for the current month.
func (h *WindowHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := appmw.ClaimsFromContext(r.Context())
	if claims == nil {
		h.errorResponse(w, r, http.StatusUnauthorized, "Se requiere iniciar sesión")
		return
	}

	now := h.now()
	st := h.window.At(string(claims.Role), now)
	env := envelope{
		"ok":          true,
		"role":        st.Role,
		"open":        st.Open,
		"exempt":      st.Exempt,
		"from":        st.From,
		"to":          st.To,
		"lastDay":     st.LastDay,
		"today":       st.Today,
		"tz":          st.TZ,
		"consecutivo": h.window.Consecutivo(claims.DNI, now),
	}
	if err := h.writeJSON(w, http.StatusOK, env, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}
