package submission

import (
	"slices"
	"strings"
	"time"

	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/config"
)

// Window is the range of days of the month in which radicaciones are
// accepted. Exempt roles may upload any day.
type Window struct {
	From        int
	To          int
	ExemptRoles []string
	Location    *time.Location
}

func WindowFrom(u config.Upload) Window {
	return Window{
		From:        u.WindowFrom,
		To:          u.WindowTo,
		ExemptRoles: u.ExemptRoles,
		Location:    u.Location(),
	}
}

// Status describes the window for one role on one day.
type Status struct {
	Role    string `json:"role"`
	Open    bool   `json:"open"`
	Exempt  bool   `json:"exempt"`
	From    int    `json:"from"`
	To      int    `json:"to"`
	LastDay int    `json:"lastDay"`
	Today   string `json:"today"`
	TZ      string `json:"tz"`
}

// At evaluates the window for role at instant now, in the business time zone.
func (w Window) At(role string, now time.Time) Status {
	local := now.In(w.location())
	lastDay := time.Date(local.Year(), local.Month()+1, 0, 0, 0, 0, 0, local.Location()).Day()

	st := Status{
		Role:    role,
		From:    w.From,
		To:      min(w.To, lastDay),
		LastDay: lastDay,
		Today:   local.Format(time.DateOnly),
		TZ:      local.Location().String(),
	}
	if slices.ContainsFunc(w.ExemptRoles, func(r string) bool { return strings.EqualFold(r, role) }) {
		st.Exempt = true
		st.From, st.To = 1, lastDay
	}

	day := local.Day()
	st.Open = day >= st.From && day <= st.To
	return st
}

// Consecutivo builds the invoice consecutive DS<MM><YY>-<dni> for the month
// containing now. It is empty when dni is blank.
func (w Window) Consecutivo(dni string, now time.Time) string {
	dni = strings.TrimSpace(dni)
	if dni == "" {
		return ""
	}
	return "DS" + now.In(w.location()).Format("0106") + "-" + dni
}

func (w Window) location() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}
