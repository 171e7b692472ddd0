package submission

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bogota(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Bogota")
	require.NoError(t, err)
	return loc
}

func TestWindowAt(t *testing.T) {
	w := Window{From: 1, To: 10, ExemptRoles: []string{"conductor"}, Location: bogota(t)}

	tests := []struct {
		name   string
		role   string
		now    time.Time
		open   bool
		exempt bool
		to     int
		today  string
	}{
		{
			name:  "inside window",
			role:  "asistencial",
			now:   time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC),
			open:  true,
			to:    10,
			today: "2026-03-05",
		},
		{
			name:  "late on the 10th in Bogota is still open",
			role:  "administrativo",
			now:   time.Date(2026, 3, 11, 4, 0, 0, 0, time.UTC),
			open:  true,
			to:    10,
			today: "2026-03-10",
		},
		{
			name:  "the 11th is closed",
			role:  "administrativo",
			now:   time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC),
			open:  false,
			to:    10,
			today: "2026-03-11",
		},
		{
			name:   "exempt role open all month",
			role:   "Conductor",
			now:    time.Date(2026, 3, 20, 15, 0, 0, 0, time.UTC),
			open:   true,
			exempt: true,
			to:     31,
			today:  "2026-03-20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := w.At(tt.role, tt.now)
			assert.Equal(t, tt.open, st.Open)
			assert.Equal(t, tt.exempt, st.Exempt)
			assert.Equal(t, tt.to, st.To)
			assert.Equal(t, tt.today, st.Today)
			assert.Equal(t, "America/Bogota", st.TZ)
		})
	}
}

func TestWindowLastDay(t *testing.T) {
	w := Window{From: 1, To: 31, ExemptRoles: nil, Location: bogota(t)}
	st := w.At("asistencial", time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, 28, st.LastDay)
	assert.Equal(t, 28, st.To)
}

func TestConsecutivo(t *testing.T) {
	w := Window{From: 1, To: 10, Location: bogota(t)}

	assert.Equal(t, "DS0326-12345678", w.Consecutivo(" 12345678 ", time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)))
	// 22:00 on March 31st in Bogota.
	assert.Equal(t, "DS0326-12345678", w.Consecutivo("12345678", time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)))
	assert.Empty(t, w.Consecutivo("  ", time.Now()))
}
