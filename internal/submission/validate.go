package submission

import (
	"fmt"
	"mime"
	"strconv"
	"strings"

	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/config"
)

const mb = 1024 * 1024

var allowedTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

const xlsmType = "application/vnd.ms-excel.sheet.macroenabled.12"

// Limits bounds a single submission.
type Limits struct {
	MaxFiles      int
	MaxFileBytes  int64
	MaxTotalBytes int64
	AllowXLSM     bool
}

func LimitsFrom(u config.Upload) Limits {
	return Limits{
		MaxFiles:      u.MaxFiles,
		MaxFileBytes:  int64(u.MaxFileMB) * mb,
		MaxTotalBytes: int64(u.MaxTotalMB) * mb,
		AllowXLSM:     u.AllowXLSM,
	}
}

// Allowed reports whether a declared content type is an accepted document
// format. Parameters and case are ignored.
func (l Limits) Allowed(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	mediaType = strings.ToLower(mediaType)
	if mediaType == xlsmType {
		return l.AllowXLSM
	}
	return allowedTypes[mediaType]
}

// ValidationError is a client mistake. Reason is shown to the user verbatim.
type ValidationError struct {
	Field    string
	Filename string
	Reason   string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Validate checks s against the limits and returns the first problem found as
// a *ValidationError. The file count is checked before anything else.
func (l Limits) Validate(s *Submission) error {
	if n := len(s.Attachments); n > l.MaxFiles {
		return &ValidationError{
			Field:  "files",
			Reason: fmt.Sprintf("Máximo %d archivos por radicación (recibidos %d)", l.MaxFiles, n),
		}
	}
	if len(s.Attachments) == 0 {
		return &ValidationError{Field: "files", Reason: "Adjunta al menos un archivo (PDF/Word/Excel)."}
	}

	for _, a := range s.Attachments {
		if !l.Allowed(a.ContentType) {
			return &ValidationError{
				Field:    "files",
				Filename: a.Filename,
				Reason:   fmt.Sprintf("Tipo de archivo no permitido: %s (%s)", a.Filename, a.ContentType),
			}
		}
	}

	for _, a := range s.Attachments {
		if a.Size > l.MaxFileBytes {
			return &ValidationError{
				Field:    "files",
				Filename: a.Filename,
				Reason:   fmt.Sprintf("El archivo %s excede %sMB", a.Filename, formatMB(l.MaxFileBytes)),
			}
		}
	}

	if total := s.TotalBytes(); total > l.MaxTotalBytes {
		return &ValidationError{
			Field: "files",
			Reason: fmt.Sprintf("Tamaño total %.1fMB excede %sMB",
				float64(total)/mb, formatMB(l.MaxTotalBytes)),
		}
	}

	if strings.TrimSpace(s.Numero) == "" {
		return &ValidationError{Field: "numero", Reason: "El número de factura es obligatorio"}
	}
	if strings.TrimSpace(s.Valor) == "" {
		return &ValidationError{Field: "valor", Reason: "El valor de la factura es obligatorio"}
	}
	return nil
}

// formatMB prints a ceiling without trailing zeros: 20, 15, 7.5.
func formatMB(n int64) string {
	return strconv.FormatFloat(float64(n)/mb, 'f', -1, 64)
}
