package submission

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/mailer"
)

var bodyTemplate = template.Must(template.New("radicacion").Parse(`<!doctype html>
<html lang="es">
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>Nueva radicación de factura</h2>
  <table cellpadding="4" style="border-collapse: collapse;">
    <tr><td><strong>Factura N°</strong></td><td>{{.Numero}}</td></tr>
    <tr><td><strong>Valor</strong></td><td>{{.Valor}}</td></tr>
    <tr><td><strong>Usuario</strong></td><td>{{.Username}}</td></tr>
    <tr><td><strong>Nombre</strong></td><td>{{.Name}}</td></tr>
    <tr><td><strong>Correo</strong></td><td>{{.Email}}</td></tr>
    <tr><td><strong>Rol</strong></td><td>{{.Role}}</td></tr>
    {{- if .DNI}}
    <tr><td><strong>Documento</strong></td><td>{{.DNI}}</td></tr>
    {{- end}}
    <tr><td><strong>Fecha</strong></td><td>{{.Timestamp}}</td></tr>
  </table>
  <h3>Adjuntos ({{len .Files}})</h3>
  <ul>
    {{- range .Files}}
    <li>{{.Name}} ({{.SizeMB}} MB)</li>
    {{- end}}
  </ul>
</body>
</html>
`))

type bodyData struct {
	*Submission
	Files []bodyFile
}

type bodyFile struct {
	Name   string
	SizeMB string
}

// Composer turns a validated Submission into a mail message. It has no side
// effects: the same Submission always yields the same subject and body.
type Composer struct {
	From string
	To   []string
}

func (c Composer) Compose(s *Submission) (mailer.Message, error) {
	data := bodyData{Submission: s}
	for _, a := range s.Attachments {
		data.Files = append(data.Files, bodyFile{
			Name:   a.Filename,
			SizeMB: fmt.Sprintf("%.2f", float64(a.Size)/mb),
		})
	}

	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, data); err != nil {
		return mailer.Message{}, fmt.Errorf("rendering mail body: %w", err)
	}

	msg := mailer.Message{
		From:    c.From,
		To:      c.To,
		Subject: Subject(s),
		HTML:    body.String(),
	}
	for _, a := range s.Attachments {
		msg.Attachments = append(msg.Attachments, mailer.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Data:        a.Data,
		})
	}
	return msg, nil
}

var subjectReplacer = strings.NewReplacer("\r", " ", "\n", " ")

// Subject is "Radicación factura <numero> - <username> (<name>) [<role>] - N adjunto(s)".
func Subject(s *Submission) string {
	who := s.Username
	if s.Name != "" {
		who = fmt.Sprintf("%s (%s)", s.Username, s.Name)
	}
	subject := fmt.Sprintf("Radicación factura %s - %s [%s] - %d adjunto(s)",
		s.Numero, who, s.Role, len(s.Attachments))
	return subjectReplacer.Replace(subject)
}
