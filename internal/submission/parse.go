package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"
	"unicode/utf8"
)

// FilesField is the multipart field carrying the attachments.
const FilesField = "files"

const maxFieldBytes = 64 << 10

const maxFilenameBytes = 150

// ReadMultipart streams the form into a Submission. Attachments are buffered
// in memory only. Files past the per-file limit are drained and kept with a
// nil Data so Validate can name them; once more than MaxFiles files have been
// seen the remaining ones are only counted. Reading stops as soon as ctx is
// done.
func ReadMultipart(ctx context.Context, mr *multipart.Reader, limits Limits) (*Submission, error) {
	s := &Submission{}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading multipart body: %w", err)
		}

		if part.FormName() == FilesField && part.FileName() != "" {
			att, err := readFile(part, limits, len(s.Attachments) < limits.MaxFiles)
			part.Close()
			if err != nil {
				return nil, err
			}
			s.Attachments = append(s.Attachments, att)
			continue
		}

		value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("reading field %q: %w", part.FormName(), err)
		}
		s.setField(part.FormName(), strings.TrimSpace(string(value)))
	}

	if s.Timestamp == "" {
		s.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return s, nil
}

func readFile(part *multipart.Part, limits Limits, keep bool) (Attachment, error) {
	att := Attachment{
		Filename:    sanitizeFilename(part.FileName()),
		ContentType: part.Header.Get("Content-Type"),
	}
	if att.ContentType == "" {
		att.ContentType = "application/octet-stream"
	}

	if !keep {
		n, err := io.Copy(io.Discard, part)
		if err != nil {
			return att, fmt.Errorf("reading file %q: %w", att.Filename, err)
		}
		att.Size = n
		return att, nil
	}

	data, err := io.ReadAll(io.LimitReader(part, limits.MaxFileBytes+1))
	if err != nil {
		return att, fmt.Errorf("reading file %q: %w", att.Filename, err)
	}
	att.Size = int64(len(data))
	if att.Size > limits.MaxFileBytes {
		rest, err := io.Copy(io.Discard, part)
		if err != nil {
			return att, fmt.Errorf("reading file %q: %w", att.Filename, err)
		}
		att.Size += rest
		return att, nil
	}
	att.Data = data
	return att, nil
}

func (s *Submission) setField(name, value string) {
	switch name {
	case "numero":
		s.Numero = value
	case "valor":
		s.Valor = value
	case "username":
		s.Username = value
	case "name":
		s.Name = value
	case "email":
		s.Email = value
	case "role":
		s.Role = value
	case "dni":
		s.DNI = value
	case "timestamp":
		s.Timestamp = value
	}
}

// sanitizeFilename removes path components and characters that could break
// out of a MIME header.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' || r == 0 {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if len(name) > maxFilenameBytes {
		cut := maxFilenameBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	if name == "" {
		name = "adjunto"
	}
	return name
}
