// Package submission holds the upload pipeline of a radicación: reading the
// multipart form, validating the attachments and composing the mail that is
// handed to the dispatcher.
package submission

// Attachment is one uploaded file held in memory for the life of the request.
// Data is nil when the file was larger than the per-file limit; Size still
// holds the real byte count so the validator can report it.
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// Submission is the transient payload of one upload request. It is never
// persisted.
type Submission struct {
	Numero    string
	Valor     string
	Username  string
	Name      string
	Email     string
	Role      string
	DNI       string
	Timestamp string

	Attachments []Attachment
}

// TotalBytes sums the declared size of every attachment.
func (s *Submission) TotalBytes() int64 {
	var total int64
	for _, a := range s.Attachments {
		total += a.Size
	}
	return total
}
