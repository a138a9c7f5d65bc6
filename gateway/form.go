package gateway

import (
	"bytes"
	"mime/multipart"

	"github.com/pkg/errors"
)

// Form is a multipart payload: string fields plus attached files. Payloads
// carrying files must be multipart; plain data goes as JSON instead.
type Form struct {
	fields []formField
	files  []formFile
}

type formField struct {
	name  string
	value string
}

type formFile struct {
	field    string
	filename string
	content  []byte
}

// NewForm creates an empty Form.
func NewForm() *Form {
	return &Form{}
}

// Set adds a string field. Repeated names are sent repeatedly.
func (f *Form) Set(name, value string) *Form {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

// AttachFile adds a file part. Content is held in memory so the request can
// be replayed on a refresh-and-retry cycle.
func (f *Form) AttachFile(field, filename string, content []byte) *Form {
	f.files = append(f.files, formFile{field: field, filename: filename, content: content})
	return f
}

// HasFiles reports whether any file part is attached.
func (f *Form) HasFiles() bool {
	return len(f.files) > 0
}

func (f *Form) encode() (body []byte, contentType string, err error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, field := range f.fields {
		if err := writer.WriteField(field.name, field.value); err != nil {
			return nil, "", errors.Wrap(err, "[Form.encode] write field")
		}
	}
	for _, file := range f.files {
		part, err := writer.CreateFormFile(file.field, file.filename)
		if err != nil {
			return nil, "", errors.Wrap(err, "[Form.encode] create file part")
		}
		if _, err := part.Write(file.content); err != nil {
			return nil, "", errors.Wrap(err, "[Form.encode] write file part")
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", errors.Wrap(err, "[Form.encode] close writer")
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}
