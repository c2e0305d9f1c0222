package mokka

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// MultipartForm accumulates fields and files for a multipart/form-data
// request. Readers supplied via AddFile are consumed when the form is built,
// so a form encodes at most one request.
type MultipartForm struct {
	fields []multipartField
	files  []multipartFile
}

type multipartField struct {
	name  string
	value string
}

type multipartFile struct {
	field    string
	filename string
	reader   io.Reader
}

// NewMultipartForm returns an empty form.
func NewMultipartForm() *MultipartForm {
	return &MultipartForm{}
}

// AddField appends a plain form field.
func (f *MultipartForm) AddField(name, value string) *MultipartForm {
	f.fields = append(f.fields, multipartField{name: name, value: value})
	return f
}

// AddFile appends a file part read from r under the given field and
// filename.
func (f *MultipartForm) AddFile(field, filename string, r io.Reader) *MultipartForm {
	f.files = append(f.files, multipartFile{field: field, filename: filename, reader: r})
	return f
}

// AddFilePath reads the file at path into memory and appends it as a file
// part named after its base name.
func (f *MultipartForm) AddFilePath(field, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file %q: %w", path, err)
	}
	f.AddFile(field, filepath.Base(path), bytes.NewReader(data))
	return nil
}

// Build encodes the form, returning the body and its Content-Type with the
// generated boundary.
func (f *MultipartForm) Build() (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, field := range f.fields {
		if err := writer.WriteField(field.name, field.value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %q: %w", field.name, err)
		}
	}

	for _, file := range f.files {
		part, err := writer.CreateFormFile(file.field, file.filename)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part %q: %w", file.field, err)
		}
		if _, err := io.Copy(part, file.reader); err != nil {
			return nil, "", fmt.Errorf("failed to write file part %q: %w", file.field, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize form: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// PostMultipart encodes form and issues a POST to url through the full
// pipeline.
func (c *Client) PostMultipart(ctx context.Context, url string, form *MultipartForm) (*http.Response, error) {
	body, contentType, err := form.Build()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(req)
}
