package apiclient

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MaxUploadSize is the largest file the service accepts.
const MaxUploadSize = 10 * 1024 * 1024

// SpreadsheetExtensions are the file types accepted by the upload endpoints.
var SpreadsheetExtensions = []string{"xlsx", "xls", "csv"}

var (
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file exceeds maximum upload size")
)

// FilePart is one file of a multipart upload. Content is held in memory so
// the body can be re-sent on retry.
type FilePart struct {
	Field   string
	Name    string
	Content []byte
}

// Multipart is an upload payload.
type Multipart struct {
	Fields map[string]string
	Files  []FilePart
}

// AllowedFile reports whether name has one of the given extensions
// (case-insensitive).
func AllowedFile(name string, extensions ...string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return false
	}
	for _, e := range extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// LoadSpreadsheet reads a spreadsheet from disk into a FilePart, rejecting
// unsupported extensions and files over MaxUploadSize.
func LoadSpreadsheet(field, path string) (FilePart, error) {
	name := filepath.Base(path)
	if !AllowedFile(name, SpreadsheetExtensions...) {
		return FilePart{}, fmt.Errorf("%s: %w (allowed: %s)", name, ErrUnsupportedFile, strings.Join(SpreadsheetExtensions, ", "))
	}
	info, err := os.Stat(path)
	if err != nil {
		return FilePart{}, err
	}
	if info.Size() > MaxUploadSize {
		return FilePart{}, fmt.Errorf("%s: %w (%d bytes)", name, ErrFileTooLarge, info.Size())
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return FilePart{}, err
	}
	return FilePart{Field: field, Name: name, Content: content}, nil
}

// fingerprintParams identifies an upload by its form values and file names.
func (m *Multipart) fingerprintParams() map[string]any {
	params := make(map[string]any, len(m.Fields)+1)
	for k, v := range m.Fields {
		params[k] = v
	}
	names := make([]string, 0, len(m.Files))
	for _, f := range m.Files {
		names = append(names, f.Field+"="+f.Name)
	}
	sort.Strings(names)
	params["files"] = names
	return params
}

func (m *Multipart) encode() (body []byte, contentType string, err error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, m.Fields[k]); err != nil {
			return nil, "", err
		}
	}
	for _, f := range m.Files {
		part, err := w.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
