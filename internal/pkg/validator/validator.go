// Package validator checks incoming requests before they reach the usecases.
package validator

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/futig/admissions-assistant/internal/config"
	"github.com/futig/admissions-assistant/internal/entity"
)

// Validator validates chat messages and document uploads
type Validator struct {
	upload           config.FileUploadConfig
	maxMessageLength int
	categories       []string
}

func New(upload config.FileUploadConfig, maxMessageLength int, categories []string) *Validator {
	return &Validator{
		upload:           upload,
		maxMessageLength: maxMessageLength,
		categories:       categories,
	}
}

func (v *Validator) ValidateMessage(req *entity.PostMessageRequest) error {
	if strings.TrimSpace(req.Message) == "" {
		return fmt.Errorf("%w: message", entity.ErrMissingField)
	}
	if n := utf8.RuneCountInString(req.Message); v.maxMessageLength > 0 && n > v.maxMessageLength {
		return fmt.Errorf("%w: message is %d characters (max %d)", entity.ErrInvalidParameter, n, v.maxMessageLength)
	}
	if req.Category != "" {
		return v.ValidateCategory(req.Category)
	}
	return nil
}

func (v *Validator) ValidateCategory(category string) error {
	if !slices.Contains(v.categories, category) {
		return fmt.Errorf("%w: category %q (allowed: %s)", entity.ErrInvalidParameter, category, strings.Join(v.categories, ", "))
	}
	return nil
}

func (v *Validator) ValidateIngest(req *entity.IngestDocumentRequest) error {
	if req.Title == "" {
		return fmt.Errorf("%w: title", entity.ErrMissingField)
	}
	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("%w: text", entity.ErrEmptyDocument)
	}
	if !utf8.ValidString(req.Text) {
		return fmt.Errorf("%w: text is not valid UTF-8", entity.ErrInvalidFormat)
	}
	if int64(len(req.Text)) > v.upload.MaxFileSize {
		return fmt.Errorf("%w: text is %d bytes (max %d)", entity.ErrFileTooLarge, len(req.Text), v.upload.MaxFileSize)
	}
	if req.DocumentID != "" && strings.ContainsAny(req.DocumentID, "/\\ ") {
		return fmt.Errorf("%w: document_id must not contain slashes or spaces", entity.ErrInvalidParameter)
	}
	if req.Category != "" {
		return v.ValidateCategory(req.Category)
	}
	return nil
}

// ValidateUpload validates a multipart document upload
func (v *Validator) ValidateUpload(req *entity.UploadDocumentRequest) error {
	if req.File == nil {
		return fmt.Errorf("%w: file", entity.ErrMissingField)
	}

	if err := v.ValidateExtension(req.File.Filename); err != nil {
		return err
	}

	if req.File.Size > v.upload.MaxFileSize {
		return fmt.Errorf("%w: file '%s' is %d bytes (max %d)", entity.ErrFileTooLarge, req.File.Filename, req.File.Size, v.upload.MaxFileSize)
	}

	if req.Category != "" {
		return v.ValidateCategory(req.Category)
	}
	return nil
}

// ValidateExtension checks the file name against the allowed extensions
func (v *Validator) ValidateExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(v.upload.AllowedExtensions, ext) {
		return fmt.Errorf("%w: %q (allowed: %s)", entity.ErrInvalidExtension, ext, strings.Join(v.upload.AllowedExtensions, ", "))
	}
	return nil
}

// SanitizeFilename sanitizes a filename for safe storage
func SanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	replacer := strings.NewReplacer(
		" ", "_",
		"(", "",
		")", "",
		"[", "",
		"]", "",
		"{", "",
		"}", "",
	)
	return replacer.Replace(filename)
}

// TitleFromFilename derives a readable title from an uploaded file name.
func TitleFromFilename(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(base))
}
