package entity

import "mime/multipart"

type IngestDocumentRequest struct {
	DocumentID  string `json:"document_id,omitempty"`
	Text        string `json:"text"`
	Title       string `json:"title"`
	Category    string `json:"category,omitempty"`
	Filename    string `json:"filename,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type UploadDocumentRequest struct {
	DocumentID  string
	Title       string
	Category    string
	File        *multipart.FileHeader
	CallbackURL string
}

type IngestDocumentResponse struct {
	Status     string `json:"status"`
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count,omitempty"`
}

type DocumentListDTO struct {
	Documents []*Document `json:"documents"`
	Total     int         `json:"total"`
}
