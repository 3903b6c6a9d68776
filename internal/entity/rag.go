package entity

import "fmt"

// ChunkID builds the identifier of the i-th chunk of a document.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

type Chunk struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	Position    int       `json:"position"`
	Text        string    `json:"text"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	Metadata    ChunkMeta `json:"metadata"`
	Vector      []float32 `json:"-"`
}

// ChunkMeta is the fixed set of metadata stored next to every vector.
type ChunkMeta struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Filename string `json:"original_filename,omitempty"`
}

// VectorHit is one raw nearest-neighbour match returned by a vector index.
type VectorHit struct {
	ChunkID    string
	DocumentID string
	Text       string
	Meta       ChunkMeta
	Similarity float64
	Seq        int64 // insertion order
}

type SearchFilter struct {
	Category string
}

type RetrievedChunk struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title,omitempty"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

type RetrievalResult struct {
	Chunks []RetrievedChunk `json:"chunks"`
}

func (r *RetrievalResult) ChunkIDs() []string {
	if r == nil {
		return []string{}
	}
	ids := make([]string, 0, len(r.Chunks))
	for _, c := range r.Chunks {
		ids = append(ids, c.ChunkID)
	}
	return ids
}

func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.Chunks) == 0
}

type VectorStats struct {
	ChunkCount       int `json:"chunk_count"`
	DocumentCount    int `json:"document_count"`
	IndexedDocuments int `json:"indexed_documents"`
}

// Prompt is the assembled input for one generation call.
type Prompt struct {
	System   string           `json:"system"`
	Context  []RetrievedChunk `json:"context"`
	History  []ChatMessage    `json:"history"`
	Question string           `json:"question"`
	Text     string           `json:"text"`
}
