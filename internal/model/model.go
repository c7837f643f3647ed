package model

import "time"

// UserToken represents the user's OAuth2 token stored in DynamoDB.
type UserToken struct {
	UserID                string    `json:"user_id" dynamodbav:"user_id"`
	EncryptedRefreshToken string    `json:"encrypted_refresh_token" dynamodbav:"encrypted_refresh_token"`
	UpdatedAt             time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// SessionRecord is a server-side login session. It is created on a
// successful OAuth exchange and destroyed on logout or expiry.
type SessionRecord struct {
	SessionID string    `json:"session_id" dynamodbav:"session_id"`
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	IssuedAt  time.Time `json:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix timestamp)
}

// OAuthStateToken is a single-use anti-CSRF value binding an auth request
// to its callback. Consumed exactly once; expired tokens are swept by TTL.
type OAuthStateToken struct {
	StateValue string    `json:"state_value" dynamodbav:"state_value"`
	IssuedAt   time.Time `json:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt  int64     `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix timestamp)
}

// FileRecord mirrors a cloud storage provider's file metadata. It is
// read-only here and re-fetched on every processing pass; the provider
// remains the source of truth.
type FileRecord struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	MIMEType            string    `json:"mimeType"`
	ModifiedTime        time.Time `json:"modifiedTime"`
	ContentModifiedTime time.Time `json:"contentModifiedTime"`
	Size                int64     `json:"size"`
	ParentFolderID      string    `json:"parentFolderId,omitempty"`
}

// IsFolder reports whether the record is a folder rather than a regular file.
func (f FileRecord) IsFolder() bool {
	return f.MIMEType == "application/vnd.google-apps.folder"
}

// ChunkMetadata carries the source-file metadata attached to each chunk.
type ChunkMetadata struct {
	FileName     string            `json:"file_name" dynamodbav:"file_name"`
	MIMEType     string            `json:"mime_type" dynamodbav:"mime_type"`
	ModifiedTime time.Time         `json:"modified_time" dynamodbav:"modified_time"`
	FolderPath   string            `json:"folder_path" dynamodbav:"folder_path"`
	Extra        map[string]string `json:"extra,omitempty" dynamodbav:"extra,omitempty"`
}

// Chunk is a bounded passage of extracted text plus its embedding, the unit
// of retrieval. Chunks are immutable once written; re-indexing writes a new
// generation rather than mutating in place.
type Chunk struct {
	ID        string        `json:"chunk_id" dynamodbav:"chunk_id"`
	FileID    string        `json:"source_file_id" dynamodbav:"source_file_id"`
	FolderID  string        `json:"folder_id" dynamodbav:"folder_id"`
	Text      string        `json:"text" dynamodbav:"text"`
	Embedding []float64     `json:"embedding" dynamodbav:"embedding"`
	Metadata  ChunkMetadata `json:"metadata" dynamodbav:"metadata"`
}

// ScoredChunk pairs a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// FolderIndexMeta is the per-folder index bookkeeping record.
// TimeIndexed only advances after every file directly under the folder has
// been chunked and written in the same pass.
type FolderIndexMeta struct {
	FolderID       string             `json:"folder_id" dynamodbav:"folder_id"`
	AbsoluteIDPath string             `json:"absolute_id_path" dynamodbav:"absolute_id_path"`
	TimeIndexed    time.Time          `json:"time_indexed" dynamodbav:"time_indexed"`
	Children       []*FolderIndexMeta `json:"children,omitempty" dynamodbav:"-"`
	ChildIDs       []string           `json:"-" dynamodbav:"child_ids,omitempty"`
}

// Source is a cited snippet backing an answer.
type Source struct {
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	FileName string  `json:"file_name"`
	FileID   string  `json:"file_id"`
	MIMEType string  `json:"mime_type"`
}

// QueryResult is the answer to a natural-language query plus its sources.
type QueryResult struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}
