package models

import "time"

// DocumentKind labels the purpose of an uploaded file.
type DocumentKind string

const (
	DocumentTranscript  DocumentKind = "transcript"
	DocumentCertificate DocumentKind = "certificate"
	DocumentLanguage    DocumentKind = "language_test"
	DocumentReference   DocumentKind = "reference_letter"
	DocumentOther       DocumentKind = "other"
)

// ValidDocumentKind reports whether the kind is part of the fixed set.
func ValidDocumentKind(k DocumentKind) bool {
	switch k {
	case DocumentTranscript, DocumentCertificate, DocumentLanguage, DocumentReference, DocumentOther:
		return true
	}
	return false
}

// Document stores metadata for an uploaded supporting file. The physical file
// lives in local storage under StoragePath.
type Document struct {
	ID            string       `db:"id" json:"id"`
	StudentID     string       `db:"student_id" json:"student_id"`
	ApplicationID *string      `db:"application_id" json:"application_id,omitempty"`
	Kind          DocumentKind `db:"kind" json:"kind"`
	Filename      string       `db:"filename" json:"filename"`
	MimeType      string       `db:"mime_type" json:"mime_type"`
	SizeBytes     int64        `db:"size_bytes" json:"size_bytes"`
	StoragePath   string       `db:"storage_path" json:"-"`
	UploadedAt    time.Time    `db:"uploaded_at" json:"uploaded_at"`
}

// DocumentFilter captures list criteria for documents.
type DocumentFilter struct {
	StudentID     string
	ApplicationID string
	Kind          *DocumentKind
}
