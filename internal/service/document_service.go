package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unipath/unipath-api/internal/models"
	appErrors "github.com/unipath/unipath-api/pkg/errors"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	Delete(ctx context.Context, id string) error
}

type documentApplicationResolver interface {
	FindByID(ctx context.Context, id string) (*models.ApplicationDetail, error)
}

type documentFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type documentURLSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (id, relPath string, expiresAt time.Time, err error)
}

// DocumentUpload carries upload metadata and the stream reader.
type DocumentUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// DocumentDownload bundles an open file with metadata for streaming.
type DocumentDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// UploadDocumentRequest holds the metadata side of an upload.
type UploadDocumentRequest struct {
	Kind          models.DocumentKind
	ApplicationID *string
	IP            string
	UserAgent     string
}

// DocumentServiceConfig holds validation parameters for uploads.
type DocumentServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// DocumentService manages supporting-file metadata and storage IO. Files are
// only reachable through short-lived signed URLs.
type DocumentService struct {
	repo         documentStore
	applications documentApplicationResolver
	storage      documentFileStorage
	signer       documentURLSigner
	audits       auditRecorder
	logger       *zap.Logger
	cfg          DocumentServiceConfig
	mimeSet      map[string]struct{}
}

// NewDocumentService constructs the service with defaults.
func NewDocumentService(repo documentStore, applications documentApplicationResolver, storage documentFileStorage, signer documentURLSigner, audits auditRecorder, logger *zap.Logger, cfg DocumentServiceConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{
			"application/pdf",
			"image/jpeg",
			"image/png",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &DocumentService{
		repo:         repo,
		applications: applications,
		storage:      storage,
		signer:       signer,
		audits:       audits,
		logger:       logger,
		cfg:          cfg,
		mimeSet:      mimeSet,
	}
}

// Upload persists the physical file and its metadata for the student.
func (s *DocumentService) Upload(ctx context.Context, actorID string, req UploadDocumentRequest, upload DocumentUpload) (*models.Document, error) {
	if !models.ValidDocumentKind(req.Kind) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document kind %q", req.Kind))
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	if req.ApplicationID != nil {
		app, err := s.applications.FindByID(ctx, *req.ApplicationID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
		}
		if app.StudentID != actorID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
		}
	}
	mimeType, err := s.detectMime(upload)
	if err != nil {
		return nil, err
	}
	if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mime type not allowed")
	}
	filename := s.generateFilename(req.Kind, upload.Filename)
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	path, err := s.storage.SaveStream(filename, upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist document file")
	}
	doc := &models.Document{
		StudentID:     actorID,
		ApplicationID: req.ApplicationID,
		Kind:          req.Kind,
		Filename:      upload.Filename,
		MimeType:      mimeType,
		SizeBytes:     upload.Size,
		StoragePath:   path,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		_ = s.storage.Delete(path)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document metadata")
	}
	s.emitAudit(ctx, actorID, models.AuditActionDocumentUpload, doc.ID, req.IP, req.UserAgent)
	return doc, nil
}

// List returns documents visible to the actor.
func (s *DocumentService) List(ctx context.Context, actorID string, actorRole models.UserRole, filter models.DocumentFilter) ([]models.Document, error) {
	if actorRole != models.RoleAdmin {
		filter.StudentID = actorID
	}
	if filter.Kind != nil && !models.ValidDocumentKind(*filter.Kind) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document kind %q", *filter.Kind))
	}
	docs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// Get returns one document, enforcing ownership for students.
func (s *DocumentService) Get(ctx context.Context, id, actorID string, actorRole models.UserRole) (*models.Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if actorRole != models.RoleAdmin && doc.StudentID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "document belongs to another student")
	}
	return doc, nil
}

// DownloadURL generates a signed URL for retrieving the file.
func (s *DocumentService) DownloadURL(ctx context.Context, id, actorID string, actorRole models.UserRole) (string, error) {
	if s.signer == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	doc, err := s.Get(ctx, id, actorID, actorRole)
	if err != nil {
		return "", err
	}
	token, _, err := s.signer.Generate(doc.ID, doc.StoragePath)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/documents/%s/download?token=%s", base, doc.ID, token), nil
}

// Download validates the token and opens the file for streaming.
func (s *DocumentService) Download(ctx context.Context, id, token string, actorID string, actorRole models.UserRole) (*DocumentDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	doc, err := s.Get(ctx, id, actorID, actorRole)
	if err != nil {
		return nil, err
	}
	docID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if docID != doc.ID || relPath != doc.StoragePath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token does not match document")
	}
	file, err := s.storage.Open(doc.StoragePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document file is missing")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document file")
	}
	return &DocumentDownload{
		File:      file,
		Filename:  doc.Filename,
		MimeType:  doc.MimeType,
		SizeBytes: doc.SizeBytes,
		ExpiresAt: expiresAt,
	}, nil
}

// Delete removes metadata first, then the physical file best effort.
func (s *DocumentService) Delete(ctx context.Context, id, actorID string, actorRole models.UserRole, ip, userAgent string) error {
	doc, err := s.Get(ctx, id, actorID, actorRole)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	if err := s.storage.Delete(doc.StoragePath); err != nil {
		s.logger.Warn("document file removal failed", zap.String("path", doc.StoragePath), zap.Error(err))
	}
	s.emitAudit(ctx, actorID, models.AuditActionDocumentDelete, id, ip, userAgent)
	return nil
}

func (s *DocumentService) detectMime(upload DocumentUpload) (string, error) {
	buf := make([]byte, 512)
	n, err := upload.Content.Read(buf)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload stream")
	}
	mimeType := http.DetectContentType(buf[:n])
	if idx := strings.Index(mimeType, ";"); idx > 0 {
		mimeType = mimeType[:idx]
	}
	return strings.TrimSpace(mimeType), nil
}

func (s *DocumentService) generateFilename(kind models.DocumentKind, original string) string {
	suffix := make([]byte, 8)
	_, _ = rand.Read(suffix)
	ext := filepath.Ext(original)
	return fmt.Sprintf("%s_%d_%s%s", kind, time.Now().UTC().Unix(), hex.EncodeToString(suffix), ext)
}

func (s *DocumentService) emitAudit(ctx context.Context, actorID, action, resourceID, ip, userAgent string) {
	if s.audits == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "documents",
		ResourceID: &resourceID,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}
	if err := s.audits.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}
