package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/unipath/unipath-api/internal/models"
	appErrors "github.com/unipath/unipath-api/pkg/errors"
	"github.com/unipath/unipath-api/pkg/storage"
)

type documentStoreMock struct {
	docs map[string]*models.Document
}

func newDocumentStoreMock() *documentStoreMock {
	return &documentStoreMock{docs: map[string]*models.Document{}}
}

func (m *documentStoreMock) Create(_ context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.UploadedAt = time.Now().UTC()
	clone := *doc
	m.docs[doc.ID] = &clone
	return nil
}

func (m *documentStoreMock) FindByID(_ context.Context, id string) (*models.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *doc
	return &clone, nil
}

func (m *documentStoreMock) List(_ context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	var out []models.Document
	for _, doc := range m.docs {
		if filter.StudentID != "" && doc.StudentID != filter.StudentID {
			continue
		}
		if filter.Kind != nil && doc.Kind != *filter.Kind {
			continue
		}
		out = append(out, *doc)
	}
	return out, nil
}

func (m *documentStoreMock) Delete(_ context.Context, id string) error {
	if _, ok := m.docs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.docs, id)
	return nil
}

// pdfPayload is enough of a header for content sniffing to say application/pdf.
func pdfPayload() []byte {
	return append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{'x'}, 128)...)
}

func newDocumentFixture(t *testing.T) (*DocumentService, *documentStoreMock, *applicationRepoMock) {
	t.Helper()
	store := newDocumentStoreMock()
	apps := newApplicationRepoMock()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewDocumentService(store, apps, files, signer, apps, nil, DocumentServiceConfig{})
	return svc, store, apps
}

func uploadOf(data []byte, name string) DocumentUpload {
	return DocumentUpload{Filename: name, Size: int64(len(data)), Content: bytes.NewReader(data)}
}

func TestDocumentServiceUploadAndDownload(t *testing.T) {
	svc, _, _ := newDocumentFixture(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "stu-1", UploadDocumentRequest{Kind: models.DocumentTranscript}, uploadOf(pdfPayload(), "transcript.pdf"))
	require.NoError(t, err)
	require.Equal(t, "application/pdf", doc.MimeType)
	require.Equal(t, "transcript.pdf", doc.Filename)

	url, err := svc.DownloadURL(ctx, doc.ID, "stu-1", models.RoleStudent)
	require.NoError(t, err)
	require.Contains(t, url, "/documents/"+doc.ID+"/download?token=")

	token := url[strings.Index(url, "token=")+len("token="):]
	download, err := svc.Download(ctx, doc.ID, token, "stu-1", models.RoleStudent)
	require.NoError(t, err)
	defer download.File.Close()

	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	require.Equal(t, pdfPayload(), content)
}

func TestDocumentServiceUploadRejectsUnknownKind(t *testing.T) {
	svc, _, _ := newDocumentFixture(t)

	_, err := svc.Upload(context.Background(), "stu-1", UploadDocumentRequest{Kind: "resume"}, uploadOf(pdfPayload(), "resume.pdf"))
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDocumentServiceUploadRejectsOversizedFile(t *testing.T) {
	store := newDocumentStoreMock()
	apps := newApplicationRepoMock()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := NewDocumentService(store, apps, files, storage.NewSignedURLSigner("s", time.Hour), apps, nil, DocumentServiceConfig{MaxFileSize: 16})

	_, err = svc.Upload(context.Background(), "stu-1", UploadDocumentRequest{Kind: models.DocumentOther}, uploadOf(pdfPayload(), "big.pdf"))
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDocumentServiceUploadRejectsDisallowedMime(t *testing.T) {
	svc, _, _ := newDocumentFixture(t)

	payload := []byte("#!/bin/sh\necho hi\n")
	_, err := svc.Upload(context.Background(), "stu-1", UploadDocumentRequest{Kind: models.DocumentOther}, uploadOf(payload, "script.sh"))
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDocumentServiceUploadChecksApplicationOwnership(t *testing.T) {
	svc, _, apps := newDocumentFixture(t)
	appID := seedApplication(apps, "stu-2", models.StatusDraft)

	_, err := svc.Upload(context.Background(), "stu-1", UploadDocumentRequest{Kind: models.DocumentTranscript, ApplicationID: &appID}, uploadOf(pdfPayload(), "t.pdf"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestDocumentServiceListScopesStudents(t *testing.T) {
	svc, _, _ := newDocumentFixture(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "stu-1", UploadDocumentRequest{Kind: models.DocumentTranscript}, uploadOf(pdfPayload(), "a.pdf"))
	require.NoError(t, err)
	_, err = svc.Upload(ctx, "stu-2", UploadDocumentRequest{Kind: models.DocumentTranscript}, uploadOf(pdfPayload(), "b.pdf"))
	require.NoError(t, err)

	mine, err := svc.List(ctx, "stu-1", models.RoleStudent, models.DocumentFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	all, err := svc.List(ctx, "adm-1", models.RoleAdmin, models.DocumentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestDocumentServiceGetEnforcesOwnership(t *testing.T) {
	svc, _, _ := newDocumentFixture(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "stu-1", UploadDocumentRequest{Kind: models.DocumentOther}, uploadOf(pdfPayload(), "x.pdf"))
	require.NoError(t, err)

	_, err = svc.Get(ctx, doc.ID, "stu-2", models.RoleStudent)
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Get(ctx, doc.ID, "adm-1", models.RoleAdmin)
	require.NoError(t, err)
}

func TestDocumentServiceDownloadRejectsForeignToken(t *testing.T) {
	svc, _, _ := newDocumentFixture(t)
	ctx := context.Background()

	first, err := svc.Upload(ctx, "stu-1", UploadDocumentRequest{Kind: models.DocumentOther}, uploadOf(pdfPayload(), "a.pdf"))
	require.NoError(t, err)
	second, err := svc.Upload(ctx, "stu-1", UploadDocumentRequest{Kind: models.DocumentOther}, uploadOf(pdfPayload(), "b.pdf"))
	require.NoError(t, err)

	url, err := svc.DownloadURL(ctx, first.ID, "stu-1", models.RoleStudent)
	require.NoError(t, err)
	token := url[strings.Index(url, "token=")+len("token="):]

	_, err = svc.Download(ctx, second.ID, token, "stu-1", models.RoleStudent)
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestDocumentServiceDownloadMissingFile(t *testing.T) {
	svc, _, _ := newDocumentFixture(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "stu-1", UploadDocumentRequest{Kind: models.DocumentOther}, uploadOf(pdfPayload(), "x.pdf"))
	require.NoError(t, err)
	require.NoError(t, svc.storage.Delete(doc.StoragePath))

	url, err := svc.DownloadURL(ctx, doc.ID, "stu-1", models.RoleStudent)
	require.NoError(t, err)
	token := url[strings.Index(url, "token=")+len("token="):]

	_, err = svc.Download(ctx, doc.ID, token, "stu-1", models.RoleStudent)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDocumentServiceDeleteRemovesMetadataAndFile(t *testing.T) {
	svc, store, _ := newDocumentFixture(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "stu-1", UploadDocumentRequest{Kind: models.DocumentOther}, uploadOf(pdfPayload(), "x.pdf"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, doc.ID, "stu-1", models.RoleStudent, "127.0.0.1", "test"))
	_, err = store.FindByID(ctx, doc.ID)
	require.ErrorIs(t, err, sql.ErrNoRows)
}
