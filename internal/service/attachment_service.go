package service

import (
	"context"
	"errors"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/storage"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// AttachmentService stores and serves ticket attachments.
type AttachmentService struct {
	tickets     repository.TicketRepository
	attachments repository.AttachmentRepository
	store       storage.Store
	logger      *zap.Logger
	now         func() time.Time
	maxBytes    int64
	allowed     map[string]struct{}
}

// AttachmentDependencies bundles collaborators.
type AttachmentDependencies struct {
	TicketRepo       repository.TicketRepository
	AttachmentRepo   repository.AttachmentRepository
	Store            storage.Store
	Logger           *zap.Logger
	Clock            func() time.Time
	MaxBytes         int64
	AllowedMIMETypes []string
}

// UploadInput is a file received from the client.
type UploadInput struct {
	Filename string
	MimeType string
	Size     int64
	Content  io.Reader
}

// NewAttachmentService constructs the service.
func NewAttachmentService(deps AttachmentDependencies) *AttachmentService {
	allowed := make(map[string]struct{}, len(deps.AllowedMIMETypes))
	for _, m := range deps.AllowedMIMETypes {
		allowed[strings.ToLower(m)] = struct{}{}
	}
	s := &AttachmentService{
		tickets:     deps.TicketRepo,
		attachments: deps.AttachmentRepo,
		store:       deps.Store,
		logger:      deps.Logger,
		now:         deps.Clock,
		maxBytes:    deps.MaxBytes,
		allowed:     allowed,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Upload stores a file against a ticket the caller may upload to.
func (s *AttachmentService) Upload(ctx context.Context, p *auth.Principal, ticketID string, in UploadInput) (*domain.Attachment, error) {
	if p == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if err := requireID(ticketID, "ticket"); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.FromStore(err, "ticket")
	}
	if err := auth.Authorize(p, auth.ActionUploadAttachment, ticket); err != nil {
		return nil, err
	}

	filename := sanitizeFilename(in.Filename)
	if filename == "" {
		return nil, apperrors.NewFieldError("file", "a file is required")
	}
	mimeType := normalizeMIME(in.MimeType)
	if len(s.allowed) > 0 {
		if _, ok := s.allowed[mimeType]; !ok {
			return nil, apperrors.NewFieldError("file", "file type "+mimeType+" is not allowed")
		}
	}
	if s.maxBytes > 0 && in.Size > s.maxBytes {
		return nil, apperrors.NewFieldError("file", "file exceeds maximum size")
	}

	obj, err := s.store.Save(ctx, in.Content, s.maxBytes)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, apperrors.NewFieldError("file", "file exceeds maximum size")
		}
		return nil, apperrors.NewStoreError(err)
	}

	attachment := &domain.Attachment{
		TicketID:     ticket.ID,
		Filename:     filename,
		StoragePath:  obj.Path,
		MimeType:     mimeType,
		Size:         obj.Size,
		Checksum:     obj.Checksum,
		UploadedByID: p.UserID,
		CreatedAt:    s.now(),
	}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		// The blob stays on disk; the path is logged so it can be reclaimed.
		s.logger.Warn("attachment metadata insert failed, stored file left in place",
			zap.String("ticket_id", ticket.ID),
			zap.String("storage_path", obj.Path),
			zap.Error(err))
		return nil, apperrors.FromStore(err, "attachment")
	}
	s.logger.Info("attachment stored",
		zap.String("ticket_id", ticket.ID),
		zap.String("attachment_id", attachment.ID),
		zap.Int64("size", attachment.Size))
	return attachment, nil
}

// Open returns attachment metadata and its content for a caller who may read the ticket.
func (s *AttachmentService) Open(ctx context.Context, p *auth.Principal, attachmentID string) (*domain.Attachment, *os.File, error) {
	if p == nil {
		return nil, nil, apperrors.NewUnauthorized("authentication required")
	}
	if err := requireID(attachmentID, "attachment"); err != nil {
		return nil, nil, err
	}
	attachment, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		return nil, nil, apperrors.FromStore(err, "attachment")
	}
	ticket, err := s.tickets.GetByID(ctx, attachment.TicketID)
	if err != nil {
		return nil, nil, apperrors.FromStore(err, "ticket")
	}
	if err := auth.Authorize(p, auth.ActionReadAttachment, ticket); err != nil {
		return nil, nil, err
	}
	f, err := s.store.Open(attachment.StoragePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, apperrors.NewNotFound("attachment file", nil)
		}
		return nil, nil, apperrors.NewStoreError(err)
	}
	return attachment, f, nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func normalizeMIME(value string) string {
	if value == "" {
		return "application/octet-stream"
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(value))
	}
	return strings.ToLower(mediaType)
}
