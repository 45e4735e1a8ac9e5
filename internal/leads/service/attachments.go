package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"prime_crm_backend/internal/leads/repository"
	"prime_crm_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	opUploadAttachment = "leads.service.upload_attachment"
	opAttachmentURL    = "leads.service.attachment_url"

	attachmentURLExpiry = 15 * time.Minute
)

// ObjectStore abstracts the S3-compatible blob storage for lead documents.
type ObjectStore interface {
	Upload(ctx context.Context, objectKey, contentType string, size int64, r io.Reader) error
	PresignedGetURL(ctx context.Context, objectKey, downloadName string, expiry time.Duration) (string, error)
	Remove(ctx context.Context, objectKey string) error
}

// SetObjectStore wires the blob store used for lead attachments.
func (s *Service) SetObjectStore(store ObjectStore, maxUploadBytes int64) {
	s.store = store
	s.maxUpload = maxUploadBytes
}

// UploadAttachment stores the file and records it on the lead.
func (s *Service) UploadAttachment(ctx context.Context, leadID, agentID uuid.UUID, fileName, contentType string, size int64, r io.Reader) (repository.Attachment, error) {
	if s.store == nil {
		return repository.Attachment{}, apperr.Internal("attachment storage not configured").WithOp(opUploadAttachment)
	}
	if size <= 0 {
		return repository.Attachment{}, apperr.Validation("file is empty").WithOp(opUploadAttachment)
	}
	if s.maxUpload > 0 && size > s.maxUpload {
		return repository.Attachment{}, apperr.Validation(fmt.Sprintf("file exceeds the %d byte limit", s.maxUpload)).WithOp(opUploadAttachment)
	}

	if _, err := s.repo.GetByID(ctx, leadID); err != nil {
		return repository.Attachment{}, err
	}

	fileName = filepath.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." {
		fileName = "attachment"
	}
	objectKey := fmt.Sprintf("leads/%s/%s%s", leadID, uuid.NewString(), strings.ToLower(filepath.Ext(fileName)))

	if err := s.store.Upload(ctx, objectKey, contentType, size, r); err != nil {
		return repository.Attachment{}, apperr.Internal(fmt.Sprintf("store attachment failed: %v", err)).WithOp(opUploadAttachment)
	}

	attachment, err := s.repo.AddAttachment(ctx, repository.AddAttachmentParams{
		LeadID:      leadID,
		UploadedBy:  agentID,
		FileName:    fileName,
		ObjectKey:   objectKey,
		ContentType: contentType,
		SizeBytes:   size,
	})
	if err != nil {
		// Roll the orphaned object back on a best-effort basis.
		if rmErr := s.store.Remove(ctx, objectKey); rmErr != nil {
			s.log.Error("remove orphaned attachment object failed", "objectKey", objectKey, "error", rmErr)
		}
		return repository.Attachment{}, err
	}

	s.log.Info("attachment uploaded", "leadId", leadID, "attachmentId", attachment.ID, "size", size)
	return attachment, nil
}

func (s *Service) ListAttachments(ctx context.Context, leadID uuid.UUID) ([]repository.Attachment, error) {
	return s.repo.ListAttachments(ctx, leadID)
}

// AttachmentDownloadURL returns a short-lived presigned download link.
func (s *Service) AttachmentDownloadURL(ctx context.Context, leadID, attachmentID uuid.UUID) (string, error) {
	if s.store == nil {
		return "", apperr.Internal("attachment storage not configured").WithOp(opAttachmentURL)
	}
	attachment, err := s.repo.GetAttachment(ctx, leadID, attachmentID)
	if err != nil {
		return "", err
	}
	url, err := s.store.PresignedGetURL(ctx, attachment.ObjectKey, attachment.FileName, attachmentURLExpiry)
	if err != nil {
		return "", apperr.Internal(fmt.Sprintf("presign attachment failed: %v", err)).WithOp(opAttachmentURL)
	}
	return url, nil
}

func (s *Service) DeleteAttachment(ctx context.Context, leadID, attachmentID uuid.UUID) error {
	objectKey, err := s.repo.DeleteAttachment(ctx, leadID, attachmentID)
	if err != nil {
		return err
	}
	if s.store != nil {
		if rmErr := s.store.Remove(ctx, objectKey); rmErr != nil {
			s.log.Error("remove attachment object failed", "objectKey", objectKey, "error", rmErr)
		}
	}
	return nil
}
