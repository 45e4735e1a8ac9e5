package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prime_crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	opAddAttachment    = "leads.repository.add_attachment"
	opGetAttachment    = "leads.repository.get_attachment"
	opListAttachments  = "leads.repository.list_attachments"
	opDeleteAttachment = "leads.repository.delete_attachment"
)

// ErrAttachmentNotFound is returned when an attachment row does not exist.
var ErrAttachmentNotFound = errors.New("attachment not found")

type Attachment struct {
	ID          uuid.UUID `json:"id"`
	LeadID      uuid.UUID `json:"leadId"`
	UploadedBy  uuid.UUID `json:"uploadedBy"`
	FileName    string    `json:"fileName"`
	ObjectKey   string    `json:"-"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	CreatedAt   time.Time `json:"createdAt"`
}

type AddAttachmentParams struct {
	LeadID      uuid.UUID
	UploadedBy  uuid.UUID
	FileName    string
	ObjectKey   string
	ContentType string
	SizeBytes   int64
}

func (r *Repository) AddAttachment(ctx context.Context, p AddAttachmentParams) (Attachment, error) {
	var a Attachment
	err := r.pool.QueryRow(ctx, `
		INSERT INTO crm_lead_attachments (lead_id, uploaded_by, file_name, object_key, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, lead_id, uploaded_by, file_name, object_key, content_type, size_bytes, created_at
	`, p.LeadID, p.UploadedBy, p.FileName, p.ObjectKey, p.ContentType, p.SizeBytes).Scan(
		&a.ID, &a.LeadID, &a.UploadedBy, &a.FileName, &a.ObjectKey, &a.ContentType, &a.SizeBytes, &a.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Attachment{}, ErrNotFound
		}
		return Attachment{}, apperr.Internal(fmt.Sprintf("insert attachment failed: %v", err)).WithOp(opAddAttachment)
	}
	return a, nil
}

func (r *Repository) GetAttachment(ctx context.Context, leadID, attachmentID uuid.UUID) (Attachment, error) {
	var a Attachment
	err := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, uploaded_by, file_name, object_key, content_type, size_bytes, created_at
		FROM crm_lead_attachments
		WHERE id = $1 AND lead_id = $2
	`, attachmentID, leadID).Scan(
		&a.ID, &a.LeadID, &a.UploadedBy, &a.FileName, &a.ObjectKey, &a.ContentType, &a.SizeBytes, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Attachment{}, ErrAttachmentNotFound
	}
	if err != nil {
		return Attachment{}, apperr.Internal(fmt.Sprintf("get attachment failed: %v", err)).WithOp(opGetAttachment)
	}
	return a, nil
}

func (r *Repository) ListAttachments(ctx context.Context, leadID uuid.UUID) ([]Attachment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, uploaded_by, file_name, object_key, content_type, size_bytes, created_at
		FROM crm_lead_attachments
		WHERE lead_id = $1
		ORDER BY created_at DESC
	`, leadID)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list attachments failed: %v", err)).WithOp(opListAttachments)
	}
	defer rows.Close()

	attachments := []Attachment{}
	for rows.Next() {
		var a Attachment
		if scanErr := rows.Scan(&a.ID, &a.LeadID, &a.UploadedBy, &a.FileName, &a.ObjectKey, &a.ContentType, &a.SizeBytes, &a.CreatedAt); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan attachment failed: %v", scanErr)).WithOp(opListAttachments)
		}
		attachments = append(attachments, a)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate attachments failed: %v", rowsErr)).WithOp(opListAttachments)
	}

	return attachments, nil
}

// DeleteAttachment removes the row and returns the orphaned object key so
// the caller can remove the stored object.
func (r *Repository) DeleteAttachment(ctx context.Context, leadID, attachmentID uuid.UUID) (string, error) {
	var objectKey string
	err := r.pool.QueryRow(ctx, `
		DELETE FROM crm_lead_attachments
		WHERE id = $1 AND lead_id = $2
		RETURNING object_key
	`, attachmentID, leadID).Scan(&objectKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrAttachmentNotFound
	}
	if err != nil {
		return "", apperr.Internal(fmt.Sprintf("delete attachment failed: %v", err)).WithOp(opDeleteAttachment)
	}
	return objectKey, nil
}
