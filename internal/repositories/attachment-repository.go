package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crf-system/internal/entities"
)

type AttachmentRepositoryInterface interface {
	CreateInTx(ctx context.Context, tx pgx.Tx, attachment *entities.Attachment) error
	FindAllByCRFID(ctx context.Context, crfID uint64) ([]entities.Attachment, error)
	FindAllByCRFIDInTx(ctx context.Context, tx pgx.Tx, crfID uint64) ([]entities.Attachment, error)
}

type AttachmentRepository struct {
	storage *pgxpool.Pool
}

func NewAttachmentRepository(storage *pgxpool.Pool) AttachmentRepositoryInterface {
	return &AttachmentRepository{storage: storage}
}

func (r *AttachmentRepository) CreateInTx(ctx context.Context, tx pgx.Tx, attachment *entities.Attachment) error {
	query := `
		INSERT INTO crf_attachments (crf_id, uploaded_by, file_name, file_path, mime_type, file_size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	err := tx.QueryRow(ctx, query,
		attachment.CRFID, attachment.UploadedBy, attachment.FileName,
		attachment.FilePath, attachment.MimeType, attachment.FileSize,
	).Scan(&attachment.ID, &attachment.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения вложения: %w", err)
	}
	return nil
}

func (r *AttachmentRepository) FindAllByCRFID(ctx context.Context, crfID uint64) ([]entities.Attachment, error) {
	return r.findAll(ctx, r.storage, crfID)
}

func (r *AttachmentRepository) FindAllByCRFIDInTx(ctx context.Context, tx pgx.Tx, crfID uint64) ([]entities.Attachment, error) {
	return r.findAll(ctx, tx, crfID)
}

type rowsQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func (r *AttachmentRepository) findAll(ctx context.Context, q rowsQuerier, crfID uint64) ([]entities.Attachment, error) {
	query := `
		SELECT id, crf_id, uploaded_by, file_name, file_path, mime_type, file_size, created_at
		FROM crf_attachments
		WHERE crf_id = $1
		ORDER BY created_at ASC, id ASC`
	rows, err := q.Query(ctx, query, crfID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения вложений заявки %d: %w", crfID, err)
	}
	defer rows.Close()

	attachments := make([]entities.Attachment, 0)
	for rows.Next() {
		var a entities.Attachment
		if err := rows.Scan(&a.ID, &a.CRFID, &a.UploadedBy, &a.FileName, &a.FilePath, &a.MimeType, &a.FileSize, &a.CreatedAt); err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}
