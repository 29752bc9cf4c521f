package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/entity"
)

// NewFile describes a file about to be recorded.
type NewFile struct {
	SourcePath  string
	ContentHash []byte
	MimeType    string
	Size        int64
}

type ReceiptFileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ReceiptFile, error)
	GetByHash(ctx context.Context, hash []byte) (*entity.ReceiptFile, error)
	// UpsertByHash returns the existing row for the hash, or creates one.
	// existed reports which.
	UpsertByHash(ctx context.Context, f NewFile) (file *entity.ReceiptFile, existed bool, err error)
}

type receiptFileRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewReceiptFileRepository(db *DB, logger *slog.Logger) ReceiptFileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &receiptFileRepo{db: db, logger: logger}
}

func (r *receiptFileRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ReceiptFile, error) {
	return r.getOne(ctx, entsql.EQ("id", id))
}

func (r *receiptFileRepo) GetByHash(ctx context.Context, hash []byte) (*entity.ReceiptFile, error) {
	return r.getOne(ctx, entsql.EQ("content_hash", hash))
}

func (r *receiptFileRepo) getOne(ctx context.Context, where *entsql.Predicate) (*entity.ReceiptFile, error) {
	b := entsql.Dialect(r.db.dialect)
	query, args := b.Select(fileColumns...).From(b.Table(tableFiles)).Where(where).Limit(1).Query()

	var f entity.ReceiptFile
	err := r.db.SQL.QueryRowContext(ctx, query, args...).
		Scan(&f.ID, &f.SourcePath, &f.ContentHash, &f.MimeType, &f.FileSize, &f.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("receipt file: %w", common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get receipt file", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return &f, nil
}

func (r *receiptFileRepo) create(ctx context.Context, nf NewFile) (*entity.ReceiptFile, error) {
	f := &entity.ReceiptFile{
		ID:          uuid.New(),
		SourcePath:  nf.SourcePath,
		ContentHash: nf.ContentHash,
		MimeType:    nf.MimeType,
		FileSize:    nf.Size,
		UploadedAt:  time.Now().UTC(),
	}
	query, args := entsql.Dialect(r.db.dialect).
		Insert(tableFiles).
		Columns(fileColumns...).
		Values(f.ID, f.SourcePath, f.ContentHash, f.MimeType, f.FileSize, f.UploadedAt).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to create receipt file", "source_path", nf.SourcePath, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return f, nil
}

func (r *receiptFileRepo) UpsertByHash(ctx context.Context, nf NewFile) (*entity.ReceiptFile, bool, error) {
	if existing, err := r.GetByHash(ctx, nf.ContentHash); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, false, err
	}
	row, err := r.create(ctx, nf)
	if err != nil {
		// Lost a race on the unique hash: the other writer's row wins.
		if existing, gerr := r.GetByHash(ctx, nf.ContentHash); gerr == nil {
			return existing, true, nil
		}
		return nil, false, err
	}
	r.logger.Debug("receipt file recorded", "file_id", row.ID, "source_path", row.SourcePath)
	return row, false, nil
}
