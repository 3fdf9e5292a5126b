package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"dailycode/internal/common/storage"
	"dailycode/internal/verify/model"
	appErr "dailycode/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

const auditContentType = "application/zstd"

// AuditWriter archives verification records.
type AuditWriter interface {
	Write(ctx context.Context, record model.AuditRecord) error
}

// ObjectAuditRepository stores zstd-compressed JSON records in object storage
// under audit/<problem>/<user>/<submission>.json.zst.
type ObjectAuditRepository struct {
	storage storage.ObjectStorage
	bucket  string
}

func NewObjectAuditRepository(objectStorage storage.ObjectStorage, bucket string) *ObjectAuditRepository {
	return &ObjectAuditRepository{storage: objectStorage, bucket: bucket}
}

// AuditKey returns the object key for a record.
func AuditKey(record model.AuditRecord) string {
	return path.Join("audit", record.ProblemID, record.UserID, record.SubmissionID+".json.zst")
}

func (r *ObjectAuditRepository) Write(ctx context.Context, record model.AuditRecord) error {
	if record.SubmissionID == "" || record.ProblemID == "" || record.UserID == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("audit record missing identifiers")
	}
	if r.storage == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("audit storage is not configured")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record failed: %w", err)
	}
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("create zstd writer failed: %w", err)
	}
	if _, err := enc.Write(payload); err != nil {
		_ = enc.Close()
		return fmt.Errorf("compress audit record failed: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("compress audit record failed: %w", err)
	}
	size := int64(buf.Len())
	if err := r.storage.PutObject(ctx, r.bucket, AuditKey(record), &buf, size, auditContentType); err != nil {
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "upload audit record failed")
	}
	return nil
}

// Read loads and decompresses one record.
func (r *ObjectAuditRepository) Read(ctx context.Context, problemID, userID, submissionID string) (model.AuditRecord, error) {
	if r.storage == nil {
		return model.AuditRecord{}, appErr.New(appErr.ServiceUnavailable).WithMessage("audit storage is not configured")
	}
	key := AuditKey(model.AuditRecord{ProblemID: problemID, UserID: userID, SubmissionID: submissionID})
	// minio opens objects lazily, a missing key only surfaces on stat or read.
	if _, err := r.storage.StatObject(ctx, r.bucket, key); err != nil {
		return model.AuditRecord{}, appErr.Wrapf(err, appErr.NotFound, "audit record not found")
	}
	reader, err := r.storage.GetObject(ctx, r.bucket, key)
	if err != nil {
		return model.AuditRecord{}, appErr.Wrapf(err, appErr.NotFound, "open audit record failed")
	}
	defer reader.Close()

	dec, err := zstd.NewReader(reader)
	if err != nil {
		return model.AuditRecord{}, fmt.Errorf("create zstd reader failed: %w", err)
	}
	defer dec.Close()
	data, err := io.ReadAll(dec)
	if err != nil {
		return model.AuditRecord{}, fmt.Errorf("decompress audit record failed: %w", err)
	}
	var record model.AuditRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.AuditRecord{}, fmt.Errorf("decode audit record failed: %w", err)
	}
	return record, nil
}
