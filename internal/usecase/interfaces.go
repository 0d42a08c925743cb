// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"time"

	"content-encryption-service/internal/audit"
	"content-encryption-service/internal/domain"
)

// ContentRepository はコンテンツのデータアクセスのインターフェース。
type ContentRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Content, error)
	FindEncrypted(ctx context.Context, contentID *string) ([]*domain.Content, error)
	CountEncrypted(ctx context.Context, courseID *string) (int64, error)
	StampEncrypted(ctx context.Context, content *domain.Content, key *domain.EncryptionKey, rotatedAt time.Time) error
}

// KeyRepository は暗号鍵のデータアクセスのインターフェース。
type KeyRepository interface {
	FindActiveByContentID(ctx context.Context, contentID string, now time.Time) (*domain.EncryptionKey, error)
	CountActiveByAlgorithm(ctx context.Context, courseID *string) (map[string]int64, error)
	CountActiveByKeyDerivation(ctx context.Context, courseID *string) (map[string]int64, error)
	CountExpiringSoon(ctx context.Context, courseID *string, before time.Time) (int64, error)
}

// EnrollmentFinder は受講登録参照のインターフェース（外部コラボレーター）。
type EnrollmentFinder interface {
	FindActiveEnrollment(ctx context.Context, userID, courseID string) (*domain.Enrollment, error)
}

// BlobStore はブロブストレージのインターフェース（外部コラボレーター）。
type BlobStore interface {
	Read(ctx context.Context, blobPath string) ([]byte, error)
	Write(ctx context.Context, blobPath string, data []byte) (string, error)
}

// KeyWrapper は導出鍵素材を保存用に包む/解くインターフェース。
type KeyWrapper interface {
	Wrap(ctx context.Context, plaintext []byte) ([]byte, error)
	Unwrap(ctx context.Context, wrapped []byte) ([]byte, error)
}

// AuditRecorder は監査イベント記録のインターフェース（外部コラボレーター）。
type AuditRecorder interface {
	Record(ctx context.Context, event audit.Event)
}
