package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"content-encryption-service/internal/domain"
)

// EncryptionKeyModel はgorm用の暗号鍵モデル定義。
type EncryptionKeyModel struct {
	ID            string     `gorm:"type:char(36);primaryKey"`
	ContentID     string     `gorm:"type:char(36);not null;index:idx_content_id;index:idx_content_active"`
	KeyHash       string     `gorm:"type:char(64);not null"`
	WrappedKey    []byte     `gorm:"type:blob;not null"`
	Algorithm     string     `gorm:"type:varchar(32);not null"`
	KeyDerivation string     `gorm:"type:varchar(32);not null"`
	Salt          []byte     `gorm:"type:blob;not null"`
	Iterations    uint       `gorm:"not null"`
	KeyLength     uint       `gorm:"not null"`
	CreatedAt     time.Time  `gorm:"type:datetime(6);not null;autoCreateTime"`
	ExpiresAt     time.Time  `gorm:"type:datetime(6);not null"`
	RotatedAt     *time.Time `gorm:"type:datetime(6);index:idx_content_active"`
}

// TableName はテーブル名を返す。
func (EncryptionKeyModel) TableName() string {
	return "encryption_keys"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (e *EncryptionKeyModel) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// newEncryptionKeyModel はドメインエンティティをモデルに変換する。
func newEncryptionKeyModel(key *domain.EncryptionKey) *EncryptionKeyModel {
	return &EncryptionKeyModel{
		ID:            key.ID,
		ContentID:     key.ContentID,
		KeyHash:       key.KeyHash,
		WrappedKey:    key.WrappedKey,
		Algorithm:     string(key.Algorithm),
		KeyDerivation: string(key.KeyDerivation),
		Salt:          key.Salt,
		Iterations:    key.Iterations,
		KeyLength:     key.KeyLength,
		ExpiresAt:     key.ExpiresAt,
		RotatedAt:     key.RotatedAt,
	}
}

// toDomain はモデルをドメインエンティティに変換する。
func (e *EncryptionKeyModel) toDomain() *domain.EncryptionKey {
	return &domain.EncryptionKey{
		ID:            e.ID,
		ContentID:     e.ContentID,
		KeyHash:       e.KeyHash,
		WrappedKey:    e.WrappedKey,
		Algorithm:     domain.Algorithm(e.Algorithm),
		KeyDerivation: domain.KeyDerivation(e.KeyDerivation),
		Salt:          e.Salt,
		Iterations:    e.Iterations,
		KeyLength:     e.KeyLength,
		CreatedAt:     e.CreatedAt,
		ExpiresAt:     e.ExpiresAt,
		RotatedAt:     e.RotatedAt,
	}
}

// KeyRepository は暗号鍵のデータアクセスを提供する。
type KeyRepository struct {
	db *gorm.DB
}

// NewKeyRepository は新しいKeyRepositoryを生成する。
func NewKeyRepository(db *gorm.DB) *KeyRepository {
	return &KeyRepository{db: db}
}

// Create は新しい暗号鍵を保存する。
func (r *KeyRepository) Create(ctx context.Context, key *domain.EncryptionKey) error {
	model := newEncryptionKeyModel(key)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create key",
			"operation", "create_key",
			"content_id", key.ContentID,
			"error", err,
		)
		return err
	}
	key.ID = model.ID
	key.CreatedAt = model.CreatedAt
	return nil
}

// FindActiveByContentID は指定コンテンツの有効な鍵（未ローテーション・未失効）を
// 取得する。存在しない場合はnilを返す。
func (r *KeyRepository) FindActiveByContentID(ctx context.Context, contentID string, now time.Time) (*domain.EncryptionKey, error) {
	var model EncryptionKeyModel
	err := r.db.WithContext(ctx).
		Where("content_id = ? AND rotated_at IS NULL AND expires_at > ?", contentID, now).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find active key",
			"operation", "find_active_by_content_id",
			"content_id", contentID,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindAllByContentID は指定コンテンツの全鍵（履歴含む）を取得する。
func (r *KeyRepository) FindAllByContentID(ctx context.Context, contentID string) ([]*domain.EncryptionKey, error) {
	var models []EncryptionKeyModel
	err := r.db.WithContext(ctx).
		Where("content_id = ?", contentID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find keys by content_id",
			"operation", "find_all_by_content_id",
			"content_id", contentID,
			"error", err,
		)
		return nil, err
	}

	keys := make([]*domain.EncryptionKey, len(models))
	for i := range models {
		keys[i] = models[i].toDomain()
	}
	return keys, nil
}

// CountActiveByAlgorithm は有効な鍵のアルゴリズム別件数を取得する。
func (r *KeyRepository) CountActiveByAlgorithm(ctx context.Context, courseID *string) (map[string]int64, error) {
	return r.countActiveGrouped(ctx, "algorithm", courseID)
}

// CountActiveByKeyDerivation は有効な鍵の導出戦略別件数を取得する。
func (r *KeyRepository) CountActiveByKeyDerivation(ctx context.Context, courseID *string) (map[string]int64, error) {
	return r.countActiveGrouped(ctx, "key_derivation", courseID)
}

func (r *KeyRepository) countActiveGrouped(ctx context.Context, column string, courseID *string) (map[string]int64, error) {
	query := r.db.WithContext(ctx).Model(&EncryptionKeyModel{}).
		Select("encryption_keys."+column+" AS name, COUNT(*) AS total").
		Where("encryption_keys.rotated_at IS NULL")
	if courseID != nil {
		query = query.
			Joins("JOIN contents ON contents.id = encryption_keys.content_id").
			Where("contents.course_id = ?", *courseID)
	}

	var rows []struct {
		Name  string
		Total int64
	}
	if err := query.Group("encryption_keys." + column).Scan(&rows).Error; err != nil {
		slog.ErrorContext(ctx, "failed to count active keys",
			"operation", "count_active_grouped",
			"column", column,
			"error", err,
		)
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Name] = row.Total
	}
	return counts, nil
}

// CountExpiringSoon は指定時刻までに失効する有効鍵の件数を取得する。
func (r *KeyRepository) CountExpiringSoon(ctx context.Context, courseID *string, before time.Time) (int64, error) {
	query := r.db.WithContext(ctx).Model(&EncryptionKeyModel{}).
		Where("encryption_keys.rotated_at IS NULL AND encryption_keys.expires_at <= ?", before)
	if courseID != nil {
		query = query.
			Joins("JOIN contents ON contents.id = encryption_keys.content_id").
			Where("contents.course_id = ?", *courseID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		slog.ErrorContext(ctx, "failed to count expiring keys",
			"operation", "count_expiring_soon",
			"error", err,
		)
		return 0, err
	}
	return count, nil
}
