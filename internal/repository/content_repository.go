// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"content-encryption-service/internal/domain"
)

// ContentModel はgorm用のコンテンツモデル定義。
type ContentModel struct {
	ID                 string  `gorm:"type:char(36);primaryKey"`
	CourseID           string  `gorm:"type:varchar(64);not null;index:idx_course_id;index:idx_course_encrypted"`
	Title              string  `gorm:"type:varchar(255);not null"`
	FilePath           string  `gorm:"type:varchar(512);not null"`
	EncryptedFilePath  *string `gorm:"type:varchar(512)"`
	IsEncrypted        bool    `gorm:"not null;default:false;index:idx_course_encrypted"`
	RequiresCompletion bool    `gorm:"not null;default:false"`
	// 暗号化メタデータのJSON（algorithm, key_derivation, iv, tag, salt, key_id, ...）
	EncryptionMetadata *string   `gorm:"type:json"`
	CreatedAt          time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"type:datetime(6);not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (ContentModel) TableName() string {
	return "contents"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (c *ContentModel) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// toDomain はモデルをドメインエンティティに変換する。
func (c *ContentModel) toDomain() (*domain.Content, error) {
	content := &domain.Content{
		ID:                 c.ID,
		CourseID:           c.CourseID,
		Title:              c.Title,
		FilePath:           c.FilePath,
		EncryptedFilePath:  c.EncryptedFilePath,
		IsEncrypted:        c.IsEncrypted,
		RequiresCompletion: c.RequiresCompletion,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
	if c.EncryptionMetadata != nil {
		var meta domain.EncryptionMetadata
		if err := json.Unmarshal([]byte(*c.EncryptionMetadata), &meta); err != nil {
			return nil, fmt.Errorf("unmarshaling encryption metadata: %w", err)
		}
		content.Metadata = &meta
	}
	return content, nil
}

// ContentRepository はコンテンツのデータアクセスを提供する。
type ContentRepository struct {
	db *gorm.DB
}

// NewContentRepository は新しいContentRepositoryを生成する。
func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Create は新しいコンテンツレコードを保存する（アップロード時、未暗号化）。
func (r *ContentRepository) Create(ctx context.Context, content *domain.Content) error {
	model := &ContentModel{
		ID:                 content.ID,
		CourseID:           content.CourseID,
		Title:              content.Title,
		FilePath:           content.FilePath,
		RequiresCompletion: content.RequiresCompletion,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create content",
			"operation", "create_content",
			"course_id", content.CourseID,
			"error", err,
		)
		return err
	}
	content.ID = model.ID
	content.CreatedAt = model.CreatedAt
	content.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID は指定されたIDのコンテンツを取得する。存在しない場合はnilを返す。
func (r *ContentRepository) FindByID(ctx context.Context, id string) (*domain.Content, error) {
	var model ContentModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find content",
			"operation", "find_content_by_id",
			"content_id", id,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain()
}

// FindEncrypted は暗号化済みコンテンツを取得する。contentIDを指定すると1件に絞る。
func (r *ContentRepository) FindEncrypted(ctx context.Context, contentID *string) ([]*domain.Content, error) {
	query := r.db.WithContext(ctx).Where("is_encrypted = ?", true)
	if contentID != nil {
		query = query.Where("id = ?", *contentID)
	}

	var models []ContentModel
	if err := query.Order("id ASC").Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find encrypted contents",
			"operation", "find_encrypted",
			"error", err,
		)
		return nil, err
	}

	contents := make([]*domain.Content, 0, len(models))
	for i := range models {
		content, err := models[i].toDomain()
		if err != nil {
			return nil, err
		}
		contents = append(contents, content)
	}
	return contents, nil
}

// CountEncrypted は暗号化済みコンテンツの件数を取得する。courseID指定でコースに絞る。
func (r *ContentRepository) CountEncrypted(ctx context.Context, courseID *string) (int64, error) {
	query := r.db.WithContext(ctx).Model(&ContentModel{}).Where("is_encrypted = ?", true)
	if courseID != nil {
		query = query.Where("course_id = ?", *courseID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		slog.ErrorContext(ctx, "failed to count encrypted contents",
			"operation", "count_encrypted",
			"error", err,
		)
		return 0, err
	}
	return count, nil
}

// StampEncrypted は新しい鍵の保存、コンテンツの暗号化メタデータ更新、
// 既存の有効鍵へのローテーション時刻の刻印を1トランザクションで行う。
// コンテンツごとに有効な鍵が常に1つだけ存在することを保証する。
func (r *ContentRepository) StampEncrypted(ctx context.Context, content *domain.Content, key *domain.EncryptionKey, rotatedAt time.Time) error {
	metaJSON, err := json.Marshal(content.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling encryption metadata: %w", err)
	}
	metaStr := string(metaJSON)

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 既存の有効鍵をローテーション済みにする
		if err := tx.Model(&EncryptionKeyModel{}).
			Where("content_id = ? AND rotated_at IS NULL", content.ID).
			Update("rotated_at", rotatedAt).Error; err != nil {
			return err
		}

		// 新しい鍵を保存する
		keyModel := newEncryptionKeyModel(key)
		if err := tx.Create(keyModel).Error; err != nil {
			return err
		}
		key.ID = keyModel.ID
		key.CreatedAt = keyModel.CreatedAt

		// コンテンツのメタデータと格納先を差し替える
		return tx.Model(&ContentModel{}).
			Where("id = ?", content.ID).
			Updates(map[string]interface{}{
				"is_encrypted":        true,
				"encrypted_file_path": content.EncryptedFilePath,
				"encryption_metadata": metaStr,
			}).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to stamp encrypted content",
			"operation", "stamp_encrypted",
			"content_id", content.ID,
			"error", err,
		)
		return err
	}
	return nil
}
