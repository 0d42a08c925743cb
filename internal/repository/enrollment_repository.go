package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"content-encryption-service/internal/domain"
)

// EnrollmentModel はgorm用の受講登録モデル定義。
// 登録の作成・更新は受講管理側の責務であり、本サービスは参照のみ行う。
type EnrollmentModel struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(64);not null;index:idx_user_course"`
	CourseID  string    `gorm:"type:varchar(64);not null;index:idx_user_course"`
	Status    string    `gorm:"type:varchar(32);not null"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:datetime(6);not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (EnrollmentModel) TableName() string {
	return "enrollments"
}

// EnrollmentRepository は受講登録の参照を提供する。
type EnrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository は新しいEnrollmentRepositoryを生成する。
func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindActiveEnrollment はユーザーとコースの有効な受講登録を取得する。
// 存在しない場合はnilを返す。
func (r *EnrollmentRepository) FindActiveEnrollment(ctx context.Context, userID, courseID string) (*domain.Enrollment, error) {
	var model EnrollmentModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND active = ?", userID, courseID, true).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find active enrollment",
			"operation", "find_active_enrollment",
			"user_id", userID,
			"course_id", courseID,
			"error", err,
		)
		return nil, err
	}

	return &domain.Enrollment{
		ID:        model.ID,
		UserID:    model.UserID,
		CourseID:  model.CourseID,
		Status:    domain.EnrollmentStatus(model.Status),
		Active:    model.Active,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}
