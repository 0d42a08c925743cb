package usecase

import (
	"context"

	"content-encryption-service/internal/domain"
)

// AccessGate は受講状態に基づく復号可否の判定を提供する。
type AccessGate struct {
	enrollments EnrollmentFinder
}

// NewAccessGate は新しいAccessGateを生成する。
func NewAccessGate(enrollments EnrollmentFinder) *AccessGate {
	return &AccessGate{enrollments: enrollments}
}

// Allowed は受講登録からアクセス可否を判定する。入力のみに依存する純粋関数。
// 有効な登録がenrolled/in_progress/completedのいずれかであること、
// かつ修了必須コンテンツではcompletedであることが条件。
func Allowed(content *domain.Content, enrollment *domain.Enrollment) bool {
	if enrollment == nil || !enrollment.Active {
		return false
	}
	switch enrollment.Status {
	case domain.EnrollmentStatusEnrolled,
		domain.EnrollmentStatusInProgress,
		domain.EnrollmentStatusCompleted:
	default:
		return false
	}
	if content.RequiresCompletion {
		return enrollment.Status == domain.EnrollmentStatusCompleted
	}
	return true
}

// CanAccess はユーザーがコンテンツを復号できるかどうかを返す。
func (g *AccessGate) CanAccess(ctx context.Context, content *domain.Content, userID string) (bool, error) {
	enrollment, err := g.enrollments.FindActiveEnrollment(ctx, userID, content.CourseID)
	if err != nil {
		return false, err
	}
	return Allowed(content, enrollment), nil
}
