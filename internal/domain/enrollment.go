package domain

import "time"

// EnrollmentStatus は受講登録のステータスを表す。
type EnrollmentStatus string

const (
	EnrollmentStatusEnrolled   EnrollmentStatus = "enrolled"
	EnrollmentStatusInProgress EnrollmentStatus = "in_progress"
	EnrollmentStatusCompleted  EnrollmentStatus = "completed"
)

// Enrollment はユーザーとコースの受講登録を表す。
// 登録のCRUDは外部コラボレーターの責務であり、本サブシステムは
// アクセス判定のための参照のみを行う。
type Enrollment struct {
	ID        string
	UserID    string
	CourseID  string
	Status    EnrollmentStatus
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
