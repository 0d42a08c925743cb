package repository

import (
	"context"
	"testing"

	"content-encryption-service/internal/domain"
)

func TestEnrollmentRepository_FindActiveEnrollment(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewEnrollmentRepository(db)

	if err := db.Exec(
		"INSERT INTO enrollments (id, user_id, course_id, status, active) VALUES (?, ?, ?, ?, ?)",
		"enr-1", "user-1", "course-1", "in_progress", true,
	).Error; err != nil {
		t.Fatalf("failed to insert test enrollment: %v", err)
	}

	got, err := repo.FindActiveEnrollment(ctx, "user-1", "course-1")
	if err != nil {
		t.Fatalf("FindActiveEnrollment failed: %v", err)
	}
	if got == nil {
		t.Fatal("want enrollment, got nil")
	}
	if got.Status != domain.EnrollmentStatusInProgress {
		t.Errorf("want status in_progress, got %s", got.Status)
	}
}

func TestEnrollmentRepository_FindActiveEnrollment_NotFound(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewEnrollmentRepository(db)

	got, err := repo.FindActiveEnrollment(ctx, "user-x", "course-x")
	if err != nil {
		t.Fatalf("FindActiveEnrollment failed: %v", err)
	}
	if got != nil {
		t.Errorf("want nil for missing enrollment, got %v", got)
	}
}

func TestEnrollmentRepository_FindActiveEnrollment_Inactive(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewEnrollmentRepository(db)

	if err := db.Exec(
		"INSERT INTO enrollments (id, user_id, course_id, status, active) VALUES (?, ?, ?, ?, ?)",
		"enr-1", "user-1", "course-1", "enrolled", false,
	).Error; err != nil {
		t.Fatalf("failed to insert test enrollment: %v", err)
	}

	got, err := repo.FindActiveEnrollment(ctx, "user-1", "course-1")
	if err != nil {
		t.Fatalf("FindActiveEnrollment failed: %v", err)
	}
	if got != nil {
		t.Errorf("want nil for inactive enrollment, got %v", got)
	}
}
