package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"content-encryption-service/internal/audit"
	"content-encryption-service/internal/crypto"
	"content-encryption-service/internal/domain"
)

// mockStore はテスト用のインメモリのコンテンツ・鍵リポジトリ。
type mockStore struct {
	mu       sync.Mutex
	contents map[string]*domain.Content
	keys     []*domain.EncryptionKey
	findErr  error
	stampErr error
}

func newMockStore(contents ...*domain.Content) *mockStore {
	s := &mockStore{contents: make(map[string]*domain.Content)}
	for _, c := range contents {
		s.contents[c.ID] = c
	}
	return s
}

func (m *mockStore) FindByID(ctx context.Context, id string) (*domain.Content, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contents[id], nil
}

func (m *mockStore) FindEncrypted(ctx context.Context, contentID *string) ([]*domain.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Content
	for _, c := range m.contents {
		if !c.IsEncrypted {
			continue
		}
		if contentID != nil && c.ID != *contentID {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

func (m *mockStore) CountEncrypted(ctx context.Context, courseID *string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, c := range m.contents {
		if c.IsEncrypted && (courseID == nil || c.CourseID == *courseID) {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) StampEncrypted(ctx context.Context, content *domain.Content, key *domain.EncryptionKey, rotatedAt time.Time) error {
	if m.stampErr != nil {
		return m.stampErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.ContentID == content.ID && k.RotatedAt == nil {
			at := rotatedAt
			k.RotatedAt = &at
		}
	}
	m.keys = append(m.keys, key)
	m.contents[content.ID] = content
	return nil
}

func (m *mockStore) FindActiveByContentID(ctx context.Context, contentID string, now time.Time) (*domain.EncryptionKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.ContentID == contentID && k.Active(now) {
			return k, nil
		}
	}
	return nil, nil
}

func (m *mockStore) CountActiveByAlgorithm(ctx context.Context, courseID *string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make(map[string]int64)
	for _, k := range m.keys {
		if k.RotatedAt == nil {
			result[string(k.Algorithm)]++
		}
	}
	return result, nil
}

func (m *mockStore) CountActiveByKeyDerivation(ctx context.Context, courseID *string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make(map[string]int64)
	for _, k := range m.keys {
		if k.RotatedAt == nil {
			result[string(k.KeyDerivation)]++
		}
	}
	return result, nil
}

func (m *mockStore) CountExpiringSoon(ctx context.Context, courseID *string, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range m.keys {
		if k.RotatedAt == nil && k.ExpiresAt.Before(before) {
			n++
		}
	}
	return n, nil
}

// mockBlobStore はテスト用のインメモリブロブストレージ。
type mockBlobStore struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	failRead map[string]bool
	writeErr error
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{
		blobs:    make(map[string][]byte),
		failRead: make(map[string]bool),
	}
}

func (m *mockBlobStore) Read(ctx context.Context, blobPath string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead[blobPath] {
		return nil, domain.ErrStorageReadFailed
	}
	data, ok := m.blobs[blobPath]
	if !ok {
		return nil, domain.ErrStorageReadFailed
	}
	return data, nil
}

func (m *mockBlobStore) Write(ctx context.Context, blobPath string, data []byte) (string, error) {
	if m.writeErr != nil {
		return "", m.writeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[blobPath] = data
	return blobPath, nil
}

// mockKeyWrapper はテスト用のモックキーラッパー。
type mockKeyWrapper struct {
	wrapErr   error
	unwrapErr error
}

func (m *mockKeyWrapper) Wrap(ctx context.Context, plaintext []byte) ([]byte, error) {
	if m.wrapErr != nil {
		return nil, m.wrapErr
	}
	return append([]byte("wrapped:"), plaintext...), nil
}

func (m *mockKeyWrapper) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	if m.unwrapErr != nil {
		return nil, m.unwrapErr
	}
	return bytes.TrimPrefix(wrapped, []byte("wrapped:")), nil
}

// mockEnrollmentFinder はテスト用のモック受講登録参照。
type mockEnrollmentFinder struct {
	enrollments map[string]*domain.Enrollment
	err         error
}

func (m *mockEnrollmentFinder) FindActiveEnrollment(ctx context.Context, userID, courseID string) (*domain.Enrollment, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.enrollments[userID+"/"+courseID], nil
}

// mockAuditRecorder は記録されたイベントを保持するモック。
type mockAuditRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *mockAuditRecorder) Record(ctx context.Context, event audit.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockAuditRecorder) byAction(action string) []audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []audit.Event
	for _, e := range m.events {
		if e.Action == action {
			result = append(result, e)
		}
	}
	return result
}

type testEnv struct {
	store       *mockStore
	blobs       *mockBlobStore
	enrollments *mockEnrollmentFinder
	auditor     *mockAuditRecorder
	service     *KeyService
}

func newTestEnv(t *testing.T, contents ...*domain.Content) *testEnv {
	t.Helper()
	env := &testEnv{
		store:       newMockStore(contents...),
		blobs:       newMockBlobStore(),
		enrollments: &mockEnrollmentFinder{enrollments: make(map[string]*domain.Enrollment)},
		auditor:     &mockAuditRecorder{},
	}
	env.service = NewKeyService(
		env.store,
		env.store,
		env.blobs,
		env.enrollments,
		&mockKeyWrapper{},
		env.auditor,
		CryptoConfig{
			Deriver:  crypto.DefaultDeriver(),
			Engine:   crypto.DefaultEngine(),
			Defaults: NewDefaults("aes-256-cbc", "pbkdf2"),
		},
	)
	return env
}

func testContent(id, courseID string) *domain.Content {
	return &domain.Content{
		ID:        id,
		CourseID:  courseID,
		Title:     "Lesson " + id,
		FilePath:  "courses/" + courseID + "/raw/" + id,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func (env *testEnv) seedBlob(content *domain.Content, data []byte) {
	env.blobs.blobs[content.FilePath] = data
}

func (env *testEnv) enroll(userID, courseID string, status domain.EnrollmentStatus) {
	env.enrollments.enrollments[userID+"/"+courseID] = &domain.Enrollment{
		ID:       "enr-" + userID,
		UserID:   userID,
		CourseID: courseID,
		Status:   status,
		Active:   true,
	}
}

func TestEncryptContent_Success(t *testing.T) {
	content := testContent("content-1", "course-1")
	env := newTestEnv(t, content)
	plaintext := []byte("lecture video payload")
	env.seedBlob(content, plaintext)

	result, err := env.service.EncryptContent(context.Background(), "content-1", EncryptionOptions{})
	if err != nil {
		t.Fatalf("EncryptContent() error = %v", err)
	}

	if !result.Content.IsEncrypted {
		t.Error("Content.IsEncrypted = false, want true")
	}
	if result.Content.EncryptedFilePath == nil {
		t.Fatal("Content.EncryptedFilePath is nil")
	}
	if !strings.HasPrefix(*result.Content.EncryptedFilePath, "courses/course-1/encrypted/content-1_") {
		t.Errorf("EncryptedFilePath = %s, want prefix courses/course-1/encrypted/content-1_", *result.Content.EncryptedFilePath)
	}

	meta := result.Content.Metadata
	if meta == nil {
		t.Fatal("Content.Metadata is nil")
	}
	if meta.Algorithm != domain.AlgorithmAES256CBC {
		t.Errorf("Metadata.Algorithm = %s, want %s", meta.Algorithm, domain.AlgorithmAES256CBC)
	}
	if meta.KeyID != result.Key.ID {
		t.Errorf("Metadata.KeyID = %s, want %s", meta.KeyID, result.Key.ID)
	}
	if len(meta.IV) != 16 {
		t.Errorf("len(Metadata.IV) = %d, want 16", len(meta.IV))
	}

	stored := env.blobs.blobs[*result.Content.EncryptedFilePath]
	if len(stored) == 0 {
		t.Fatal("encrypted blob was not written")
	}
	if bytes.Contains(stored, plaintext) {
		t.Error("encrypted blob contains the plaintext")
	}

	if result.Key.KeyHash == "" {
		t.Error("Key.KeyHash is empty")
	}
	if !bytes.HasPrefix(result.Key.WrappedKey, []byte("wrapped:")) {
		t.Error("Key.WrappedKey is not wrapped")
	}

	events := env.auditor.byAction(audit.ActionEncrypt)
	if len(events) != 1 {
		t.Fatalf("audit events = %d, want 1", len(events))
	}
	if events[0].ContentID != "content-1" || events[0].Result != "SUCCESS" {
		t.Errorf("audit event = %+v", events[0])
	}
}

func TestEncryptContent_ContentNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.EncryptContent(context.Background(), "missing", EncryptionOptions{})
	if !errors.Is(err, domain.ErrContentNotFound) {
		t.Errorf("EncryptContent() error = %v, want ErrContentNotFound", err)
	}
	if len(env.auditor.events) != 0 {
		t.Errorf("audit events = %d, want 0", len(env.auditor.events))
	}
}

func TestEncryptContent_UnsupportedAlgorithm(t *testing.T) {
	content := testContent("content-1", "course-1")
	env := newTestEnv(t, content)

	_, err := env.service.EncryptContent(context.Background(), "content-1", EncryptionOptions{
		Algorithm: "des-ede3",
	})
	if !errors.Is(err, domain.ErrUnsupportedAlgorithm) {
		t.Errorf("EncryptContent() error = %v, want ErrUnsupportedAlgorithm", err)
	}
}

func TestEncryptContent_StorageReadFailed(t *testing.T) {
	content := testContent("content-1", "course-1")
	env := newTestEnv(t, content)
	env.blobs.failRead[content.FilePath] = true

	_, err := env.service.EncryptContent(context.Background(), "content-1", EncryptionOptions{})
	if !errors.Is(err, domain.ErrStorageReadFailed) {
		t.Errorf("EncryptContent() error = %v, want ErrStorageReadFailed", err)
	}
}

func TestDecryptContent_RoundTrip(t *testing.T) {
	for _, alg := range domain.Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			content := testContent("content-1", "course-1")
			env := newTestEnv(t, content)
			plaintext := []byte("protected course material for " + string(alg))
			env.seedBlob(content, plaintext)
			env.enroll("user-1", "course-1", domain.EnrollmentStatusEnrolled)

			_, err := env.service.EncryptContent(context.Background(), "content-1", EncryptionOptions{Algorithm: alg})
			if err != nil {
				t.Fatalf("EncryptContent() error = %v", err)
			}

			userID := "user-1"
			got, err := env.service.DecryptContent(context.Background(), "content-1", &userID)
			if err != nil {
				t.Fatalf("DecryptContent() error = %v", err)
			}
			if !bytes.Equal(got, plaintext) {
				t.Errorf("DecryptContent() = %q, want %q", got, plaintext)
			}

			events := env.auditor.byAction(audit.ActionDecrypt)
			if len(events) != 1 {
				t.Fatalf("decrypt audit events = %d, want 1", len(events))
			}
			if events[0].UserID == nil || *events[0].UserID != "user-1" {
				t.Errorf("audit event UserID = %v, want user-1", events[0].UserID)
			}
		})
	}
}

func TestDecryptContent_NotEncrypted(t *testing.T) {
	content := testContent("content-1", "course-1")
	env := newTestEnv(t, content)

	_, err := env.service.DecryptContent(context.Background(), "content-1", nil)
	if !errors.Is(err, domain.ErrNotEncrypted) {
		t.Errorf("DecryptContent() error = %v, want ErrNotEncrypted", err)
	}
}

func TestDecryptContent_AccessDenied(t *testing.T) {
	content := testContent("content-1", "course-1")
	env := newTestEnv(t, content)
	env.seedBlob(content, []byte("payload"))

	if _, err := env.service.EncryptContent(context.Background(), "content-1", EncryptionOptions{}); err != nil {
		t.Fatalf("EncryptContent() error = %v", err)
	}

	userID := "stranger"
	_, err := env.service.DecryptContent(context.Background(), "content-1", &userID)
	if !errors.Is(err, domain.ErrAccessDenied) {
		t.Errorf("DecryptContent() error = %v, want ErrAccessDenied", err)
	}
	if got := env.auditor.byAction(audit.ActionDecrypt); len(got) != 0 {
		t.Errorf("decrypt audit events = %d, want 0", len(got))
	}
}

func TestDecryptContent_RequiresCompletion(t *testing.T) {
	content := testContent("content-1", "course-1")
	content.RequiresCompletion = true
	env := newTestEnv(t, content)
	env.seedBlob(content, []byte("final exam answers"))
	env.enroll("user-1", "course-1", domain.EnrollmentStatusInProgress)

	if _, err := env.service.EncryptContent(context.Background(), "content-1", EncryptionOptions{}); err != nil {
		t.Fatalf("EncryptContent() error = %v", err)
	}

	userID := "user-1"
	if _, err := env.service.DecryptContent(context.Background(), "content-1", &userID); !errors.Is(err, domain.ErrAccessDenied) {
		t.Errorf("in_progress: error = %v, want ErrAccessDenied", err)
	}

	env.enroll("user-1", "course-1", domain.EnrollmentStatusCompleted)
	if _, err := env.service.DecryptContent(context.Background(), "content-1", &userID); err != nil {
		t.Errorf("completed: error = %v, want nil", err)
	}
}

func TestDecryptContent_KeyNotFound(t *testing.T) {
	content := testContent("content-1", "course-1")
	env := newTestEnv(t, content)
	env.seedBlob(content, []byte("payload"))

	result, err := env.service.EncryptContent(context.Background(), "content-1", EncryptionOptions{})
	if err != nil {
		t.Fatalf("EncryptContent() error = %v", err)
	}

	// 有効な鍵を無効化して鍵欠落を再現する
	rotated := time.Now()
	for _, k := range env.store.keys {
		if k.ID == result.Key.ID {
			k.RotatedAt = &rotated
		}
	}

	_, err = env.service.DecryptContent(context.Background(), "content-1", nil)
	if !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("DecryptContent() error = %v, want ErrKeyNotFound", err)
	}
}

func TestGetEncryptionStats(t *testing.T) {
	c1 := testContent("content-1", "course-1")
	c2 := testContent("content-2", "course-1")
	c3 := testContent("content-3", "course-2")
	env := newTestEnv(t, c1, c2, c3)
	for _, c := range []*domain.Content{c1, c2, c3} {
		env.seedBlob(c, []byte("payload "+c.ID))
	}

	ctx := context.Background()
	if _, err := env.service.EncryptContent(ctx, "content-1", EncryptionOptions{Algorithm: domain.AlgorithmAES256GCM}); err != nil {
		t.Fatalf("EncryptContent(content-1) error = %v", err)
	}
	soon := time.Now().Add(7 * 24 * time.Hour)
	if _, err := env.service.EncryptContent(ctx, "content-2", EncryptionOptions{ExpiresAt: &soon}); err != nil {
		t.Fatalf("EncryptContent(content-2) error = %v", err)
	}

	stats, err := env.service.GetEncryptionStats(ctx, nil)
	if err != nil {
		t.Fatalf("GetEncryptionStats() error = %v", err)
	}
	if stats.TotalEncrypted != 2 {
		t.Errorf("TotalEncrypted = %d, want 2", stats.TotalEncrypted)
	}
	if stats.ByAlgorithm["aes-256-gcm"] != 1 || stats.ByAlgorithm["aes-256-cbc"] != 1 {
		t.Errorf("ByAlgorithm = %v", stats.ByAlgorithm)
	}
	if stats.ByKeyDerivation["pbkdf2"] != 2 {
		t.Errorf("ByKeyDerivation = %v", stats.ByKeyDerivation)
	}
	if stats.KeysExpiringSoon != 1 {
		t.Errorf("KeysExpiringSoon = %d, want 1", stats.KeysExpiringSoon)
	}
}
