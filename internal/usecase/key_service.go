package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"content-encryption-service/internal/audit"
	"content-encryption-service/internal/crypto"
	"content-encryption-service/internal/domain"
	"content-encryption-service/internal/storage"
)

// CryptoConfig はKeyServiceが使う暗号構成。構築後は変更されない。
type CryptoConfig struct {
	Deriver  *crypto.Deriver
	Engine   *crypto.Engine
	Defaults Defaults
}

// KeyService は鍵の生成・保護コンテンツの暗号化/復号を提供する（Key Manager）。
// 導出鍵素材を平文で扱うのはこのサービスだけであり、保持は1回の
// 暗号化/復号/ローテーション呼び出しの間に限られる。
type KeyService struct {
	contents ContentRepository
	keys     KeyRepository
	blobs    BlobStore
	gate     *AccessGate
	wrapper  KeyWrapper
	auditor  AuditRecorder
	deriver  *crypto.Deriver
	engine   *crypto.Engine
	locker   *ContentLocker
	defaults Defaults
}

// NewKeyService は新しいKeyServiceを生成する。
func NewKeyService(
	contents ContentRepository,
	keys KeyRepository,
	blobs BlobStore,
	enrollments EnrollmentFinder,
	wrapper KeyWrapper,
	auditor AuditRecorder,
	cc CryptoConfig,
) *KeyService {
	return &KeyService{
		contents: contents,
		keys:     keys,
		blobs:    blobs,
		gate:     NewAccessGate(enrollments),
		wrapper:  wrapper,
		auditor:  auditor,
		deriver:  cc.Deriver,
		engine:   cc.Engine,
		locker:   NewContentLocker(),
		defaults: cc.Defaults,
	}
}

// EncryptResult は暗号化の結果。
type EncryptResult struct {
	Content *domain.Content
	Key     *domain.EncryptionKey
}

// generateKey は乱数seed/saltから鍵を導出し、レコードと鍵素材を返す。
// 鍵素材は呼び出し側が使用後にzeroBytesで破棄する。
func (s *KeyService) generateKey(ctx context.Context, contentID string, opts EncryptionOptions) (*domain.EncryptionKey, []byte, error) {
	seed, err := crypto.GenerateSeed()
	if err != nil {
		return nil, nil, err
	}
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, nil, err
	}

	material, usedKD, err := s.deriver.Derive(seed, salt, opts.KeyDerivation, opts.Iterations, opts.KeyLength)
	if err != nil {
		return nil, nil, err
	}

	// 監査用の一方向ハッシュ。復号には使えない。
	hash := sha256.Sum256(material)

	wrapped, err := s.wrapper.Wrap(ctx, material)
	if err != nil {
		zeroBytes(material)
		return nil, nil, fmt.Errorf("wrapping key material: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(s.defaults.KeyTTL)
	if opts.ExpiresAt != nil {
		expiresAt = *opts.ExpiresAt
	}

	key := &domain.EncryptionKey{
		ID:            uuid.New().String(),
		ContentID:     contentID,
		KeyHash:       hex.EncodeToString(hash[:]),
		WrappedKey:    wrapped,
		Algorithm:     opts.Algorithm,
		KeyDerivation: usedKD,
		Salt:          salt,
		Iterations:    opts.Iterations,
		KeyLength:     opts.KeyLength,
		CreatedAt:     now,
		ExpiresAt:     expiresAt,
	}
	return key, material, nil
}

// EncryptContent はコンテンツを新しい鍵で暗号化する。
func (s *KeyService) EncryptContent(ctx context.Context, contentID string, opts EncryptionOptions) (*EncryptResult, error) {
	opts = opts.withDefaults(s.defaults)
	if err := opts.check(); err != nil {
		return nil, err
	}
	if !s.engine.Supports(opts.Algorithm) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedAlgorithm, opts.Algorithm)
	}

	unlock := s.locker.Lock(contentID)
	defer unlock()

	content, err := s.contents.FindByID(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrContentNotFound, contentID)
	}

	plaintext, err := s.blobs.Read(ctx, content.FilePath)
	if err != nil {
		return nil, err
	}

	key, material, err := s.generateKey(ctx, contentID, opts)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(material)

	box, err := s.engine.Encrypt(plaintext, material, opts.Algorithm)
	if err != nil {
		return nil, err
	}

	encPath := storage.EncryptedPath(content.CourseID, content.ID, uuid.New().String())
	written, err := s.blobs.Write(ctx, encPath, box.Ciphertext)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	content.IsEncrypted = true
	content.EncryptedFilePath = &written
	content.Metadata = &domain.EncryptionMetadata{
		Algorithm:     opts.Algorithm,
		KeyDerivation: key.KeyDerivation,
		IV:            box.IV,
		Tag:           box.Tag,
		Salt:          key.Salt,
		KeyID:         key.ID,
		EncryptedAt:   now,
	}
	if err := s.contents.StampEncrypted(ctx, content, key, now); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, audit.Event{
		ContentID: content.ID,
		Action:    audit.ActionEncrypt,
		Result:    "SUCCESS",
		Timestamp: now,
	})

	return &EncryptResult{Content: content, Key: key}, nil
}

// DecryptContent はコンテンツを復号して平文を返す。
// userIDが指定された場合はアクセスゲートの通過が必須。
func (s *KeyService) DecryptContent(ctx context.Context, contentID string, userID *string) ([]byte, error) {
	unlock := s.locker.Lock(contentID)
	defer unlock()

	content, err := s.loadEncrypted(ctx, contentID)
	if err != nil {
		return nil, err
	}

	if userID != nil {
		allowed, err := s.gate.CanAccess(ctx, content, *userID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%w: user %s", domain.ErrAccessDenied, *userID)
		}
	}

	plaintext, _, err := s.decryptLocked(ctx, content)
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, audit.Event{
		ContentID: content.ID,
		UserID:    userID,
		Action:    audit.ActionDecrypt,
		Result:    "SUCCESS",
		Timestamp: time.Now(),
	})

	return plaintext, nil
}

// loadEncrypted は暗号化済みコンテンツを取得する。
func (s *KeyService) loadEncrypted(ctx context.Context, contentID string) (*domain.Content, error) {
	content, err := s.contents.FindByID(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrContentNotFound, contentID)
	}
	if !content.IsEncrypted || content.Metadata == nil || content.EncryptedFilePath == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotEncrypted, contentID)
	}
	return content, nil
}

// decryptLocked は有効な鍵を解決してコンテンツを復号する。
// 呼び出し側がコンテンツのロックを保持していること。
func (s *KeyService) decryptLocked(ctx context.Context, content *domain.Content) ([]byte, *domain.EncryptionKey, error) {
	key, err := s.keys.FindActiveByContentID(ctx, content.ID, time.Now())
	if err != nil {
		return nil, nil, err
	}
	if key == nil {
		return nil, nil, fmt.Errorf("%w: content %s", domain.ErrKeyNotFound, content.ID)
	}

	ciphertext, err := s.blobs.Read(ctx, *content.EncryptedFilePath)
	if err != nil {
		return nil, nil, err
	}

	material, err := s.wrapper.Unwrap(ctx, key.WrappedKey)
	if err != nil {
		return nil, nil, fmt.Errorf("unwrapping key material: %w", err)
	}
	defer zeroBytes(material)

	box := &crypto.SealedBox{
		Ciphertext: ciphertext,
		IV:         content.Metadata.IV,
		Tag:        content.Metadata.Tag,
	}
	plaintext, err := s.engine.Decrypt(box, material, content.Metadata.Algorithm)
	if err != nil {
		return nil, nil, err
	}
	return plaintext, key, nil
}

// rotateOne は1件のコンテンツを新しい鍵で再暗号化し、旧鍵をローテーション済みにする。
// アクセスゲートを通さない特権的な内部操作（RotationService専用）。
func (s *KeyService) rotateOne(ctx context.Context, contentID string) error {
	unlock := s.locker.Lock(contentID)
	defer unlock()

	content, err := s.loadEncrypted(ctx, contentID)
	if err != nil {
		return err
	}

	plaintext, oldKey, err := s.decryptLocked(ctx, content)
	if err != nil {
		return err
	}

	// 元と同じアルゴリズム・導出ファミリで新しい鍵を生成する
	opts := EncryptionOptions{
		Algorithm:     content.Metadata.Algorithm,
		KeyDerivation: oldKey.KeyDerivation,
		Iterations:    oldKey.Iterations,
		KeyLength:     oldKey.KeyLength,
	}.withDefaults(s.defaults)

	newKey, material, err := s.generateKey(ctx, contentID, opts)
	if err != nil {
		return err
	}
	defer zeroBytes(material)

	box, err := s.engine.Encrypt(plaintext, material, opts.Algorithm)
	if err != nil {
		return err
	}

	encPath := storage.EncryptedPath(content.CourseID, content.ID, uuid.New().String())
	written, err := s.blobs.Write(ctx, encPath, box.Ciphertext)
	if err != nil {
		return err
	}

	now := time.Now()
	content.EncryptedFilePath = &written
	content.Metadata = &domain.EncryptionMetadata{
		Algorithm:     opts.Algorithm,
		KeyDerivation: newKey.KeyDerivation,
		IV:            box.IV,
		Tag:           box.Tag,
		Salt:          newKey.Salt,
		KeyID:         newKey.ID,
		EncryptedAt:   now,
		RotatedAt:     &now,
	}
	// 格納先・メタデータの差し替えと旧鍵のローテーション記録は
	// StampEncrypted内の1トランザクションで行われる
	if err := s.contents.StampEncrypted(ctx, content, newKey, now); err != nil {
		return err
	}

	s.auditor.Record(ctx, audit.Event{
		ContentID: content.ID,
		Action:    audit.ActionRotate,
		Result:    "SUCCESS",
		Timestamp: now,
	})

	return nil
}

// EncryptionStats は暗号化状況の集計。
type EncryptionStats struct {
	TotalEncrypted   int64
	ByAlgorithm      map[string]int64
	ByKeyDerivation  map[string]int64
	KeysExpiringSoon int64
}

// GetEncryptionStats は暗号化状況の統計を取得する。courseID指定でコースに絞る。
func (s *KeyService) GetEncryptionStats(ctx context.Context, courseID *string) (*EncryptionStats, error) {
	total, err := s.contents.CountEncrypted(ctx, courseID)
	if err != nil {
		return nil, err
	}
	byAlg, err := s.keys.CountActiveByAlgorithm(ctx, courseID)
	if err != nil {
		return nil, err
	}
	byKDF, err := s.keys.CountActiveByKeyDerivation(ctx, courseID)
	if err != nil {
		return nil, err
	}
	expiring, err := s.keys.CountExpiringSoon(ctx, courseID, time.Now().Add(ExpiryWarningWindow))
	if err != nil {
		return nil, err
	}

	return &EncryptionStats{
		TotalEncrypted:   total,
		ByAlgorithm:      byAlg,
		ByKeyDerivation:  byKDF,
		KeysExpiringSoon: expiring,
	}, nil
}

// zeroBytes は鍵素材をメモリ上から消去する。
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
