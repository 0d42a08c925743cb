// Package crypto は鍵導出と認証付き暗号のプリミティブを提供する。
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"

	"content-encryption-service/internal/domain"
)

const (
	// MinIterations はPBKDF2反復回数の下限。下回る指定はこの値に切り上げる。
	MinIterations = 1000
	// DefaultIterations はPBKDF2反復回数のデフォルト。
	DefaultIterations = 10000
	// DefaultKeyLength は導出鍵長のデフォルト（256ビット）。
	DefaultKeyLength = 32
	// SaltSize は生成するsaltのバイト数。
	SaltSize = 32

	// Argon2idのinteractiveコストクラス
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// Deriver は乱数seedとsaltから対称鍵を導出する。
// 利用可能な戦略集合は構築時に固定され、以後変更されない。
// 集合に含まれない戦略が要求された場合は黙ってPBKDF2を代用し、
// 実際に使用した戦略を呼び出し側に返す（メタデータ記録用）。
type Deriver struct {
	available map[domain.KeyDerivation]bool
}

// NewDeriver は指定された戦略集合を持つDeriverを生成する。
// PBKDF2はフォールバック先として常に利用可能。bcryptベースの導出は
// このランタイムに決定的なプリミティブが存在しないため集合から除外される。
func NewDeriver(available ...domain.KeyDerivation) *Deriver {
	set := map[domain.KeyDerivation]bool{
		domain.KeyDerivationPBKDF2: true,
	}
	for _, kd := range available {
		if kd == domain.KeyDerivationBcrypt {
			continue
		}
		if kd.Valid() {
			set[kd] = true
		}
	}
	return &Deriver{available: set}
}

// DefaultDeriver はこのランタイムで利用可能な全戦略を持つDeriverを返す。
func DefaultDeriver() *Deriver {
	return NewDeriver(domain.KeyDerivationPBKDF2, domain.KeyDerivationArgon2id)
}

// Derive はseedとsaltから対称鍵を導出し、実際に使用した戦略とともに返す。
// 同一入力に対して決定的。seedまたはsaltが空の場合はErrInvalidKeyMaterial。
func (d *Deriver) Derive(seed, salt []byte, strategy domain.KeyDerivation, iterations, length uint) ([]byte, domain.KeyDerivation, error) {
	if len(seed) == 0 || len(salt) == 0 {
		return nil, "", domain.ErrInvalidKeyMaterial
	}
	if !strategy.Valid() {
		return nil, "", fmt.Errorf("%w: %s", domain.ErrUnsupportedKeyDerivation, strategy)
	}
	if iterations < MinIterations {
		iterations = MinIterations
	}
	if length == 0 {
		length = DefaultKeyLength
	}

	used := strategy
	if !d.available[strategy] {
		used = domain.KeyDerivationPBKDF2
	}

	var key []byte
	switch used {
	case domain.KeyDerivationArgon2id:
		key = argon2.IDKey(seed, salt, argon2Time, argon2Memory, argon2Threads, uint32(length))
	default:
		key = pbkdf2.Key(seed, salt, int(iterations), int(length), sha256.New)
	}
	return key, used, nil
}

// GenerateSeed は暗号学的乱数のseed（32バイト）を生成する。
func GenerateSeed() ([]byte, error) {
	seed := make([]byte, DefaultKeyLength)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generating seed: %w", err)
	}
	return seed, nil
}

// GenerateSalt は暗号学的乱数のsalt（32バイト）を生成する。
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}
