package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"content-encryption-service/internal/domain"
)

const (
	// KeySize は全アルゴリズム共通の鍵長（256ビット）。
	KeySize = 32
	// GCMTagSize はAES-GCMの認証タグ長。
	GCMTagSize = 16
)

// SealedBox は暗号化の結果（暗号文・IV/nonce・認証タグ）を表す。
// CBCではTagはnil。ChaCha20-Poly1305ではタグは暗号文末尾に埋め込まれTagはnil。
type SealedBox struct {
	Ciphertext []byte
	IV         []byte
	Tag        []byte
}

// Engine は選択可能なアルゴリズムで暗号化/復号を行うエンジン。
// 利用可能なアルゴリズム集合は構築時に固定される。KDFと異なり、
// 集合に含まれないアルゴリズムの要求はフォールバックせず失敗する。
type Engine struct {
	available map[domain.Algorithm]bool
}

// NewEngine は指定されたアルゴリズム集合を持つEngineを生成する。
func NewEngine(available ...domain.Algorithm) *Engine {
	set := make(map[domain.Algorithm]bool, len(available))
	for _, a := range available {
		if a.Valid() {
			set[a] = true
		}
	}
	return &Engine{available: set}
}

// DefaultEngine は全サポートアルゴリズムを持つEngineを返す。
func DefaultEngine() *Engine {
	return NewEngine(domain.Algorithms...)
}

// Supports はアルゴリズムがこのエンジンで利用可能かどうかを返す。
func (e *Engine) Supports(alg domain.Algorithm) bool {
	return e.available[alg]
}

// Encrypt は平文を指定アルゴリズムで暗号化する。IV/nonceは毎回乱数生成する。
func (e *Engine) Encrypt(plaintext, key []byte, alg domain.Algorithm) (*SealedBox, error) {
	if !e.available[alg] {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedAlgorithm, alg)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes", domain.ErrInvalidKeyMaterial, KeySize)
	}

	iv := make([]byte, alg.IVSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generating IV: %w", err)
	}

	switch alg {
	case domain.AlgorithmAES256CBC:
		return encryptCBC(plaintext, key, iv)
	case domain.AlgorithmAES256GCM:
		return encryptGCM(plaintext, key, iv)
	case domain.AlgorithmChaCha20Poly1305:
		return encryptChaCha(plaintext, key, iv)
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedAlgorithm, alg)
}

// Decrypt は暗号文を復号する。改ざん検知・鍵不一致・不正な入力は
// すべてErrDecryptionFailedとして返す（プリミティブのエラーは露出しない）。
func (e *Engine) Decrypt(box *SealedBox, key []byte, alg domain.Algorithm) ([]byte, error) {
	if !e.available[alg] {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedAlgorithm, alg)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes", domain.ErrInvalidKeyMaterial, KeySize)
	}
	if len(box.IV) != alg.IVSize() {
		return nil, fmt.Errorf("%w: bad IV size", domain.ErrDecryptionFailed)
	}

	switch alg {
	case domain.AlgorithmAES256CBC:
		return decryptCBC(box, key)
	case domain.AlgorithmAES256GCM:
		return decryptGCM(box, key)
	case domain.AlgorithmChaCha20Poly1305:
		return decryptChaCha(box, key)
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedAlgorithm, alg)
}

func encryptCBC(plaintext, key, iv []byte) (*SealedBox, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return &SealedBox{Ciphertext: ciphertext, IV: iv}, nil
}

func decryptCBC(box *SealedBox, key []byte) ([]byte, error) {
	if len(box.Ciphertext) == 0 || len(box.Ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: bad ciphertext length", domain.ErrDecryptionFailed)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	padded := make([]byte, len(box.Ciphertext))
	cipher.NewCBCDecrypter(block, box.IV).CryptBlocks(padded, box.Ciphertext)
	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		// CBCは認証タグを持たないため、検知できるのはパディング破壊のみ
		return nil, domain.ErrDecryptionFailed
	}
	return plaintext, nil
}

func encryptGCM(plaintext, key, nonce []byte) (*SealedBox, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	// タグはメタデータに分離して保存する
	n := len(sealed) - GCMTagSize
	return &SealedBox{Ciphertext: sealed[:n], IV: nonce, Tag: sealed[n:]}, nil
}

func decryptGCM(box *SealedBox, key []byte) ([]byte, error) {
	if len(box.Tag) != GCMTagSize {
		return nil, fmt.Errorf("%w: bad tag size", domain.ErrDecryptionFailed)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(box.Ciphertext)+len(box.Tag))
	sealed = append(sealed, box.Ciphertext...)
	sealed = append(sealed, box.Tag...)
	plaintext, err := gcm.Open(nil, box.IV, sealed, nil)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}

func encryptChaCha(plaintext, key, nonce []byte) (*SealedBox, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305: %w", err)
	}
	// タグは暗号文末尾に埋め込んだまま保存する
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)
	return &SealedBox{Ciphertext: ciphertext, IV: nonce}, nil
}

func decryptChaCha(box *SealedBox, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305: %w", err)
	}
	plaintext, err := aead.Open(nil, box.IV, box.Ciphertext, nil)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	return plaintext, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
