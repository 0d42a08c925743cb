package infra

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// LocalKeyWrapper はプロセスローカルのマスター鍵で鍵素材を
// AES-256-GCMラップするKeyWrapper。KMSを使わない構成のデフォルト。
// 出力形式は nonce || ciphertext+tag の連結。
type LocalKeyWrapper struct {
	aead cipher.AEAD
}

// NewLocalKeyWrapper はhexエンコードされた32バイトのマスター鍵から生成する。
func NewLocalKeyWrapper(masterKeyHex string) (*LocalKeyWrapper, error) {
	key, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding master key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &LocalKeyWrapper{aead: aead}, nil
}

// Wrap は鍵素材をマスター鍵で暗号化する。
func (w *LocalKeyWrapper) Wrap(ctx context.Context, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, w.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return w.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Unwrap はラップ済みの鍵素材を復号する。
func (w *LocalKeyWrapper) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	if len(wrapped) < w.aead.NonceSize() {
		return nil, fmt.Errorf("wrapped key too short")
	}
	nonce := wrapped[:w.aead.NonceSize()]
	plaintext, err := w.aead.Open(nil, nonce, wrapped[w.aead.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("unwrapping key: %w", err)
	}
	return plaintext, nil
}
