package crypto

import (
	"bytes"
	"errors"
	"testing"

	"content-encryption-service/internal/domain"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := GenerateSeed()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key
}

func TestEngine_RoundTrip_AllAlgorithms(t *testing.T) {
	e := DefaultEngine()
	key := testKey(t)
	plaintext := []byte("course material: lecture 01 video bytes")

	for _, alg := range domain.Algorithms {
		box, err := e.Encrypt(plaintext, key, alg)
		if err != nil {
			t.Fatalf("%s: encrypt failed: %v", alg, err)
		}
		if len(box.IV) != alg.IVSize() {
			t.Errorf("%s: want %d-byte IV, got %d", alg, alg.IVSize(), len(box.IV))
		}

		got, err := e.Decrypt(box, key, alg)
		if err != nil {
			t.Fatalf("%s: decrypt failed: %v", alg, err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Errorf("%s: round trip mismatch", alg)
		}
	}
}

func TestEngine_RoundTrip_BlockAlignedAndEmpty(t *testing.T) {
	e := DefaultEngine()
	key := testKey(t)

	// CBCのパディング境界（ブロック倍長と空入力）
	for _, n := range []int{0, 16, 32} {
		plaintext := bytes.Repeat([]byte{0xAB}, n)
		box, err := e.Encrypt(plaintext, key, domain.AlgorithmAES256CBC)
		if err != nil {
			t.Fatalf("encrypt failed for %d bytes: %v", n, err)
		}
		got, err := e.Decrypt(box, key, domain.AlgorithmAES256CBC)
		if err != nil {
			t.Fatalf("decrypt failed for %d bytes: %v", n, err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Errorf("round trip mismatch for %d bytes", n)
		}
	}
}

func TestEngine_GCM_TamperDetection(t *testing.T) {
	e := DefaultEngine()
	key := testKey(t)

	box, err := e.Encrypt([]byte("hello lms!"), key, domain.AlgorithmAES256GCM)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if len(box.Tag) != GCMTagSize {
		t.Fatalf("want %d-byte tag, got %d", GCMTagSize, len(box.Tag))
	}

	// 暗号文のビット反転
	tampered := &SealedBox{
		Ciphertext: append([]byte{}, box.Ciphertext...),
		IV:         box.IV,
		Tag:        box.Tag,
	}
	tampered.Ciphertext[0] ^= 0x01
	if _, err := e.Decrypt(tampered, key, domain.AlgorithmAES256GCM); !errors.Is(err, domain.ErrDecryptionFailed) {
		t.Errorf("want ErrDecryptionFailed for tampered ciphertext, got %v", err)
	}

	// タグのビット反転
	tampered = &SealedBox{
		Ciphertext: box.Ciphertext,
		IV:         box.IV,
		Tag:        append([]byte{}, box.Tag...),
	}
	tampered.Tag[0] ^= 0x01
	if _, err := e.Decrypt(tampered, key, domain.AlgorithmAES256GCM); !errors.Is(err, domain.ErrDecryptionFailed) {
		t.Errorf("want ErrDecryptionFailed for tampered tag, got %v", err)
	}
}

func TestEngine_ChaCha20_TamperDetection(t *testing.T) {
	e := DefaultEngine()
	key := testKey(t)

	box, err := e.Encrypt([]byte("hello lms!"), key, domain.AlgorithmChaCha20Poly1305)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	tampered := &SealedBox{
		Ciphertext: append([]byte{}, box.Ciphertext...),
		IV:         box.IV,
	}
	tampered.Ciphertext[len(tampered.Ciphertext)-1] ^= 0x01
	if _, err := e.Decrypt(tampered, key, domain.AlgorithmChaCha20Poly1305); !errors.Is(err, domain.ErrDecryptionFailed) {
		t.Errorf("want ErrDecryptionFailed for tampered ciphertext, got %v", err)
	}
}

func TestEngine_WrongKey(t *testing.T) {
	e := DefaultEngine()
	key := testKey(t)
	wrongKey := testKey(t)

	box, err := e.Encrypt([]byte("hello lms!"), key, domain.AlgorithmAES256GCM)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := e.Decrypt(box, wrongKey, domain.AlgorithmAES256GCM); !errors.Is(err, domain.ErrDecryptionFailed) {
		t.Errorf("want ErrDecryptionFailed for wrong key, got %v", err)
	}
}

func TestEngine_HelloLMSScenario(t *testing.T) {
	e := DefaultEngine()
	key := testKey(t)
	plaintext := []byte("hello lms!")

	box, err := e.Encrypt(plaintext, key, domain.AlgorithmAES256GCM)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	got, err := e.Decrypt(box, key, domain.AlgorithmAES256GCM)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if string(got) != "hello lms!" {
		t.Errorf("want %q, got %q", "hello lms!", string(got))
	}

	flipped := &SealedBox{
		Ciphertext: box.Ciphertext,
		IV:         box.IV,
		Tag:        append([]byte{}, box.Tag...),
	}
	flipped.Tag[3] ^= 0x10
	if _, err := e.Decrypt(flipped, key, domain.AlgorithmAES256GCM); !errors.Is(err, domain.ErrDecryptionFailed) {
		t.Errorf("want ErrDecryptionFailed for bit-flipped tag, got %v", err)
	}
}

func TestEngine_UnavailableAlgorithm(t *testing.T) {
	// ChaCha20-Poly1305のプリミティブを持たないエンジン。
	// KDFと異なりフォールバックせず失敗する。
	e := NewEngine(domain.AlgorithmAES256CBC, domain.AlgorithmAES256GCM)
	key := testKey(t)

	_, err := e.Encrypt([]byte("data"), key, domain.AlgorithmChaCha20Poly1305)
	if !errors.Is(err, domain.ErrUnsupportedAlgorithm) {
		t.Errorf("want ErrUnsupportedAlgorithm, got %v", err)
	}
}

func TestEngine_InvalidKeySize(t *testing.T) {
	e := DefaultEngine()

	_, err := e.Encrypt([]byte("data"), []byte("short-key"), domain.AlgorithmAES256GCM)
	if !errors.Is(err, domain.ErrInvalidKeyMaterial) {
		t.Errorf("want ErrInvalidKeyMaterial, got %v", err)
	}
}
