package infra

import (
	"context"
	"fmt"

	kms "cloud.google.com/go/kms/apiv1"
	kmspb "cloud.google.com/go/kms/apiv1/kmspb"
)

// KMSKeyWrapper は導出鍵素材のラップをCloud KMSへ委譲する。
// 鍵素材を平文のままDBに置かないための既定外オプション（KMS_KEY_NAME設定時）。
type KMSKeyWrapper struct {
	client  *kms.KeyManagementClient
	keyName string
}

// NewKMSKeyWrapper は指定のKMS鍵を使うKMSKeyWrapperを生成する。
func NewKMSKeyWrapper(ctx context.Context, keyName string) (*KMSKeyWrapper, error) {
	if keyName == "" {
		return nil, fmt.Errorf("KMS key name is required")
	}

	client, err := kms.NewKeyManagementClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating KMS client: %w", err)
	}

	return &KMSKeyWrapper{
		client:  client,
		keyName: keyName,
	}, nil
}

// Wrap は鍵素材をCloud KMSで暗号化する。
func (w *KMSKeyWrapper) Wrap(ctx context.Context, plaintext []byte) ([]byte, error) {
	resp, err := w.client.Encrypt(ctx, &kmspb.EncryptRequest{
		Name:      w.keyName,
		Plaintext: plaintext,
	})
	if err != nil {
		return nil, fmt.Errorf("wrapping key: %w", err)
	}
	return resp.Ciphertext, nil
}

// Unwrap はラップ済みの鍵素材をCloud KMSで復号する。
func (w *KMSKeyWrapper) Unwrap(ctx context.Context, ciphertext []byte) ([]byte, error) {
	resp, err := w.client.Decrypt(ctx, &kmspb.DecryptRequest{
		Name:       w.keyName,
		Ciphertext: ciphertext,
	})
	if err != nil {
		return nil, fmt.Errorf("unwrapping key: %w", err)
	}
	return resp.Plaintext, nil
}

// Close はKMSクライアントを閉じる。
func (w *KMSKeyWrapper) Close() error {
	return w.client.Close()
}
