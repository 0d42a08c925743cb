package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"content-encryption-service/internal/domain"
)

// LocalStore はローカルファイルシステム上のブロブストレージ。
type LocalStore struct {
	baseDir string
	timeout time.Duration
}

// NewLocalStore は指定ディレクトリを起点とするLocalStoreを生成する。
func NewLocalStore(baseDir string, timeout time.Duration) *LocalStore {
	return &LocalStore{baseDir: baseDir, timeout: timeout}
}

// Read はブロブを読み込む。存在しない場合はErrStorageReadFailed。
func (s *LocalStore) Read(ctx context.Context, blobPath string) ([]byte, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		if terr := timeoutErr(ctx, err); terr != nil {
			return nil, terr
		}
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.baseDir, filepath.FromSlash(blobPath)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrStorageReadFailed, blobPath)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageReadFailed, err)
	}
	return data, nil
}

// Write はブロブを書き込み、格納先パスを返す。親ディレクトリは必要に応じて作成する。
func (s *LocalStore) Write(ctx context.Context, blobPath string, data []byte) (string, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		if terr := timeoutErr(ctx, err); terr != nil {
			return "", terr
		}
		return "", err
	}

	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(blobPath))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}
	return blobPath, nil
}
