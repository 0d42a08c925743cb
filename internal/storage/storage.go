// Package storage はブロブストレージへのアクセスを提供する。
package storage

import (
	"context"
	"errors"
	"path"
	"time"

	"content-encryption-service/internal/domain"
)

// BlobStore はブロブの読み書きのインターフェース。
// 実装はI/Oにタイムアウトを適用し、超過時はErrStorageTimeoutを返す。
type BlobStore interface {
	Read(ctx context.Context, blobPath string) ([]byte, error)
	Write(ctx context.Context, blobPath string, data []byte) (string, error)
}

// DefaultTimeout はストレージI/Oのデフォルトタイムアウト。
const DefaultTimeout = 30 * time.Second

// EncryptedPath は暗号文の格納先パスを生成する。
// 暗号文は courses/{courseID}/encrypted/ 名前空間に
// コンテンツID+乱数サフィックスで配置される。
func EncryptedPath(courseID, contentID, suffix string) string {
	return path.Join("courses", courseID, "encrypted", contentID+"_"+suffix)
}

// opContext はタイムアウト付きのコンテキストを返す。
func opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// timeoutErr はデッドライン超過をErrStorageTimeoutへ変換する。変換不要ならnil。
func timeoutErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrStorageTimeout
	}
	return nil
}
