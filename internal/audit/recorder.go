// Package audit は暗号化操作の監査記録を提供する。
package audit

import (
	"context"
	"log/slog"
	"time"
)

// 監査対象の操作。
const (
	ActionEncrypt = "ENCRYPT_CONTENT"
	ActionDecrypt = "DECRYPT_CONTENT"
	ActionRotate  = "ROTATE_KEY"
)

// Event は1件の監査イベントを表す。
type Event struct {
	ContentID string
	UserID    *string
	Action    string
	Result    string
	Timestamp time.Time
}

// Recorder は監査イベントの記録先のインターフェース。
// 暗号化・復号・ローテーションの成功時の記録は必須であり省略できない。
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// SlogRecorder は構造化ログへ監査イベントを書き出すRecorder。
type SlogRecorder struct{}

// Record は監査イベントを出力する。鍵素材は決して含めない。
func (SlogRecorder) Record(ctx context.Context, event Event) {
	attrs := []any{
		"operation", event.Action,
		"content_id", event.ContentID,
		"result", event.Result,
		"timestamp", event.Timestamp.UTC().Format(time.RFC3339),
	}
	if event.UserID != nil {
		attrs = append(attrs, "user_id", *event.UserID)
	}
	slog.InfoContext(ctx, "content encryption audit", attrs...)
}
