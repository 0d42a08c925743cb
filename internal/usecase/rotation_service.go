package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"content-encryption-service/internal/domain"
)

// RotationService は暗号鍵の一括ローテーションを実行する。
// 対象ごとに独立して処理し、1件の失敗が他の対象の処理を止めることはない。
type RotationService struct {
	keys     *KeyService
	contents ContentRepository
	workers  int
}

// NewRotationService は新しいRotationServiceを生成する。
func NewRotationService(keys *KeyService, contents ContentRepository, workers int) *RotationService {
	if workers < 1 {
		workers = 1
	}
	return &RotationService{
		keys:     keys,
		contents: contents,
		workers:  workers,
	}
}

// RotationResult はローテーションの実行結果。
type RotationResult struct {
	Rotated int64
	Total   int64
}

// RotateKeys は対象コンテンツの鍵をローテーションする。
// contentID指定時は1件のみ、未指定時は暗号化済み全件が対象。
// キャンセルは対象の区切りでのみ確認し、処理中の対象は中断しない。
func (s *RotationService) RotateKeys(ctx context.Context, contentID *string) (*RotationResult, error) {
	candidates, err := s.contents.FindEncrypted(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if contentID != nil && len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrContentNotFound, *contentID)
	}

	var (
		rotated int64
		wg      sync.WaitGroup
		sem     = make(chan struct{}, s.workers)
	)

	for _, content := range candidates {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.keys.rotateOne(ctx, id); err != nil {
				slog.ErrorContext(ctx, "failed to rotate key",
					slog.String("content_id", id),
					slog.String("error", err.Error()),
				)
				return
			}
			atomic.AddInt64(&rotated, 1)
		}(content.ID)
	}
	wg.Wait()

	return &RotationResult{
		Rotated: atomic.LoadInt64(&rotated),
		Total:   int64(len(candidates)),
	}, nil
}
