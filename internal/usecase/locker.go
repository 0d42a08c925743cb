package usecase

import "sync"

// ContentLocker はコンテンツID単位の排他制御を提供する。
// 同一コンテンツの暗号化・復号・ローテーションは相互排他で実行され、
// 異なるコンテンツ同士は並行に処理できる。
type ContentLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewContentLocker は新しいContentLockerを生成する。
func NewContentLocker() *ContentLocker {
	return &ContentLocker{locks: make(map[string]*sync.Mutex)}
}

// Lock は指定コンテンツのロックを取得し、解放関数を返す。
func (l *ContentLocker) Lock(contentID string) func() {
	l.mu.Lock()
	m, ok := l.locks[contentID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[contentID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
