package domain

import "time"

// EncryptionKey は1つのコンテンツを保護する対称鍵のレコードを表す。
// KeyHashは導出鍵のSHA-256（監査用の一方向ハッシュ）であり復号には使えない。
// 鍵素材そのものはWrappedKeyとしてKeyWrapperで包んだ状態でのみ永続化される。
type EncryptionKey struct {
	ID            string
	ContentID     string
	KeyHash       string
	WrappedKey    []byte
	Algorithm     Algorithm
	KeyDerivation KeyDerivation
	Salt          []byte
	Iterations    uint
	KeyLength     uint
	CreatedAt     time.Time
	ExpiresAt     time.Time
	RotatedAt     *time.Time
}

// Active は鍵が現在有効（未ローテーション・未失効）かどうかを返す。
// コンテンツごとに有効な鍵は常に1つだけ存在する。
func (k *EncryptionKey) Active(now time.Time) bool {
	return k.RotatedAt == nil && now.Before(k.ExpiresAt)
}
