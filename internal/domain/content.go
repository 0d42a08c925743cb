package domain

import "time"

// EncryptionMetadata は暗号化済みコンテンツに刻印されるメタデータ。
// contentsテーブルのJSONカラムとして永続化される。
type EncryptionMetadata struct {
	Algorithm     Algorithm     `json:"algorithm"`
	KeyDerivation KeyDerivation `json:"key_derivation"`
	IV            []byte        `json:"iv"`
	Tag           []byte        `json:"tag,omitempty"`
	Salt          []byte        `json:"salt"`
	KeyID         string        `json:"key_id"`
	EncryptedAt   time.Time     `json:"encrypted_at"`
	RotatedAt     *time.Time    `json:"rotated_at,omitempty"`
}

// Content は暗号化対象のコンテンツ（動画・資料・スライド）を表す。
// レコードの生成・削除はコンテンツ管理側の責務であり、
// 本サブシステムは暗号化状態とメタデータのみを更新する。
type Content struct {
	ID                 string
	CourseID           string
	Title              string
	FilePath           string
	EncryptedFilePath  *string
	IsEncrypted        bool
	RequiresCompletion bool
	Metadata           *EncryptionMetadata
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
