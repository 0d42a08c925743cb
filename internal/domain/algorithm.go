// Package domain はドメインモデルとビジネスルールを定義する。
package domain

// Algorithm は対称暗号アルゴリズムを表す閉じた列挙。
type Algorithm string

const (
	// AlgorithmAES256CBC はAES-256-CBC（デフォルト・後方互換用、改ざん検知なし）。
	AlgorithmAES256CBC Algorithm = "aes-256-cbc"
	// AlgorithmAES256GCM はAES-256-GCM（認証付き暗号）。
	AlgorithmAES256GCM Algorithm = "aes-256-gcm"
	// AlgorithmChaCha20Poly1305 はXChaCha20-Poly1305（認証付き暗号、24バイトnonce）。
	AlgorithmChaCha20Poly1305 Algorithm = "chacha20-poly1305"
)

// Algorithms はサポートする全アルゴリズム。
var Algorithms = []Algorithm{
	AlgorithmAES256CBC,
	AlgorithmAES256GCM,
	AlgorithmChaCha20Poly1305,
}

// Valid はサポート対象のアルゴリズムかどうかを返す。
func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmAES256CBC, AlgorithmAES256GCM, AlgorithmChaCha20Poly1305:
		return true
	}
	return false
}

// IVSize はアルゴリズムが要求するIV/nonceのバイト数を返す。
func (a Algorithm) IVSize() int {
	switch a {
	case AlgorithmAES256CBC:
		return 16
	case AlgorithmAES256GCM:
		return 12
	case AlgorithmChaCha20Poly1305:
		return 24
	}
	return 0
}

// Authenticated は改ざん検知（認証タグ）を提供するモードかどうかを返す。
// CBCはfalseを返す。呼び出し側はこの値で完全性保証の有無を判断する。
func (a Algorithm) Authenticated() bool {
	return a == AlgorithmAES256GCM || a == AlgorithmChaCha20Poly1305
}

// KeyDerivation は鍵導出戦略を表す閉じた列挙。
type KeyDerivation string

const (
	// KeyDerivationPBKDF2 はPBKDF2-SHA256（デフォルトかつ全戦略のフォールバック先）。
	KeyDerivationPBKDF2 KeyDerivation = "pbkdf2"
	// KeyDerivationArgon2id はArgon2id（利用可能な場合に優先）。
	KeyDerivationArgon2id KeyDerivation = "argon2id"
	// KeyDerivationBcrypt はbcryptベースの導出。このランタイムでは
	// 利用できないため常にPBKDF2へフォールバックされる。
	KeyDerivationBcrypt KeyDerivation = "bcrypt"
)

// KeyDerivations はサポートする全導出戦略。
var KeyDerivations = []KeyDerivation{
	KeyDerivationPBKDF2,
	KeyDerivationArgon2id,
	KeyDerivationBcrypt,
}

// Valid はサポート対象の導出戦略かどうかを返す。
func (k KeyDerivation) Valid() bool {
	switch k {
	case KeyDerivationPBKDF2, KeyDerivationArgon2id, KeyDerivationBcrypt:
		return true
	}
	return false
}
