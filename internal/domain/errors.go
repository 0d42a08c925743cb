package domain

import "errors"

var (
	// ErrContentNotFound は指定されたコンテンツが存在しない場合のエラー。
	ErrContentNotFound = errors.New("content not found")

	// ErrNotEncrypted は未暗号化のコンテンツに対する復号要求のエラー。
	ErrNotEncrypted = errors.New("content is not encrypted")

	// ErrAccessDenied は受講状態がアクセス条件を満たさない場合のエラー。
	ErrAccessDenied = errors.New("access denied")

	// ErrKeyNotFound はコンテンツの有効な鍵が存在しない場合のエラー。
	ErrKeyNotFound = errors.New("encryption key not found")

	// ErrInvalidKeyMaterial はseedまたはsaltが空の場合のエラー。
	ErrInvalidKeyMaterial = errors.New("invalid key material")

	// ErrUnsupportedAlgorithm はサポート外の暗号アルゴリズムが指定された場合のエラー。
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrUnsupportedKeyDerivation はサポート外の鍵導出戦略が指定された場合のエラー。
	ErrUnsupportedKeyDerivation = errors.New("unsupported key derivation")

	// ErrInvalidIterations は反復回数が下限（1000）を下回る場合のエラー。
	ErrInvalidIterations = errors.New("iterations below minimum")

	// ErrDecryptionFailed は復号の失敗（改ざん検知・鍵不一致を含む）のエラー。
	// 暗号プリミティブの失敗は自動リトライせず、このエラーで呼び出し側に返す。
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrStorageReadFailed はブロブストレージからの読み込み失敗のエラー。
	ErrStorageReadFailed = errors.New("storage read failed")

	// ErrStorageWriteFailed はブロブストレージへの書き込み失敗のエラー。
	ErrStorageWriteFailed = errors.New("storage write failed")

	// ErrStorageTimeout はストレージI/Oがタイムアウトした場合のエラー。
	ErrStorageTimeout = errors.New("storage timeout")

	// ErrInvalidContentID はコンテンツIDの形式が不正な場合のエラー。
	ErrInvalidContentID = errors.New("invalid content ID")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)
