package usecase

import (
	"fmt"
	"time"

	"content-encryption-service/internal/crypto"
	"content-encryption-service/internal/domain"
)

// DefaultKeyTTL は鍵の有効期間のデフォルト（10年）。
const DefaultKeyTTL = 10 * 365 * 24 * time.Hour

// ExpiryWarningWindow は統計で「まもなく失効」と数える期間。
const ExpiryWarningWindow = 30 * 24 * time.Hour

// EncryptionOptions は暗号化操作のオプション。ゼロ値の項目にはデフォルトが適用される。
type EncryptionOptions struct {
	Algorithm     domain.Algorithm
	KeyDerivation domain.KeyDerivation
	Iterations    uint
	KeyLength     uint
	ExpiresAt     *time.Time
}

// Defaults はKeyServiceに構築時に渡される不変のデフォルト値。
// グローバル状態・シングルトンは持たない。
type Defaults struct {
	Algorithm     domain.Algorithm
	KeyDerivation domain.KeyDerivation
	Iterations    uint
	KeyLength     uint
	KeyTTL        time.Duration
}

// NewDefaults は設定値から欠けを埋めたDefaultsを生成する。
func NewDefaults(algorithm, keyDerivation string) Defaults {
	d := Defaults{
		Algorithm:     domain.Algorithm(algorithm),
		KeyDerivation: domain.KeyDerivation(keyDerivation),
		Iterations:    crypto.DefaultIterations,
		KeyLength:     crypto.DefaultKeyLength,
		KeyTTL:        DefaultKeyTTL,
	}
	if !d.Algorithm.Valid() {
		d.Algorithm = domain.AlgorithmAES256CBC
	}
	if !d.KeyDerivation.Valid() {
		d.KeyDerivation = domain.KeyDerivationPBKDF2
	}
	return d
}

// withDefaults はゼロ値の項目をデフォルトで埋めたオプションを返す。
func (o EncryptionOptions) withDefaults(d Defaults) EncryptionOptions {
	if o.Algorithm == "" {
		o.Algorithm = d.Algorithm
	}
	if o.KeyDerivation == "" {
		o.KeyDerivation = d.KeyDerivation
	}
	if o.Iterations == 0 {
		o.Iterations = d.Iterations
	}
	if o.KeyLength == 0 {
		o.KeyLength = d.KeyLength
	}
	return o
}

// check はオプションをドメインエラーとして検証する（デフォルト適用後に呼ぶ）。
func (o EncryptionOptions) check() error {
	if !o.Algorithm.Valid() {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedAlgorithm, o.Algorithm)
	}
	if !o.KeyDerivation.Valid() {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedKeyDerivation, o.KeyDerivation)
	}
	if o.Iterations < crypto.MinIterations {
		return fmt.Errorf("%w: %d < %d", domain.ErrInvalidIterations, o.Iterations, crypto.MinIterations)
	}
	return nil
}

// ValidationResult はオプション検証の結果。
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateEncryptionOptions は指定された項目のみを検証する。
// ゼロ値（未指定）の項目は検証対象外（デフォルトが適用されるため）。
func ValidateEncryptionOptions(opts EncryptionOptions) ValidationResult {
	var errs []string
	if opts.Algorithm != "" && !opts.Algorithm.Valid() {
		errs = append(errs, fmt.Sprintf("unsupported algorithm: %s", opts.Algorithm))
	}
	if opts.KeyDerivation != "" && !opts.KeyDerivation.Valid() {
		errs = append(errs, fmt.Sprintf("unsupported key derivation: %s", opts.KeyDerivation))
	}
	if opts.Iterations != 0 && opts.Iterations < crypto.MinIterations {
		errs = append(errs, fmt.Sprintf("iterations must be at least %d", crypto.MinIterations))
	}
	if opts.KeyLength != 0 && opts.KeyLength != crypto.DefaultKeyLength {
		errs = append(errs, fmt.Sprintf("key length must be %d bytes", crypto.DefaultKeyLength))
	}
	if opts.ExpiresAt != nil && !opts.ExpiresAt.After(time.Now()) {
		errs = append(errs, "expires_at must be in the future")
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
