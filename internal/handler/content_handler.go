// Package handler はHTTPハンドラを提供する。
package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"

	"content-encryption-service/internal/domain"
	"content-encryption-service/internal/usecase"
	"content-encryption-service/pkg/httputil"
)

var contentIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ContentHandler はコンテンツ暗号化APIのHTTPハンドラ。
type ContentHandler struct {
	keys     *usecase.KeyService
	rotation *usecase.RotationService
}

// NewContentHandler は新しいContentHandlerを生成する。
func NewContentHandler(keys *usecase.KeyService, rotation *usecase.RotationService) *ContentHandler {
	return &ContentHandler{keys: keys, rotation: rotation}
}

func validateContentID(contentID string) error {
	if contentID == "" || len(contentID) > 64 {
		return domain.ErrInvalidContentID
	}
	if !contentIDRegex.MatchString(contentID) {
		return domain.ErrInvalidContentID
	}
	return nil
}

// OptionsRequest は暗号化オプションのリクエスト形式。
type OptionsRequest struct {
	Algorithm     string `json:"algorithm,omitempty"`
	KeyDerivation string `json:"key_derivation,omitempty"`
	Iterations    uint   `json:"iterations,omitempty"`
	KeyLength     uint   `json:"key_length,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

func (r OptionsRequest) toOptions() (usecase.EncryptionOptions, error) {
	opts := usecase.EncryptionOptions{
		Algorithm:     domain.Algorithm(r.Algorithm),
		KeyDerivation: domain.KeyDerivation(r.KeyDerivation),
		Iterations:    r.Iterations,
		KeyLength:     r.KeyLength,
	}
	if r.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, r.ExpiresAt)
		if err != nil {
			return opts, err
		}
		opts.ExpiresAt = &t
	}
	return opts, nil
}

// EncryptResponse は暗号化のレスポンス形式。
type EncryptResponse struct {
	ContentID         string `json:"content_id"`
	EncryptedFilePath string `json:"encrypted_file_path"`
	KeyID             string `json:"key_id"`
	Algorithm         string `json:"algorithm"`
	KeyDerivation     string `json:"key_derivation"`
	EncryptedAt       string `json:"encrypted_at"`
	KeyExpiresAt      string `json:"key_expires_at"`
}

// EncryptContent はコンテンツを暗号化する。
func (h *ContentHandler) EncryptContent(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "content_id")
	if err := validateContentID(contentID); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_CONTENT_ID", "invalid content ID format")
		return
	}

	var req OptionsRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
			return
		}
	}
	opts, err := req.toOptions()
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "expires_at must be RFC3339")
		return
	}

	result, err := h.keys.EncryptContent(r.Context(), contentID, opts)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrContentNotFound):
			httputil.Error(w, http.StatusNotFound, "CONTENT_NOT_FOUND", "content not found")
		case errors.Is(err, domain.ErrUnsupportedAlgorithm):
			httputil.Error(w, http.StatusBadRequest, "UNSUPPORTED_ALGORITHM", "unsupported encryption algorithm")
		case errors.Is(err, domain.ErrUnsupportedKeyDerivation):
			httputil.Error(w, http.StatusBadRequest, "UNSUPPORTED_KEY_DERIVATION", "unsupported key derivation strategy")
		case errors.Is(err, domain.ErrInvalidIterations):
			httputil.Error(w, http.StatusBadRequest, "INVALID_ITERATIONS", "iteration count below minimum")
		case errors.Is(err, domain.ErrStorageReadFailed), errors.Is(err, domain.ErrStorageWriteFailed):
			httputil.Error(w, http.StatusBadGateway, "STORAGE_ERROR", "content storage unavailable")
		case errors.Is(err, domain.ErrStorageTimeout):
			httputil.Error(w, http.StatusGatewayTimeout, "STORAGE_TIMEOUT", "content storage timed out")
		default:
			httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, EncryptResponse{
		ContentID:         result.Content.ID,
		EncryptedFilePath: *result.Content.EncryptedFilePath,
		KeyID:             result.Key.ID,
		Algorithm:         string(result.Key.Algorithm),
		KeyDerivation:     string(result.Key.KeyDerivation),
		EncryptedAt:       result.Content.Metadata.EncryptedAt.Format(time.RFC3339),
		KeyExpiresAt:      result.Key.ExpiresAt.Format(time.RFC3339),
	})
}

// DecryptRequest は復号のリクエスト形式。
type DecryptRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// DecryptResponse は復号のレスポンス形式。
type DecryptResponse struct {
	ContentID string `json:"content_id"`
	Plaintext string `json:"plaintext"`
}

// DecryptContent はコンテンツを復号する。user_id指定時は受講状態を検証する。
func (h *ContentHandler) DecryptContent(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "content_id")
	if err := validateContentID(contentID); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_CONTENT_ID", "invalid content ID format")
		return
	}

	var req DecryptRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
			return
		}
	}
	var userID *string
	if req.UserID != "" {
		userID = &req.UserID
	}

	plaintext, err := h.keys.DecryptContent(r.Context(), contentID, userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrContentNotFound):
			httputil.Error(w, http.StatusNotFound, "CONTENT_NOT_FOUND", "content not found")
		case errors.Is(err, domain.ErrNotEncrypted):
			httputil.Error(w, http.StatusConflict, "NOT_ENCRYPTED", "content is not encrypted")
		case errors.Is(err, domain.ErrAccessDenied):
			httputil.Error(w, http.StatusForbidden, "ACCESS_DENIED", "user is not allowed to access this content")
		case errors.Is(err, domain.ErrKeyNotFound):
			httputil.Error(w, http.StatusNotFound, "KEY_NOT_FOUND", "no active encryption key for this content")
		case errors.Is(err, domain.ErrDecryptionFailed):
			httputil.Error(w, http.StatusInternalServerError, "DECRYPTION_FAILED", "content could not be decrypted")
		case errors.Is(err, domain.ErrStorageReadFailed):
			httputil.Error(w, http.StatusBadGateway, "STORAGE_ERROR", "content storage unavailable")
		case errors.Is(err, domain.ErrStorageTimeout):
			httputil.Error(w, http.StatusGatewayTimeout, "STORAGE_TIMEOUT", "content storage timed out")
		default:
			httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, DecryptResponse{
		ContentID: contentID,
		Plaintext: base64.StdEncoding.EncodeToString(plaintext),
	})
}

// RotateRequest は鍵ローテーションのリクエスト形式。
type RotateRequest struct {
	ContentID string `json:"content_id,omitempty"`
}

// RotateResponse は鍵ローテーションのレスポンス形式。
type RotateResponse struct {
	Rotated int64 `json:"rotated"`
	Total   int64 `json:"total"`
}

// RotateKeys は鍵をローテーションする。content_id未指定時は暗号化済み全件が対象。
func (h *ContentHandler) RotateKeys(w http.ResponseWriter, r *http.Request) {
	var req RotateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
			return
		}
	}
	var contentID *string
	if req.ContentID != "" {
		if err := validateContentID(req.ContentID); err != nil {
			httputil.Error(w, http.StatusBadRequest, "INVALID_CONTENT_ID", "invalid content ID format")
			return
		}
		contentID = &req.ContentID
	}

	result, err := h.rotation.RotateKeys(r.Context(), contentID)
	if err != nil {
		if errors.Is(err, domain.ErrContentNotFound) {
			httputil.Error(w, http.StatusNotFound, "CONTENT_NOT_FOUND", "content not found")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	httputil.JSON(w, http.StatusOK, RotateResponse{
		Rotated: result.Rotated,
		Total:   result.Total,
	})
}

// StatsResponse は暗号化統計のレスポンス形式。
type StatsResponse struct {
	TotalEncrypted   int64            `json:"total_encrypted"`
	ByAlgorithm      map[string]int64 `json:"by_algorithm"`
	ByKeyDerivation  map[string]int64 `json:"by_key_derivation"`
	KeysExpiringSoon int64            `json:"keys_expiring_soon"`
}

// GetStats は暗号化状況の統計を取得する。course_id指定でコースに絞る。
func (h *ContentHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	var courseID *string
	if v := r.URL.Query().Get("course_id"); v != "" {
		courseID = &v
	}

	stats, err := h.keys.GetEncryptionStats(r.Context(), courseID)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	httputil.JSON(w, http.StatusOK, StatsResponse{
		TotalEncrypted:   stats.TotalEncrypted,
		ByAlgorithm:      stats.ByAlgorithm,
		ByKeyDerivation:  stats.ByKeyDerivation,
		KeysExpiringSoon: stats.KeysExpiringSoon,
	})
}

// ValidateResponse はオプション検証のレスポンス形式。
type ValidateResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateOptions は暗号化オプションを適用せずに検証する。
func (h *ContentHandler) ValidateOptions(w http.ResponseWriter, r *http.Request) {
	var req OptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	opts, err := req.toOptions()
	if err != nil {
		httputil.JSON(w, http.StatusOK, ValidateResponse{
			Valid:  false,
			Errors: []string{"expires_at must be RFC3339"},
		})
		return
	}

	result := usecase.ValidateEncryptionOptions(opts)
	httputil.JSON(w, http.StatusOK, ValidateResponse{
		Valid:  result.Valid,
		Errors: result.Errors,
	})
}
