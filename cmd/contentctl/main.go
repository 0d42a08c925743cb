// Package main はCLIツールのエントリポイント。
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	apiURL  string
	output  string
	timeout time.Duration
)

// HTTPクライアント
var httpClient *http.Client

func main() {
	rootCmd := &cobra.Command{
		Use:   "contentctl",
		Short: "Content Encryption Service CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if apiURL == "" {
				apiURL = os.Getenv("CONTENTCTL_API_URL")
			}
			httpClient = &http.Client{Timeout: timeout}
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API endpoint URL (or set CONTENTCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(encryptCmd())
	rootCmd.AddCommand(decryptCmd())
	rootCmd.AddCommand(rotateCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("contentctl version %s\n", version)
		},
	}
}

func requireAPIURL() error {
	if apiURL == "" {
		return fmt.Errorf("--api-url is required (or set CONTENTCTL_API_URL)")
	}
	return nil
}

func postJSON(url string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	resp, err := httpClient.Post(url, "application/json", body)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// encryptCmd はコンテンツの暗号化コマンド。
func encryptCmd() *cobra.Command {
	var contentID, algorithm, keyDerivation, expiresAt string
	var iterations uint
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a content with a newly generated key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAPIURL(); err != nil {
				return err
			}

			payload := map[string]any{}
			if algorithm != "" {
				payload["algorithm"] = algorithm
			}
			if keyDerivation != "" {
				payload["key_derivation"] = keyDerivation
			}
			if iterations > 0 {
				payload["iterations"] = iterations
			}
			if expiresAt != "" {
				payload["expires_at"] = expiresAt
			}

			url := fmt.Sprintf("%s/v1/contents/%s/encrypt", apiURL, contentID)
			status, body, err := postJSON(url, payload)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return handleErrorResponse(status, body)
			}

			if output == "json" {
				fmt.Println(string(body))
			} else {
				var result map[string]interface{}
				if err := json.Unmarshal(body, &result); err != nil {
					return fmt.Errorf("parsing response: %w", err)
				}
				fmt.Printf("Encrypted content %q with %v (key: %v)\n", contentID, result["algorithm"], result["key_id"])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&contentID, "content", "", "Content ID (required)")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "Encryption algorithm (optional)")
	cmd.Flags().StringVar(&keyDerivation, "key-derivation", "", "Key derivation strategy (optional)")
	cmd.Flags().UintVar(&iterations, "iterations", 0, "KDF iteration count (optional)")
	cmd.Flags().StringVar(&expiresAt, "expires-at", "", "Key expiry in RFC3339 (optional)")
	cmd.MarkFlagRequired("content")
	return cmd
}

// decryptCmd はコンテンツの復号コマンド。
func decryptCmd() *cobra.Command {
	var contentID, userID, outFile string
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt a content",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAPIURL(); err != nil {
				return err
			}

			payload := map[string]any{}
			if userID != "" {
				payload["user_id"] = userID
			}

			url := fmt.Sprintf("%s/v1/contents/%s/decrypt", apiURL, contentID)
			status, body, err := postJSON(url, payload)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return handleErrorResponse(status, body)
			}

			if output == "json" {
				fmt.Println(string(body))
				return nil
			}

			var result struct {
				Plaintext string `json:"plaintext"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			plaintext, err := base64.StdEncoding.DecodeString(result.Plaintext)
			if err != nil {
				return fmt.Errorf("decoding plaintext: %w", err)
			}
			if outFile != "" {
				if err := os.WriteFile(outFile, plaintext, 0600); err != nil {
					return fmt.Errorf("writing output file: %w", err)
				}
				fmt.Printf("Wrote %d bytes to %s\n", len(plaintext), outFile)
			} else {
				os.Stdout.Write(plaintext)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&contentID, "content", "", "Content ID (required)")
	cmd.Flags().StringVar(&userID, "user", "", "User ID for enrollment check (optional)")
	cmd.Flags().StringVar(&outFile, "out", "", "Write plaintext to file instead of stdout")
	cmd.MarkFlagRequired("content")
	return cmd
}

// rotateCmd は鍵のローテーションコマンド。
func rotateCmd() *cobra.Command {
	var contentID string
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Rotate encryption keys (all encrypted contents unless --content is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAPIURL(); err != nil {
				return err
			}

			payload := map[string]any{}
			if contentID != "" {
				payload["content_id"] = contentID
			}

			url := fmt.Sprintf("%s/v1/keys/rotate", apiURL)
			status, body, err := postJSON(url, payload)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return handleErrorResponse(status, body)
			}

			if output == "json" {
				fmt.Println(string(body))
			} else {
				var result struct {
					Rotated int64 `json:"rotated"`
					Total   int64 `json:"total"`
				}
				if err := json.Unmarshal(body, &result); err != nil {
					return fmt.Errorf("parsing response: %w", err)
				}
				fmt.Printf("Rotated %d of %d key(s)\n", result.Rotated, result.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&contentID, "content", "", "Content ID (optional, rotates everything when omitted)")
	return cmd
}

// statsCmd は暗号化統計の取得コマンド。
func statsCmd() *cobra.Command {
	var courseID string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show encryption statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAPIURL(); err != nil {
				return err
			}

			url := fmt.Sprintf("%s/v1/stats", apiURL)
			if courseID != "" {
				url += "?course_id=" + courseID
			}
			resp, err := httpClient.Get(url)
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return handleErrorResponse(resp.StatusCode, body)
			}

			if output == "json" {
				fmt.Println(string(body))
			} else {
				var result struct {
					TotalEncrypted   int64            `json:"total_encrypted"`
					ByAlgorithm      map[string]int64 `json:"by_algorithm"`
					ByKeyDerivation  map[string]int64 `json:"by_key_derivation"`
					KeysExpiringSoon int64            `json:"keys_expiring_soon"`
				}
				if err := json.Unmarshal(body, &result); err != nil {
					return fmt.Errorf("parsing response: %w", err)
				}
				fmt.Printf("Encrypted contents: %d\n", result.TotalEncrypted)
				for alg, n := range result.ByAlgorithm {
					fmt.Printf("  %-20s %d\n", alg, n)
				}
				for kdf, n := range result.ByKeyDerivation {
					fmt.Printf("  %-20s %d\n", kdf, n)
				}
				fmt.Printf("Keys expiring soon: %d\n", result.KeysExpiringSoon)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&courseID, "course", "", "Course ID (optional)")
	return cmd
}

// validateCmd は暗号化オプションの検証コマンド。
func validateCmd() *cobra.Command {
	var algorithm, keyDerivation, expiresAt string
	var iterations, keyLength uint
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate encryption options without applying them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAPIURL(); err != nil {
				return err
			}

			payload := map[string]any{}
			if algorithm != "" {
				payload["algorithm"] = algorithm
			}
			if keyDerivation != "" {
				payload["key_derivation"] = keyDerivation
			}
			if iterations > 0 {
				payload["iterations"] = iterations
			}
			if keyLength > 0 {
				payload["key_length"] = keyLength
			}
			if expiresAt != "" {
				payload["expires_at"] = expiresAt
			}

			url := fmt.Sprintf("%s/v1/options/validate", apiURL)
			status, body, err := postJSON(url, payload)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return handleErrorResponse(status, body)
			}

			if output == "json" {
				fmt.Println(string(body))
			} else {
				var result struct {
					Valid  bool     `json:"valid"`
					Errors []string `json:"errors"`
				}
				if err := json.Unmarshal(body, &result); err != nil {
					return fmt.Errorf("parsing response: %w", err)
				}
				if result.Valid {
					fmt.Println("Options are valid.")
				} else {
					fmt.Printf("Options are invalid:\n  %s\n", strings.Join(result.Errors, "\n  "))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "Encryption algorithm")
	cmd.Flags().StringVar(&keyDerivation, "key-derivation", "", "Key derivation strategy")
	cmd.Flags().UintVar(&iterations, "iterations", 0, "KDF iteration count")
	cmd.Flags().UintVar(&keyLength, "key-length", 0, "Derived key length in bytes")
	cmd.Flags().StringVar(&expiresAt, "expires-at", "", "Key expiry in RFC3339")
	return cmd
}

func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("Error: %s", errResp.Message)
	}
	return fmt.Errorf("Error: server returned status %d", statusCode)
}
