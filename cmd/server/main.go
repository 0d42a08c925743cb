// Package main はAPIサーバーのエントリポイント。
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"content-encryption-service/config"
	"content-encryption-service/internal/audit"
	"content-encryption-service/internal/crypto"
	"content-encryption-service/internal/handler"
	"content-encryption-service/internal/infra"
	"content-encryption-service/internal/repository"
	"content-encryption-service/internal/storage"
	"content-encryption-service/internal/usecase"
)

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	// 設定読み込み
	cfg := config.Load()

	// ログレベル設定
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "DEBUG":
		logLevel = slog.LevelDebug
	case "WARN":
		logLevel = slog.LevelWarn
	case "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg, logLevel)

	// DB初期化
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is not set")
		os.Exit(1)
	}
	db, err := infra.NewDB(cfg.DatabaseURL, cfg.OtelEnabled)
	if err != nil {
		slog.Error("failed to init database", "error", err)
		os.Exit(1)
	}

	// ブロブストレージ初期化
	var blobs usecase.BlobStore
	switch cfg.StorageBackend {
	case "s3":
		s3Client, err := storage.NewS3Client(ctx, cfg.S3Region)
		if err != nil {
			slog.Error("failed to init S3 client", "error", err)
			os.Exit(1)
		}
		blobs = storage.NewS3Store(s3Client, cfg.S3Bucket, cfg.S3Prefix, cfg.StorageTimeout)
	default:
		blobs = storage.NewLocalStore(cfg.LocalStorageDir, cfg.StorageTimeout)
	}

	// 鍵ラッパー初期化（KMS_KEY_NAME設定時はCloud KMS、未設定時はローカルマスター鍵）
	var wrapper usecase.KeyWrapper
	if cfg.KMSKeyName != "" {
		kmsWrapper, err := infra.NewKMSKeyWrapper(ctx, cfg.KMSKeyName)
		if err != nil {
			slog.Error("failed to init KMS key wrapper", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := kmsWrapper.Close(); closeErr != nil {
				slog.Error("failed to close KMS client", "error", closeErr)
			}
		}()
		wrapper = kmsWrapper
	} else {
		localWrapper, err := infra.NewLocalKeyWrapper(cfg.MasterKey)
		if err != nil {
			slog.Error("failed to init local key wrapper", "error", err)
			os.Exit(1)
		}
		wrapper = localWrapper
	}

	// DI
	contents := repository.NewContentRepository(db)
	keys := repository.NewKeyRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	keyService := usecase.NewKeyService(contents, keys, blobs, enrollments, wrapper, audit.SlogRecorder{}, usecase.CryptoConfig{
		Deriver:  crypto.DefaultDeriver(),
		Engine:   crypto.DefaultEngine(),
		Defaults: usecase.NewDefaults(cfg.DefaultAlgorithm, cfg.DefaultKeyDerivation),
	})
	rotationService := usecase.NewRotationService(keyService, contents, cfg.RotationWorkers)
	h := handler.NewContentHandler(keyService, rotationService)
	router := handler.NewRouter(h)

	var rootHandler http.Handler = router
	if cfg.OtelEnabled {
		rootHandler = otelhttp.NewHandler(router, "content-encryption-service")
	}

	// サーバー起動
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: rootHandler,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
