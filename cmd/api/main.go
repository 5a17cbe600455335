package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bomilitar/plataforma/internal/auth"
	"github.com/bomilitar/plataforma/internal/config"
	"github.com/bomilitar/plataforma/internal/db"
	internalhttp "github.com/bomilitar/plataforma/internal/http"
	"github.com/bomilitar/plataforma/internal/ocorrencia"
	"github.com/bomilitar/plataforma/internal/repo"
	"github.com/bomilitar/plataforma/internal/service"
	"github.com/bomilitar/plataforma/internal/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()

	var (
		store       repo.Store
		ocRepo      ocorrencia.Repository
		readyChecks []func(ctx context.Context) error
	)

	if cfg.DBDSN != "" {
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer pool.Close()

		store = repo.New(pool)
		ocRepo = ocorrencia.NewPostgresRepository(pool)
		readyChecks = append(readyChecks, pool.Ping)
	} else {
		log.Warn().Msg("DB_DSN ausente; usando repositórios em memória")
		store = repo.NewMemoryStore()
		ocRepo = ocorrencia.NewMemoryRepository()
	}

	var sessions service.SessionStore
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis parse: %w", err)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()

		sessions = service.NewRedisSessions(redisClient)
		readyChecks = append(readyChecks, func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	} else {
		log.Warn().Msg("REDIS_URL ausente; usando sessões em memória")
		sessions = service.NewMemorySessions()
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	authService := service.NewAuthService(store, sessions, jwtManager, cfg.JWTRefreshTTL)

	uploader, disk, err := buildUploader(cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	ocService := ocorrencia.NewService(ocRepo, store, uploader, ocorrencia.Options{
		Transicoes:     cfg.Transicoes,
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxUploadFiles: cfg.MaxUploadFiles,
	})

	handler := internalhttp.NewRouter(cfg, internalhttp.Deps{
		Auth:        authService,
		Ocorrencias: ocService,
		Uploads:     disk,
		Ready: func(ctx context.Context) error {
			var errs []error
			for _, check := range readyChecks {
				errs = append(errs, check(ctx))
			}
			return errors.Join(errs...)
		},
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildUploader seleciona o backend de mídia. O retorno em disco também é
// entregue ao router para servir /uploads/{filename}.
func buildUploader(cfg *config.Config) (storage.Uploader, *storage.DiskUploader, error) {
	switch cfg.Storage.Provider {
	case "", "disk":
		disk, err := storage.NewDiskUploader(cfg.UploadDir)
		if err != nil {
			return nil, nil, err
		}
		return disk, disk, nil
	case "s3", "r2", "cloudflare-r2":
		uploader, err := storage.NewS3Uploader(storage.S3Config{
			Endpoint:     cfg.Storage.S3Endpoint,
			Region:       cfg.Storage.S3Region,
			Bucket:       cfg.Storage.S3Bucket,
			AccessKey:    cfg.Storage.S3AccessKey,
			SecretKey:    cfg.Storage.S3SecretKey,
			PublicDomain: cfg.Storage.S3PublicURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return uploader, nil, nil
	case "noop":
		return storage.NoopUploader{}, nil, nil
	default:
		return nil, nil, fmt.Errorf("provedor %s não suportado", cfg.Storage.Provider)
	}
}
