package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"media-journal/internal/config"
	"media-journal/internal/handler"
	"media-journal/internal/mediastore"
	"media-journal/internal/metadata"
	"media-journal/internal/notify"
	"media-journal/internal/repository"
	"media-journal/internal/service"
)

func main() {
	cfg := config.Load()

	// Initialize database
	db, err := repository.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}

	// Initialize repositories
	itemRepo := repository.NewMediaItemRepository(db)
	personRepo := repository.NewPersonRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	credRepo := repository.NewCredentialRepository(db)

	// Initialize provider clients; keys come from the credential store
	keys := dbKeySource{creds: credRepo}
	tmdbClient := metadata.NewTMDBClient(keys)
	jikanClient := metadata.NewJikanClient()
	anilistClient := metadata.NewAniListClient()
	igdbClient := metadata.NewIGDBClient(keys)
	openlibClient := metadata.NewOpenLibraryClient()
	musicbrainzClient := metadata.NewMusicBrainzClient()

	media := mediastore.NewStore(cfg.MediaRoot)

	// Initialize services
	library := service.NewLibraryService(itemRepo, personRepo,
		tmdbClient, jikanClient, anilistClient, igdbClient, media)
	refresher := service.NewRefreshService(tmdbClient, anilistClient, itemRepo, media)
	backupMgr := service.NewBackupManager(itemRepo, personRepo, settingsRepo, credRepo, media)

	// Optional Telegram new-content push
	var notifier service.ContentNotifier
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Printf("Warning: Telegram notifier disabled: %v", err)
		} else {
			notifier = tg
		}
	}

	// Background refresh loops
	scheduler := service.NewScheduler(itemRepo, refresher, notifier)
	scheduler.StartTVLoop()
	scheduler.StartSerialLoop()

	// HTTP server
	h := handler.NewHTTPHandler(library, backupMgr, itemRepo, personRepo,
		settingsRepo, credRepo, media, tmdbClient, jikanClient, igdbClient,
		openlibClient, musicbrainzClient, cfg.APIToken)

	engine := gin.Default()
	h.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	go func() {
		log.Printf("media-journal listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
}

// dbKeySource resolves provider API keys from the credential store
type dbKeySource struct {
	creds *repository.CredentialRepository
}

func (s dbKeySource) ProviderKeys(name string) (string, string, error) {
	cred, err := s.creds.Get(name)
	if err != nil {
		return "", "", err
	}
	if cred == nil {
		return "", "", fmt.Errorf("no credentials stored for %s", name)
	}
	return cred.Key1, cred.Key2, nil
}
