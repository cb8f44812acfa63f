package app

import (
	"context"
	"fmt"
	"time"

	"crimewatch/internal/config"
	"crimewatch/internal/db"
	"crimewatch/internal/handlers"
	"crimewatch/internal/models"
	"crimewatch/internal/notify"
	"crimewatch/internal/pdf"
	"crimewatch/internal/repository"
	"crimewatch/internal/router"
	"crimewatch/internal/services"
	"crimewatch/internal/storage"
	"crimewatch/internal/tasks"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	taskTimeout = 2 * time.Minute
	pdfCacheTTL = 30 * time.Minute
)

// App holds the wired dependencies shared by the server and the CLI.
type App struct {
	Config     *config.Config
	Log        *zap.SugaredLogger
	DB         *gorm.DB
	Store      storage.Storage
	Exporter   pdf.Exporter
	Dispatcher *tasks.Async
	Users      *services.UserService
	Reports    *services.ReportService
	Resets     *services.PasswordResetService
	reportRepo *repository.ReportRepo
}

// New opens the database and builds every service described by cfg.
func New(cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	conn, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	store := NewStorage(cfg)
	mailer := NewMailer(cfg, log)

	userRepo := repository.NewUserRepo(conn)
	reportRepo := repository.NewReportRepo(conn)

	gateway, err := notify.NewGateway(mailer, userRepo, notify.GatewayOptions{
		From:     cfg.MailFrom,
		SiteURL:  cfg.SiteURL,
		Location: cfg.Location,
	})
	if err != nil {
		return nil, err
	}

	renderer := pdf.NewRenderer(store, pdf.Options{Location: cfg.Location, Compress: true})
	var exporter pdf.Exporter = renderer
	if cfg.PDFCacheSize > 0 {
		cache, err := pdf.NewCache(renderer, cfg.PDFCacheSize, pdfCacheTTL)
		if err != nil {
			return nil, err
		}
		exporter = cache
	}

	dispatcher := tasks.NewAsync(log, taskTimeout)

	return &App{
		Config:     cfg,
		Log:        log,
		DB:         conn,
		Store:      store,
		Exporter:   exporter,
		Dispatcher: dispatcher,
		Users:      services.NewUserService(userRepo, gateway, dispatcher, log),
		Reports:    services.NewReportService(reportRepo, store, exporter, gateway, dispatcher, log),
		Resets: services.NewPasswordResetService(userRepo, gateway, dispatcher, log, services.PasswordResetOptions{
			Secret:  []byte(cfg.SessionSecret),
			TTL:     cfg.PasswordResetTTL,
			SiteURL: cfg.SiteURL,
		}),
		reportRepo: reportRepo,
	}, nil
}

// NewStorage picks the media backend. Local media is served to its owner by
// the app under /media.
func NewStorage(cfg *config.Config) storage.Storage {
	if cfg.StorageBackend == "s3" {
		return storage.NewS3(storage.S3Options{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PublicURL:       cfg.S3.PublicURL,
		})
	}
	return storage.NewLocal(cfg.MediaRoot, cfg.SiteURL+"/media")
}

func NewMailer(cfg *config.Config, log *zap.SugaredLogger) notify.Mailer {
	switch cfg.MailBackend {
	case "smtp":
		return notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	case "sendgrid":
		return notify.NewSendGridMailer(cfg.SendGridAPIKey)
	default:
		return notify.LogMailer{Log: log}
	}
}

// Engine builds the HTTP handler tree.
func (a *App) Engine() (*gin.Engine, error) {
	if a.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	h := router.Handlers{
		Auth:     handlers.NewAuthHandler(a.Users, a.Log),
		Password: handlers.NewPasswordHandler(a.Resets, a.Log),
		Reports:  handlers.NewReportHandler(a.Reports, a.Config.MaxUploadBytes, a.Log),
		Health:   handlers.NewHealthHandler(a.DB),
	}
	if a.Config.StorageBackend != "s3" {
		h.Media = handlers.NewMediaHandler(a.Store, a.Log)
	}
	return router.New(router.Options{
		SessionSecret: a.Config.SessionSecret,
		SecureCookies: a.Config.IsProduction(),
		Location:      a.Config.Location,
		Users:         a.Users,
		Log:           a.Log,
	}, h)
}

func (a *App) Migrate() error {
	return db.Migrate(a.DB)
}

// ReportByID loads any report for administrative export.
func (a *App) ReportByID(ctx context.Context, id uint) (*models.Report, error) {
	return a.reportRepo.GetByID(ctx, id)
}

// Close waits for pending notifications and releases the database.
func (a *App) Close(ctx context.Context) error {
	waitErr := a.Dispatcher.Wait(ctx)
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	return waitErr
}
