package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/pidb/catalog-api/api/swagger"
	"github.com/pidb/catalog-api/internal/handler"
	"github.com/pidb/catalog-api/internal/middleware"
	"github.com/pidb/catalog-api/internal/models"
	"github.com/pidb/catalog-api/internal/repository"
	"github.com/pidb/catalog-api/internal/service"
	"github.com/pidb/catalog-api/pkg/cache"
	"github.com/pidb/catalog-api/pkg/clock"
	"github.com/pidb/catalog-api/pkg/config"
	"github.com/pidb/catalog-api/pkg/database"
	"github.com/pidb/catalog-api/pkg/embedding"
	"github.com/pidb/catalog-api/pkg/jobs"
	"github.com/pidb/catalog-api/pkg/logger"
	corsmiddleware "github.com/pidb/catalog-api/pkg/middleware/cors"
	reqidmiddleware "github.com/pidb/catalog-api/pkg/middleware/requestid"
	"github.com/pidb/catalog-api/pkg/storage"
	"github.com/pidb/catalog-api/pkg/tabular"
)

// @title PIDB Catalog API
// @version 1.0.0
// @description Course catalog browser and editor for the PharmD and PhD programs
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const snapshotTTL = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()
	civil := clock.NewCivil(cfg.Sheets.CivilTimezone)
	validate := validator.New()

	store, writable := openStore(ctx, cfg, metricsSvc, logr)

	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("redis unavailable", "error", err)
		}
		defer redisClient.Close() //nolint:errcheck
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	sessionRepo := repository.NewSessionRepository(cacheRepo, cfg.JWT.SessionTTL)
	exportJobRepo := repository.NewExportJobRepository(cacheRepo, cfg.Exports.SignedURLTTL)

	var db *sqlx.DB
	if cfg.Audit.HasAuditSink("postgres") {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Sugar().Fatalw("postgres unavailable", "error", err)
		}
		defer db.Close() //nolint:errcheck
	}

	sinks, closeSinks := auditSinks(ctx, cfg, store, writable, db, civil, logr)
	defer closeSinks()
	auditSvc := service.NewAuditService(sinks, civil, metricsSvc, logr)

	catalogRepo := repository.NewCatalogRepository(store, programTables(cfg))
	var folders interface {
		Load(ctx context.Context, program models.Program) (map[string]models.FolderLink, error)
	}
	if cfg.Programs.FolderIndexID != "" {
		folders = repository.NewFolderLinkRepository(store, folderPartitions(cfg))
	}
	rootFolders := map[models.Program]string{
		models.ProgramPharmD: cfg.Programs.PharmD.RootFolderURL,
		models.ProgramPhD:    cfg.Programs.PhD.RootFolderURL,
	}
	catalogSvc := service.NewCatalogService(catalogRepo, folders, sessionRepo, auditSvc, metricsSvc, logr, service.CatalogConfig{
		FolderURLPrefix: cfg.Programs.FolderURLPrefix,
		RootFolders:     rootFolders,
		SnapshotTTL:     snapshotTTL,
	})

	// The user table holds password hashes and is only read with the
	// service credential, never through the published export.
	var users *repository.UserRepository
	if writable {
		users = repository.NewUserRepository(store, tabular.TableRef{
			SpreadsheetID: cfg.Programs.UsersSheetID,
			Sheet:         cfg.Programs.UsersWorksheet,
		})
	} else {
		logr.Warn("login disabled: the user table requires a sheets service credential")
	}
	policy := service.NewEditPolicy(cfg.Edits.AllowedRoles)
	authSvc := service.NewAuthService(userStore(users), sessionRepo, auditSvc, validate, logr, service.AuthConfig{
		Secret:         cfg.JWT.Secret,
		TokenExpiry:    cfg.JWT.Expiration,
		Issuer:         "pidb-catalog-api",
		DefaultProgram: models.ProgramPharmD,
		ResetPolicy:    policy,
	})

	var writer tabular.Writer
	if writable {
		writer = store
	}
	updateSvc := service.NewUpdateService(writer, catalogSvc, policy, auditSvc, civil, logr)
	filterSvc := service.NewFilterService(catalogSvc, sessionRepo, auditSvc, validate, logr)

	var embedder embedding.Embedder = embedding.Disabled{}
	if cfg.Assistant.Enabled && cfg.Assistant.GeminiAPIKey != "" {
		gemini, err := embedding.NewGeminiEmbedder(ctx, cfg.Assistant.GeminiAPIKey, cfg.Assistant.EmbeddingModel)
		if err != nil {
			logr.Warn("semantic search disabled", zap.Error(err))
		} else {
			defer gemini.Close() //nolint:errcheck
			embedder = gemini
		}
	}
	assistantSvc := service.NewAssistantService(
		catalogSvc,
		embedder,
		repository.NewSemanticIndexRepository(cfg.Assistant.SemanticIndexPath),
		auditSvc,
		metricsSvc,
		validate,
		logr,
		service.AssistantConfig{TopK: cfg.Assistant.TopK, ExcerptLength: cfg.Assistant.ExcerptLength},
	)

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("export storage unavailable", "dir", cfg.Exports.StorageDir, "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(catalogSvc, exportJobRepo, files, signer, auditSvc, metricsSvc, civil, validate, logr, service.ExportConfig{
		APIPrefix:       cfg.APIPrefix,
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	if cfg.Exports.Enabled {
		queue := jobs.NewQueue("exports", exportSvc.Handle, jobs.QueueConfig{
			Workers:     cfg.Exports.WorkerConcurrency,
			MaxRetries:  cfg.Exports.WorkerRetries,
			RetryDelay:  2 * time.Second,
			Logger:      logr,
			OnExhausted: exportSvc.MarkFailed,
		})
		queue.Start(ctx)
		defer queue.Stop()
		exportSvc.SetQueue(queue)
		exportSvc.StartCleanup(ctx)
	}

	checks := map[string]handler.ReadinessCheck{
		"catalog": func(ctx context.Context) error {
			_, err := catalogSvc.Snapshot(ctx, models.ProgramPharmD)
			return err
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if db != nil {
		checks["postgres"] = db.PingContext
	}

	authHandler := handler.NewAuthHandler(authSvc)
	catalogHandler := handler.NewCatalogHandler(catalogSvc, filterSvc, updateSvc, rootFolders)
	filterHandler := handler.NewFilterHandler(filterSvc)
	assistantHandler := handler.NewAssistantHandler(assistantSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/exports/download/:token", exportHandler.Download)

	secured := api.Group("")
	secured.Use(middleware.Session(authSvc))
	{
		secured.POST("/auth/logout", authHandler.Logout)
		secured.POST("/auth/reset-password", authHandler.ResetPassword)
		secured.GET("/auth/me", authHandler.Me)

		secured.GET("/programs", catalogHandler.Programs)
		secured.POST("/session/program", catalogHandler.SwitchProgram)
		secured.GET("/catalog/:program/courses", catalogHandler.ListCourses)
		secured.GET("/catalog/:program/courses/:code", catalogHandler.ViewCourse)
		secured.PATCH("/catalog/:program/courses/:code", middleware.RequireEditor(policy), catalogHandler.UpdateCourse)

		secured.POST("/catalog/filters", filterHandler.SetFilter)
		secured.DELETE("/catalog/filters", filterHandler.ClearFilters)
		secured.POST("/catalog/filters/select", filterHandler.SelectCourse)

		secured.POST("/assistant/query", assistantHandler.Query)

		secured.POST("/exports", exportHandler.RequestExport)
		secured.GET("/exports/:id", exportHandler.ExportStatus)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "writable", writable)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// userStore keeps a missing repository an untyped nil so login stays disabled.
func userStore(users *repository.UserRepository) service.UserStore {
	if users == nil {
		return nil
	}
	return users
}

// openStore prefers the Sheets API when a service credential is configured and
// falls back to the published CSV export, which cannot write.
func openStore(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (tabular.Store, bool) {
	opts := []tabular.Option{
		tabular.WithObserver(metrics.ObserveStoreCall),
		tabular.WithTimeout(cfg.Sheets.Timeout),
	}

	creds, err := tabular.LoadCredentials(ctx, cfg.Sheets)
	if err == nil {
		store, err := tabular.NewSheetsStore(ctx, creds, opts...)
		if err == nil {
			return store, true
		}
		logr.Warn("sheets api unavailable, falling back to published tables", zap.Error(err))
	} else if !errors.Is(err, tabular.ErrNoCredentials) {
		logr.Warn("sheets credentials unreadable, falling back to published tables", zap.Error(err))
	} else {
		logr.Info("no sheets credentials configured, catalog is read-only")
	}

	reader := tabular.NewPublishedReader(cfg.Sheets.ExportBaseURL, nil, opts...)
	return tabular.ReadOnly(reader), false
}

func programTables(cfg *config.Config) map[models.Program]tabular.TableRef {
	return map[models.Program]tabular.TableRef{
		models.ProgramPharmD: {
			SpreadsheetID: cfg.Programs.PharmD.SheetID,
			Sheet:         cfg.Programs.PharmD.Worksheet,
			GID:           cfg.Programs.PharmD.SheetGID,
		},
		models.ProgramPhD: {
			SpreadsheetID: cfg.Programs.PhD.SheetID,
			Sheet:         cfg.Programs.PhD.Worksheet,
			GID:           cfg.Programs.PhD.SheetGID,
		},
	}
}

func folderPartitions(cfg *config.Config) map[models.Program]tabular.TableRef {
	return map[models.Program]tabular.TableRef{
		models.ProgramPharmD: {
			SpreadsheetID: cfg.Programs.FolderIndexID,
			Sheet:         cfg.Programs.PharmD.FolderSheet,
			GID:           cfg.Programs.PharmD.FolderGID,
		},
		models.ProgramPhD: {
			SpreadsheetID: cfg.Programs.FolderIndexID,
			Sheet:         cfg.Programs.PhD.FolderSheet,
			GID:           cfg.Programs.PhD.FolderGID,
		},
	}
}

// auditSinks builds the sinks named by AUDIT_SINKS. The sheets sink goes first.
func auditSinks(ctx context.Context, cfg *config.Config, store tabular.Store, writable bool, db *sqlx.DB, civil *clock.CivilClock, logr *zap.Logger) ([]service.AuditSink, func()) {
	var (
		sinks   []service.AuditSink
		closers []func() error
	)

	if cfg.Audit.HasAuditSink("sheets") {
		switch {
		case cfg.Audit.SheetID == "":
			logr.Warn("sheets audit sink enabled without AUDIT_SHEET_ID")
		case !writable:
			logr.Warn("sheets audit sink needs a service credential")
		default:
			sinks = append(sinks, repository.NewSheetAuditRepository(store, tabular.TableRef{
				SpreadsheetID: cfg.Audit.SheetID,
				Sheet:         cfg.Audit.Worksheet,
			}, civil))
		}
	}

	if cfg.Audit.HasAuditSink("postgres") && db != nil {
		pg, err := repository.NewPostgresAuditRepository(db, cfg.Audit.PostgresTable)
		if err != nil {
			logr.Sugar().Fatalw("invalid postgres audit sink", "error", err)
		}
		sinks = append(sinks, pg)
	}

	if cfg.Audit.HasAuditSink("pubsub") {
		if cfg.Audit.PubSubTopic == "" {
			logr.Warn("pubsub audit sink enabled without AUDIT_PUBSUB_TOPIC")
		} else {
			publisher, err := repository.NewPubSubPublisher(ctx, cfg.Sheets.GCPProjectID)
			if err != nil {
				logr.Warn("pubsub audit sink unavailable", zap.Error(err))
			} else {
				closers = append(closers, publisher.Close)
				sinks = append(sinks, repository.NewPubSubAuditRepository(publisher, cfg.Audit.PubSubTopic))
			}
		}
	}

	if len(sinks) == 0 {
		logr.Warn("no audit sink configured, activity will not be recorded")
	}

	return sinks, func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logr.Warn("close audit sink", zap.Error(err))
			}
		}
	}
}
