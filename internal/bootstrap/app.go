package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"tga-backend/internal/automation"
	"tga-backend/internal/automation/aps"
	"tga-backend/internal/automation/simulated"
	"tga-backend/internal/jobs"
	"tga-backend/internal/queue"
	"tga-backend/internal/services/health"
	"tga-backend/internal/shared/config"
	"tga-backend/internal/shared/server"
	"tga-backend/internal/shared/storage/db"
	"tga-backend/internal/shared/storage/object"
	localstore "tga-backend/internal/shared/storage/object/local"
	s3store "tga-backend/internal/shared/storage/object/s3"
	"tga-backend/internal/shared/telemetry"
	"tga-backend/internal/standards"
	"tga-backend/internal/standards/condition"
)

// simulatedPolls is how many polls a simulated work item stays in progress.
const simulatedPolls = 2

// Role selects how a process uses the shared dependencies.
type Role int

const (
	// RoleAPI serves HTTP and dispatches jobs to the queue or runs them locally.
	RoleAPI Role = iota
	// RoleWorker runs jobs received from the queue.
	RoleWorker
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.Store
	Queue  queue.Client

	Catalog  *standards.Catalog
	Checker  *standards.Checker
	Provider automation.Provider

	JobsRepo     jobs.Repo
	Hub          *jobs.Hub
	Orchestrator *jobs.Orchestrator
	JobsService  *jobs.Service

	Health           *health.Service
	JobsHandler      *jobs.Handler
	StandardsHandler *standards.Handler
}

// Build prepares an API process.
func Build(cfg config.Config) (*App, error) {
	return BuildFor(context.Background(), RoleAPI, cfg)
}

// BuildFor prepares dependencies for role.
func BuildFor(ctx context.Context, role Role, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if len(cfg.ComplianceStandards) == 0 {
		cfg.ComplianceStandards = []string{"DIN 18015", "VDI 2052"}
	}

	catalog, err := buildCatalog(cfg)
	if err != nil {
		return nil, err
	}
	policy, err := condition.ParsePolicy(cfg.UnresolvedPolicy)
	if err != nil {
		return nil, err
	}
	for _, id := range cfg.ComplianceStandards {
		if catalog.Get(id) == nil {
			telemetry.Warn("bootstrap.unknown_standard", map[string]any{"standard": id})
		}
	}

	sqlDB, err := buildDB(ctx, role, cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	provider, err := buildProvider(cfg, store)
	if err != nil {
		return nil, err
	}
	var queueClient queue.Client
	if role == RoleAPI && strings.TrimSpace(cfg.QueueURL) != "" {
		queueClient, err = queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.QueueURL)
		if err != nil {
			return nil, err
		}
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Store:    store,
		Queue:    queueClient,
		Catalog:  catalog,
		Checker:  standards.NewChecker(catalog, policy),
		Provider: provider,
		Hub:      jobs.NewHub(0),
	}
	if err := buildJobs(app); err != nil {
		return nil, err
	}

	if role == RoleAPI {
		app.Health = health.NewService()
		if sqlDB != nil {
			app.Health.Register("database", sqlDB.PingContext)
		}
		app.Router = server.NewRouter(server.RouterDeps{
			Config:           cfg,
			JobsHandler:      app.JobsHandler,
			StandardsHandler: app.StandardsHandler,
			Health:           app.Health,
		})
	}

	telemetry.Info("bootstrap.ready", map[string]any{
		"role":      roleName(role),
		"env":       cfg.Env,
		"store":     cfg.ObjectStoreType,
		"provider":  provider.Name,
		"database":  sqlDB != nil,
		"queue":     queueClient != nil,
		"standards": strings.Join(cfg.ComplianceStandards, ","),
	})
	return app, nil
}

// Close stops running jobs and releases the database.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Orchestrator != nil {
		errs = append(errs, a.Orchestrator.Shutdown(ctx))
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func buildCatalog(cfg config.Config) (*standards.Catalog, error) {
	if path := strings.TrimSpace(cfg.StandardsFile); path != "" {
		catalog, err := standards.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load standards file: %w", err)
		}
		return catalog, nil
	}
	return standards.Load()
}

func buildDB(ctx context.Context, role Role, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Info("bootstrap.memory_repo", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if role == RoleWorker {
		sqlDB, err = db.Shared(ctx, cfg.DatabaseURL, db.ProfileWorker.Options())
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.ProfileServer.Options())
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repo", map[string]any{"reason": "database connect failed", "err": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildProvider(cfg config.Config, store object.Store) (automation.Provider, error) {
	switch cfg.AutomationProvider {
	case "aps":
		client, err := aps.New(aps.Config{
			ClientID:     cfg.APS.ClientID,
			ClientSecret: cfg.APS.ClientSecret,
			BucketKey:    cfg.APS.BucketKey,
			ActivityID:   cfg.APS.ActivityID,
			BaseURL:      cfg.APS.BaseURL,
		})
		if err != nil {
			return automation.Provider{}, err
		}
		return automation.Provider{Name: "aps", Files: client, Jobs: client}, nil
	default:
		backend := simulated.New(store, "", simulatedPolls)
		return automation.Provider{Name: "simulated", Files: backend, Jobs: backend}, nil
	}
}

func buildJobs(app *App) error {
	cfg := app.Config
	if app.DB != nil {
		app.JobsRepo = &jobs.PGRepo{DB: app.DB}
	} else {
		app.JobsRepo = jobs.NewMemoryRepo()
	}

	pipeline := &jobs.Pipeline{
		Store:        app.Store,
		Files:        app.Provider.Files,
		Remote:       app.Provider.Jobs,
		Checker:      app.Checker,
		Standards:    cfg.ComplianceStandards,
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.PollMaxAttempts,
	}
	observers := jobs.Observers{jobs.LogObserver{}, app.Hub}
	orch, err := jobs.NewOrchestrator(app.JobsRepo, jobs.DefaultSequence, pipeline.Units(), observers)
	if err != nil {
		return err
	}
	app.Orchestrator = orch

	var dispatcher jobs.Dispatcher = jobs.LocalDispatcher{Orchestrator: orch}
	if app.Queue != nil {
		dispatcher = jobs.QueueDispatcher{Queue: app.Queue}
	}
	app.JobsService = &jobs.Service{
		Repo:         app.JobsRepo,
		Store:        app.Store,
		Sequence:     jobs.DefaultSequence,
		Dispatcher:   dispatcher,
		Orchestrator: orch,
	}
	app.JobsHandler = jobs.NewHandler(app.JobsService, app.Hub, cfg.MaxUploadBytes)
	app.JobsHandler.AllowedOrigins = cfg.CORSAllowOrigin
	app.StandardsHandler = standards.NewHandler(app.Catalog, app.Checker, cfg.ComplianceStandards)
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func roleName(r Role) string {
	if r == RoleWorker {
		return "worker"
	}
	return "api"
}
