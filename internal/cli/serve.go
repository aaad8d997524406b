package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/curio-labs/curiobot/internal/api/handlers"
	"github.com/curio-labs/curiobot/internal/config"
	"github.com/curio-labs/curiobot/internal/database"
	"github.com/curio-labs/curiobot/internal/domain"
	"github.com/curio-labs/curiobot/internal/jira"
	"github.com/curio-labs/curiobot/internal/jobs"
	"github.com/curio-labs/curiobot/internal/openai"
	"github.com/curio-labs/curiobot/internal/pipeline"
	"github.com/curio-labs/curiobot/internal/repository"
	"github.com/curio-labs/curiobot/internal/scrape"
	"github.com/curio-labs/curiobot/internal/server"
	"github.com/curio-labs/curiobot/internal/service"
	"github.com/curio-labs/curiobot/internal/slack"
	"github.com/curio-labs/curiobot/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the knowledge-base bot pipeline",
		Long:  "Run the full pipeline: scrape the knowledge base, embed it, then serve Slack queries",
		RunE:  runServe,
	}

	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if !cfg.HasSlack() {
		return fmt.Errorf("SLACK_BOT_TOKEN and SLACK_APP_TOKEN are required")
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	docRepo := repository.NewDocumentRepository(pool)
	embeddingRepo := repository.NewEmbeddingRepository(pool)

	aiClient := openai.NewClientWithConfig(openai.Config{
		APIKey:         cfg.OpenAIAPIKey,
		RequestTimeout: cfg.RequestTimeout,
	})

	executor, err := jobs.NewExecutor(cfg.Concurrency, cfg.MaxRetries)
	if err != nil {
		return fmt.Errorf("failed to create batch executor: %w", err)
	}
	defer executor.Release()

	scrapeDone := pipeline.NewHTTPNotifier(cfg.CoordinatorURL() + "/notify/scraping-complete")
	embedDone := pipeline.NewHTTPNotifier(cfg.CoordinatorURL() + "/notify/embedding-generation-complete")

	ingestSvc := service.NewIngestService(
		scrape.NewScraper(), docRepo, executor, scrapeDone, cfg.KnowledgeBaseURL)
	embedSvc := service.NewEmbeddingService(
		aiClient, docRepo, embeddingRepo, executor, embedDone)

	var tickets service.TicketFiler
	if cfg.HasJira() {
		tickets = jira.NewClient(jira.Config{
			Host:       cfg.JiraHost,
			Email:      cfg.JiraEmail,
			APIToken:   cfg.JiraAPIToken,
			ProjectKey: cfg.JiraProjectKey,
		})
	} else {
		log.Println("jira not configured, unmatched queries will get a fallback reply")
		tickets = noTicketFiler{}
	}

	answerer := service.NewAnswerer(
		service.NewMatcher(embeddingRepo, docRepo, cfg.SimilarityThreshold), aiClient, tickets)

	// The messenger feeds the queue and the queue replies through the
	// messenger; the closure breaks the construction cycle.
	var queue *service.QueueProcessor
	messenger := slack.NewMessenger(cfg.SlackBotToken, cfg.SlackAppToken, cfg.SlackChannelID,
		enqueueFunc(func(q *domain.Query) { queue.Enqueue(q) }))
	queue = service.NewQueueProcessor(aiClient, answerer, messenger)

	scraperSrv := stageServer(cfg.ScraperPort,
		server.NewScraperRouter(handlers.NewStageHandler("ingestion", ingestSvc)))
	embedderSrv := stageServer(cfg.EmbedderPort,
		server.NewEmbedderRouter(handlers.NewStageHandler("embedding", embedSvc)))
	botSrv := stageServer(cfg.BotPort,
		server.NewBotRouter(handlers.NewBotHandler(queue)))

	coordinator := pipeline.NewCoordinator(
		pipeline.NewHTTPStage("ingestion", cfg.ScraperURL()+"/scrape-start", scraperSrv.Shutdown),
		pipeline.NewHTTPStage("embedding", cfg.EmbedderURL()+"/embeddings-start", embedderSrv.Shutdown),
		pipeline.NewHTTPNotifier(cfg.BotURL()+"/notify"),
	)
	coordSrv := stageServer(cfg.CoordinatorPort,
		server.NewCoordinatorRouter(handlers.NewPipelineHandler(coordinator)))

	for name, srv := range map[string]*http.Server{
		"coordinator": coordSrv,
		"scraper":     scraperSrv,
		"embedder":    embedderSrv,
		"bot":         botSrv,
	} {
		name, srv := name, srv
		go func() {
			log.Printf("%s listening on %s", name, srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("%s server failed: %v", name, err)
			}
		}()
	}

	listenCtx, stopListening := context.WithCancel(ctx)
	defer stopListening()
	go func() {
		if err := messenger.Listen(listenCtx); err != nil && listenCtx.Err() == nil {
			log.Fatalf("slack listener failed: %v", err)
		}
	}()

	if err := coordinator.Begin(ctx); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	stopListening()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, srv := range []*http.Server{coordSrv, scraperSrv, embedderSrv, botSrv} {
		if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			log.Printf("server forced to shutdown: %v", err)
		}
	}

	log.Println("server exited")
	return nil
}

func stageServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    ":" + port,
		Handler: handler,
	}
}

type enqueueFunc func(*domain.Query)

func (f enqueueFunc) Enqueue(q *domain.Query) { f(q) }

// noTicketFiler stands in when Jira is not configured.
type noTicketFiler struct{}

func (noTicketFiler) FileTicket(ctx context.Context, summary, description string) (string, error) {
	return "", fmt.Errorf("jira not configured")
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Println("migrations applied")
	return nil
}
