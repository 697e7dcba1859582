package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"trivia-live/internal/app"
	"trivia-live/internal/auth"
	"trivia-live/internal/config"
	"trivia-live/internal/domain"
	"trivia-live/internal/infra/memory"
	pginfra "trivia-live/internal/infra/postgres"
	redisinfra "trivia-live/internal/infra/redis"
	transport "trivia-live/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pginfra.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var store app.DurableStore = app.NoopStore{}
	if pool != nil {
		store = pginfra.NewGameStore(pool)
	}

	var registry memory.PinRegistry
	if redisClient != nil {
		registry = redisinfra.NewPinIndex(redisClient, redisTTL)
	}
	games := memory.NewGameRepository(registry)

	timings := app.DefaultTimings()
	timings.GetReady = config.TTLDuration(cfg.Game.GetReady, timings.GetReady)
	timings.AnswersDelay = config.TTLDuration(cfg.Game.AnswersDelay, timings.AnswersDelay)
	timings.ResultDelay = config.TTLDuration(cfg.Game.ResultDelay, timings.ResultDelay)
	timings.LeaderboardDelay = config.TTLDuration(cfg.Game.LeaderboardDelay, timings.LeaderboardDelay)
	timings.FinishedLinger = config.TTLDuration(cfg.Game.FinishedLinger, timings.FinishedLinger)

	rules := domain.DefaultScoringRules()
	if cfg.Game.MaxTimeBonus > 0 {
		rules.MaxTimeBonus = cfg.Game.MaxTimeBonus
	}
	if cfg.Game.StreakStep > 0 {
		rules.StreakStep = cfg.Game.StreakStep
	}
	if cfg.Game.MaxMultiplier > 0 {
		rules.MaxMultiplier = cfg.Game.MaxMultiplier
	}

	service := app.NewGameService(games, quizRepo, store, app.NewTimerScheduler(), timings, rules, logger)

	reaperCfg := app.DefaultReaperConfig()
	reaperCfg.Interval = config.TTLDuration(cfg.Reaper.Interval, reaperCfg.Interval)
	reaperCfg.MaxAge = config.TTLDuration(cfg.Reaper.MaxAge, reaperCfg.MaxAge)
	reaper := app.NewReaper(service, games, store, reaperCfg, logger)
	reaper.Start(ctx)
	defer reaper.Stop()

	verifier := auth.NewVerifier(cfg.Auth.Secret, config.TTLDuration(cfg.Auth.TTL, 12*time.Hour))
	wsHandler := transport.NewWSHandler(service, verifier, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting trivia service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides demo quiz data covering every question type; with
// postgres configured the JSONB loader replaces this.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"demo": {
			ID:    "demo",
			Title: "General Knowledge",
			Questions: []domain.Question{
				{
					ID:     "q1",
					Prompt: "Which planet is closest to the sun?",
					Type:   domain.TypeSingleChoice,
					Options: []domain.Option{
						{ID: "o1", Text: "Venus"},
						{ID: "o2", Text: "Mercury", Correct: true},
						{ID: "o3", Text: "Mars"},
						{ID: "o4", Text: "Earth"},
					},
					TimeLimit: 20,
					Points:    100,
				},
				{
					ID:     "q2",
					Prompt: "The Great Wall of China is visible from the moon.",
					Type:   domain.TypeTrueFalse,
					Options: []domain.Option{
						{ID: "true", Text: "True"},
						{ID: "false", Text: "False", Correct: true},
					},
					TimeLimit: 10,
					Points:    50,
				},
				{
					ID:     "q3",
					Prompt: "Which of these are primary colors of light?",
					Type:   domain.TypeMultiSelect,
					Options: []domain.Option{
						{ID: "o1", Text: "Red", Correct: true},
						{ID: "o2", Text: "Green", Correct: true},
						{ID: "o3", Text: "Yellow"},
						{ID: "o4", Text: "Blue", Correct: true},
					},
					TimeLimit: 25,
					Points:    150,
				},
				{
					ID:     "q4",
					Prompt: "Order these events from earliest to latest.",
					Type:   domain.TypeOrdering,
					Options: []domain.Option{
						{ID: "o1", Text: "Moon landing", Position: 2},
						{ID: "o2", Text: "First powered flight", Position: 1},
						{ID: "o3", Text: "First smartphone", Position: 3},
					},
					TimeLimit: 30,
					Points:    150,
				},
				{
					ID:        "q5",
					Prompt:    "How many bones are in the adult human body?",
					Type:      domain.TypeNumericGuess,
					Target:    206,
					Tolerance: 50,
					TimeLimit: 20,
					Points:    100,
				},
			},
		},
	}
}
