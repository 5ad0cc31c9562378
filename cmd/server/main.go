package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/edu-vault/backend/internal/attempts"
	"github.com/edu-vault/backend/internal/cache"
	"github.com/edu-vault/backend/internal/config"
	"github.com/edu-vault/backend/internal/database"
	"github.com/edu-vault/backend/internal/gradebook"
	"github.com/edu-vault/backend/internal/history"
	"github.com/edu-vault/backend/internal/metrics"
	"github.com/edu-vault/backend/internal/middleware"
	"github.com/edu-vault/backend/internal/orchestration"
	"github.com/edu-vault/backend/internal/queue"
	"github.com/edu-vault/backend/internal/questions"
	"github.com/edu-vault/backend/internal/recommendation"
	"github.com/edu-vault/backend/internal/rules"
	"github.com/edu-vault/backend/internal/stats"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize databases
	db, err := database.Connect(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	mongoClient, err := database.ConnectMongo(ctx, cfg.Mongo)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer database.DisconnectMongo(mongoClient)

	mongoDB := mongoClient.Database(cfg.Mongo.Database)
	questionRepo := questions.NewRepository(mongoDB, cfg.Mongo.QuestionCollection)
	historyRepo := history.NewRepository(mongoDB, cfg.Mongo.LearningHistoryCollection)
	if err := questionRepo.InitializeIndexes(ctx); err != nil {
		log.Printf("Warning: question indexes: %v", err)
	}
	if err := historyRepo.InitializeIndexes(ctx); err != nil {
		log.Printf("Warning: learning history indexes: %v", err)
	}

	// The evaluation cache is optional; grading works without it.
	var resultCache gradebook.ResultCache
	var evaluations attempts.EvaluationReader
	if redisClient, err := database.ConnectRedis(ctx, cfg.Redis); err != nil {
		log.Printf("Warning: Redis unavailable, evaluation cache disabled: %v", err)
	} else {
		defer redisClient.Close()
		evalCache := cache.NewEvaluationCache(redisClient, cfg.Redis.EvaluationTTL)
		resultCache = evalCache
		evaluations = evalCache
	}

	// Grading engine
	registry := rules.NewRegistry()
	calculator := stats.NewCalculator(cfg.Grading.MaxQuestionAttempts)
	recommender := recommendation.NewRecommender(recommendation.Config{
		Mock:   cfg.LLM.Mock,
		APIKey: cfg.LLM.APIKey,
		Model:  cfg.LLM.Model,
	})
	builder := orchestration.NewContextBuilder(questionRepo, cfg.Grading.DefaultTimeSpent)
	engine := orchestration.NewEngine(registry, orchestration.NewContextEngine(builder, historyRepo, calculator), recommender, questionRepo)

	store := attempts.NewStore(db)
	manager := gradebook.NewSideEffectManager(store, store, historyRepo)

	var dispatcher gradebook.Dispatcher
	if cfg.RabbitMQ.URL != "" {
		publisher, err := queue.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			log.Fatalf("Failed to connect publisher to RabbitMQ: %v", err)
		}
		defer publisher.Close()

		consumer, err := queue.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue,
			gradebook.SideEffectRoutingKey, cfg.RabbitMQ.Prefetch)
		if err != nil {
			log.Fatalf("Failed to connect consumer to RabbitMQ: %v", err)
		}
		defer consumer.Close()

		go func() {
			if err := consumer.Run(ctx, manager.HandleMessage); err != nil {
				log.Printf("Side effect consumer stopped: %v", err)
				stop()
			}
		}()
		dispatcher = gradebook.NewQueueDispatcher(publisher)
		log.Printf("Side effects dispatched through RabbitMQ exchange %s", cfg.RabbitMQ.Exchange)
	} else {
		dispatcher = gradebook.NewGoroutineDispatcher(manager, cfg.Grading.SideEffectTimeout)
		log.Println("Side effects running in-process")
	}

	progress := gradebook.NewProgressManager(registry, store, dispatcher, resultCache)
	sources := func(req orchestration.Request) gradebook.PerformanceSource {
		return engine.For(req)
	}
	attemptService := attempts.NewService(store, questionRepo, progress, sources, evaluations, cfg.Grading.MaxQuestionAttempts)

	// Initialize handlers
	attemptHandler := attempts.NewHandler(attemptService)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth([]byte(cfg.Auth.JWTSecret)))
	protected.HandleFunc("/topics/{topicID}/questions/{questionID}/attempts", attemptHandler.SubmitAttempt).Methods("POST")
	protected.HandleFunc("/topics/{topicID}/assessment/grade", attemptHandler.GradeAssessment).Methods("POST")
	protected.HandleFunc("/topics/{topicID}/evaluation", attemptHandler.GetEvaluation).Methods("GET")
	protected.HandleFunc("/topics/{topicID}/progress", attemptHandler.GetProgress).Methods("GET")
	protected.HandleFunc("/topics/{topicID}/question-set/default", attemptHandler.SetDefaultQuestionSet).Methods("PUT")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
