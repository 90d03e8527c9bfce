package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/yoockh/yoomeet/config"
	"github.com/yoockh/yoomeet/internal/api/handlers"
	"github.com/yoockh/yoomeet/internal/api/middleware"
	"github.com/yoockh/yoomeet/internal/api/routes"
	"github.com/yoockh/yoomeet/internal/cache"
	"github.com/yoockh/yoomeet/internal/logger"
	"github.com/yoockh/yoomeet/internal/providers/llm"
	"github.com/yoockh/yoomeet/internal/providers/stt"
	"github.com/yoockh/yoomeet/internal/providers/tts"
	"github.com/yoockh/yoomeet/internal/queue"
	mongorepo "github.com/yoockh/yoomeet/internal/repositories/mongo"
	pgrepo "github.com/yoockh/yoomeet/internal/repositories/postgres"
	"github.com/yoockh/yoomeet/internal/services"
	"github.com/yoockh/yoomeet/internal/signaling"
	"github.com/yoockh/yoomeet/internal/storage"
	"github.com/yoockh/yoomeet/internal/workers"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()
	cfg := config.LoadApp()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init MongoDB
	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}
	log.Info("MongoDB connected")

	// Init PostgreSQL
	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	if err := config.MigratePostgres(); err != nil {
		log.Fatalf("PostgreSQL migrate error: %v", err)
	}
	log.Info("PostgreSQL connected")

	// Init Redis
	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	log.Info("Redis connected")

	// Providers
	llmp, err := llm.NewVertexGemini(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.LLMModel)
	if err != nil {
		log.Fatalf("Vertex init error: %v", err)
	}
	defer llmp.Close()

	sttp, err := stt.NewGoogleSpeech(ctx)
	if err != nil {
		log.Fatalf("Speech init error: %v", err)
	}
	defer sttp.Close()

	ttsp, err := tts.NewGoogleTTS(ctx)
	if err != nil {
		log.Fatalf("Text-to-Speech init error: %v", err)
	}
	defer ttsp.Close()

	store, err := storage.NewGCSStore(ctx, cfg.GCSBucket)
	if err != nil {
		log.Fatalf("GCS init error: %v", err)
	}
	defer store.Close()

	// Repositories
	mdb := config.MongoDB()
	meetingRepo := mongorepo.NewMeetingRepo(mdb)
	voiceTurnRepo := mongorepo.NewVoiceTurnRepo(mdb)
	agentRepo := pgrepo.NewAgentRepo(config.PostgresDB)
	transcriptRepo := pgrepo.NewTranscriptRepo(config.PostgresDB)
	recordingRepo := pgrepo.NewRecordingRepo(config.PostgresDB)

	// Services
	rdb := config.RedisClient
	agentSvc := services.NewAgentService(agentRepo, cache.NewRedisCache(rdb, "yoomeet:"), cfg.AgentCacheTTL)
	transcriptSvc := services.NewTranscriptService(transcriptRepo)
	meetingSvc := services.NewMeetingService(meetingRepo, agentSvc, transcriptSvc, queue.NewRedisQueue(rdb), log)
	recordingSvc := services.NewRecordingService(store, recordingRepo, meetingSvc)
	voiceTurnSvc := services.NewVoiceTurnService(voiceTurnRepo, cfg.VoiceBufferTTL)
	voiceSvc := services.NewVoiceService(agentSvc, voiceTurnSvc, sttp, llmp, ttsp, cfg.DefaultInstructions, log)

	relay := signaling.NewRelay(
		agentSvc,
		signaling.NewOpenAIUpstream(cfg.RealtimeBaseURL, cfg.OpenAIKey, log),
		cfg.RealtimeModel,
		signaling.Persona{Instructions: cfg.DefaultInstructions, Voice: cfg.DefaultVoice},
		log,
	)

	// Summary workers
	pool := &workers.SummaryWorkerPool{
		Redis:       rdb,
		Meetings:    meetingSvc,
		Transcripts: transcriptSvc,
		LLM:         llmp,
		Status:      queue.NewStatusPublisher(rdb),
		NumWorkers:  cfg.SummaryWorkers,
		Logger:      log,
	}
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("summary workers error: %v", err)
	}

	// Start Gin server
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		Auth:     middleware.AuthConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience},
		Realtime: handlers.NewRealtimeHandler(relay),
		Agent:    handlers.NewAgentHandler(agentSvc),
		Meeting:  handlers.NewMeetingHandler(meetingSvc, transcriptSvc, recordingSvc),
		Voice:    handlers.NewVoiceHandler(voiceSvc, voiceTurnSvc),
		WS:       handlers.NewWSHandler(meetingSvc, handlers.RedisSubscriber{Redis: rdb}, cfg.AllowedOrigins),
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.WithField("port", cfg.Port).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
}
