package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/tripplanner/internal/api"
	"github.com/example/tripplanner/internal/auth"
	"github.com/example/tripplanner/internal/config"
	"github.com/example/tripplanner/internal/core"
	"github.com/example/tripplanner/internal/crypto"
	"github.com/example/tripplanner/internal/db"
	"github.com/example/tripplanner/internal/llm"
	"github.com/example/tripplanner/internal/lookup"
	"github.com/example/tripplanner/internal/metrics"
	"github.com/example/tripplanner/internal/middleware"
	"github.com/example/tripplanner/internal/realtime"
	"github.com/example/tripplanner/pkg/cache"
	"github.com/example/tripplanner/pkg/messagequeue"
)

// nominatimInterval follows the public Nominatim usage policy of one request per second.
const nominatimInterval = time.Second

func newLogger(ginMode string) (*zap.Logger, error) {
	if strings.ToLower(ginMode) == "release" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func main() {
	// Load .env file. In production, environment variables should be set directly.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: no .env file loaded:", err)
		}
	}

	// --- 1. Load Application Configuration ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	// --- 2. Initialize Logger (Zap) ---
	zapLogger, err := newLogger(appConfig.GinMode)
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Application configuration loaded successfully.")

	// --- 3. Initialize Firebase Admin SDK (Firestore and Auth clients) ---
	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInitCtx()
	if err := db.InitFirestore(initCtx, appConfig, zapLogger); err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firestore and Firebase Admin SDK", zap.Error(err))
	}
	defer db.Close()
	firestoreClient := db.GetFirestoreClient()
	if firestoreClient == nil {
		zapLogger.Fatal("CRITICAL_ERROR: Firestore client is nil after initialization. Application cannot start.")
	}

	// --- 4. Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	// --- 5. Redis (sessions and lookup cache) ---
	redisCache, err := cache.NewRedisCache(initCtx, cache.NewRedisCacheConfig{
		Address:  appConfig.RedisAddr,
		Password: appConfig.RedisPassword,
		DB:       appConfig.RedisDB,
		Prefix:   "tripplanner:",
	})
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to Redis", zap.String("addr", appConfig.RedisAddr), zap.Error(err))
	}
	defer redisCache.Close()

	// --- 6. Sessions and Google identity ---
	sessionKey, err := appConfig.SessionKey()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Invalid session encryption key", zap.Error(err))
	}
	sealer, err := crypto.NewSealer(sessionKey)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to create session sealer", zap.Error(err))
	}
	sessions := auth.NewSessionManager(redisCache, sealer, appConfig.SessionTTL, zapLogger)
	identity := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     appConfig.GoogleOAuthClientID,
		ClientSecret: appConfig.GoogleOAuthClientSecret,
		RedirectURL:  appConfig.GoogleOAuthRedirectURL,
		UserInfoURL:  appConfig.GoogleUserInfoURL,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
	})

	// --- 7. Language model ---
	model, err := llm.NewGeminiModel(initCtx, appConfig.GeminiAPIKey, appConfig.GeminiModel)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize the language model", zap.Error(err))
	}
	llmClient := llm.NewClient(model, llm.ClientConfig{
		RequestsPerMinute: appConfig.LLMRequestsPerMinute,
		MaxRetries:        appConfig.LLMMaxRetries,
		CallOptions:       llm.JSONCallOptions(),
	}, zapLogger)
	itineraries := llm.NewItineraryGenerator(llmClient, appConfig.ItineraryMaxAttempts, recorder, zapLogger)
	costs := llm.NewCostEstimator(llmClient, recorder, zapLogger)

	// --- 8. Notification events (optional) ---
	var publisher core.EventPublisher
	if appConfig.RabbitMQURL != "" {
		mq, err := messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: appConfig.RabbitMQURL, Logger: zapLogger})
		if err != nil {
			zapLogger.Warn("RabbitMQ unavailable, notification events will not be published", zap.Error(err))
		} else {
			defer mq.Close()
			publisher = core.NewQueuePublisher(mq, appConfig.NotificationQueue)
			zapLogger.Info("Publishing notification events", zap.String("queue", appConfig.NotificationQueue))
		}
	}

	// --- 9. Repositories and Services ---
	tripRepo := db.NewFirestoreTripRepository(firestoreClient, zapLogger)
	notificationRepo := db.NewFirestoreNotificationRepository(firestoreClient, zapLogger)
	messageRepo := db.NewFirestoreMessageRepository(firestoreClient, zapLogger)

	lookupOpts := lookup.Options{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		UserAgent:  appConfig.HTTPUserAgent,
		Cache:      redisCache,
		CacheTTL:   appConfig.LookupCacheTTL,
		Logger:     zapLogger,
	}
	geocoderOpts := lookupOpts
	geocoderOpts.Limiter = rate.NewLimiter(rate.Every(nominatimInterval), 1)
	geocoder := lookup.NewGeocoder(appConfig.NominatimBaseURL, geocoderOpts)
	photos := lookup.NewImageSearch(appConfig.UnsplashBaseURL, appConfig.UnsplashAccessKey, lookupOpts)
	forecasts := lookup.NewWeatherClient(appConfig.OpenWeatherBaseURL, appConfig.OpenWeatherAPIKey, lookupOpts)

	notificationService := core.NewNotificationService(notificationRepo, publisher, recorder, zapLogger)
	tripService := core.NewTripService(tripRepo, notificationService, itineraries, costs, recorder, zapLogger)
	chatService := core.NewChatService(tripRepo, messageRepo, notificationService, recorder, zapLogger)
	weatherService := core.NewWeatherService(tripRepo, forecasts, geocoder, notificationService, zapLogger)
	zapLogger.Info("Core services initialized successfully.")

	// --- 10. Live listeners ---
	hub := realtime.NewTripWatchHub(tripRepo, messageRepo, recorder, zapLogger)
	distributor := realtime.NewNotificationDistributor(notificationRepo, notificationService, recorder, zapLogger)
	sessions.OnInvalidate(func(s auth.Session) {
		distributor.DropSession(s.User.Email, s.Token)
	})

	// --- 11. Setup Gin HTTP Engine ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware(appConfig.ClientURL))

	var idTokens middleware.IDTokenVerifier
	if fbAuth := db.GetFirebaseAuthClient(); fbAuth != nil {
		idTokens = fbAuth
	} else {
		zapLogger.Warn("Firebase Auth client unavailable, only server sessions are accepted")
	}
	rateLimiter := middleware.NewRateLimiter(middleware.PerMinute(appConfig.APIRequestsPerMinute), zapLogger)
	defer rateLimiter.Stop()

	api.SetupRoutes(router, appConfig, zapLogger, api.Dependencies{
		Auth:          middleware.NewAuthMiddleware(sessions, idTokens, zapLogger),
		RateLimiter:   rateLimiter,
		Identity:      identity,
		Sessions:      sessions,
		Trips:         tripService,
		Notifications: notificationService,
		Chat:          chatService,
		Weather:       weatherService,
		Hub:           hub,
		Distributor:   distributor,
		Places:        geocoder,
		Photos:        photos,
		Gatherer:      registry,
	})

	// --- 12. Configure and Start HTTP Server ---
	// No write timeout: event streams stay open for as long as the client listens.
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- 13. Graceful Shutdown Handling ---
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	// Ending the listeners first lets open event streams return before Shutdown waits on them.
	hub.Close()
	distributor.Close()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown due to error during graceful shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exiting gracefully.")
}
