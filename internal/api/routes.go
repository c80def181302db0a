package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/config"
	"github.com/example/tripplanner/internal/core"
	"github.com/example/tripplanner/internal/metrics"
	"github.com/example/tripplanner/internal/middleware"
	"github.com/example/tripplanner/internal/realtime"
)

// Dependencies groups what the handlers need. Places, Photos and Gatherer may be nil.
type Dependencies struct {
	Auth          *middleware.AuthMiddleware
	RateLimiter   *middleware.RateLimiter
	Identity      IdentityProvider
	Sessions      SessionService
	Trips         core.TripService
	Notifications core.NotificationService
	Chat          core.ChatService
	Weather       core.WeatherService
	Hub           *realtime.TripWatchHub
	Distributor   *realtime.NotificationDistributor
	Places        PlaceSearcher
	Photos        PhotoFinder
	Gatherer      prometheus.Gatherer
}

// SetupRoutes configures all the application routes with their handlers and middleware.
// Global middleware (logging, recovery, CORS) is applied to router by the caller.
func SetupRoutes(router *gin.Engine, appConfig *config.Config, logger *zap.Logger, deps Dependencies) {
	authMW := deps.Auth
	limited := deps.RateLimiter.Middleware()

	authHandler := NewAuthHandler(deps.Identity, deps.Sessions, appConfig.ClientURL, appConfig.OAuthCodeFlowEnabled(), logger)
	tripHandler := NewTripHandler(deps.Trips, deps.Hub, logger)
	notificationHandler := NewNotificationHandler(deps.Notifications, deps.Distributor, logger)
	chatHandler := NewChatHandler(deps.Chat, deps.Hub, logger)
	weatherHandler := NewWeatherHandler(deps.Weather, logger)
	lookupHandler := NewLookupHandler(deps.Places, deps.Photos, logger)

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/google", authHandler.LoginWithAccessToken)
			authGroup.GET("/google/login", authHandler.StartLogin)
			authGroup.GET("/google/callback", authHandler.Callback)
			authGroup.POST("/logout", authMW.RequireSession(), authHandler.Logout)
			authGroup.GET("/me", authMW.RequireSession(), authHandler.Me)
		}

		// Public trips are readable without signing in.
		publicGroup := apiV1.Group("/public-trips", authMW.OptionalSession())
		{
			publicGroup.GET("", tripHandler.ListPublicTrips)
			publicGroup.GET("/stream", tripHandler.StreamPublicTrips)
		}

		tripsGroup := apiV1.Group("/trips")
		{
			tripsGroup.POST("", authMW.RequireSession(), limited, tripHandler.CreateTrip)
			tripsGroup.GET("", authMW.RequireSession(), tripHandler.ListMyTrips)
			tripsGroup.GET("/group", authMW.RequireSession(), tripHandler.ListGroupTrips)

			// Visibility of a single trip is decided by the service, so anonymous viewers get through.
			tripGroup := tripsGroup.Group("/:tripId")
			{
				tripGroup.GET("", authMW.OptionalSession(), tripHandler.GetTrip)
				tripGroup.GET("/stream", authMW.OptionalSession(), tripHandler.StreamTrip)
				tripGroup.GET("/export", authMW.OptionalSession(), tripHandler.ExportTrip)
				tripGroup.POST("/cost", authMW.OptionalSession(), limited, tripHandler.EstimateCost)
				tripGroup.GET("/weather", authMW.OptionalSession(), weatherHandler.TripWeather)

				tripGroup.PATCH("/visibility", authMW.RequireSession(), tripHandler.ToggleVisibility)
				tripGroup.PUT("/notes", authMW.RequireSession(), tripHandler.SaveNotes)
				tripGroup.DELETE("", authMW.RequireSession(), tripHandler.DeleteTrip)
				tripGroup.POST("/join", authMW.RequireSession(), tripHandler.JoinTrip)
				tripGroup.POST("/leave", authMW.RequireSession(), tripHandler.LeaveTrip)
				tripGroup.POST("/weather/check", authMW.RequireSession(), weatherHandler.CheckTripWeather)

				messagesGroup := tripGroup.Group("/messages", authMW.RequireSession())
				{
					messagesGroup.GET("", chatHandler.ListMessages)
					messagesGroup.POST("", chatHandler.SendMessage)
					messagesGroup.GET("/stream", chatHandler.StreamMessages)
				}
			}
		}

		notificationsGroup := apiV1.Group("/notifications", authMW.RequireSession())
		{
			notificationsGroup.GET("", notificationHandler.ListNotifications)
			notificationsGroup.GET("/unread-count", notificationHandler.UnreadCount)
			notificationsGroup.GET("/stream", notificationHandler.StreamNotifications)
			notificationsGroup.PATCH("/:notificationId/read", notificationHandler.MarkRead)
			notificationsGroup.POST("/read-all", notificationHandler.MarkAllRead)
		}

		// Outbound lookups are throttled by the lookup clients themselves.
		lookupGroup := apiV1.Group("/lookup")
		{
			lookupGroup.GET("/places", lookupHandler.SearchPlaces)
			lookupGroup.GET("/photo", lookupHandler.DestinationPhoto)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Trip planner backend is healthy."})
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	logger.Info("API routes configured successfully under /api/v1 and /health.")
}
