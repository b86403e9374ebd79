package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"listings-api/config"
	"listings-api/controllers"
	"listings-api/middleware"
	"listings-api/services"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Auth        services.AuthService
	Listings    services.ListingService
	Imports     services.ImportService
	Memos       services.MemoService
	Images      services.ImageService
	Collections services.CollectionService
}

// SetupRouter wires middleware, controllers and routes.
func SetupRouter(cfg *config.Config, db *gorm.DB, svc Services, logger *zap.Logger) *gin.Engine {
	// 1. Engine and global middleware
	router := gin.New()
	router.MaxMultipartMemory = 32 << 20
	router.Use(gin.Recovery(), middleware.RequestLogger(logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.MaxAge = 12 * time.Hour
	if len(cfg.Server.AllowedOrigins) == 0 || (len(cfg.Server.AllowedOrigins) == 1 && cfg.Server.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	router.Use(cors.New(corsConfig))

	// 2. Controllers
	health := controllers.NewHealthController(db, logger)
	auth := controllers.NewAuthController(svc.Auth, controllers.CookieOptions{
		Name:   cfg.Auth.CookieName,
		Secure: cfg.Auth.CookieSecure,
	}, logger)
	listings := controllers.NewListingController(svc.Listings, logger)
	imports := controllers.NewImportController(svc.Imports, svc.Memos, logger)
	images := controllers.NewImageController(svc.Images, logger)
	collections := controllers.NewCollectionController(svc.Collections, svc.Images, logger)

	upload := middleware.BodyLimit(cfg.MaxUploadBytes())

	// 3. Public routes
	router.GET("/health", health.HealthCheck)
	router.POST("/api/auth/login", auth.Login)
	shared := router.Group("/shared/collections/:token")
	{
		shared.GET("", collections.Shared)
		shared.GET("/images/:imageId", collections.SharedImage)
	}

	// 4. Everything else under /api needs a session
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(svc.Auth, cfg.Auth.CookieName))
	{
		api.POST("/auth/logout", auth.Logout)
		api.GET("/auth/me", auth.Me)

		api.GET("/listings", listings.Search)
		api.POST("/listings", listings.Create)
		api.DELETE("/listings", listings.DeleteAll)
		api.GET("/listings/stats", listings.Stats)
		api.POST("/listings/quick", listings.QuickEntry)
		api.GET("/listings/:id", listings.Get)
		api.PUT("/listings/:id", listings.Update)
		api.DELETE("/listings/:id", listings.Delete)
		api.GET("/listings/:id/memo", listings.GetMemo)
		api.PUT("/listings/:id/memo", listings.UpdateMemo)

		api.GET("/listings/:id/images", images.List)
		api.POST("/listings/:id/images", upload, images.Upload)
		api.DELETE("/listings/:id/images", images.DeleteAll)
		api.GET("/images/:id", images.Serve)
		api.DELETE("/images/:id", images.Delete)
		api.POST("/images/import-zip", upload, images.ImportZip)

		api.GET("/imports", imports.History)
		api.POST("/imports", upload, imports.Import)
		api.GET("/imports/latest", imports.Latest)
		api.POST("/memos/import", upload, imports.ImportMemos)

		api.GET("/collections", collections.List)
		api.POST("/collections", collections.Create)
		api.GET("/collections/:id", collections.Get)
		api.PUT("/collections/:id", collections.Update)
		api.DELETE("/collections/:id", collections.Delete)
		api.POST("/collections/:id/items", collections.AddItem)
		api.DELETE("/collections/:id/items", collections.ClearItems)
		api.POST("/collections/:id/items/remove", collections.RemoveItems)
		api.DELETE("/collections/:id/items/:listingId", collections.RemoveItem)
		api.PUT("/collections/:id/order", collections.Reorder)
	}

	return router
}
