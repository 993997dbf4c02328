package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"pos-backend/internal/config"
	"pos-backend/internal/database"
	"pos-backend/internal/handlers"
	"pos-backend/internal/metrics"
	"pos-backend/internal/middleware"
	"pos-backend/internal/notify"
)

func main() {
	config.Load()
	if err := config.AppEnv.Validate(); err != nil {
		log.Fatal(err)
	}
	cfg := config.AppEnv

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(cfg.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureProductIndexes(db); err != nil {
		log.Printf("product index warning: %v", err)
	}
	if err := database.EnsureOperatorIndexes(db); err != nil {
		log.Printf("operator index warning: %v", err)
	}
	if err := database.EnsureOrderIndexes(db); err != nil {
		log.Printf("order index warning: %v", err)
	}
	if err := database.EnsureDraftIndexes(db, cfg.DraftTTL); err != nil {
		log.Printf("draft index warning: %v", err)
	}
	if err := database.EnsureNotificationIndexes(db); err != nil {
		log.Printf("notification index warning: %v", err)
	}

	notifier := notify.Multi{notify.NewMongoNotifier(db), notify.LogNotifier{}}

	r := gin.Default()
	if cfg.MetricsEnabled {
		r.Use(metrics.Middleware())
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	r.GET("/healthz", handlers.Healthz(db))
	r.POST("/auth/login", handlers.Login(db, cfg.JWTSecret, cfg.AccessTokenTTL))

	api := r.Group("/api")
	api.Use(middleware.RegisterAuth(cfg.JWTSecret))
	{
		api.GET("/products", handlers.SearchProducts(db))
		api.GET("/products/:id", handlers.GetProduct(db))
		api.GET("/categories", handlers.GetCategories(db))

		api.POST("/drafts", handlers.CreateDraft(db, cfg.DefaultPriceLevel))
		api.GET("/drafts/:id", handlers.GetDraft(db))
		api.POST("/drafts/:id/lines", handlers.AddDraftLine(db))
		api.PATCH("/drafts/:id/lines/:index", handlers.UpdateDraftLine(db))
		api.DELETE("/drafts/:id/lines/:index", handlers.RemoveDraftLine(db))
		api.POST("/drafts/:id/lines/:index/expand", handlers.ExpandDraftLine(db))
		api.POST("/drafts/:id/lines/:index/collapse", handlers.CollapseDraftLine(db))
		api.PATCH("/drafts/:id/combos/:productId/components/:component", handlers.EditComboComponent(db))
		api.POST("/drafts/:id/submit", handlers.SubmitDraft(db, notifier, cfg.LowStockThreshold))

		api.GET("/orders", handlers.ListOrders(db))
		api.GET("/orders/:id", handlers.GetOrder(db))

		api.GET("/notifications", handlers.ListNotifications(db))
		api.POST("/notifications/:id/read", handlers.MarkNotificationRead(db))
	}

	admin := r.Group("/api/admin")
	admin.Use(middleware.AdminAuth(cfg.JWTSecret))
	{
		admin.GET("/products", handlers.GetAllProducts(db))
		admin.POST("/products", handlers.CreateProduct(db))
		admin.PUT("/products/:id", handlers.UpdateProduct(db))
		admin.DELETE("/products/:id", handlers.DeleteProduct(db))

		admin.DELETE("/orders/:id", handlers.DeleteOrder(db))
	}

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
