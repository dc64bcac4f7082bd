package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/insurezeal/brokerage_backend/config"
	"bitbucket.org/insurezeal/brokerage_backend/ledger"
	"bitbucket.org/insurezeal/brokerage_backend/models"
	"bitbucket.org/insurezeal/brokerage_backend/recon"
	"bitbucket.org/insurezeal/brokerage_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), cid)
		// Set by the gateway once it has authenticated the operator.
		if operatorID := c.GetHeader("x-operator-id"); operatorID != "" {
			ctx = utils.SetOperatorIdInContext(ctx, operatorID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "x-correlation-id")
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// Start listening before the slow dependencies connect; Cloud Run needs
	// the port open quickly. Request paths guard on readiness themselves.
	registry := recon.NewMappingRegistry("", logger)
	registry.Load()

	var reconciler *recon.Reconciler
	ready := func(c *gin.Context) {
		if reconciler == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "ledger store not ready"})
			return
		}
		c.Next()
	}

	api := r.Group("/universal-records")
	api.GET("/insurers", recon.InsurersHandler(registry))
	api.POST("/mappings/reload", recon.ReloadMappingsHandler(registry))
	api.POST("/preview", recon.PreviewHandler(registry))
	api.GET("/reports", recon.ReportsHandler())
	api.POST("/upload", ready, func(c *gin.Context) { uploadHandler(c, reconciler) })
	api.POST("/upload-quarters", ready, func(c *gin.Context) { uploadQuartersHandler(c, reconciler) })

	r.POST("/pubsub/recon", ready, func(c *gin.Context) { reconciler.PubSubPushHandler()(c) })

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	go func() {
		logger.WithField("port", port).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			config.LogError(logger, "server.go", "main", "ListenAndServe", nil, err)
			stopSignals()
		}
	}()

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	config.ConnectRedis()

	store, err := ledger.NewSheetsStore(sigCtx, logger)
	if err != nil {
		config.LogError(logger, "server.go", "main", "ledger.NewSheetsStore", nil, err)
	} else {
		reconciler = recon.NewReconciler(store, registry, config.GetDB(), logger)
		logger.Info("reconciler ready")
	}

	<-sigCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		config.LogError(logger, "server.go", "main", "Shutdown", nil, err)
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
