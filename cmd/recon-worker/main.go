// recon-worker is the standalone service behind the Pub/Sub push
// subscription for asynchronous extract uploads. It exposes only the push
// endpoint and a health check; the interactive API lives in the main server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitbucket.org/insurezeal/brokerage_backend/config"
	"bitbucket.org/insurezeal/brokerage_backend/ledger"
	"bitbucket.org/insurezeal/brokerage_backend/models"
	"bitbucket.org/insurezeal/brokerage_backend/recon"
	"bitbucket.org/insurezeal/brokerage_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("RECON_WORKER_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
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
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	var reconciler *recon.Reconciler
	r.POST("/pubsub/recon", func(c *gin.Context) {
		if reconciler == nil {
			// Nack so Pub/Sub redelivers once the worker is ready.
			c.Status(http.StatusServiceUnavailable)
			return
		}
		reconciler.PubSubPushHandler()(c)
	})

	srv := &http.Server{Addr: ":" + port, Handler: r}
	go func() {
		logger.WithField("port", port).Info("recon worker listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			config.LogError(logger, "main.go", "main", "ListenAndServe", nil, err)
			stopSignals()
		}
	}()

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	store, err := ledger.NewSheetsStore(sigCtx, logger)
	if err != nil {
		config.LogError(logger, "main.go", "main", "ledger.NewSheetsStore", nil, err)
		os.Exit(1)
	}
	registry := recon.NewMappingRegistry("", logger)
	registry.Load()
	reconciler = recon.NewReconciler(store, registry, config.GetDB(), logger)
	logger.Info("recon worker ready")

	<-sigCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		config.LogError(logger, "main.go", "main", "Shutdown", nil, err)
	}
}
