package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/taomama/groupbuy_backend/config"
	"github.com/taomama/groupbuy_backend/models"
	"github.com/taomama/groupbuy_backend/models/reports"
	"github.com/taomama/groupbuy_backend/utils"
	"github.com/taomama/groupbuy_backend/workflow"
	"gorm.io/gorm"
)

const defaultPort = "8080"

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

type confirmStatementRequest struct {
	PayeeId int `json:"payee_id" binding:"required"`
}

type disputeStatementRequest struct {
	PayeeId int    `json:"payee_id" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type reviewAuditReportRequest struct {
	AdminId int    `json:"admin_id" binding:"required"`
	Notes   string `json:"notes"`
}

type generateBatchRequest struct {
	Period string `json:"period" binding:"required,settlement_period"`
}

type generateAuditRequest struct {
	Period string `json:"period" binding:"required,len=6,numeric"`
}

func registerCustomValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("settlement_period", func(fl validator.FieldLevel) bool {
			return utils.ValidateSettlementPeriod(fl.Field().String()) == nil
		})
	}
}

func confirmStatementHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		statementId, err := strconv.Atoi(c.Param("id"))
		if err != nil || statementId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid statement id"})
			return
		}
		var req confirmStatementRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		ok, err := workflow.ConfirmStatement(c.Request.Context(), config.GetDB(), logger, statementId, req.PayeeId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusConflict, gin.H{"error": "statement cannot be confirmed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"statement_id": statementId, "confirmed": true})
	}
}

func disputeStatementHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		statementId, err := strconv.Atoi(c.Param("id"))
		if err != nil || statementId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid statement id"})
			return
		}
		var req disputeStatementRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		ok, err := workflow.DisputeStatement(c.Request.Context(), config.GetDB(), logger, statementId, req.PayeeId, req.Content)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusConflict, gin.H{"error": "statement cannot be disputed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"statement_id": statementId, "disputed": true})
	}
}

func processPaymentHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		settlementId, err := strconv.Atoi(c.Param("id"))
		if err != nil || settlementId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settlement id"})
			return
		}

		ok, err := workflow.ProcessPayment(c.Request.Context(), config.GetDB(), logger, settlementId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusConflict, gin.H{"error": "settlement is not payable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"settlement_id": settlementId, "paid": true})
	}
}

func reviewAuditReportHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reportId, err := strconv.Atoi(c.Param("id"))
		if err != nil || reportId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
			return
		}
		var req reviewAuditReportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		ok, err := workflow.ReviewAuditReport(c.Request.Context(), config.GetDB(), logger, reportId, req.AdminId, req.Notes)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusConflict, gin.H{"error": "report already reviewed or not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"report_id": reportId, "reviewed": true})
	}
}

// Internal ops endpoint: recompute one order's money split, e.g. after a
// mom-chain correction. Settled orders are immutable and come back unchanged.
func recalculateProfitHandler(logger *logrus.Logger, platformCfg config.PlatformConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, err := strconv.Atoi(c.Param("id"))
		if err != nil || orderId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
			return
		}

		err = config.GetDB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			return workflow.ProcessOrderProfitWorkflow(tx, logger, orderId, platformCfg.ProfitRates(), nil, platformCfg)
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": orderId, "recalculated": true})
	}
}

// Internal ops endpoint: trigger a settlement batch run outside the
// scheduler (backfills, replays).
func generateBatchHandler(logger *logrus.Logger, platformCfg config.PlatformConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req generateBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		result, err := workflow.GenerateSettlementBatch(c.Request.Context(), config.GetDB(), logger, req.Period, platformCfg)
		if err != nil {
			if utils.IsValidationError(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func generateAuditReportHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req generateAuditRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		report, err := workflow.GenerateAuditReport(c.Request.Context(), config.GetDB(), logger, req.Period)
		if err != nil {
			if utils.IsValidationError(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func exportSettlementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		period := c.Param("period")
		if err := utils.ValidateSettlementPeriod(period); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=settlements_"+period+".xlsx")
		if err := reports.ExportSettlementStatementsExcel(c.Request.Context(), period, c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	}
}

func exportAuditReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		period := c.Param("period")

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=audit_"+period+".xlsx")
		if err := reports.ExportAuditReportExcel(c.Request.Context(), period, c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	}
}

func platformSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fromDate, err := time.Parse("2006-01-02", c.Query("from"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from date is required (YYYY-MM-DD)"})
			return
		}
		toDate, err := time.Parse("2006-01-02", c.Query("to"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to date is required (YYYY-MM-DD)"})
			return
		}

		summary, err := reports.GetPlatformSummaryReport(c.Request.Context(), fromDate, toDate.AddDate(0, 0, 1))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	platformCfg := config.LoadPlatformConfig()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the platform considers the revision
	// healthy. Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	registerCustomValidations()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.WithCorrelationId(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate app endpoints on dependency readiness.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production requires an explicit allowlist; non-production allows all.
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
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(gin.Recovery())

	r.POST("/statements/:id/confirm", confirmStatementHandler(logger))
	r.POST("/statements/:id/dispute", disputeStatementHandler(logger))
	r.POST("/settlements/:id/pay", processPaymentHandler(logger))
	r.POST("/audit-reports/:id/review", reviewAuditReportHandler(logger))
	// Ops tooling (admin only).
	r.POST("/internal/ops/orders/:id/recalculate-profit", recalculateProfitHandler(logger, platformCfg))
	r.POST("/internal/ops/settlement-batch", generateBatchHandler(logger, platformCfg))
	r.POST("/internal/ops/audit-report", generateAuditReportHandler(logger))
	r.GET("/reports/settlements/:period/export", exportSettlementsHandler())
	r.GET("/reports/audit/:period/export", exportAuditReportHandler())
	r.GET("/reports/platform-summary", platformSummaryHandler())
	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running it as a
	// separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Start outbox dispatcher (publishes AFTER commit).
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go workflow.NewOutboxDispatcher(db, logger).Run(workerCtx)
	if shouldRunDirectOutboxProcessor() {
		go NewOutboxDirectProcessor(db, logger).Run(workerCtx)
	}

	// Calendar jobs: settlement batches, audit reports, expiry sweeps.
	go RunScheduler(workerCtx, db, logger, platformCfg)

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("settlement engine listening on port ", port)
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelWorkers()

	// Drain HTTP requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}
