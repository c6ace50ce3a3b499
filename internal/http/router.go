package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gefarm-api/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	jwtServ *service.JWTService,
	authH *AuthHandler,
	userH *UserHandler,
	deviceH *DeviceHandler,
	meterH *MeterHandler,
) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Middlewares basicos: logging, recovery, CORS y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), corsMiddleware(), jsonContentTypeMiddleware())

	r.NoMethod(func(c *gin.Context) {
		respondError(c, http.StatusMethodNotAllowed, "Metodo non consentito")
	})
	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "Risorsa non trovata")
	})

	auth := r.Group("/auth")
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.POST("/verify_email", authH.VerifyEmail)
	auth.POST("/resend_verification", authH.ResendVerification)
	auth.POST("/password_reset_request", authH.RequestPasswordReset)
	auth.POST("/password_reset_confirm", authH.ConfirmPasswordReset)

	authRequired := AuthMiddleware(jwtServ)

	user := r.Group("/user", authRequired)
	user.GET("/profile", userH.Profile)
	user.PUT("/profile", userH.UpdateProfile)
	user.PUT("/password", userH.ChangePassword)

	devices := r.Group("/devices", authRequired)
	devices.POST("/register", deviceH.Register)
	devices.POST("/add", deviceH.Add)
	devices.GET("/user", deviceH.List)
	devices.GET("/:device_id", deviceH.Details)
	devices.PUT("/:device_id/dataplate", deviceH.UpdateDataplate)

	meter := r.Group("/meter", authRequired)
	meter.POST("/submit", meterH.Submit)
	meter.GET("/active", meterH.Active)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// corsMiddleware responde el preflight y añade las cabeceras CORS a todo.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
