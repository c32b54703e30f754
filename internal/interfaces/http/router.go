package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/internal/interfaces/http/handlers"
	"github.com/Sira-Clinica/backend/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies required
// to construct the HTTP route tree.
type RouterConfig struct {
	// Handlers
	TriageHandler    *handlers.TriageHandler
	DiagnosisHandler *handlers.DiagnosisHandler
	HealthHandler    *handlers.HealthHandler

	// Middleware
	AllowedOrigins []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64

	// Infrastructure
	Logger         logging.Logger
	Recorder       middleware.HTTPRecorder
	MetricsHandler http.Handler
}

// NewRouter constructs the route tree: global middleware, public health and
// metrics endpoints, and the /api/v1 resource groups.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = middleware.DefaultMaxBodyBytes
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// --- Global middleware ---
	loggingCfg := middleware.DefaultLoggingConfig()
	loggingCfg.Recorder = cfg.Recorder
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.AllowedOrigins

	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogging(log, loggingCfg))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CORS(corsCfg))

	// --- Public endpoints ---
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	// --- API v1 ---
	api := r.Group("/api/v1", middleware.BodyLimit(cfg.MaxBodyBytes), middleware.Timeout(cfg.RequestTimeout))
	registerTriageRoutes(api, cfg.TriageHandler)
	registerDiagnosisRoutes(api, cfg.DiagnosisHandler)

	return r
}

// registerTriageRoutes mounts prediction, normalization and patient routes.
func registerTriageRoutes(r *gin.RouterGroup, h *handlers.TriageHandler) {
	if h == nil {
		return
	}
	r.POST("/predict", h.Predict)
	r.POST("/normalize", h.Normalize)

	patients := r.Group("/patients/:dni")
	patients.POST("/vitals", h.RecordVitals)
	patients.GET("/vitals", h.ListVitals)
	patients.POST("/predict", h.PredictForPatient)
	patients.GET("/diagnoses", h.ListPatientDiagnoses)
	patients.GET("/diagnoses/latest", h.LatestPatientDiagnosis)
}

// registerDiagnosisRoutes mounts stored diagnosis routes under /diagnoses.
func registerDiagnosisRoutes(r *gin.RouterGroup, h *handlers.DiagnosisHandler) {
	if h == nil {
		return
	}
	d := r.Group("/diagnoses")
	d.GET("", h.List)
	d.GET("/:id", h.Get)
	d.PUT("/:id", h.UpdateNotes)
	d.DELETE("/:id", h.Delete)
}
