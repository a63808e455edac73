package middleware

import (
	"net/http"
	"strings"

	"github.com/clinic/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Clinic context keys
const (
	ClinicIDKey     = "clinic_id"
	ClinicHeaderKey = "X-Clinic-ID"
)

// ClinicValidator defines the interface for validating a clinic
type ClinicValidator interface {
	ValidateClinic(clinicID string) error
}

// ClinicMiddlewareConfig holds configuration for clinic middleware
type ClinicMiddlewareConfig struct {
	// HeaderEnabled enables X-Clinic-ID header extraction (development fallback)
	HeaderEnabled bool
	// JWTEnabled enables JWT claim extraction (requires JWT middleware to run first)
	JWTEnabled bool
	// SkipPaths are paths that don't require clinic context (e.g. health check)
	SkipPaths []string
	// Required determines if clinic context is mandatory
	Required bool
	// Validator is an optional check that the clinic exists and is active
	Validator ClinicValidator
	// Logger for middleware logging
	Logger *zap.Logger
}

// DefaultClinicConfig returns default clinic middleware configuration
func DefaultClinicConfig() ClinicMiddlewareConfig {
	return ClinicMiddlewareConfig{
		HeaderEnabled: true,
		JWTEnabled:    true,
		SkipPaths:     []string{"/health", "/healthz", "/ready", "/metrics", "/api/v1/health"},
		Required:      true,
		Validator:     nil,
		Logger:        nil,
	}
}

// ClinicMiddleware extracts the clinic identity from the request.
// Extraction order: JWT claims > X-Clinic-ID header.
func ClinicMiddleware() gin.HandlerFunc {
	return ClinicMiddlewareWithConfig(DefaultClinicConfig())
}

// ClinicMiddlewareWithConfig returns clinic middleware with custom configuration
func ClinicMiddlewareWithConfig(cfg ClinicMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
				c.Next()
				return
			}
		}

		var clinicID string
		var extractionMethod string

		// Priority 1: JWT claims (if JWT middleware has already run)
		if cfg.JWTEnabled {
			if jwtClinicID, exists := c.Get(JWTClinicIDKey); exists {
				if cid, ok := jwtClinicID.(string); ok && cid != "" {
					clinicID = cid
					extractionMethod = "jwt"
				}
			}
		}

		// Priority 2: X-Clinic-ID header
		if clinicID == "" && cfg.HeaderEnabled {
			if headerClinicID := c.GetHeader(ClinicHeaderKey); headerClinicID != "" {
				clinicID = headerClinicID
				extractionMethod = "header"
			}
		}

		if clinicID != "" {
			if _, err := uuid.Parse(clinicID); err != nil {
				respondClinicUnauthorized(c, "Invalid clinic ID format")
				return
			}
		}

		if clinicID == "" && cfg.Required {
			respondClinicUnauthorized(c, "Clinic identification required")
			return
		}

		if clinicID != "" && cfg.Validator != nil {
			if err := cfg.Validator.ValidateClinic(clinicID); err != nil {
				log := cfg.Logger
				if log == nil {
					log = logger.FromContext(c.Request.Context())
				}
				log.Warn("Clinic validation failed",
					zap.String("clinic_id", clinicID),
					zap.Error(err),
				)
				respondClinicUnauthorized(c, "Invalid or inactive clinic")
				return
			}
		}

		if clinicID != "" {
			c.Set(ClinicIDKey, clinicID)

			// Set in request context for service layer access
			ctx := c.Request.Context()
			log := logger.FromContext(ctx)
			ctx, _ = logger.WithClinicID(ctx, log, clinicID)
			c.Request = c.Request.WithContext(ctx)

			if cfg.Logger != nil {
				cfg.Logger.Debug("Clinic identified",
					zap.String("clinic_id", clinicID),
					zap.String("method", extractionMethod),
				)
			}
		}

		c.Next()
	}
}

// respondClinicUnauthorized sends an unauthorized response
func respondClinicUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}

// GetClinicID retrieves the clinic ID from gin.Context
func GetClinicID(c *gin.Context) string {
	if clinicID, exists := c.Get(ClinicIDKey); exists {
		if cid, ok := clinicID.(string); ok {
			return cid
		}
	}
	return ""
}

// GetClinicUUID retrieves the clinic ID as UUID from gin.Context
func GetClinicUUID(c *gin.Context) (uuid.UUID, error) {
	clinicID := GetClinicID(c)
	if clinicID == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(clinicID)
}

// MustGetClinicUUID retrieves the clinic ID as UUID or panics if not found.
// Use this only in handlers where clinic context is guaranteed to exist.
func MustGetClinicUUID(c *gin.Context) uuid.UUID {
	clinicUUID, err := GetClinicUUID(c)
	if err != nil || clinicUUID == uuid.Nil {
		panic("valid clinic_id not found in context")
	}
	return clinicUUID
}

// OptionalClinicMiddleware creates middleware that doesn't require a clinic
func OptionalClinicMiddleware() gin.HandlerFunc {
	cfg := DefaultClinicConfig()
	cfg.Required = false
	return ClinicMiddlewareWithConfig(cfg)
}
