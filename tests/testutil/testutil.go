// Package testutil provides shared helpers for lab fee reconciliation tests:
// operator identities, a JWT context middleware, and JSON helpers for driving
// routed handlers through a real gin engine.
package testutil

import (
	"github.com/clinic/backend/internal/infrastructure/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// NewTestUUID generates a deterministic UUID from a seed string so fixtures
// stay stable across runs.
func NewTestUUID(seed string) uuid.UUID {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return uuid.NewSHA1(namespace, []byte(seed))
}

// TestClinicID returns the standard clinic identity used by tests.
func TestClinicID() uuid.UUID {
	return NewTestUUID("test-clinic")
}

// TestOperatorID returns the standard operator identity used by tests.
func TestOperatorID() uuid.UUID {
	return NewTestUUID("test-operator")
}

// WritePermissions are the permissions the reconciliation write endpoints
// require.
var WritePermissions = []string{"labfee:write", "laboratory:write"}

// OperatorContext returns a middleware that seeds the JWT context values the
// auth middleware would set for a validated operator token. Install it ahead
// of the handlers under test instead of running the real JWT middleware.
func OperatorContext(clinicID, operatorID uuid.UUID, permissions ...string) gin.HandlerFunc {
	if len(permissions) == 0 {
		permissions = WritePermissions
	}
	return func(c *gin.Context) {
		c.Set("jwt_claims", &auth.Claims{
			ClinicID:    clinicID.String(),
			UserID:      operatorID.String(),
			Username:    "tester",
			Permissions: permissions,
		})
		c.Set("jwt_clinic_id", clinicID.String())
		c.Set("jwt_user_id", operatorID.String())
		c.Next()
	}
}
