package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
)

// RequireOperator allows operators and approvers.
func RequireOperator(next http.Handler) http.Handler {
	return requireActor(next, jwt.Actor.CanCalculate)
}

// RequireApprover allows approvers only.
func RequireApprover(next http.Handler) http.Handler {
	return requireActor(next, jwt.Actor.CanFinalize)
}

func requireActor(next http.Handler, allowed func(jwt.Actor) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := jwt.ActorFromContext(r.Context())
		if err != nil {
			response.Unauthorized(w, "Invalid token")
			return
		}

		if !allowed(actor) {
			response.HandleError(w, payroll.ErrForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
