package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mcoot/accessgate/internal/api/apierr"
	"github.com/mcoot/accessgate/internal/model"
)

type contextKey string

const actorContextKey contextKey = "actor"

// Authenticator verifies a presented bridge key
type Authenticator interface {
	Authenticate(key string) error
}

// Auth creates middleware requiring the host's bridge key
func Auth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractKey(r)
			if key == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			if err := authenticator.Authenticate(key); err != nil {
				apierr.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Actor parses the {id} route variable into an actor id
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(mux.Vars(r)["id"])
		if err != nil {
			apierr.WriteError(w, model.ErrInvalidActorID)
			return
		}

		ctx := context.WithValue(r.Context(), actorContextKey, model.ActorID(id.String()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractKey extracts the bridge key from the request
func extractKey(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.Header.Get("X-Bridge-Key")
}

// GetActor returns the actor id from the request context
func GetActor(ctx context.Context) (model.ActorID, bool) {
	actorID, ok := ctx.Value(actorContextKey).(model.ActorID)
	return actorID, ok
}

// MustGetActor returns the actor id or panics
func MustGetActor(ctx context.Context) model.ActorID {
	actorID, ok := GetActor(ctx)
	if !ok {
		panic("no actor in context - actor middleware not applied?")
	}
	return actorID
}
