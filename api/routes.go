package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"streamwatch/handlers"
)

// NewRouter builds the local API consumed by the presentation layer.
func NewRouter(auth *handlers.AuthHandler, sess *handlers.SessionsHandler, settings *handlers.SettingsHandler) *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware)

	apiRouter := r.PathPrefix("/api").Subrouter()

	apiRouter.HandleFunc("/auth/login", auth.StartLogin).Methods(http.MethodPost)
	apiRouter.HandleFunc("/auth/login/{pinId}", auth.LoginStatus).Methods(http.MethodGet)
	apiRouter.HandleFunc("/auth/demo", auth.DemoLogin).Methods(http.MethodPost)
	apiRouter.HandleFunc("/auth/logout", auth.Logout).Methods(http.MethodPost)
	apiRouter.HandleFunc("/auth/user", auth.GetUser).Methods(http.MethodGet)

	apiRouter.HandleFunc("/sessions", sess.List).Methods(http.MethodGet)
	apiRouter.HandleFunc("/sessions/refresh", sess.Refresh).Methods(http.MethodPost)
	apiRouter.HandleFunc("/sessions/select", sess.Select).Methods(http.MethodPost)
	apiRouter.HandleFunc("/sessions/metadata/{ratingKey}", sess.Metadata).Methods(http.MethodGet)
	apiRouter.HandleFunc("/sessions/actor", sess.SetActor).Methods(http.MethodPost)
	apiRouter.HandleFunc("/sessions/actor", sess.ResolveActor).Methods(http.MethodGet)

	apiRouter.HandleFunc("/settings", settings.GetSettings).Methods(http.MethodGet)
	apiRouter.HandleFunc("/settings", settings.PutSettings).Methods(http.MethodPut)

	return r
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[api] %s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
