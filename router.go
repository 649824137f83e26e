package main

import (
	"net/http"

	"github.com/gorilla/mux"
)

// newRouter builds the HTTP handler. The global middleware wraps the
// router rather than being registered with r.Use, so that preflight, 404
// and 405 responses are also covered.
func newRouter(app *App) http.Handler {
	r := mux.NewRouter()

	// Health check endpoints (no auth required)
	r.HandleFunc("/health", app.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", app.HandleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(app.RateLimit)

	authRoutes := api.PathPrefix("/auth").Subrouter()
	credentialLimit := app.CredentialLimit()
	authRoutes.Handle("/signup", credentialLimit(http.HandlerFunc(app.HandleSignUp))).Methods(http.MethodPost)
	authRoutes.Handle("/signin", credentialLimit(http.HandlerFunc(app.HandleSignIn))).Methods(http.MethodPost)
	authRoutes.HandleFunc("/refresh-tokens", app.HandleRefreshTokens).Methods(http.MethodPut)
	authRoutes.HandleFunc("/send-reset-password-token", app.HandleSendResetPasswordToken).Methods(http.MethodPost)
	authRoutes.HandleFunc("/reset-password", app.HandleResetPassword).Methods(http.MethodPut)
	authRoutes.Handle("/activate", credentialLimit(http.HandlerFunc(app.HandleActivate))).Methods(http.MethodPut)
	authRoutes.HandleFunc("/validate", app.HandleTokenValidate).Methods(http.MethodGet)

	users := api.PathPrefix("/users").Subrouter()
	users.Use(app.RequireAuth)
	users.HandleFunc("/{id}", app.HandleGetUser).Methods(http.MethodGet)
	users.HandleFunc("/{id}/password", app.HandleUpdatePassword).Methods(http.MethodPut)
	users.HandleFunc("/{id}/email", app.HandleUpdateEmail).Methods(http.MethodPut)
	users.HandleFunc("/{id}", app.HandleDeactivate).Methods(http.MethodDelete)

	// reads are public, writes need a signed-in owner
	protected := app.RequireAuth
	api.HandleFunc("/quotes", app.HandleListQuotes).Methods(http.MethodGet)
	api.Handle("/quotes", protected(http.HandlerFunc(app.HandleCreateQuote))).Methods(http.MethodPost)
	api.HandleFunc("/quotes/random", app.HandleRandomQuote).Methods(http.MethodGet)
	api.HandleFunc("/quotes/{id}", app.HandleGetQuote).Methods(http.MethodGet)
	api.Handle("/quotes/{id}", protected(http.HandlerFunc(app.HandleUpdateQuote))).Methods(http.MethodPut)
	api.Handle("/quotes/{id}", protected(http.HandlerFunc(app.HandleDeleteQuote))).Methods(http.MethodDelete)

	return app.SecurityHeaders(app.Logging(app.CORS(r)))
}
