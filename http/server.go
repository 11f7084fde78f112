package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"blogd/auth"
	"blogd/crud"
	"blogd/errs"
)

// Timeouts applied by Run and by the request timeout middleware.
const (
	RequestTimeout  = 15 * time.Second
	ShutdownTimeout = 10 * time.Second
)

// Server provides the http functionality of this app, namely routing,
// request handling, and middleware. It also performs authentication before
// handing things over to one of the crud services.
type Server struct {
	router  *mux.Router
	handler http.Handler
	logger  zerolog.Logger
	guard   *auth.Guard

	us *crud.UserService
	ps *crud.PostService
	ls *crud.LikeService
}

// NewServer returns a new instance of the server, registers all necessary
// routes and gives their handlers access to the crud services passed in.
func NewServer(logger zerolog.Logger, guard *auth.Guard, services *crud.Services) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: logger,
		guard:  guard,
		us:     services.User,
		ps:     services.Post,
		ls:     services.Like,
	}

	// Register routes of the auth system.
	s.registerAuthRoutes(s.router)

	// Register routes of the crud system.
	s.registerPostRoutes(s.router)
	s.registerLikeRoutes(s.router)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errs.ReturnError(w, r, errs.Errorf(errs.ENOTFOUND, "Route not found."))
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errs.ReturnError(w, r, errs.Errorf(errs.ENOTALLOWED, "Method not allowed."))
	})
	s.router.Use(setContentTypeJSON)

	// Middleware that needs to run on every request, matched or not.
	s.handler = chi.Chain(
		chimw.RequestID,
		chimw.RealIP,
		s.logRequests,
		chimw.Recoverer,
		chimw.Timeout(RequestTimeout),
	).Handler(s.router)
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Run listens and serves on addr until ctx is done, then shuts down
// gracefully, giving in-flight requests ShutdownTimeout to finish.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]bool{"ok": true})
}

// The setContentTypeJSON middleware sets the content type to "application/json".
func setContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// logRequests attaches a request scoped logger to the context and writes one
// access log line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := s.logger.With().
			Str("request_id", chimw.GetReqID(r.Context())).
			Logger()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context())))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
