// Package httpapi implements the worker's control-surface HTTP server: a
// manual trigger endpoint, wired with gorilla/mux and gorilla/handlers the
// same way the registry's top-level server wires its handler chain.
package httpapi

import (
	"context"
	"net/http"
	"os"

	"github.com/google/uuid"
	gorhandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Trigger is called to kick off an out-of-band pipeline run. It must not
// block the HTTP handler; callers run it on a separate goroutine.
type Trigger func()

// Server is the worker's control-surface HTTP server.
type Server struct {
	httpServer *http.Server
}

// New builds a Server listening on addr. POST /api/v1/gdelt/process
// invokes trigger on a background goroutine and replies 202 Accepted
// immediately; any other method on that path replies 405.
func New(addr string, trigger Trigger) *Server {
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/gdelt/process", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("X-Request-Id", uuid.NewString())
		go trigger()
		w.WriteHeader(http.StatusAccepted)
	})

	var handler http.Handler = router
	handler = gorhandlers.CombinedLoggingHandler(os.Stdout, handler)

	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
	}
}

// ListenAndServe runs the server, blocking until it stops.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
