package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/levenlabs/go-lflag"
	"github.com/solarflow/solarflow/pkg/common"
	"github.com/solarflow/solarflow/pkg/feed"
	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/storage"
	"github.com/solarflow/solarflow/pkg/types"
)

var validate = validator.New()

// Server handles the HTTP API. It serves the live windows kept by the feed and
// the static configuration kept in storage.
type Server struct {
	storage storage.Database
	feed    *feed.Feed

	listenAddr     string
	httpServer     *http.Server
	serverName     string
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(s storage.Database, f *feed.Feed) *Server {
	srv := New(s, f)
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	allowedOrigins := lflag.String("stream-allowed-origins", "", "comma-delimited list of origins allowed to open the live stream (empty allows only same host)")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		if *allowedOrigins != "" {
			for _, o := range strings.Split(*allowedOrigins, ",") {
				srv.allowedOrigins = append(srv.allowedOrigins, strings.TrimSpace(o))
			}
		}
	})

	return srv
}

// New creates a server without reading flags.
func New(s storage.Database, f *feed.Feed) *Server {
	srv := &Server{
		storage:    s,
		feed:       f,
		serverName: common.UserAgent(),
		listenAddr: ":8080",
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     srv.checkOrigin,
	}
	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/allocate", s.handleAllocate)
	apiMux.HandleFunc("GET /api/buildings", s.handleListBuildings)
	apiMux.HandleFunc("GET /api/buildings/{buildingID}/energy", s.handleEnergy)
	apiMux.HandleFunc("GET /api/buildings/{buildingID}/energy/latest", s.handleEnergyLatest)
	apiMux.HandleFunc("GET /api/buildings/{buildingID}/metrics", s.handleMetrics)
	apiMux.HandleFunc("GET /api/buildings/{buildingID}/tenants/{contractID}/summary", s.handleTenantSummary)
	apiMux.HandleFunc("GET /api/buildings/{buildingID}/sample", s.handleSample)
	apiMux.HandleFunc("GET /api/buildings/{buildingID}/settings", s.handleGetSettings)
	apiMux.HandleFunc("POST /api/buildings/{buildingID}/settings", s.handleUpdateSettings)
	apiMux.HandleFunc("GET /api/buildings/{buildingID}/contracts", s.handleListContracts)
	apiMux.HandleFunc("POST /api/buildings/{buildingID}/contracts", s.handleUpsertContract)
	apiMux.HandleFunc("GET /api/tariffs", s.handleListTariffs)
	apiMux.HandleFunc("POST /api/tariffs", s.handleUpsertTariff)

	mux := http.NewServeMux()
	// the stream is not gzipped since the upgrade needs the raw connection
	mux.HandleFunc("GET /api/buildings/{buildingID}/stream", s.handleStream)
	mux.Handle("/api/", gziphandler.GzipHandler(apiMux))
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(s.securityHeadersMiddleware(mux))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:        s.listenAddr,
		Handler:     s.setupHandler(),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout since it would cut off live streams
		IdleTimeout: 15 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// buildingID returns the building from the path, falling back to the default
// building.
func (s *Server) buildingID(r *http.Request) string {
	if id := r.PathValue("buildingID"); id != "" {
		return id
	}
	return types.BuildingIDDefault
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.allowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
