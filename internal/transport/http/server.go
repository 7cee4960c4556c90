// Package http exposes the outward operations of spec.md §6
// (listClusters, join) as plain JSON endpoints over HTTP/2 without TLS,
// grounded on the teacher's cmd/server/server_module.go h2c-serving
// pattern. The wire format is peripheral glue, not part of the core
// reconciliation engine.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/partyfleet/controller/internal/admission"
	"github.com/partyfleet/controller/internal/config"
	"github.com/partyfleet/controller/internal/fleeterr"
	"github.com/partyfleet/controller/internal/query"
)

// Server holds the collaborators the HTTP handlers dispatch to.
type Server struct {
	admission *admission.Handler
	query     *query.Handler
	logger    *zap.Logger
}

func NewServer(a *admission.Handler, q *query.Handler, logger *zap.Logger) *Server {
	return &Server{admission: a, query: q, logger: logger.Named("http-server")}
}

type clusterView struct {
	Name         string `json:"name"`
	AppCount     int    `json:"appCount"`
	ServiceCount int    `json:"serviceCount"`
	UptimeSecs   int64  `json:"uptimeSeconds"`
	UserCount    int    `json:"userCount"`
}

func (s *Server) handleListClusters(w http.ResponseWriter, r *http.Request) {
	views, err := s.query.ListClusters(r.Context())
	if err != nil {
		s.logger.Error("list clusters failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]clusterView, 0, len(views))
	for _, v := range views {
		out = append(out, clusterView{
			Name:         v.Name,
			AppCount:     v.AppCount,
			ServiceCount: v.ServiceCount,
			UptimeSecs:   int64(v.Uptime.Seconds()),
			UserCount:    v.UserCount,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

type joinRequest struct {
	Username  string `json:"username"`
	ClusterID string `json:"clusterId"`
}

type joinResponse struct {
	Port int `json:"port"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.admission.Join(r.Context(), req.Username, req.ClusterID)
	if err != nil {
		writeJoinError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(joinResponse{Port: user.Port})
}

func writeJoinError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if kind, ok := fleeterr.KindOf(err); ok {
		switch kind {
		case fleeterr.KindInvalidArgument:
			status = http.StatusBadRequest
		case fleeterr.KindNotFound:
			status = http.StatusNotFound
		case fleeterr.KindNotJoinable, fleeterr.KindNoCapacity:
			status = http.StatusConflict
		case fleeterr.KindProvisionerFailure, fleeterr.KindStoreFailure:
			status = http.StatusServiceUnavailable
		}
	}
	http.Error(w, err.Error(), status)
}

func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/clusters", s.handleListClusters)
	mux.HandleFunc("/v1/join", s.handleJoin)
	return mux
}

// serverParams contains the dependencies for the HTTP server.
type serverParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Server    *Server
	Logger    *zap.Logger
}

// ProvideServer registers the HTTP server with the fx lifecycle.
func ProvideServer(p serverParams) {
	logger := p.Logger.Named("http")
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", p.Config.Port),
		Handler: h2c.NewHandler(p.Server.Mux(), &http2.Server{}),
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info("starting HTTP server", zap.String("address", httpServer.Addr))
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server stopped unexpectedly", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			return httpServer.Shutdown(ctx)
		},
	})
}

// Module provides the HTTP transport dependency to the fx container.
var Module = fx.Options(
	fx.Provide(NewServer),
	fx.Invoke(ProvideServer),
)
