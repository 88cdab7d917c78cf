package rest

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/api/websocket"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/auth"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/cache"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/config"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/repository"
	"github.com/abhinavece/player-auction-backend/internal/service/engine"
)

// Server is the HTTP API. All auction mutations go through the engine so
// they serialize on the owning auction's coordinator.
type Server struct {
	cfg    *config.Config
	engine *engine.Engine
	store  repository.Store
	auth   *auth.Service
	ws     *websocket.Handler

	// snapshots is an optional read-through cache in front of the
	// snapshot endpoint; nil means every request hits the store.
	snapshots      *cache.SnapshotCache
	metricsHandler http.Handler
	validate       *validator.Validate
	logger         *zap.Logger
	httpServer     *http.Server
}

// NewServer wires the route table.
func NewServer(cfg *config.Config, eng *engine.Engine, store repository.Store, authService *auth.Service, ws *websocket.Handler, snapshots *cache.SnapshotCache, metricsHandler http.Handler, logger *zap.Logger) *Server {
	s := &Server{
		cfg:            cfg,
		engine:         eng,
		store:          store,
		auth:           authService,
		ws:             ws,
		snapshots:      snapshots,
		metricsHandler: metricsHandler,
		validate:       validator.New(),
		logger:         logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	mux.HandleFunc("POST /api/v1/auth/admin/login", s.handleAdminLogin)
	mux.HandleFunc("POST /api/v1/auth/team/login", s.handleTeamLogin)
	mux.HandleFunc("POST /api/v1/auth/magic", s.handleMagicExchange)

	mux.HandleFunc("POST /api/v1/auctions", s.handleCreateAuction)
	mux.HandleFunc("GET /api/v1/auctions", s.handleListAuctions)
	mux.HandleFunc("GET /api/v1/auctions/{id}", s.handleGetAuction)
	mux.HandleFunc("GET /api/v1/auctions/{id}/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/v1/auctions/{id}/events", s.handleListEvents)
	mux.HandleFunc("PATCH /api/v1/auctions/{id}/config", s.handleUpdateConfig)

	mux.HandleFunc("POST /api/v1/auctions/{id}/teams", s.handleAddTeam)
	mux.HandleFunc("POST /api/v1/auctions/{id}/players", s.handleAddPlayer)
	mux.HandleFunc("POST /api/v1/auctions/{id}/teams/{teamId}/retentions", s.handleRetainPlayer)
	mux.HandleFunc("POST /api/v1/auctions/{id}/teams/{teamId}/adjust-purse", s.handleAdjustPurse)
	mux.HandleFunc("POST /api/v1/auctions/{id}/teams/{teamId}/magic-link", s.handleCreateMagicLink)

	mux.HandleFunc("POST /api/v1/auctions/{id}/configure", s.handleConfigure)
	mux.HandleFunc("POST /api/v1/auctions/{id}/go-live", s.handleGoLive)
	mux.HandleFunc("POST /api/v1/auctions/{id}/pause", s.handlePause)
	mux.HandleFunc("POST /api/v1/auctions/{id}/resume", s.handleResume)
	mux.HandleFunc("POST /api/v1/auctions/{id}/complete", s.handleComplete)
	mux.HandleFunc("POST /api/v1/auctions/{id}/open-trade-window", s.handleOpenTradeWindow)
	mux.HandleFunc("POST /api/v1/auctions/{id}/finalize", s.handleFinalize)

	mux.HandleFunc("POST /api/v1/auctions/{id}/bids", s.handlePlaceBid)
	mux.HandleFunc("POST /api/v1/auctions/{id}/undo", s.handleUndo)

	mux.HandleFunc("POST /api/v1/auctions/{id}/players/{playerId}/disqualify", s.handleDisqualify)
	mux.HandleFunc("POST /api/v1/auctions/{id}/players/{playerId}/return-to-pool", s.handleReturnToPool)

	mux.HandleFunc("GET /api/v1/auctions/{id}/trades", s.handleListTrades)
	mux.HandleFunc("POST /api/v1/auctions/{id}/trades", s.handleProposeTrade)
	mux.HandleFunc("POST /api/v1/auctions/{id}/trades/admin-initiate", s.handleAdminInitiateTrade)
	mux.HandleFunc("PATCH /api/v1/auctions/{id}/trades/{tradeId}/accept", s.handleAcceptTrade)
	mux.HandleFunc("PATCH /api/v1/auctions/{id}/trades/{tradeId}/reject", s.handleRejectTrade)
	mux.HandleFunc("PATCH /api/v1/auctions/{id}/trades/{tradeId}/withdraw", s.handleWithdrawTrade)
	mux.HandleFunc("PATCH /api/v1/auctions/{id}/trades/{tradeId}/admin-approve", s.handleAdminApproveTrade)
	mux.HandleFunc("PATCH /api/v1/auctions/{id}/trades/{tradeId}/admin-reject", s.handleAdminRejectTrade)

	mux.HandleFunc("GET /api/v1/auctions/{id}/ws", s.handleWebsocket)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.withLogging(s.withAuth(mux)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.ws.ServeWS(w, r, auctionID)
}
