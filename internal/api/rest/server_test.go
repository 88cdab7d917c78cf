package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/infrastructure/auth"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/cache"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/config"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/events"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/repository"
	"github.com/abhinavece/player-auction-backend/internal/service/engine"
	"github.com/abhinavece/player-auction-backend/internal/testutil"
)

type testServer struct {
	srv   *Server
	store *repository.MemoryStore
	auth  *auth.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         0,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		Auth: config.AuthConfig{
			SigningKey:       "test-signing-key",
			AdminKey:         "admin-key",
			TokenTTL:         time.Hour,
			MagicLinkBaseURL: "https://auction.example.com",
			MagicTokenTTL:    15 * time.Minute,
		},
	}

	store := repository.NewMemoryStore()
	logger := zap.NewNop()
	eng := engine.New(store, events.NopPublisher{}, engine.Options{BidRatePerTeam: 100, BidBurst: 100}, logger)
	authService := auth.NewService(cfg.Auth.SigningKey, cfg.Auth.TokenTTL,
		cfg.Auth.MagicLinkBaseURL, cfg.Auth.MagicTokenTTL, cache.NewTokenStore(client, logger))

	srv := NewServer(cfg, eng, store, authService, nil, nil, nil, logger)
	return &testServer{srv: srv, store: store, auth: authService}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

type responseEnvelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func (ts *testServer) adminToken(t *testing.T) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/auth/admin/login", "", map[string]string{"key": "admin-key"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp tokenResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &resp))
	return resp.Token
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec).OK)
}

func TestAdminLogin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/admin/login", "", map[string]string{"key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", decode(t, rec).Error.Code)

	token := ts.adminToken(t)
	assert.NotEmpty(t, token)
}

func TestCreateAuctionRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]string{"name": "Season Nine", "slug": "season-nine"}

	rec := ts.do(t, http.MethodPost, "/api/v1/auctions", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/auctions", ts.adminToken(t), body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	env := decode(t, rec)
	require.True(t, env.OK)
	assert.Contains(t, string(env.Data), `"season-nine"`)
}

func TestRequestValidation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.adminToken(t)

	t.Run("slug too short", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/auctions", token,
			map[string]string{"name": "Season Nine", "slug": "s"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_REQUEST", decode(t, rec).Error.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/auctions", token,
			map[string]string{"name": "Season Nine", "slug": "season-nine", "bogus": "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "MALFORMED_BODY", decode(t, rec).Error.Code)
	})

	t.Run("bad path id", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/auctions/not-a-uuid", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_ID", decode(t, rec).Error.Code)
	})

	t.Run("unknown auction", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/auctions/"+uuid.NewString(), "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "RESOURCE_NOT_FOUND", decode(t, rec).Error.Code)
	})

	t.Run("events limit out of range", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/auctions/"+uuid.NewString()+"/events?limit=0", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_LIMIT", decode(t, rec).Error.Code)
	})
}

// setupLiveAuction provisions an auction through the API the way an
// organizer would, and returns the ids plus a team credential.
func setupLiveAuction(t *testing.T, ts *testServer, adminToken string) (auctionID, teamID uuid.UUID) {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/v1/auctions", adminToken,
		map[string]string{"name": "Season Nine", "slug": "season-nine"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &created))
	auctionID = created.ID
	base := "/api/v1/auctions/" + auctionID.String()

	rec = ts.do(t, http.MethodPatch, base+"/config", adminToken,
		map[string]any{"config": testutil.FastConfig()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, short := range []string{"TA", "TB"} {
		rec = ts.do(t, http.MethodPost, base+"/teams", adminToken, map[string]string{
			"name": "Team " + short, "short_name": short, "credential": "secret-pass",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		if short == "TA" {
			var tm struct {
				ID uuid.UUID `json:"id"`
			}
			require.NoError(t, json.Unmarshal(decode(t, rec).Data, &tm))
			teamID = tm.ID
		}
	}

	for i := 1; i <= 2; i++ {
		rec = ts.do(t, http.MethodPost, base+"/players", adminToken, map[string]any{
			"player_number": i, "name": fmt.Sprintf("Player %d", i), "role": "batter",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	for _, action := range []string{"configure", "go-live"} {
		rec = ts.do(t, http.MethodPost, base+"/"+action, adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	return auctionID, teamID
}

func TestTeamLoginAndBid(t *testing.T) {
	ts := newTestServer(t)
	adminToken := ts.adminToken(t)
	auctionID, teamID := setupLiveAuction(t, ts, adminToken)
	base := "/api/v1/auctions/" + auctionID.String()

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/team/login", "", map[string]any{
		"auction_id": auctionID, "team_id": teamID, "credential": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/auth/team/login", "", map[string]any{
		"auction_id": auctionID, "team_id": teamID, "credential": "secret-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login tokenResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &login))
	require.Equal(t, auth.RoleTeam, login.Role)

	bid := map[string]any{"team_id": teamID, "amount": "100"}

	t.Run("admin token cannot bid", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, base+"/bids", adminToken, bid)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("token must match bidding team", func(t *testing.T) {
		other := map[string]any{"team_id": uuid.New(), "amount": "100"}
		rec := ts.do(t, http.MethodPost, base+"/bids", login.Token, other)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "FORBIDDEN", decode(t, rec).Error.Code)
	})

	t.Run("accepted bid", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, base+"/bids", login.Token, bid)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"current_bid_amount"`)
	})

	// Freeze the countdown so the lot does not settle mid-test.
	rec = ts.do(t, http.MethodPost, base+"/pause", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestMagicLinkFlow(t *testing.T) {
	ts := newTestServer(t)
	adminToken := ts.adminToken(t)
	auctionID, teamID := setupLiveAuction(t, ts, adminToken)

	rec := ts.do(t, http.MethodPost,
		"/api/v1/auctions/"+auctionID.String()+"/teams/"+teamID.String()+"/magic-link",
		adminToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var link magicLinkResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &link))
	require.Contains(t, link.URL, "https://auction.example.com/auth/magic?token=")
	raw := link.URL[strings.Index(link.URL, "token=")+len("token="):]

	rec = ts.do(t, http.MethodPost, "/api/v1/auth/magic", "", map[string]string{"token": raw})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &resp))
	assert.Equal(t, auth.RoleTeam, resp.Role)
	require.NotNil(t, resp.TeamID)
	assert.Equal(t, teamID, *resp.TeamID)

	// Magic tokens are one-shot.
	rec = ts.do(t, http.MethodPost, "/api/v1/auth/magic", "", map[string]string{"token": raw})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSnapshotEndpoint(t *testing.T) {
	ts := newTestServer(t)
	adminToken := ts.adminToken(t)
	auctionID, _ := setupLiveAuction(t, ts, adminToken)

	rec := ts.do(t, http.MethodGet, "/api/v1/auctions/"+auctionID.String()+"/snapshot", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, `"current_player"`)
	assert.Contains(t, body, `"timer"`)
}
