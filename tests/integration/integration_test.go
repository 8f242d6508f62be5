package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/carteira-app/carteira-bfa-go/internal/aggregate"
	"github.com/carteira-app/carteira-bfa-go/internal/domain"
	"github.com/carteira-app/carteira-bfa-go/internal/handler"
	"github.com/carteira-app/carteira-bfa-go/internal/infra/backend"
	"github.com/carteira-app/carteira-bfa-go/internal/infra/cache"
	"github.com/carteira-app/carteira-bfa-go/internal/infra/observability"
	"github.com/carteira-app/carteira-bfa-go/internal/infra/resilience"
	"github.com/carteira-app/carteira-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// mockBackend is an in-memory stand-in for the portfolio backend REST API.
type mockBackend struct {
	mu     sync.Mutex
	users  map[string]map[string]any // by id
	creds  map[string]map[string]any // by user id
	tokens map[string]map[string]any // by token hash
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		users:  make(map[string]map[string]any),
		creds:  make(map[string]map[string]any),
		tokens: make(map[string]map[string]any),
	}
}

// fixedIncomeRows mixes string and numeric amounts on purpose: the backend
// serializes money inconsistently and the BFF must absorb both.
const fixedIncomeRows = `[
	{"id":"p1","investment_type":"Tesouro Direto","sub_type":"Selic","asset_name":"Tesouro Selic 2029","position_value":"1000.00","net_value":"1005.50"},
	{"id":"p2","investment_type":"Tesouro Direto","sub_type":"IPCA+","asset_name":"Tesouro IPCA+ 2035","position_value":2000,"net_value":1980.25},
	{"id":"p3","investment_type":"CDB","asset_name":"CDB Banco Alfa","position_value":1000,"net_value":990},
	{"id":"p4","investment_type":"Fundos","asset_name":"FUNDO BRAVO FIC FIM","quantity":10,"position_value":250,"net_value":250},
	{"id":"p5","investment_type":"Fundos","asset_name":"Fundo  Bravo FIC FIM","quantity":10,"position_value":250,"net_value":250},
	{"id":"p6","investment_type":"Fundos","asset_name":"RENDIMENTO FUNDO BRAVO","position_value":50,"net_value":50}
]`

const cryptoRows = `[
	{"id":"c1","investment_type":"Cripto","asset_name":"Bitcoin","asset_code":"BTC","position_value":3000,"net_value":3000},
	{"id":"c2","investment_type":"Cripto","asset_name":"Ethereum","asset_code":"ETH","position_value":1500,"net_value":1500}
]`

func (m *mockBackend) router() http.Handler {
	r := chi.NewRouter()

	r.Post("/api/users", func(w http.ResponseWriter, req *http.Request) {
		var data map[string]any
		json.NewDecoder(req.Body).Decode(&data)
		data["created_at"] = time.Now().Format(time.RFC3339)
		m.mu.Lock()
		m.users[data["id"].(string)] = data
		m.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(data)
	})

	r.Get("/api/users", func(w http.ResponseWriter, req *http.Request) {
		cpf := req.URL.Query().Get("cpf")
		m.mu.Lock()
		defer m.mu.Unlock()
		rows := []map[string]any{}
		for _, u := range m.users {
			if u["cpf"] == cpf {
				rows = append(rows, u)
			}
		}
		json.NewEncoder(w).Encode(rows)
	})

	r.Get("/api/users/{userID}", func(w http.ResponseWriter, req *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		u, ok := m.users[chi.URLParam(req, "userID")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(u)
	})

	r.Post("/api/credentials", func(w http.ResponseWriter, req *http.Request) {
		var data map[string]any
		json.NewDecoder(req.Body).Decode(&data)
		m.mu.Lock()
		m.creds[data["user_id"].(string)] = data
		m.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(data)
	})

	r.Get("/api/users/{userID}/credentials", func(w http.ResponseWriter, req *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		c, ok := m.creds[chi.URLParam(req, "userID")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(c)
	})

	r.Patch("/api/users/{userID}/credentials", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/api/refresh-tokens", func(w http.ResponseWriter, req *http.Request) {
		var data map[string]any
		json.NewDecoder(req.Body).Decode(&data)
		m.mu.Lock()
		m.tokens[data["token_hash"].(string)] = data
		m.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(data)
	})

	r.Get("/api/refresh-tokens/{hash}", func(w http.ResponseWriter, req *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		tok, ok := m.tokens[chi.URLParam(req, "hash")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(tok)
	})

	r.Patch("/api/refresh-tokens/{hash}", func(w http.ResponseWriter, req *http.Request) {
		m.mu.Lock()
		if tok, ok := m.tokens[chi.URLParam(req, "hash")]; ok {
			tok["revoked"] = true
		}
		m.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	r.Patch("/api/users/{userID}/refresh-tokens", func(w http.ResponseWriter, req *http.Request) {
		userID := chi.URLParam(req, "userID")
		m.mu.Lock()
		for _, tok := range m.tokens {
			if tok["user_id"] == userID {
				tok["revoked"] = true
			}
		}
		m.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/api/users/{userID}/positions/fixed-income", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fixedIncomeRows))
	})

	r.Get("/api/users/{userID}/positions/crypto", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(cryptoRows))
	})

	r.Post("/api/users/{userID}/notes", func(w http.ResponseWriter, req *http.Request) {
		if _, _, err := req.FormFile("file"); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		note := domain.BrokerageNote{
			ID:     "note-1",
			UserID: chi.URLParam(req, "userID"),
			Trades: []domain.NoteTrade{
				{AssetCode: "PETR4", Side: "buy", Quantity: 100, Price: 38.5, Total: 3850},
			},
			UploadedAt: time.Now(),
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(note)
	})

	r.Get("/api/users/{userID}/notes", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("[]"))
	})

	r.Post("/api/users/{userID}/events", func(w http.ResponseWriter, req *http.Request) {
		var data map[string]any
		json.NewDecoder(req.Body).Decode(&data)
		event := domain.CorporateEvent{
			ID:        "event-1",
			AssetCode: data["asset_code"].(string),
			EventType: data["event_type"].(string),
			EventDate: data["event_date"].(string),
			AppliedAt: time.Now(),
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(event)
	})

	r.Get("/api/users/{userID}/events", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("[]"))
	})

	r.Get("/api/users/{userID}/rebalance", func(w http.ResponseWriter, req *http.Request) {
		plan := domain.RebalancePlan{
			UserID:      chi.URLParam(req, "userID"),
			GeneratedAt: time.Now(),
			Actions: []domain.RebalanceAction{
				{AssetCode: "BTC", Action: "sell", Quantity: 0.01, Value: 500, Reason: "acima da alocação alvo"},
			},
		}
		json.NewEncoder(w).Encode(plan)
	})

	return r
}

// newTestRouter wires the full application against the mock backend.
func newTestRouter(t *testing.T, backendURL string) http.Handler {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	cb := resilience.NewCircuitBreaker(fmt.Sprintf("test-%s", t.Name()))
	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 10}
	httpClient := &http.Client{Timeout: 5 * time.Second}

	client := backend.NewClient(httpClient, backendURL, "test-api-key", cb, cfg, logger)
	positionsCache := cache.New[[]domain.Position](5 * time.Minute)

	portfolioSvc := service.NewPortfolioService(client, positionsCache, metrics, logger)
	userSvc := service.NewUserService(client, "integration-secret", 15*time.Minute, 7*24*time.Hour, logger)
	noteSvc := service.NewNoteService(client, positionsCache, resilience.NewBulkhead(4), metrics, logger, 1<<20)
	eventSvc := service.NewEventService(client, positionsCache, metrics, logger)
	rebalanceSvc := service.NewRebalanceService(client, logger)

	return handler.NewRouter(portfolioSvc, userSvc, noteSvc, eventSvc, rebalanceSvc, metrics, logger)
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const validCPF = "111.444.777-35"

// TestIntegration_FullFlow walks register, login, positions, note upload,
// event apply, rebalance and refresh against a mock backend.
func TestIntegration_FullFlow(t *testing.T) {
	backendSrv := httptest.NewServer(newMockBackend().router())
	defer backendSrv.Close()

	router := newTestRouter(t, backendSrv.URL)

	// --- Register ---
	rec := doJSON(t, router, http.MethodPost, "/v1/auth/register", "", domain.RegisterRequest{
		Name:     "Maria Silva",
		Email:    "maria@example.com",
		CPF:      validCPF,
		Password: "segredo-forte",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	// --- Login ---
	rec = doJSON(t, router, http.MethodPost, "/v1/auth/login", "", domain.LoginRequest{
		CPF: validCPF, Password: "segredo-forte",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	var login domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.AccessToken == "" || login.UserID == "" {
		t.Fatal("login: expected access token and user id")
	}

	// --- Positions (defaults: merge funds, exclude earnings) ---
	rec = doJSON(t, router, http.MethodGet, "/v1/users/"+login.UserID+"/positions", login.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("positions: expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	var positionsResp struct {
		Groups []aggregate.Bucket `json:"groups"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&positionsResp); err != nil {
		t.Fatalf("decode positions: %v", err)
	}
	if len(positionsResp.Groups) == 0 {
		t.Fatal("positions: expected at least one group")
	}

	// Tesouro Direto is a split category, so it comes first with sub-buckets.
	td := positionsResp.Groups[0]
	if td.Category != domain.InvestmentTesouroDireto {
		t.Errorf("expected Tesouro Direto first, got %q", td.Category)
	}
	if len(td.SubBuckets) != 2 {
		t.Errorf("expected 2 Tesouro Direto sub-buckets, got %d", len(td.SubBuckets))
	}
	if td.Total != 3000 {
		t.Errorf("Tesouro Direto total = %v, want 3000", td.Total)
	}

	var funds, crypto *aggregate.Bucket
	for i := range positionsResp.Groups {
		switch positionsResp.Groups[i].Category {
		case "Fundos":
			funds = &positionsResp.Groups[i]
		case "Cripto":
			crypto = &positionsResp.Groups[i]
		}
	}
	if funds == nil {
		t.Fatal("expected Fundos group")
	}
	// Duplicate fund rows merged, earnings row dropped.
	if len(funds.Positions) != 1 {
		t.Fatalf("Fundos: expected 1 merged position, got %d", len(funds.Positions))
	}
	if got := funds.Positions[0].Quantity.Float64(); got != 20 {
		t.Errorf("merged fund quantity = %v, want 20", got)
	}
	if funds.Total != 500 {
		t.Errorf("Fundos total = %v, want 500", funds.Total)
	}
	if crypto == nil {
		t.Fatal("expected Cripto group")
	}
	// Grand total is 9000, so crypto holds 50%.
	if crypto.Percentage != 50 {
		t.Errorf("Cripto percentage = %v, want 50", crypto.Percentage)
	}

	// --- Note upload (multipart) ---
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "nota.pdf")
	part.Write([]byte("%PDF-1.4 fake"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/users/"+login.UserID+"/notes", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	uploadRec := httptest.NewRecorder()
	router.ServeHTTP(uploadRec, req)
	if uploadRec.Code != http.StatusCreated {
		t.Fatalf("note upload: expected 201, got %d. Body: %s", uploadRec.Code, uploadRec.Body.String())
	}
	var note domain.BrokerageNote
	if err := json.NewDecoder(uploadRec.Body).Decode(&note); err != nil {
		t.Fatalf("decode note: %v", err)
	}
	if len(note.Trades) != 1 {
		t.Errorf("expected 1 parsed trade, got %d", len(note.Trades))
	}

	// --- Apply corporate event ---
	rec = doJSON(t, router, http.MethodPost, "/v1/users/"+login.UserID+"/events", login.AccessToken, domain.ApplyEventRequest{
		AssetCode: "PETR4", EventType: "split", Ratio: 2, EventDate: "2026-08-01",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("apply event: expected 201, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	// --- Rebalance plan ---
	rec = doJSON(t, router, http.MethodGet, "/v1/users/"+login.UserID+"/rebalance", login.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rebalance: expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	var plan domain.RebalancePlan
	if err := json.NewDecoder(rec.Body).Decode(&plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if len(plan.Actions) != 1 {
		t.Errorf("expected 1 rebalance action, got %d", len(plan.Actions))
	}

	// --- Refresh rotates the token pair ---
	rec = doJSON(t, router, http.MethodPost, "/v1/auth/refresh", "", domain.RefreshRequest{
		RefreshToken: login.RefreshToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	var refreshed domain.LoginResponse
	json.NewDecoder(rec.Body).Decode(&refreshed)
	if refreshed.RefreshToken == login.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// --- Service metrics snapshot ---
	rec = doJSON(t, router, http.MethodGet, "/v1/metrics/portfolio", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	var snapshot domain.PortfolioMetrics
	if err := json.NewDecoder(rec.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if snapshot.NotesUploaded != 1 {
		t.Errorf("notes uploaded = %d, want 1", snapshot.NotesUploaded)
	}
	if snapshot.EventsApplied != 1 {
		t.Errorf("events applied = %d, want 1", snapshot.EventsApplied)
	}
}

// TestIntegration_AuthBoundaries checks the token gate on user-scoped routes.
func TestIntegration_AuthBoundaries(t *testing.T) {
	backendSrv := httptest.NewServer(newMockBackend().router())
	defer backendSrv.Close()

	router := newTestRouter(t, backendSrv.URL)

	// No token.
	rec := doJSON(t, router, http.MethodGet, "/v1/users/u1/positions", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", rec.Code)
	}

	// Garbage token.
	rec = doJSON(t, router, http.MethodGet, "/v1/users/u1/positions", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", rec.Code)
	}

	// Valid token, someone else's data.
	doJSON(t, router, http.MethodPost, "/v1/auth/register", "", domain.RegisterRequest{
		Name: "Maria Silva", Email: "maria@example.com", CPF: validCPF, Password: "segredo-forte",
	})
	loginRec := doJSON(t, router, http.MethodPost, "/v1/auth/login", "", domain.LoginRequest{
		CPF: validCPF, Password: "segredo-forte",
	})
	var login domain.LoginResponse
	json.NewDecoder(loginRec.Body).Decode(&login)

	rec = doJSON(t, router, http.MethodGet, "/v1/users/someone-else/positions", login.AccessToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("cross-user: expected 403, got %d. Body: %s", rec.Code, rec.Body.String())
	}
}

// TestIntegration_BackendDown maps connection failures to 503/502-class errors
// rather than hanging or panicking.
func TestIntegration_BackendDown(t *testing.T) {
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"db unavailable"}`))
	}))
	defer backendSrv.Close()

	router := newTestRouter(t, backendSrv.URL)

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/login", "", domain.LoginRequest{
		CPF: validCPF, Password: "segredo-forte",
	})
	if rec.Code == http.StatusOK {
		t.Error("expected login to fail when backend is down")
	}
	if rec.Code != http.StatusInternalServerError && rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 500 or 503, got %d", rec.Code)
	}
}

// TestIntegration_UploadTooLarge rejects oversized notes before they reach
// the backend.
func TestIntegration_UploadTooLarge(t *testing.T) {
	backendSrv := httptest.NewServer(newMockBackend().router())
	defer backendSrv.Close()

	router := newTestRouter(t, backendSrv.URL)

	doJSON(t, router, http.MethodPost, "/v1/auth/register", "", domain.RegisterRequest{
		Name: "Maria Silva", Email: "maria@example.com", CPF: validCPF, Password: "segredo-forte",
	})
	loginRec := doJSON(t, router, http.MethodPost, "/v1/auth/login", "", domain.LoginRequest{
		CPF: validCPF, Password: "segredo-forte",
	})
	var login domain.LoginResponse
	json.NewDecoder(loginRec.Body).Decode(&login)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "nota-gigante.pdf")
	part.Write([]byte(strings.Repeat("x", 2<<20))) // 2 MiB against a 1 MiB cap
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/users/"+login.UserID+"/notes", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d. Body: %s", rec.Code, rec.Body.String())
	}
}
