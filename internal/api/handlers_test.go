package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vaultline/ledger-service/internal/app"
	"github.com/vaultline/ledger-service/internal/domain"
	"github.com/vaultline/ledger-service/internal/store"
	"github.com/vaultline/ledger-service/pkg/clock"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := store.NewMemoryStore()
	clk := clock.Frozen{Instant: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
	svc := app.NewService(st, clk, nil, nil, 100, 1_000_000, 3_000_000)
	srv := httptest.NewServer(NewRouter(NewHandlers(svc), nil))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	fields := map[string]json.RawMessage{}
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp, fields
}

func jsonInt64(t *testing.T, fields map[string]json.RawMessage, key string) int64 {
	t.Helper()
	var v int64
	if err := json.Unmarshal(fields[key], &v); err != nil {
		t.Fatalf("field %s: %v", key, err)
	}
	return v
}

func jsonString(t *testing.T, fields map[string]json.RawMessage, key string) string {
	t.Helper()
	var v string
	if err := json.Unmarshal(fields[key], &v); err != nil {
		t.Fatalf("field %s: %v", key, err)
	}
	return v
}

func createAccount(t *testing.T, srv *httptest.Server, username, phone string) (id int64, number string) {
	t.Helper()
	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/accounts", domain.CreateAccountRequest{
		Username: username,
		Phone:    phone,
		Password: "secret-pw",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create account status = %d, want 201", resp.StatusCode)
	}
	return jsonInt64(t, fields, "id"), jsonString(t, fields, "account_number")
}

func TestCreateAccountEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/accounts", domain.CreateAccountRequest{
		Username: "hana",
		Phone:    "010-1111-2222",
		Password: "secret-pw",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if got := jsonString(t, fields, "username"); got != "hana" {
		t.Errorf("username = %s, want hana", got)
	}
	if got := jsonInt64(t, fields, "balance"); got != 0 {
		t.Errorf("balance = %d, want 0", got)
	}
	if _, ok := fields["password_hash"]; ok {
		t.Error("response leaks the password hash")
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/accounts", domain.CreateAccountRequest{Username: "hana"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing fields status = %d, want 400", resp.StatusCode)
	}
}

func TestDepositWithdrawEndpoints(t *testing.T) {
	srv := newTestServer(t)
	id, _ := createAccount(t, srv, "hana", "010-1111-2222")
	base := fmt.Sprintf("%s/accounts/%d", srv.URL, id)

	resp, fields := doJSON(t, http.MethodPost, base+"/deposit", domain.DepositRequest{Amount: 50_000})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deposit status = %d, want 200", resp.StatusCode)
	}
	if got := jsonInt64(t, fields, "balance"); got != 50_000 {
		t.Errorf("balance = %d, want 50000", got)
	}

	resp, fields = doJSON(t, http.MethodPost, base+"/withdraw", domain.WithdrawRequest{Amount: 20_000})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("withdraw status = %d, want 200", resp.StatusCode)
	}
	if got := jsonInt64(t, fields, "balance"); got != 30_000 {
		t.Errorf("balance = %d, want 30000", got)
	}

	resp, _ = doJSON(t, http.MethodPost, base+"/withdraw", domain.WithdrawRequest{Amount: 99_999})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("overdraft status = %d, want 422", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, base+"/deposit", domain.DepositRequest{Amount: -5})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative amount status = %d, want 400", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/accounts/404/deposit", domain.DepositRequest{Amount: 100})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown account status = %d, want 404", resp.StatusCode)
	}
}

func TestTransferEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srcID, _ := createAccount(t, srv, "hana", "010-1111-2222")
	dstID, dstNumber := createAccount(t, srv, "minsu", "010-3333-4444")
	srcBase := fmt.Sprintf("%s/accounts/%d", srv.URL, srcID)

	doJSON(t, http.MethodPost, srcBase+"/deposit", domain.DepositRequest{Amount: 100_000})

	resp, fields := doJSON(t, http.MethodPost, srcBase+"/transfer", domain.TransferRequest{
		CounterpartyAccountNumber: dstNumber,
		Amount:                    30_000,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transfer status = %d, want 200", resp.StatusCode)
	}
	if got := jsonInt64(t, fields, "balance"); got != 69_700 {
		t.Errorf("source balance = %d, want 69700", got)
	}

	resp, fields = doJSON(t, http.MethodGet, fmt.Sprintf("%s/accounts/%d", srv.URL, dstID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get account status = %d, want 200", resp.StatusCode)
	}
	if got := jsonInt64(t, fields, "balance"); got != 30_000 {
		t.Errorf("destination balance = %d, want 30000", got)
	}

	resp, _ = doJSON(t, http.MethodPost, srcBase+"/transfer", domain.TransferRequest{
		CounterpartyAccountNumber: "0000000000000000",
		Amount:                    100,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown counterparty status = %d, want 404", resp.StatusCode)
	}
}

func TestTransactionHistoryEndpoint(t *testing.T) {
	srv := newTestServer(t)
	id, _ := createAccount(t, srv, "hana", "010-1111-2222")
	base := fmt.Sprintf("%s/accounts/%d", srv.URL, id)

	doJSON(t, http.MethodPost, base+"/deposit", domain.DepositRequest{Amount: 1000})
	doJSON(t, http.MethodPost, base+"/withdraw", domain.WithdrawRequest{Amount: 400})

	req, _ := http.NewRequest(http.MethodGet, base+"/transactions", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d, want 200", resp.StatusCode)
	}

	var txns []domain.Transaction
	if err := json.NewDecoder(resp.Body).Decode(&txns); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("history length = %d, want 2", len(txns))
	}
	if txns[0].Type != domain.TransactionTypeWithdraw || txns[1].Type != domain.TransactionTypeDeposit {
		t.Errorf("history order = %s, %s", txns[0].Type, txns[1].Type)
	}
}

func TestCloseAccountEndpoint(t *testing.T) {
	srv := newTestServer(t)
	id, _ := createAccount(t, srv, "hana", "010-1111-2222")
	base := fmt.Sprintf("%s/accounts/%d", srv.URL, id)

	doJSON(t, http.MethodPost, base+"/deposit", domain.DepositRequest{Amount: 100})
	resp, _ := doJSON(t, http.MethodDelete, base, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("close with balance status = %d, want 422", resp.StatusCode)
	}

	doJSON(t, http.MethodPost, base+"/withdraw", domain.WithdrawRequest{Amount: 100})
	resp, _ = doJSON(t, http.MethodDelete, base, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("close status = %d, want 204", resp.StatusCode)
	}

	resp, fields := doJSON(t, http.MethodGet, base, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get closed account status = %d", resp.StatusCode)
	}
	if got := jsonString(t, fields, "status"); got != string(domain.AccountStatusDeleted) {
		t.Errorf("status = %s, want %s", got, domain.AccountStatusDeleted)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
}
