package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"salegate/crypto"
	"salegate/native/bank"
	"salegate/native/sale"
	"salegate/observability"
	"salegate/storage"
)

const testToken = "secret-admin-token"

var (
	rpcEngineAddr = [20]byte{0x0E}
	rpcTreasury   = [20]byte{0x02}
	rpcAdmin      = [20]byte{0x03}
	rpcBuyer      = [20]byte{0x04}
	rpcOps        = [20]byte{0x05}
	rpcPauser     = [20]byte{0x07}
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	assets := bank.NewAccountBook("ASSET")
	funds := bank.NewAccountBook("PAY")
	if err := assets.Mint(rpcEngineAddr, big.NewInt(1_000_000)); err != nil {
		t.Fatal(err)
	}
	if err := funds.Mint(rpcBuyer, big.NewInt(1_000_000)); err != nil {
		t.Fatal(err)
	}

	roles, err := sale.NewStaticRoles(nil)
	if err != nil {
		t.Fatal(err)
	}
	roles.Grant(sale.RoleOperations, rpcOps)
	roles.Grant(sale.RolePauser, rpcPauser)

	params := sale.SaleParams{
		Price:       new(big.Int).Mul(big.NewInt(2), sale.PriceScale),
		MinPurchase: big.NewInt(1),
		MaxPurchase: big.NewInt(1_000_000),
		DailyCap:    big.NewInt(1_000_000),
		Treasury:    rpcTreasury,
		Admin:       rpcAdmin,
	}
	ledger := sale.NewLedger(storage.NewKVStore(storage.NewMemDB()))
	engine, err := sale.NewEngine(ledger, assets, funds, roles, rpcEngineAddr, params, sale.SecurityParams{})
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.SetActive(rpcOps, true); err != nil {
		t.Fatal(err)
	}

	server := NewServer(engine, testToken, 60_000, 1000, nil)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return server, ts
}

func call(t *testing.T, ts *httptest.Server, token, method string, params ...interface{}) (*http.Response, RPCResponse) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, ts.URL, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var decoded RPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatal(err)
	}
	return resp, decoded
}

func TestQuoteToPayment(t *testing.T) {
	_, ts := newTestServer(t)
	resp, decoded := call(t, ts, "", "sale_quoteToPayment", "10")
	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		t.Fatalf("quote failed: %d %+v", resp.StatusCode, decoded.Error)
	}
	if decoded.Result != "20" {
		t.Fatalf("expected quote 20, got %v", decoded.Result)
	}
}

func TestPurchaseOverRPC(t *testing.T) {
	_, ts := newTestServer(t)
	resp, decoded := call(t, ts, "", "sale_purchase", map[string]string{
		"caller":   crypto.FormatAddress(rpcBuyer),
		"quantity": "5",
		"payment":  "12",
	})
	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		t.Fatalf("purchase failed: %d %+v", resp.StatusCode, decoded.Error)
	}
	result, ok := decoded.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result shape %T", decoded.Result)
	}
	if result["paid"] != "10" || result["refund"] != "2" {
		t.Fatalf("unexpected receipt %+v", result)
	}
	if result["id"] == "" {
		t.Fatal("receipt must carry an id")
	}
}

func TestPurchaseRejectionCarriesReason(t *testing.T) {
	_, ts := newTestServer(t)
	resp, decoded := call(t, ts, "", "sale_purchase", map[string]string{
		"caller":   crypto.FormatAddress(rpcBuyer),
		"quantity": "5",
		"payment":  "9",
	})
	if resp.StatusCode != http.StatusBadRequest || decoded.Error == nil {
		t.Fatalf("expected rejection, got %d %+v", resp.StatusCode, decoded.Result)
	}
	if decoded.Error.Code != codeRejected {
		t.Fatalf("expected code %d, got %d", codeRejected, decoded.Error.Code)
	}
	if decoded.Error.Data != string(sale.ReasonInsufficientPayment) {
		t.Fatalf("expected reason data, got %v", decoded.Error.Data)
	}
}

func settleSampleCount(t *testing.T) uint64 {
	t.Helper()
	m := &dto.Metric{}
	if err := observability.Metrics().SettleTime.Write(m); err != nil {
		t.Fatal(err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestSettleLatencyObservedOnlyOnSettlement(t *testing.T) {
	_, ts := newTestServer(t)
	before := settleSampleCount(t)

	resp, decoded := call(t, ts, "", "sale_purchase", map[string]string{
		"caller":   crypto.FormatAddress(rpcBuyer),
		"quantity": "5",
		"payment":  "9",
	})
	if resp.StatusCode != http.StatusBadRequest || decoded.Error == nil {
		t.Fatalf("expected rejection, got %d %+v", resp.StatusCode, decoded.Result)
	}
	if got := settleSampleCount(t); got != before {
		t.Fatalf("rejected attempt must not enter the settlement histogram: %d -> %d", before, got)
	}

	resp, decoded = call(t, ts, "", "sale_purchase", map[string]string{
		"caller":   crypto.FormatAddress(rpcBuyer),
		"quantity": "5",
		"payment":  "12",
	})
	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		t.Fatalf("purchase failed: %d %+v", resp.StatusCode, decoded.Error)
	}
	if got := settleSampleCount(t); got != before+1 {
		t.Fatalf("settled purchase must be observed exactly once: %d -> %d", before, got)
	}
}

func TestCanPurchaseOverRPC(t *testing.T) {
	_, ts := newTestServer(t)
	resp, decoded := call(t, ts, "", "sale_canPurchase", map[string]string{
		"caller":   crypto.FormatAddress(rpcBuyer),
		"quantity": "5",
	})
	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		t.Fatalf("probe failed: %d %+v", resp.StatusCode, decoded.Error)
	}
	result, ok := decoded.Result.(map[string]interface{})
	if !ok || result["allowed"] != true {
		t.Fatalf("expected allowed probe, got %+v", decoded.Result)
	}
}

func TestPrivilegedMethodRequiresToken(t *testing.T) {
	_, ts := newTestServer(t)

	resp, decoded := call(t, ts, "", "sale_pause", map[string]string{
		"caller": crypto.FormatAddress(rpcPauser),
	})
	if resp.StatusCode != http.StatusUnauthorized || decoded.Error == nil || decoded.Error.Code != codeUnauthorized {
		t.Fatalf("expected 401, got %d %+v", resp.StatusCode, decoded.Error)
	}

	resp, decoded = call(t, ts, "wrong-token", "sale_pause", map[string]string{
		"caller": crypto.FormatAddress(rpcPauser),
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", resp.StatusCode)
	}

	resp, decoded = call(t, ts, testToken, "sale_pause", map[string]string{
		"caller": crypto.FormatAddress(rpcPauser),
	})
	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		t.Fatalf("authorized pause failed: %d %+v", resp.StatusCode, decoded.Error)
	}

	// The engine's own capability check still applies behind the token.
	resp, decoded = call(t, ts, testToken, "sale_setActive", map[string]interface{}{
		"caller": crypto.FormatAddress(rpcBuyer),
		"flag":   false,
	})
	if resp.StatusCode != http.StatusUnauthorized || decoded.Error == nil {
		t.Fatalf("expected capability rejection, got %d %+v", resp.StatusCode, decoded.Error)
	}
}

func TestMethodNotFound(t *testing.T) {
	_, ts := newTestServer(t)
	resp, decoded := call(t, ts, "", "sale_unknown")
	if resp.StatusCode != http.StatusNotFound || decoded.Error == nil || decoded.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found, got %d %+v", resp.StatusCode, decoded.Error)
	}
}

func TestStatsOverRPC(t *testing.T) {
	_, ts := newTestServer(t)
	resp, decoded := call(t, ts, "", "sale_stats")
	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		t.Fatalf("stats failed: %d %+v", resp.StatusCode, decoded.Error)
	}
	result, ok := decoded.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result shape %T", decoded.Result)
	}
	if result["active"] != true {
		t.Fatalf("expected an active sale, got %+v", result)
	}
	if result["available"] != fmt.Sprintf("%d", 1_000_000) {
		t.Fatalf("expected available inventory, got %+v", result)
	}
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
