package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"salegate/crypto"
)

func testAddr(fill byte) string {
	raw := make([]byte, crypto.AddressLength)
	for i := range raw {
		raw[i] = fill
	}
	return crypto.MustNewAddress(crypto.SalePrefix, raw).String()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func validConfigTOML() string {
	return fmt.Sprintf(`
RPCAddress = ":9999"
AdminToken = "test-token"
DataDir = "/tmp/saled-test"
Engine = %q

[sale]
Price = "2e18"
MinPurchase = "1e18"
MaxPurchase = "1e22"
DailyCap = "1e23"
PriceCooldownSeconds = 3600
Treasury = %q
Admin = %q

[security]
RateLimitEnabled = true
MinIntervalSeconds = 60
MaxPurchasesPerSlot = 2
BreakerEnabled = true
BreakerThreshold = "1e23"
BreakerWindowSeconds = 3600

[roles]
ROLE_SALE_OPERATIONS = [%q]

[genesis]
AssetSupply = "1e24"
`, testAddr(0x0E), testAddr(0x02), testAddr(0x03), testAddr(0x05))
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfigTOML()))
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if cfg.RPCAddress != ":9999" {
		t.Fatalf("unexpected RPC address %q", cfg.RPCAddress)
	}
	if cfg.AdminToken != "test-token" {
		t.Fatalf("unexpected admin token %q", cfg.AdminToken)
	}
	if len(cfg.Roles["ROLE_SALE_OPERATIONS"]) != 1 {
		t.Fatalf("roles not decoded: %+v", cfg.Roles)
	}
	if cfg.Genesis.AssetSupply != "1e24" {
		t.Fatalf("genesis not decoded: %+v", cfg.Genesis)
	}
	params, err := cfg.Sale.Parameters()
	if err != nil {
		t.Fatal(err)
	}
	if params.Price.String() != "2000000000000000000" {
		t.Fatalf("unexpected price %s", params.Price)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	body := fmt.Sprintf(`
AdminToken = "tok"
Engine = %q

[sale]
Price = "2e18"
MinPurchase = "1"
MaxPurchase = "1e22"
DailyCap = "1e23"
Treasury = %q
Admin = %q
`, testAddr(0x0E), testAddr(0x02), testAddr(0x03))
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RPCAddress != ":8645" {
		t.Fatalf("expected default RPC address, got %q", cfg.RPCAddress)
	}
	if cfg.DataDir != "./saled-data" {
		t.Fatalf("expected default data dir, got %q", cfg.DataDir)
	}
	if cfg.RequestsPerMinute != 600 || cfg.RequestBurst != 20 {
		t.Fatalf("expected default rate limits, got %v/%v", cfg.RequestsPerMinute, cfg.RequestBurst)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	body := validConfigTOML() + "\nUnknownSetting = true\n"
	_, err := Load(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "unknown keys") {
		t.Fatalf("expected unknown-key rejection, got %v", err)
	}
}

func TestLoadRequiresAdminToken(t *testing.T) {
	body := strings.Replace(validConfigTOML(), `AdminToken = "test-token"`, "", 1)
	_, err := Load(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "AdminToken") {
		t.Fatalf("expected AdminToken requirement, got %v", err)
	}
}

func TestLoadRequiresEngineAddress(t *testing.T) {
	body := strings.Replace(validConfigTOML(), fmt.Sprintf("Engine = %q", testAddr(0x0E)), "", 1)
	_, err := Load(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "Engine") {
		t.Fatalf("expected Engine requirement, got %v", err)
	}
}

func TestLoadValidatesSaleSection(t *testing.T) {
	body := strings.Replace(validConfigTOML(), `Price = "2e18"`, `Price = "1"`, 1)
	_, err := Load(writeConfig(t, body))
	if err == nil {
		t.Fatal("price below the global floor must fail validation")
	}
}
