package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"salegate/config"
	"salegate/core/events"
	"salegate/core/types"
	"salegate/crypto"
	"salegate/native/bank"
	"salegate/native/sale"
	"salegate/observability/logging"
	"salegate/rpc"
	"salegate/storage"
)

const envVar = "SALEGATE_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	memStore := flag.Bool("mem", false, "DEV ONLY: use an in-memory store instead of LevelDB")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envVar))
	logger := logging.Setup("saled", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	var db storage.Database
	if *memStore {
		db = storage.NewMemDB()
	} else {
		leveldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("Failed to open database", slog.Any("error", err))
			os.Exit(1)
		}
		db = leveldb
	}
	defer db.Close()

	engineAddr, err := crypto.DecodeAddress(cfg.Engine)
	if err != nil {
		logger.Error("Failed to decode engine address", slog.Any("error", err))
		os.Exit(1)
	}

	saleParams, err := cfg.Sale.Parameters()
	if err != nil {
		logger.Error("Failed to parse sale config", slog.Any("error", err))
		os.Exit(1)
	}
	securityParams, err := cfg.Security.Parameters()
	if err != nil {
		logger.Error("Failed to parse security config", slog.Any("error", err))
		os.Exit(1)
	}

	roles, err := sale.NewStaticRoles(cfg.Roles)
	if err != nil {
		logger.Error("Failed to build role grants", slog.Any("error", err))
		os.Exit(1)
	}

	assetBook := bank.NewAccountBook("ASSET")
	paymentBook := bank.NewAccountBook("PAY")
	if err := seedLedgers(assetBook, paymentBook, engineAddr.Array(), cfg.Genesis); err != nil {
		logger.Error("Failed to seed genesis balances", slog.Any("error", err))
		os.Exit(1)
	}

	ledger := sale.NewLedger(storage.NewKVStore(db))
	engine, err := sale.NewEngine(ledger, assetBook, paymentBook, roles, engineAddr.Array(), saleParams, securityParams)
	if err != nil {
		logger.Error("Failed to create sale engine", slog.Any("error", err))
		os.Exit(1)
	}
	engine.SetEmitter(&logEmitter{logger: logger})

	server := rpc.NewServer(engine, cfg.AdminToken, cfg.RequestsPerMinute, cfg.RequestBurst, logger)

	rpcErrCh := make(chan error, 1)
	go func() {
		rpcErrCh <- server.Start(cfg.RPCAddress)
		close(rpcErrCh)
	}()

	if err := waitForRPCStartup(cfg.RPCAddress, rpcErrCh, 5*time.Second); err != nil {
		logger.Error("RPC server failed to start", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("sale daemon initialised and running", slog.String("addr", cfg.RPCAddress))
	if err, ok := <-rpcErrCh; ok && err != nil {
		logger.Error("RPC server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}

// seedLedgers mints the configured genesis balances. The books are in-process
// so each boot starts from the configured supply.
func seedLedgers(asset, payment *bank.AccountBook, engineAddr [20]byte, genesis config.Genesis) error {
	supply := strings.TrimSpace(genesis.AssetSupply)
	if supply != "" {
		amount, err := sale.ParseAmount(supply)
		if err != nil {
			return fmt.Errorf("genesis asset supply: %w", err)
		}
		if err := asset.Mint(engineAddr, amount); err != nil {
			return fmt.Errorf("genesis asset supply: %w", err)
		}
	}
	for account, raw := range genesis.PaymentFaucet {
		decoded, err := crypto.DecodeAddress(account)
		if err != nil {
			return fmt.Errorf("genesis faucet %q: %w", account, err)
		}
		amount, err := sale.ParseAmount(raw)
		if err != nil {
			return fmt.Errorf("genesis faucet %q: %w", account, err)
		}
		if err := payment.Mint(decoded.Array(), amount); err != nil {
			return fmt.Errorf("genesis faucet %q: %w", account, err)
		}
	}
	return nil
}

// logEmitter mirrors engine events onto the structured log.
type logEmitter struct {
	logger *slog.Logger
}

func (l *logEmitter) Emit(evt events.Event) {
	if l == nil || l.logger == nil || evt == nil {
		return
	}
	attrs := make([]any, 0, 8)
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := carrier.Event(); payload != nil {
			for key, value := range payload.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	l.logger.Info(evt.EventType(), attrs...)
}

func waitForRPCStartup(addr string, errCh <-chan error, timeout time.Duration) error {
	dialAddr := dialAddressFor(addr)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err, ok := <-errCh:
			if !ok {
				return fmt.Errorf("RPC server terminated before startup confirmation")
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("RPC server exited before startup confirmation")
		default:
		}

		conn, err := net.DialTimeout("tcp", dialAddr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case err, ok := <-errCh:
			if !ok {
				return fmt.Errorf("RPC server terminated before startup confirmation")
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("RPC server exited before startup confirmation")
		case <-ticker.C:
		case <-deadline.C:
			return fmt.Errorf("timed out waiting for RPC server to start on %s", addr)
		}
	}
}

func dialAddressFor(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
