package rpc

import (
	"encoding/hex"
	"math/big"
	"time"

	"salegate/crypto"
	"salegate/native/sale"
	"salegate/observability"
)

type purchaseParams struct {
	Caller   string `json:"caller"`
	Quantity string `json:"quantity"`
	Payment  string `json:"payment"`
}

type purchaseResult struct {
	ID       string `json:"id"`
	Quantity string `json:"quantity"`
	Paid     string `json:"paid"`
	Refund   string `json:"refund"`
	Slot     uint64 `json:"slot"`
	Time     int64  `json:"timestamp"`
}

func (s *Server) handlePurchase(req *RPCRequest) (interface{}, *RPCError) {
	var params purchaseParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam(params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	quantity, rpcErr := parseAmountParam(params.Quantity)
	if rpcErr != nil {
		return nil, rpcErr
	}
	payment, rpcErr := parseAmountParam(params.Payment)
	if rpcErr != nil {
		return nil, rpcErr
	}
	metrics := observability.Metrics()
	started := time.Now()
	receipt, err := s.engine.Purchase(caller, quantity, payment)
	if err != nil {
		if reason := sale.Reason(err); reason != sale.ReasonNone {
			metrics.Rejections.WithLabelValues(string(reason)).Inc()
			if reason == sale.ReasonBreakerTripped {
				metrics.BreakerTrips.Inc()
			}
		}
		return nil, engineError(err)
	}
	metrics.SettleTime.Observe(time.Since(started).Seconds())
	metrics.Purchases.Inc()
	return purchaseResult{
		ID:       hex.EncodeToString(receipt.ID[:]),
		Quantity: receipt.Quantity.String(),
		Paid:     receipt.Paid.String(),
		Refund:   receipt.Refund.String(),
		Slot:     receipt.Slot,
		Time:     receipt.Timestamp,
	}, nil
}

func (s *Server) handleQuote(req *RPCRequest, quote func(*big.Int) (*big.Int, error)) (interface{}, *RPCError) {
	var raw string
	if rpcErr := decodeParams(req, &raw); rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmountParam(raw)
	if rpcErr != nil {
		return nil, rpcErr
	}
	result, err := quote(amount)
	if err != nil {
		return nil, engineError(err)
	}
	return result.String(), nil
}

func (s *Server) handleAvailable(req *RPCRequest) (interface{}, *RPCError) {
	available, err := s.engine.AvailableInventory()
	if err != nil {
		return nil, engineError(err)
	}
	return available.String(), nil
}

type statsResult struct {
	Price          string `json:"price"`
	Active         bool   `json:"active"`
	Paused         bool   `json:"paused"`
	TotalSold      string `json:"totalSold"`
	Available      string `json:"available"`
	WindowVolume   string `json:"windowVolume"`
	WindowStart    int64  `json:"windowStart"`
	BreakerTripped bool   `json:"breakerTripped"`
	DailyVolume    string `json:"dailyVolume"`
	DailyDay       uint64 `json:"dailyDay"`
}

func (s *Server) handleStats(req *RPCRequest) (interface{}, *RPCError) {
	stats, err := s.engine.SaleStats()
	if err != nil {
		return nil, engineError(err)
	}
	return statsResult{
		Price:          stats.Price.String(),
		Active:         stats.Active,
		Paused:         stats.Paused,
		TotalSold:      stats.TotalSold.String(),
		Available:      stats.Available.String(),
		WindowVolume:   stats.WindowVolume.String(),
		WindowStart:    stats.WindowStart,
		BreakerTripped: stats.BreakerTripped,
		DailyVolume:    stats.DailyVolume.String(),
		DailyDay:       stats.DailyDay,
	}, nil
}

type identityStatsResult struct {
	Address          string `json:"address"`
	LastPurchaseTime int64  `json:"lastPurchaseTime"`
	LastPurchaseSlot uint64 `json:"lastPurchaseSlot"`
	Purchased        string `json:"purchased"`
	Spent            string `json:"spent"`
	Denylisted       bool   `json:"denylisted"`
	DenyReason       string `json:"denyReason,omitempty"`
}

func (s *Server) handleIdentityStats(req *RPCRequest) (interface{}, *RPCError) {
	var raw string
	if rpcErr := decodeParams(req, &raw); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam(raw)
	if rpcErr != nil {
		return nil, rpcErr
	}
	stats, err := s.engine.IdentityStats(addr)
	if err != nil {
		return nil, engineError(err)
	}
	return identityStatsResult{
		Address:          crypto.FormatAddress(addr),
		LastPurchaseTime: stats.LastPurchaseTime,
		LastPurchaseSlot: stats.LastPurchaseSlot,
		Purchased:        stats.Purchased.String(),
		Spent:            stats.Spent.String(),
		Denylisted:       stats.Denylisted,
		DenyReason:       stats.DenyReason,
	}, nil
}

type canPurchaseParams struct {
	Caller   string `json:"caller"`
	Quantity string `json:"quantity"`
}

type canPurchaseResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func (s *Server) handleCanPurchase(req *RPCRequest) (interface{}, *RPCError) {
	var params canPurchaseParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam(params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	quantity, rpcErr := parseAmountParam(params.Quantity)
	if rpcErr != nil {
		return nil, rpcErr
	}
	allowed, reason, err := s.engine.CanPurchase(caller, quantity)
	if err != nil {
		return nil, engineError(err)
	}
	return canPurchaseResult{Allowed: allowed, Reason: string(reason)}, nil
}

type adminParams struct {
	Caller string `json:"caller"`
	Value  string `json:"value,omitempty"`
	Flag   bool   `json:"flag,omitempty"`
	Target string `json:"target,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) adminCall(req *RPCRequest, op string, call func(adminParams, [20]byte) error) (interface{}, *RPCError) {
	var params adminParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam(params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	metrics := observability.Metrics()
	if err := call(params, caller); err != nil {
		metrics.AdminOps.WithLabelValues(op, "error").Inc()
		return nil, engineError(err)
	}
	metrics.AdminOps.WithLabelValues(op, "ok").Inc()
	return "ok", nil
}

func (s *Server) handleUpdatePrice(req *RPCRequest) (interface{}, *RPCError) {
	return s.adminCall(req, "updatePrice", func(params adminParams, caller [20]byte) error {
		price, err := sale.ParseAmount(params.Value)
		if err != nil {
			return err
		}
		return s.engine.UpdatePrice(caller, price)
	})
}

func (s *Server) handleSetActive(req *RPCRequest) (interface{}, *RPCError) {
	return s.adminCall(req, "setActive", func(params adminParams, caller [20]byte) error {
		return s.engine.SetActive(caller, params.Flag)
	})
}

func (s *Server) handleDeposit(req *RPCRequest) (interface{}, *RPCError) {
	return s.adminCall(req, "deposit", func(params adminParams, caller [20]byte) error {
		amount, err := sale.ParseAmount(params.Value)
		if err != nil {
			return err
		}
		return s.engine.DepositInventory(caller, amount)
	})
}

func (s *Server) handleDenylistAdd(req *RPCRequest) (interface{}, *RPCError) {
	return s.adminCall(req, "denylistAdd", func(params adminParams, caller [20]byte) error {
		target, err := crypto.DecodeAddress(params.Target)
		if err != nil {
			return err
		}
		return s.engine.DenylistAdd(caller, target.Array(), params.Reason)
	})
}

func (s *Server) handleDenylistRemove(req *RPCRequest) (interface{}, *RPCError) {
	return s.adminCall(req, "denylistRemove", func(params adminParams, caller [20]byte) error {
		target, err := crypto.DecodeAddress(params.Target)
		if err != nil {
			return err
		}
		return s.engine.DenylistRemove(caller, target.Array())
	})
}

func (s *Server) handlePause(req *RPCRequest) (interface{}, *RPCError) {
	return s.adminCall(req, "pause", func(params adminParams, caller [20]byte) error {
		return s.engine.Pause(caller)
	})
}

func (s *Server) handleUnpause(req *RPCRequest) (interface{}, *RPCError) {
	return s.adminCall(req, "unpause", func(params adminParams, caller [20]byte) error {
		return s.engine.Unpause(caller)
	})
}

func (s *Server) handleRecover(req *RPCRequest) (interface{}, *RPCError) {
	return s.adminCall(req, "recover", func(params adminParams, caller [20]byte) error {
		amount, err := sale.ParseAmount(params.Value)
		if err != nil {
			return err
		}
		return s.engine.EmergencyRecover(caller, sale.RecoverTarget(params.Target), amount)
	})
}

func (s *Server) handleResetBreaker(req *RPCRequest) (interface{}, *RPCError) {
	return s.adminCall(req, "resetBreaker", func(params adminParams, caller [20]byte) error {
		return s.engine.ResetBreaker(caller)
	})
}
