package backtest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// OrderSide is the direction of an order request.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderStatus mirrors a live exchange's possible outcomes; the simulated
// executor only ever produces FILLED or REJECTED.
type OrderStatus string

const (
	StatusFilled         OrderStatus = "FILLED"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusRejected       OrderStatus = "REJECTED"
	StatusPending        OrderStatus = "PENDING"
)

// OrderRequest is the Executor port's input shape.
type OrderRequest struct {
	ClientOrderID  string
	Symbol         string
	Side           OrderSide
	Type           OrderType
	AmountUSD      float64
	IsEntry        bool
	TradeDirection PositionState
}

// OrderResult is the Executor port's output shape.
type OrderResult struct {
	OrderID        string
	ClientOrderID  string
	Status         OrderStatus
	FilledAmount   float64
	AvgPrice       float64
	TotalValueUSD  float64
	FeeUSD         float64
	SlippageUSD    float64
	Timestamp      int64
	RejectReason   string
}

// Position is the executor's current asset-denominated holding.
type Position struct {
	Direction  PositionState
	EntryPrice float64
	Size       float64
	SizeUSD    float64
	EntryTime  int64
}

// Executor is C6's port. Every call is synchronous in the backtest;
// context.Context is threaded through future-live-
// implementation note, not because the simulation ever suspends.
type Executor interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	GetPosition(symbol string) (*Position, bool)
	GetCurrentPrice(symbol string) float64
	GetBalance() float64
	CancelOrder(id string) bool
	GetOpenOrders(symbol string) []OrderResult
	SetCurrentBar(barIndex int, ts int64)
	SetCurrentPrice(price float64)
}

// SimExecutor is the only Executor implementation: a single-symbol,
// fee/slippage-aware simulated fill engine.
type SimExecutor struct {
	symbol      string
	feeBps      float64
	slippageBps float64

	capitalUSD      float64
	position        *Position
	currentPrice    float64
	currentBarIndex int
	currentTS       int64

	swapSeq int
	onSwap  func(SwapEvent)
}

// NewSimExecutor seeds starting capital; onSwap receives one SwapEvent per
// fill (wired to the event log by the runner).
func NewSimExecutor(symbol string, startingCapitalUSD, feeBps, slippageBps float64, onSwap func(SwapEvent)) *SimExecutor {
	return &SimExecutor{
		symbol:      symbol,
		feeBps:      feeBps,
		slippageBps: slippageBps,
		capitalUSD:  startingCapitalUSD,
		onSwap:      onSwap,
	}
}

// Reset restores capital and clears any open position, for run-to-run reuse.
func (e *SimExecutor) Reset(startingCapitalUSD float64) {
	e.capitalUSD = startingCapitalUSD
	e.position = nil
	e.currentPrice = 0
	e.currentBarIndex = 0
	e.currentTS = 0
	e.swapSeq = 0
}

func (e *SimExecutor) SetCurrentBar(barIndex int, ts int64) {
	e.currentBarIndex = barIndex
	e.currentTS = ts
}

func (e *SimExecutor) SetCurrentPrice(price float64) { e.currentPrice = price }

func (e *SimExecutor) GetCurrentPrice(symbol string) float64 { return e.currentPrice }

func (e *SimExecutor) GetPosition(symbol string) (*Position, bool) {
	if e.position == nil {
		return nil, false
	}
	p := *e.position
	return &p, true
}

// GetBalance returns the mark-to-market balance:
// capitalUSD + sign*size*currentPrice, sign=+1 LONG, -1 SHORT.
func (e *SimExecutor) GetBalance() float64 {
	if e.position == nil {
		return e.capitalUSD
	}
	sign := 1.0
	if e.position.Direction == StateShort {
		sign = -1.0
	}
	return e.capitalUSD + sign*e.position.Size*e.currentPrice
}

func (e *SimExecutor) CancelOrder(id string) bool           { return false }
func (e *SimExecutor) GetOpenOrders(symbol string) []OrderResult { return nil }

// PlaceOrder fills a market order synchronously.
func (e *SimExecutor) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	price := e.currentPrice
	slip := e.slippageBps / 10000
	var fillPrice float64
	switch req.Side {
	case SideBuy:
		fillPrice = price * (1 + slip)
	case SideSell:
		fillPrice = price * (1 - slip)
	default:
		return OrderResult{Status: StatusRejected, RejectReason: "unknown side"}, fmt.Errorf("unknown order side %q", req.Side)
	}

	amountUSD := req.AmountUSD
	feeRate := e.feeBps / 10000

	if req.Side == SideBuy {
		maxAffordable := e.capitalUSD / (1 + feeRate)
		if amountUSD > maxAffordable {
			// InsufficientCapital: auto-reduce, absorbed locally.
			amountUSD = maxAffordable
		}
	}

	feeUSD := amountUSD * feeRate
	assetAmount := amountUSD / fillPrice

	e.applyFill(req, assetAmount, fillPrice, feeUSD)

	slippageUSD := assetAmount * (fillPrice - price)
	if req.Side == SideSell {
		slippageUSD = -slippageUSD
	}

	e.swapSeq++
	if e.onSwap != nil {
		e.onSwap(e.buildSwap(req, assetAmount, fillPrice, feeUSD, slippageUSD))
	}

	return OrderResult{
		OrderID:       uuid.NewString(),
		ClientOrderID: req.ClientOrderID,
		Status:        StatusFilled,
		FilledAmount:  assetAmount,
		AvgPrice:      fillPrice,
		TotalValueUSD: amountUSD,
		FeeUSD:        feeUSD,
		SlippageUSD:   slippageUSD,
		Timestamp:     e.currentTS,
	}, nil
}

func (e *SimExecutor) applyFill(req OrderRequest, assetAmount, fillPrice, feeUSD float64) {
	amountUSD := assetAmount * fillPrice

	switch {
	case req.Side == SideBuy && (e.position == nil || e.position.Direction == StateLong):
		// LONG entry/add.
		e.capitalUSD -= amountUSD + feeUSD
		if e.position == nil {
			e.position = &Position{Direction: StateLong, EntryPrice: fillPrice, Size: assetAmount, SizeUSD: amountUSD, EntryTime: e.currentTS}
		} else {
			totalSize := e.position.Size + assetAmount
			e.position.EntryPrice = (e.position.EntryPrice*e.position.Size + fillPrice*assetAmount) / totalSize
			e.position.Size = totalSize
			e.position.SizeUSD += amountUSD
		}

	case req.Side == SideSell && e.position != nil && e.position.Direction == StateLong:
		// LONG exit.
		e.capitalUSD += amountUSD - feeUSD
		e.position.Size -= assetAmount
		e.position.SizeUSD -= amountUSD
		if e.position.Size <= 1e-12 {
			e.position = nil
		}

	case req.Side == SideSell && (e.position == nil || e.position.Direction == StateShort):
		// SHORT entry/add: proceeds minus fee increase capital.
		e.capitalUSD += amountUSD - feeUSD
		if e.position == nil {
			e.position = &Position{Direction: StateShort, EntryPrice: fillPrice, Size: assetAmount, SizeUSD: amountUSD, EntryTime: e.currentTS}
		} else {
			totalSize := e.position.Size + assetAmount
			e.position.EntryPrice = (e.position.EntryPrice*e.position.Size + fillPrice*assetAmount) / totalSize
			e.position.Size = totalSize
			e.position.SizeUSD += amountUSD
		}

	case req.Side == SideBuy && e.position != nil && e.position.Direction == StateShort:
		// SHORT exit (buy back): costs capital.
		e.capitalUSD -= amountUSD + feeUSD
		e.position.Size -= assetAmount
		e.position.SizeUSD -= amountUSD
		if e.position.Size <= 1e-12 {
			e.position = nil
		}
	}
}

func (e *SimExecutor) buildSwap(req OrderRequest, assetAmount, fillPrice, feeUSD, slippageUSD float64) SwapEvent {
	fromAsset, toAsset := "USD", e.symbol
	fromAmount, toAmount := assetAmount*fillPrice, assetAmount
	if req.Side == SideSell {
		fromAsset, toAsset = e.symbol, "USD"
		fromAmount, toAmount = assetAmount, assetAmount*fillPrice
	}

	return SwapEvent{
		ID:             fmt.Sprintf("swap-%d", e.swapSeq),
		Timestamp:      e.currentTS,
		BarIndex:       e.currentBarIndex,
		FromAsset:      fromAsset,
		ToAsset:        toAsset,
		FromAmount:     fromAmount,
		ToAmount:       toAmount,
		Price:          fillPrice,
		FeeUSD:         feeUSD,
		SlippageUSD:    slippageUSD,
		IsEntry:        req.IsEntry,
		TradeDirection: req.TradeDirection,
	}
}
