package main

// Escenarios YAML: cuentas, fondos y pasos que se ejecutan contra el engine.
//
// Cada paso lleva un `kind` y unos `args` cuyo tipo depende del kind: primero
// se decodifica el kind y después los args al comando que corresponde.
//
//   start: 2026-03-01T12:00:00Z
//   accounts:
//     - {name: alice, address: "0x...", fund: 1000000000000}
//   steps:
//     - kind: open_position
//       as: alice
//       args: {tick_lower: -120, tick_upper: 120, liquidity: 1000000, auto_rebalance: true}
//     - kind: pause
//       as: alice
//       expect_error: Unauthorized

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/rangekeeper/internal/adapters/amm"
	"github.com/alejandrodnm/rangekeeper/internal/analyzer"
	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/alejandrodnm/rangekeeper/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Script es un escenario completo.
type Script struct {
	Start    time.Time `yaml:"start"`
	Accounts []Account `yaml:"accounts"`
	Steps    []Step    `yaml:"steps"`
}

// Account es una cuenta con nombre, fondeada en ambas monedas del pool.
type Account struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Fund    int64  `yaml:"fund"`
}

// Step es un paso del escenario. Args queda sin decodificar hasta conocer Kind.
type Step struct {
	Kind        string    `yaml:"kind"`
	As          string    `yaml:"as"`
	ExpectError string    `yaml:"expect_error"` // código de error de dominio o fragmento del mensaje
	Args        yaml.Node `yaml:"args"`
}

// Kinds propios del script, además de los comandos del engine.
const (
	stepSwap             = "swap"
	stepAdvance          = "advance"
	stepPostSignal       = "post_signal"
	stepPostFee          = "post_fee"
	stepAnalyze          = "analyze"
	stepSetCooldown      = "set_cooldown"
	stepSetMinConfidence = "set_min_confidence"
	stepSetSignalTTL     = "set_signal_ttl"
	stepSetSignalWriter  = "set_signal_writer"
	stepPause            = "pause"
	stepUnpause          = "unpause"
	stepClearSignals     = "clear_signals"
	stepReport           = "report"
)

type swapArgs struct {
	ZeroForOne     bool   `yaml:"zero_for_one"`
	AmountIn       int64  `yaml:"amount_in"`
	PriceLimitTick *int32 `yaml:"price_limit_tick"`
}

type durationArgs struct {
	Duration string `yaml:"duration"` // formato time.ParseDuration: "90m", "1h"
}

type signalArgs struct {
	PositionID domain.PositionID `yaml:"position_id"`
	TickLower  int32             `yaml:"tick_lower"`
	TickUpper  int32             `yaml:"tick_upper"`
	Confidence uint8             `yaml:"confidence"`
	AgeSeconds int               `yaml:"age_seconds"`
}

type feeArgs struct {
	Fee        uint32 `yaml:"fee"`
	Confidence uint8  `yaml:"confidence"`
}

type confidenceArgs struct {
	Confidence uint8 `yaml:"confidence"`
}

type writerArgs struct {
	Writer string `yaml:"writer"` // nombre de cuenta o dirección
}

type claimSurplusArgs struct {
	PositionID domain.PositionID `yaml:"position_id"`
	Currency   string            `yaml:"currency"` // token0 | token1
}

// loadScript lee y decodifica un escenario.
func loadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loadScript: read %q: %w", path, err)
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("loadScript: parse YAML: %w", err)
	}
	if s.Start.IsZero() {
		s.Start = time.Now().UTC().Truncate(time.Second)
	}
	return &s, nil
}

func decodeArgs(node *yaml.Node, out any) error {
	if node.IsZero() {
		return nil
	}
	if err := node.Decode(out); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}

func decodeAs[T domain.Command](node *yaml.Node) (domain.Command, error) {
	var c T
	if err := decodeArgs(node, &c); err != nil {
		return nil, err
	}
	return c, nil
}

// decodeCommand convierte los args de un comando del engine en su tipo concreto.
// ok=false si kind no es un comando del engine.
func decodeCommand(kind string, node *yaml.Node, key domain.PoolKey) (cmd domain.Command, ok bool, err error) {
	switch domain.CommandKind(kind) {
	case domain.CmdOpenPosition:
		cmd, err = decodeAs[domain.OpenPositionCommand](node)
	case domain.CmdRemovePosition:
		cmd, err = decodeAs[domain.RemovePositionCommand](node)
	case domain.CmdRebalance:
		cmd, err = decodeAs[domain.RebalanceCommand](node)
	case domain.CmdCancelOrder:
		cmd, err = decodeAs[domain.CancelOrderCommand](node)
	case domain.CmdBulkCancel:
		cmd, err = decodeAs[domain.BulkCancelCommand](node)
	case domain.CmdClaimOrder:
		cmd, err = decodeAs[domain.ClaimOrderCommand](node)
	case domain.CmdPlaceOrder:
		var c domain.PlaceOrderCommand
		err = decodeArgs(node, &c)
		c.Pool = key
		cmd = c
	case domain.CmdClaimSurplus:
		var a claimSurplusArgs
		if err = decodeArgs(node, &a); err != nil {
			break
		}
		var currency common.Address
		currency, err = poolCurrency(key, a.Currency)
		cmd = domain.ClaimSurplusCommand{PositionID: a.PositionID, Currency: currency}
	default:
		return nil, false, nil
	}
	return cmd, true, err
}

func poolCurrency(key domain.PoolKey, name string) (common.Address, error) {
	switch strings.ToLower(name) {
	case "token0", "0", "currency0":
		return key.Currency0, nil
	case "token1", "1", "currency1":
		return key.Currency1, nil
	}
	if common.IsHexAddress(name) {
		return common.HexToAddress(name), nil
	}
	return common.Address{}, fmt.Errorf("unknown currency %q: %w", name, domain.ErrInvalidParameter)
}

// scriptRunner ejecuta los pasos contra un runtime.
type scriptRunner struct {
	rt       *runtime
	report   func(domain.EngineState)
	accounts map[string]common.Address
}

func newScriptRunner(rt *runtime, report func(domain.EngineState)) *scriptRunner {
	return &scriptRunner{
		rt:     rt,
		report: report,
		accounts: map[string]common.Address{
			"owner":  rt.cfg.Owner(),
			"writer": rt.cfg.SignalWriter(),
		},
	}
}

// Run fondea las cuentas y ejecuta todos los pasos. Devuelve cuántos pasos
// no dieron el resultado esperado. Con strict, el primero de ellos aborta.
func (r *scriptRunner) Run(ctx context.Context, s *Script, strict bool) (int, error) {
	key := r.rt.pool.Key()
	for _, acct := range s.Accounts {
		if !common.IsHexAddress(acct.Address) {
			return 0, fmt.Errorf("script: account %q: invalid address %q", acct.Name, acct.Address)
		}
		addr := common.HexToAddress(acct.Address)
		r.accounts[acct.Name] = addr
		if acct.Fund <= 0 {
			continue
		}
		for _, c := range []common.Address{key.Currency0, key.Currency1} {
			if err := r.rt.pool.Mint(addr, c, acct.Fund); err != nil {
				return 0, fmt.Errorf("script: fund %q: %w", acct.Name, err)
			}
		}
	}

	failed := 0
	for i, st := range s.Steps {
		if err := ctx.Err(); err != nil {
			return failed, fmt.Errorf("script: step %d: %w", i+1, err)
		}
		err := r.step(ctx, st)
		if msg := mismatch(st.ExpectError, err); msg != "" {
			failed++
			slog.Warn("script: unexpected result",
				"step", i+1,
				"kind", st.Kind,
				"as", st.As,
				"expected", st.ExpectError,
				"err", err,
				"detail", msg,
			)
			if strict {
				return failed, fmt.Errorf("script: step %d (%s): %s", i+1, st.Kind, msg)
			}
			continue
		}
		slog.Debug("script: step ok", "step", i+1, "kind", st.Kind, "as", st.As, "expected_error", st.ExpectError)
	}
	return failed, nil
}

// mismatch devuelve "" si err es lo que el paso esperaba.
func mismatch(expect string, err error) string {
	switch {
	case expect == "" && err == nil:
		return ""
	case expect == "":
		return "unexpected error"
	case err == nil:
		return "expected error " + expect + ", got success"
	}
	var de *domain.Error
	if errors.As(err, &de) && de.Code == expect {
		return ""
	}
	if strings.Contains(err.Error(), expect) {
		return ""
	}
	return "wrong error"
}

func (r *scriptRunner) resolve(name string) (common.Address, error) {
	if addr, ok := r.accounts[name]; ok {
		return addr, nil
	}
	if common.IsHexAddress(name) {
		return common.HexToAddress(name), nil
	}
	return common.Address{}, fmt.Errorf("unknown account %q", name)
}

func (r *scriptRunner) step(ctx context.Context, st Step) error {
	eng := r.rt.eng

	as := st.As
	if as == "" {
		switch st.Kind {
		case stepPostSignal, stepPostFee, stepAnalyze:
			as = "writer"
		default:
			as = "owner"
		}
	}
	caller, err := r.resolve(as)
	if err != nil {
		return err
	}

	cmd, isCommand, err := decodeCommand(st.Kind, &st.Args, eng.Key())
	if err != nil {
		return err
	}
	if isCommand {
		res, err := eng.Dispatch(ctx, caller, cmd)
		if err == nil {
			slog.Info("script: command",
				"kind", res.Kind,
				"as", as,
				"position", res.Position,
				"order", res.Order,
				"amount", res.Amount,
			)
		}
		return err
	}

	switch st.Kind {
	case stepSwap:
		var a swapArgs
		if err := decodeArgs(&st.Args, &a); err != nil {
			return err
		}
		p := ports.SwapParams{ZeroForOne: a.ZeroForOne, AmountIn: a.AmountIn}
		if a.PriceLimitTick != nil {
			p.SqrtPriceLimit = amm.SqrtPriceAtTick(*a.PriceLimitTick)
		}
		d, err := r.rt.pool.Swap(ctx, caller, p)
		if err != nil {
			return err
		}
		slog.Info("script: swap", "as", as, "amount0", d.Amount0, "amount1", d.Amount1, "tick", r.rt.pool.Slot0().Tick)
		return nil

	case stepAdvance:
		d, err := parseDuration(&st.Args)
		if err != nil {
			return err
		}
		r.rt.clk.Advance(d)
		return nil

	case stepPostSignal:
		var a signalArgs
		if err := decodeArgs(&st.Args, &a); err != nil {
			return err
		}
		return eng.PostRebalanceSignal(ctx, caller, domain.RebalanceSignal{
			PositionID: a.PositionID,
			TickLower:  a.TickLower,
			TickUpper:  a.TickUpper,
			Confidence: a.Confidence,
			Timestamp:  r.rt.clk.Now().Add(-time.Duration(a.AgeSeconds) * time.Second),
		})

	case stepPostFee:
		var a feeArgs
		if err := decodeArgs(&st.Args, &a); err != nil {
			return err
		}
		return eng.PostFeeRecommendation(ctx, caller, domain.FeeRecommendation{
			Fee: a.Fee, Confidence: a.Confidence, Timestamp: r.rt.clk.Now(),
		})

	case stepAnalyze:
		rep, err := r.rt.bot.Cycle(ctx, eng)
		if errors.Is(err, analyzer.ErrRateLimited) {
			slog.Info("script: analyzer rate limited, batch dropped", "signals", len(rep.Batch.Signals))
			return nil
		}
		return err

	case stepSetCooldown:
		d, err := parseDuration(&st.Args)
		if err != nil {
			return err
		}
		return eng.SetCooldown(ctx, caller, d)

	case stepSetSignalTTL:
		d, err := parseDuration(&st.Args)
		if err != nil {
			return err
		}
		return eng.SetSignalTTL(ctx, caller, d)

	case stepSetMinConfidence:
		var a confidenceArgs
		if err := decodeArgs(&st.Args, &a); err != nil {
			return err
		}
		return eng.SetMinConfidence(ctx, caller, a.Confidence)

	case stepSetSignalWriter:
		var a writerArgs
		if err := decodeArgs(&st.Args, &a); err != nil {
			return err
		}
		w, err := r.resolve(a.Writer)
		if err != nil {
			return err
		}
		return eng.SetSignalWriter(ctx, caller, w)

	case stepPause:
		return eng.Pause(ctx, caller)

	case stepUnpause:
		return eng.Unpause(ctx, caller)

	case stepClearSignals:
		n, err := eng.ClearOldSignals(ctx)
		if err == nil {
			slog.Info("script: signals cleared", "removed", n)
		}
		return err

	case stepReport:
		if r.report != nil {
			r.report(eng.ExportState())
		}
		return nil
	}
	return fmt.Errorf("unknown step kind %q: %w", st.Kind, domain.ErrInvalidParameter)
}

func parseDuration(node *yaml.Node) (time.Duration, error) {
	var a durationArgs
	if err := decodeArgs(node, &a); err != nil {
		return 0, err
	}
	d, err := time.ParseDuration(a.Duration)
	if err != nil {
		return 0, fmt.Errorf("duration %q: %w", a.Duration, domain.ErrInvalidParameter)
	}
	return d, nil
}
