package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

// Console implementa ports.EventSink escribiendo una línea por evento.
type Console struct {
	out     io.Writer
	verbose bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(verbose bool) *Console {
	return &Console{out: os.Stdout, verbose: verbose}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, verbose bool) *Console {
	return &Console{out: w, verbose: verbose}
}

// Publish imprime los eventos de una operación confirmada. Sin verbose,
// los FEE_UPDATED y ORDER_TRAILED se resumen en un contador.
func (c *Console) Publish(_ context.Context, events []domain.Event) error {
	quiet := 0
	for _, ev := range events {
		if !c.verbose && (ev.Kind == domain.EventFeeUpdated || ev.Kind == domain.EventOrderTrailed) {
			quiet++
			continue
		}
		fmt.Fprintln(c.out, eventLine(ev))
	}
	if quiet > 0 {
		fmt.Fprintf(c.out, "  (+%d fee/trail updates, use -verbose)\n", quiet)
	}
	return nil
}

func eventLine(ev domain.Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %-19s", ev.At.Format("15:04:05"), ev.Kind)
	if ev.Position != 0 {
		fmt.Fprintf(&sb, " pos=%d", ev.Position)
	}
	if ev.Order != 0 {
		fmt.Fprintf(&sb, " order=%d", ev.Order)
	}
	if ev.Account != (common.Address{}) {
		fmt.Fprintf(&sb, " acct=%s", shortAddr(ev.Account))
	}
	switch ev.Kind {
	case domain.EventFeeUpdated:
		fmt.Fprintf(&sb, " fee %s -> %s", feePct(ev.OldFee), feePct(ev.NewFee))
	case domain.EventPositionOpened, domain.EventPositionRebalanced, domain.EventRebalanceRequested, domain.EventOrderTrailed:
		fmt.Fprintf(&sb, " range=[%d,%d]", ev.TickLower, ev.TickUpper)
	}
	if ev.Amount != 0 {
		fmt.Fprintf(&sb, " amount=%d", ev.Amount)
		if ev.Currency != (common.Address{}) {
			fmt.Fprintf(&sb, " %s", shortAddr(ev.Currency))
		}
	}
	if ev.Reason != "" {
		fmt.Fprintf(&sb, " (%s)", ev.Reason)
	}
	return sb.String()
}

// PrintReport imprime el estado del pool: stats, posiciones, órdenes, surplus y señales.
func (c *Console) PrintReport(st domain.EngineState) {
	fmt.Fprintf(c.out, "\n========================================================\n")
	fmt.Fprintf(c.out, "  POOL %s\n", shortHash(st.PoolID))
	fmt.Fprintf(c.out, "========================================================\n")
	fmt.Fprintf(c.out, "  Tick:         %d (price %s)\n", st.Stats.LastTick, tickPrice(st.Stats.LastTick))
	fmt.Fprintf(c.out, "  Fee:          %s\n", feePct(st.Stats.CurrentFee))
	fmt.Fprintf(c.out, "  Volume:       %d (%d trades)\n", st.Stats.Volume, st.Stats.Trades)
	fmt.Fprintf(c.out, "  Volatility:   %.2f ticks/trade\n", st.Stats.Volatility)
	fmt.Fprintf(c.out, "  Paused:       %t\n", st.Paused)
	fmt.Fprintf(c.out, "  Cooldown:     %s  min confidence: %d\n", st.Cooldown, st.MinConfidence)

	if len(st.Positions) > 0 {
		fmt.Fprintf(c.out, "\n  --- POSITIONS ---\n")
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("ID", "Owner", "Range", "Liquidity", "Auto", "In range", "Last rebalance")
		for _, p := range st.Positions {
			last := "-"
			if !p.LastRebalance.IsZero() {
				last = p.LastRebalance.Format("01-02 15:04")
			}
			tbl.Append(
				fmt.Sprintf("%d", p.ID),
				shortAddr(p.Owner),
				fmt.Sprintf("[%d,%d]", p.TickLower, p.TickUpper),
				fmt.Sprintf("%d", p.Liquidity),
				yesNo(p.AutoRebalance),
				yesNo(p.InRange(st.Stats.LastTick)),
				last,
			)
		}
		tbl.Render()
	}

	if len(st.Orders) > 0 {
		fmt.Fprintf(c.out, "\n  --- ORDERS ---\n")
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("ID", "Owner", "Kind", "Side", "Trigger", "In", "Min out", "Status", "Claim")
		for _, o := range st.Orders {
			side := "1->0"
			if o.ZeroForOne {
				side = "0->1"
			}
			claim := "-"
			if o.Executed {
				claim = fmt.Sprintf("%d", o.ClaimAmount)
				if o.Claimed {
					claim = "claimed"
				}
			}
			tbl.Append(
				fmt.Sprintf("%d", o.ID),
				shortAddr(o.Owner),
				o.Kind.String(),
				side,
				fmt.Sprintf("%d", o.TriggerTick),
				fmt.Sprintf("%d", o.AmountIn),
				fmt.Sprintf("%d", o.MinAmountOut),
				string(o.Status()),
				claim,
			)
		}
		tbl.Render()
	}

	if len(st.Surplus) > 0 {
		fmt.Fprintf(c.out, "\n  --- SURPLUS ---\n")
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Position", "Currency", "Amount")
		for _, sb := range st.Surplus {
			tbl.Append(fmt.Sprintf("%d", sb.Position), shortAddr(sb.Currency), fmt.Sprintf("%d", sb.Amount))
		}
		tbl.Render()
	}

	if len(st.Signals) > 0 {
		fmt.Fprintf(c.out, "\n  --- SIGNALS (%d stored) ---\n", len(st.Signals))
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Position", "Range", "Confidence", "Posted")
		for _, sig := range st.Signals {
			tbl.Append(
				fmt.Sprintf("%d", sig.PositionID),
				fmt.Sprintf("[%d,%d]", sig.TickLower, sig.TickUpper),
				fmt.Sprintf("%d", sig.Confidence),
				sig.Timestamp.Format("01-02 15:04:05"),
			)
		}
		tbl.Render()
	}

	if !st.FeeRec.Timestamp.IsZero() {
		fmt.Fprintf(c.out, "\n  Fee recommendation: %s (confidence %d, %s)\n",
			feePct(st.FeeRec.Fee), st.FeeRec.Confidence, st.FeeRec.Timestamp.Format("01-02 15:04:05"))
	}
	fmt.Fprintln(c.out)
}

// --- helpers ---

// feePct convierte un fee en unidades de 1e-6 a porcentaje: 3000 -> "0.30%".
func feePct(fee uint32) string {
	return decimal.NewFromInt(int64(fee)).Div(decimal.NewFromInt(10_000)).StringFixed(2) + "%"
}

// tickPrice es el precio de currency0 en currency1: 1.0001^tick.
func tickPrice(tick int32) string {
	return decimal.NewFromFloat(math.Pow(1.0001, float64(tick))).StringFixed(6)
}

func shortAddr(a common.Address) string {
	h := a.Hex()
	return h[:6] + ".." + h[len(h)-4:]
}

func shortHash(h common.Hash) string {
	s := h.Hex()
	return s[:10] + ".."
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
