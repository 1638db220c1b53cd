package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bookflow/models"
)

const (
	ansiClear = "\x1b[2J\x1b[H"
	ansiDim   = "\x1b[2m"
	ansiBold  = "\x1b[1m"
	ansiReset = "\x1b[0m"
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
)

// ANSIRenderer draws the merged book and signals as plain ANSI text on an
// io.Writer (stdout by default). It is the default collaborator behind the
// Renderer contract; structured logs stay on stderr.
type ANSIRenderer struct {
	out io.Writer
}

// NewANSIRenderer draws to stdout.
func NewANSIRenderer() *ANSIRenderer {
	return &ANSIRenderer{out: os.Stdout}
}

// NewANSIRendererTo draws to w.
func NewANSIRendererTo(w io.Writer) *ANSIRenderer {
	return &ANSIRenderer{out: w}
}

func (r *ANSIRenderer) Close() error { return nil }

// Draw writes one full frame. Disconnected venues render dimmed with their
// last known levels; absent values render placeholders.
func (r *ANSIRenderer) Draw(f Frame) error {
	var b strings.Builder
	b.WriteString(ansiClear)

	fmt.Fprintf(&b, "%sbookflow%s  %s / %s   %s\n\n",
		ansiBold, ansiReset, f.HL.Symbol, f.PDX.Symbol, f.At.Format(time.TimeOnly))

	r.statusLine(&b, f.HL)
	r.statusLine(&b, f.PDX)
	b.WriteString("\n")

	r.mergedTable(&b, f)
	b.WriteString("\n")
	r.signalPanel(&b, f)

	b.WriteString("\n" + ansiDim + "q to quit" + ansiReset + "\n")

	_, err := io.WriteString(r.out, b.String())
	return err
}

func (r *ANSIRenderer) statusLine(b *strings.Builder, book *models.OrderBook) {
	state := ansiGreen + "connected" + ansiReset
	if !book.Connected {
		state = ansiRed + "disconnected" + ansiReset
	}
	stale := ""
	if book.LastUpdateMS > 0 {
		age := time.Since(time.UnixMilli(book.LastUpdateMS)).Truncate(time.Millisecond)
		stale = fmt.Sprintf("  last update %s ago", age)
	}
	fmt.Fprintf(b, "%-12s %s  updates=%d%s\n", book.Venue.String(), state, book.Updates, stale)
}

func (r *ANSIRenderer) mergedTable(b *strings.Builder, f Frame) {
	dimHL := ""
	dimPDX := ""
	if !f.HL.Connected {
		dimHL = ansiDim
	}
	if !f.PDX.Connected {
		dimPDX = ansiDim
	}

	fmt.Fprintf(b, "%s%-5s %14s %12s   |   %-5s %14s %12s%s\n",
		ansiBold, "BID", "price", "size", "ASK", "price", "size", ansiReset)

	rows := len(f.Merged.Bids)
	if len(f.Merged.Asks) > rows {
		rows = len(f.Merged.Asks)
	}
	for i := 0; i < rows; i++ {
		bid, ask := "     ", "     "
		bidPx, bidSz, askPx, askSz := "-", "-", "-", "-"
		if i < len(f.Merged.Bids) {
			l := f.Merged.Bids[i]
			dim := dimHL
			if l.Venue == models.VenueParadex {
				dim = dimPDX
			}
			bid = dim + fmt.Sprintf("%-5s", l.Venue.Short())
			bidPx = fmt.Sprintf("%.4f", l.Price)
			bidSz = fmt.Sprintf("%.4f", l.Size) + ansiReset
		}
		if i < len(f.Merged.Asks) {
			l := f.Merged.Asks[i]
			dim := dimHL
			if l.Venue == models.VenueParadex {
				dim = dimPDX
			}
			ask = dim + fmt.Sprintf("%-5s", l.Venue.Short())
			askPx = fmt.Sprintf("%.4f", l.Price)
			askSz = fmt.Sprintf("%.4f", l.Size) + ansiReset
		}
		fmt.Fprintf(b, "%s %14s %12s   |   %s %14s %12s\n", bid, bidPx, bidSz, ask, askPx, askSz)
	}
	if rows == 0 {
		b.WriteString(ansiDim + "waiting for books…" + ansiReset + "\n")
	}
}

func (r *ANSIRenderer) signalPanel(b *strings.Builder, f Frame) {
	s := f.Signals

	cross := "-"
	if s.CrossSpread != nil {
		cross = fmt.Sprintf("%.4f", *s.CrossSpread)
		if s.CrossSpreadPct != nil {
			cross += fmt.Sprintf(" (%.4f%%)", *s.CrossSpreadPct)
		}
		if s.Arb {
			cross += "  " + ansiGreen + ansiBold + "ARB" + ansiReset
		}
	}
	fmt.Fprintf(b, "cross spread  %s\n", cross)
	fmt.Fprintf(b, "LIR           %+.4f   (bid $%.0f / ask $%.0f)\n", s.LIR, s.TotalBidUSD, s.TotalAskUSD)
	fmt.Fprintf(b, "HL BBO        %s\n", quoteString(s.HLBBO.Bid, s.HLBBO.Ask))
	fmt.Fprintf(b, "PDX BBO       %s\n", quoteString(s.PDXBBO.Bid, s.PDXBBO.Ask))
}

func quoteString(bid, ask *float64) string {
	bs, as := "-", "-"
	if bid != nil {
		bs = fmt.Sprintf("%.4f", *bid)
	}
	if ask != nil {
		as = fmt.Sprintf("%.4f", *ask)
	}
	return fmt.Sprintf("%s / %s", bs, as)
}

// PollInput reads quit keys from stdin and terminal resizes from SIGWINCH
// and forwards them as events. The goroutines exit when the process does;
// stdin has no portable non-blocking close.
func PollInput() <-chan Event {
	events := make(chan Event, 4)

	go func() {
		reader := bufio.NewReader(os.Stdin)
		for {
			b, err := reader.ReadByte()
			if err != nil {
				return
			}
			switch b {
			case 'q', 'Q', 0x1b: // Esc
				events <- Event{Type: EventQuit}
				return
			}
		}
	}()

	go func() {
		winch := make(chan os.Signal, 1)
		signal.Notify(winch, syscall.SIGWINCH)
		for range winch {
			select {
			case events <- Event{Type: EventResize}:
			default:
			}
		}
	}()

	return events
}
