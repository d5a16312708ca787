// Command chimera-replay decodes an event-log segment for forensic
// inspection: every submit, ack, fill, cancel, reject, and market tick the
// execution spine recorded, in causal order.
package main

import (
	"flag"
	"fmt"
	"os"

	"chimera/internal/core"
	"chimera/internal/eventlog"
)

func main() {
	path := flag.String("path", "", "Path to an event-log segment (required)")
	eventTypeFilter := flag.String("type", "", "Only print this event type (submit|ack|fill|cancel|reject|tick)")
	symbolFilter := flag.String("symbol", "", "Only print entries for this symbol (submit/tick only; fill/ack/cancel/reject carry no symbol)")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: chimera-replay -path <event-log-file> [-type submit|ack|fill|cancel|reject|tick] [-symbol SYM]")
		os.Exit(1)
	}

	entries, err := eventlog.ReadAll(*path)
	if err != nil && len(entries) == 0 {
		fmt.Fprintf(os.Stderr, "chimera-replay: %v\n", err)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "chimera-replay: stopped early after %d entries: %v\n", len(entries), err)
	}

	wantType, ok := parseTypeFilter(*eventTypeFilter)
	if *eventTypeFilter != "" && !ok {
		fmt.Fprintf(os.Stderr, "chimera-replay: unknown -type %q\n", *eventTypeFilter)
		os.Exit(1)
	}

	for _, e := range entries {
		if *eventTypeFilter != "" && e.EventType != wantType {
			continue
		}
		line := formatEntry(e)
		if *symbolFilter != "" && !containsSymbol(line, *symbolFilter) {
			continue
		}
		fmt.Println(line)
	}
}

func parseTypeFilter(s string) (core.EventType, bool) {
	switch s {
	case "tick":
		return core.EventMarketTick, true
	case "ack":
		return core.EventAck, true
	case "fill":
		return core.EventFill, true
	case "cancel":
		return core.EventCancel, true
	case "reject":
		return core.EventReject, true
	case "submit":
		return core.EventSubmit, true
	default:
		return 0, false
	}
}

func formatEntry(e eventlog.Entry) string {
	switch e.EventType {
	case core.EventMarketTick:
		symbol, bid, bidQty, ask, askQty := eventlog.DecodeMarketTick(e.Payload)
		return fmt.Sprintf("[%d] #%d TICK   symbol=%s bid=%s bid_qty=%s ask=%s ask_qty=%s",
			e.TimestampNs, e.CausalID, symbol, bid, bidQty, ask, askQty)
	case core.EventAck:
		clientID, exchangeID := eventlog.DecodeAck(e.Payload)
		return fmt.Sprintf("[%d] #%d ACK    client_id=%s exchange_id=%s", e.TimestampNs, e.CausalID, clientID, exchangeID)
	case core.EventFill:
		clientID, qty, price := eventlog.DecodeFill(e.Payload)
		return fmt.Sprintf("[%d] #%d FILL   client_id=%s qty=%s price=%s", e.TimestampNs, e.CausalID, clientID, qty, price)
	case core.EventCancel:
		clientID := eventlog.DecodeClientIDOnly(e.Payload)
		return fmt.Sprintf("[%d] #%d CANCEL client_id=%s", e.TimestampNs, e.CausalID, clientID)
	case core.EventReject:
		clientID := eventlog.DecodeClientIDOnly(e.Payload)
		return fmt.Sprintf("[%d] #%d REJECT client_id=%s", e.TimestampNs, e.CausalID, clientID)
	case core.EventSubmit:
		clientID, symbol, price, qty := eventlog.DecodeSubmit(e.Payload)
		return fmt.Sprintf("[%d] #%d SUBMIT client_id=%s symbol=%s price=%s qty=%s", e.TimestampNs, e.CausalID, clientID, symbol, price, qty)
	default:
		return fmt.Sprintf("[%d] #%d UNKNOWN(%d) payload_bytes=%d", e.TimestampNs, e.CausalID, e.EventType, len(e.Payload))
	}
}

func containsSymbol(line, symbol string) bool {
	needle := "symbol=" + symbol
	for i := 0; i+len(needle) <= len(line); i++ {
		if line[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
