package lib

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// ANSI escape sequences for terminal control.
const (
	enterAltScreen = "\033[?1049h"
	exitAltScreen  = "\033[?1049l"
	cursorHome     = "\033[H"
	clearToEnd     = "\033[J"
	hideCursor     = "\033[?25l"
	showCursor     = "\033[?25h"
)

const tableWidth = 100

// EnterAltScreen switches to the alternate screen buffer (like top/vim).
// Call ExitAltScreen when done to restore the original terminal.
func EnterAltScreen(w io.Writer) {
	fmt.Fprint(w, enterAltScreen, hideCursor)
}

// ExitAltScreen returns to the main screen buffer and restores the cursor.
func ExitAltScreen(w io.Writer) {
	fmt.Fprint(w, showCursor, exitAltScreen)
}

// RenderMappingTable renders a plain-text snapshot of a domain's mappings
// and engine counters to w, redrawing in place. It is the non-interactive
// counterpart to the bubbletea dashboard; neither command calls it
// ("nptv6ctl list" prints FormatMappingList).
func RenderMappingTable(w io.Writer, domainName string, mappings []Mapping, stats Snapshot) {
	fmt.Fprint(w, cursorHome)

	fmt.Fprintf(w, "NPTv6 Mappings: %s (updated: %s)\n", domainName, time.Now().Format("15:04:05"))
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))

	if len(mappings) == 0 {
		fmt.Fprintln(w, "No mappings configured.")
	} else {
		sorted := make([]Mapping, len(mappings))
		copy(sorted, mappings)
		sort.Slice(sorted, func(i, j int) bool {
			if sorted[i].Interface != sorted[j].Interface {
				return sorted[i].Interface < sorted[j].Interface
			}
			return FormatPrefix(sorted[i].InternalPrefix, sorted[i].PrefixLen) <
				FormatPrefix(sorted[j].InternalPrefix, sorted[j].PrefixLen)
		})

		fmt.Fprintf(w, "%-12s %-28s %-28s\n", "Interface", "Internal", "External")
		fmt.Fprintln(w, strings.Repeat("─", tableWidth))
		for _, m := range sorted {
			fmt.Fprintf(w, "%-12s %-28s %-28s\n",
				m.Interface,
				FormatPrefix(m.InternalPrefix, m.PrefixLen),
				FormatPrefix(m.ExternalPrefix, m.PrefixLen))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))
	fmt.Fprintf(w, "int->ext: %-8d ext->int: %-8d icmp errs: %-8d ns proxied: %-8d\n",
		stats.TranslatedInternalToExternal, stats.TranslatedExternalToInternal,
		stats.ICMPErrorsTranslated, stats.NSProxied)
	fmt.Fprintf(w, "time exceeded: %-8d passed through: %-8d truncated: %-8d no mem: %-8d no src addr: %-8d\n",
		stats.TimeExceededSent, stats.PassedThrough, stats.TruncatedPassthrough,
		stats.DroppedNoMemory, stats.DroppedNoSrcAddr)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Press Ctrl+C to exit")

	fmt.Fprint(w, clearToEnd)
}
