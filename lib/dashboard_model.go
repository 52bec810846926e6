package lib

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DashboardSource is what the dashboard model reads each tick.
// NewDashboardSource adapts a *Domain to it (Table.Enumerate,
// Stats.Snapshot); tests can supply a fake.
type DashboardSource interface {
	DomainName() string
	Mappings() []Mapping
	StatsSnapshot() Snapshot
}

// PeerSource is the optional sniffer-side extension of DashboardSource: a
// source that also implements it gets a third panel listing observed
// on-link peers cross-referenced against the mapping table.
type PeerSource interface {
	ObservedPeers() []MappedPeerReport
}

// domainSourceAdapter adapts *Domain to DashboardSource without exporting a
// dashboard dependency on lib's core types beyond what Domain already has.
type domainSourceAdapter struct{ d *Domain }

func (a domainSourceAdapter) DomainName() string      { return a.d.Name }
func (a domainSourceAdapter) Mappings() []Mapping     { return a.d.Table.Enumerate() }
func (a domainSourceAdapter) StatsSnapshot() Snapshot { return a.d.Stats.Snapshot() }

// NewDashboardSource wraps d as a DashboardSource.
func NewDashboardSource(d *Domain) DashboardSource { return domainSourceAdapter{d: d} }

// snifferSourceAdapter couples a Domain with the sniffer's PeerTracker so
// the dashboard also shows observed peers and which of them are already
// covered by a mapping.
type snifferSourceAdapter struct {
	domainSourceAdapter
	tracker *PeerTracker
}

// ObservedPeers implements PeerSource. Pruning on each read keeps the
// window honest without a separate maintenance goroutine.
func (a snifferSourceAdapter) ObservedPeers() []MappedPeerReport {
	a.tracker.Prune()
	return ClassifyAgainstMappings(a.tracker.Report(), a.d.Table)
}

// NewSnifferDashboardSource wraps d and tracker as a DashboardSource whose
// dashboard also lists the sniffer's observed peers.
func NewSnifferDashboardSource(d *Domain, tracker *PeerTracker) DashboardSource {
	return snifferSourceAdapter{domainSourceAdapter{d: d}, tracker}
}

var (
	dashHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dashStatStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	dashBorder      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// tickMsg drives periodic refresh.
type tickMsg time.Time

// Model is the live operator dashboard: a bubbles table of the domain's
// current Mappings plus a scrolling event/stats log in a viewport, refreshed
// on an interval.
type Model struct {
	source    DashboardSource
	peers     PeerSource // nil when the sniffer isn't running
	refresh   time.Duration
	table     table.Model
	peerTable table.Model
	log       viewport.Model
	lastTick  time.Time
	events    []string
}

// NewModel constructs the dashboard Model for source, refreshed every
// refresh interval. A source that also implements PeerSource gets an
// observed-peers panel.
func NewModel(source DashboardSource, refresh time.Duration) Model {
	columns := []table.Column{
		{Title: "Interface", Width: 12},
		{Title: "Internal", Width: 28},
		{Title: "External", Width: 28},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(10),
	)
	style := table.DefaultStyles()
	style.Header = style.Header.Bold(true)
	style.Selected = style.Selected.Foreground(lipgloss.NoColor{})
	t.SetStyles(style)

	vp := viewport.New(80, 6)

	m := Model{
		source:  source,
		refresh: refresh,
		table:   t,
		log:     vp,
	}

	if ps, ok := source.(PeerSource); ok {
		m.peers = ps
		pt := table.New(
			table.WithColumns([]table.Column{
				{Title: "Peer", Width: 28},
				{Title: "MAC", Width: 18},
				{Title: "Msgs", Width: 6},
				{Title: "Mapped", Width: 18},
			}),
			table.WithFocused(false),
			table.WithHeight(8),
		)
		pt.SetStyles(style)
		m.peerTable = pt
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.log.Width = msg.Width
	case tickMsg:
		m.lastTick = time.Time(msg)
		m.refreshRows()
		return m, m.tickCmd()
	}
	return m, nil
}

func (m *Model) refreshRows() {
	mappings := m.source.Mappings()
	rows := make([]table.Row, 0, len(mappings))
	for _, mm := range mappings {
		rows = append(rows, table.Row{
			mm.Interface,
			FormatPrefix(mm.InternalPrefix, mm.PrefixLen),
			FormatPrefix(mm.ExternalPrefix, mm.PrefixLen),
		})
	}
	m.table.SetRows(rows)

	if m.peers != nil {
		observed := m.peers.ObservedPeers()
		peerRows := make([]table.Row, 0, len(observed))
		for _, p := range observed {
			peerRows = append(peerRows, table.Row{
				p.Address,
				p.MAC,
				fmt.Sprintf("%d", p.Total),
				mappedLabel(p),
			})
		}
		m.peerTable.SetRows(peerRows)
	}

	snap := m.source.StatsSnapshot()
	line := fmt.Sprintf("[%s] int->ext=%d ext->int=%d icmp_err=%d ns=%d texceeded=%d passthrough=%d",
		m.lastTick.Format("15:04:05"),
		snap.TranslatedInternalToExternal, snap.TranslatedExternalToInternal,
		snap.ICMPErrorsTranslated, snap.NSProxied, snap.TimeExceededSent, snap.PassedThrough)
	m.events = append(m.events, line)
	if len(m.events) > 200 {
		m.events = m.events[len(m.events)-200:]
	}

	content := ""
	for _, e := range m.events {
		content += e + "\n"
	}
	m.log.SetContent(content)
	m.log.GotoBottom()
}

// mappedLabel renders a peer's mapping coverage for the dashboard: which
// side of the translation its address already falls on, or "-" when no
// mapping covers it (the add-me-next candidates).
func mappedLabel(p MappedPeerReport) string {
	switch {
	case p.InInternalPrefix && p.InExternalPrefix:
		return "both"
	case p.InInternalPrefix:
		return "internal"
	case p.InExternalPrefix:
		return "external (" + p.ExternalIface + ")"
	default:
		return "-"
	}
}

// View implements tea.Model.
func (m Model) View() string {
	header := dashHeaderStyle.Render(fmt.Sprintf("nptv6: %s", m.source.DomainName()))
	snap := m.source.StatsSnapshot()
	stats := dashStatStyle.Render(fmt.Sprintf("mappings=%d events=%d total_processed=%d",
		len(m.source.Mappings()), len(m.events), snap.Total()))

	panels := []string{
		header,
		stats,
		"",
		dashBorder.Render(m.table.View()),
	}
	if m.peers != nil {
		panels = append(panels,
			"",
			dashHeaderStyle.Render("observed peers"),
			dashBorder.Render(m.peerTable.View()),
		)
	}
	panels = append(panels,
		"",
		dashBorder.Render(m.log.View()),
		"",
		"Press q to quit",
	)
	return lipgloss.JoinVertical(lipgloss.Left, panels...)
}
