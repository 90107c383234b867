package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"veld/internal/demangle"
	"veld/internal/meta"
)

// Entry is one browsable descriptor row.
type Entry struct {
	Name string
	Desc *meta.Descriptor
}

type browserModel struct {
	title   string
	entries []Entry
	visible []int
	filter  textinput.Model
	cursor  int
	width   int
	height  int
}

// NewBrowserModel returns a Bubble Tea model that lists descriptors with
// live name filtering and a layout detail pane for the selected row.
func NewBrowserModel(title string, entries []Entry) tea.Model {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	ti := textinput.New()
	ti.Placeholder = "filter"
	ti.Prompt = "/ "
	ti.Focus()

	m := &browserModel{
		title:   title,
		entries: entries,
		filter:  ti,
		width:   80,
		height:  24,
	}
	m.refilter()
	return m
}

func (m *browserModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "up":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down":
			if m.cursor < len(m.visible)-1 {
				m.cursor++
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.refilter()
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
		}
		if msg.Height > 0 {
			m.height = msg.Height
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	return m, cmd
}

func (m *browserModel) refilter() {
	needle := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for i, e := range m.entries {
		if needle == "" || strings.Contains(strings.ToLower(e.Name), needle) {
			m.visible = append(m.visible, i)
		}
	}
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *browserModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	cursorStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s (%d types)", m.title, len(m.visible))))
	b.WriteString("\n")
	b.WriteString(m.filter.View())
	b.WriteString("\n\n")

	rows := m.height - 10
	if rows < 4 {
		rows = 4
	}
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}

	nameWidth := m.width - 30
	if nameWidth < 20 {
		nameWidth = 20
	}
	for i := start; i < len(m.visible) && i < start+rows; i++ {
		e := m.entries[m.visible[i]]
		line := fmt.Sprintf("%s %-10s %5dB", truncate(e.Name, nameWidth), e.Desc.Kind, e.Desc.Ops.Size)
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if len(m.visible) > 0 {
		b.WriteString("\n")
		b.WriteString(m.detail())
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("up/down move · type to filter · esc quits"))
	b.WriteString("\n")
	return b.String()
}

// detail renders the layout pane for the selected descriptor.
func (m *browserModel) detail() string {
	d := m.entries[m.visible[m.cursor]].Desc
	paneStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", demangle.Name(d))
	fmt.Fprintf(&b, "kind %s  size %d  align %d  stride %d\n", d.Kind, d.Ops.Size, d.Ops.Align, d.Ops.Stride)
	fmt.Fprintf(&b, "pod %v  takable %v  inline %v", d.Ops.POD, d.Ops.BitwiseTakable, d.Ops.Inline)
	switch d.Kind {
	case meta.KindStruct:
		for i, f := range d.Struct.Fields {
			fmt.Fprintf(&b, "\n  +%-4d %s: %s", d.Struct.Offsets[i], f.Name, demangle.Name(f.Type))
		}
	case meta.KindClass:
		if s := d.Superclass(); s != nil {
			fmt.Fprintf(&b, "\n  super %s", s.Name)
		}
		for i, f := range d.Class.Fields {
			fmt.Fprintf(&b, "\n  +%-4d %s: %s", d.Class.FieldOffsets[i], f.Name, demangle.Name(f.Type))
		}
	case meta.KindEnum:
		for i, c := range d.Enum.Cases {
			if p := d.Enum.PayloadTypes[i]; p != nil {
				fmt.Fprintf(&b, "\n  case %s(%s)", c, demangle.Name(p))
			} else {
				fmt.Fprintf(&b, "\n  case %s", c)
			}
		}
	}
	return paneStyle.Render(b.String())
}

func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return runewidth.FillRight(s, width)
	}
	return runewidth.Truncate(s, width, "…")
}
