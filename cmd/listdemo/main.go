package main

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"listkit"
)

// Interactive demo: a message feed backed by a listkit.ListView, rendered
// with one terminal row per layout unit. Inserts, deletes and scrolls all
// go through transactions; the animation tick is driven by bubbletea.

var (
	rowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	ghostStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true)
	thumbStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	accent      = []lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("173")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
	}
)

// message is a multi-row feed entry.
type message struct {
	id    int
	body  string
	lines int
}

func (m *message) Selectable() bool { return true }

func (m *message) ConfigureNode(d listkit.Dispatcher, node *listkit.Node, params listkit.LayoutParams, synchronous bool, prev, next listkit.Item, completion func(listkit.NodeLayout, func())) {
	layout := listkit.NodeLayout{Size: listkit.Size{Width: params.Width, Height: float64(m.lines)}}
	rendered := m.render(int(params.Width))
	completion(layout, func() { node.Content = rendered })
}

func (m *message) UpdateNode(d listkit.Dispatcher, node *listkit.Node, params listkit.LayoutParams, prev, next listkit.Item, spec *listkit.TransitionSpec, completion func(listkit.NodeLayout, func())) {
	m.ConfigureNode(d, node, params, true, prev, next, completion)
}

func (m *message) render(width int) []string {
	style := accent[m.id%len(accent)]
	out := make([]string, m.lines)
	out[0] = style.Render(fmt.Sprintf("#%d ", m.id)) + rowStyle.Render(m.body)
	for i := 1; i < m.lines; i++ {
		out[i] = rowStyle.Render("   " + strings.Repeat("·", min(width-4, 24)))
	}
	return out
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type model struct {
	lv     *listkit.ListView
	nextID int
	width  int
	height int
	status string
}

func newModel() *model {
	m := &model{height: 24, width: 80}
	m.lv = listkit.New(listkit.SyncDispatcher{}, listkit.Config{
		Size:       listkit.Size{Width: 80, Height: 22},
		ManualTick: true,
		Overscroll: 4,
	})
	var tx listkit.Transaction
	for i := 0; i < 40; i++ {
		tx.Inserts = append(tx.Inserts, listkit.InsertItem{
			Index:         i,
			Item:          m.newMessage(),
			PreviousIndex: -1,
		})
	}
	tx.Options = listkit.OptionSynchronous
	m.lv.Transaction(tx)
	return m
}

func (m *model) newMessage() *message {
	id := m.nextID
	m.nextID++
	bodies := []string{
		"deploy finished in 42s",
		"cache hit ratio back above 97%",
		"rebalancing shard 7 onto new node",
		"retry budget exhausted, backing off",
		"compaction done, reclaimed 1.2GB",
	}
	return &message{id: id, body: bodies[id%len(bodies)], lines: 1 + id%3}
}

func (m *model) Init() tea.Cmd { return tick() }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.lv.Step(time.Time(msg))
		return m, tick()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.lv.Transaction(listkit.Transaction{
			Resize: &listkit.Resize{Size: listkit.Size{
				Width:  float64(msg.Width),
				Height: float64(msg.Height - 2),
			}},
			Options: listkit.OptionSynchronous,
		})

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "j", "down":
			m.lv.ScrollBy(2)
		case "k", "up":
			m.lv.ScrollBy(-2)

		case "a":
			// Append at the tail with a grow-in transition.
			idx := m.lv.ItemCount()
			m.lv.Transaction(listkit.Transaction{
				Inserts: []listkit.InsertItem{{Index: idx, Item: m.newMessage(), PreviousIndex: -1}},
				Options: listkit.OptionAnimateInsertion | listkit.OptionSynchronous,
			})
			m.status = fmt.Sprintf("appended #%d", m.nextID-1)

		case "i":
			if n := m.lv.ItemCount(); n > 0 {
				idx := firstVisible(m.lv)
				m.lv.Transaction(listkit.Transaction{
					Inserts: []listkit.InsertItem{{Index: idx, Item: m.newMessage(), PreviousIndex: -1}},
					Options: listkit.OptionAnimateInsertion | listkit.OptionSynchronous,
				})
				m.status = fmt.Sprintf("inserted at %d", idx)
			}

		case "d":
			if n := m.lv.ItemCount(); n > 0 {
				idx := firstVisible(m.lv)
				m.lv.Transaction(listkit.Transaction{
					Deletes: []listkit.DeleteItem{{Index: idx}},
					Options: listkit.OptionAnimateInsertion | listkit.OptionSynchronous,
				})
				m.status = fmt.Sprintf("deleted %d", idx)
			}

		case "r":
			// Replace in place, reusing the node.
			if n := m.lv.ItemCount(); n > 0 {
				idx := firstVisible(m.lv)
				m.lv.Transaction(listkit.Transaction{
					Deletes: []listkit.DeleteItem{{Index: idx}},
					Inserts: []listkit.InsertItem{{Index: idx, Item: m.newMessage(), PreviousIndex: idx}},
					Options: listkit.OptionSynchronous,
				})
				m.status = fmt.Sprintf("replaced %d", idx)
			}

		case "g":
			m.lv.Transaction(listkit.Transaction{
				ScrollTo: &listkit.ScrollTarget{Index: 0, Alignment: listkit.AlignTop, Animated: true},
				Options:  listkit.OptionSynchronous,
			})
		case "G":
			m.lv.Transaction(listkit.Transaction{
				ScrollTo: &listkit.ScrollTarget{Index: m.lv.ItemCount() - 1, Alignment: listkit.AlignBottom, Animated: true},
				Options:  listkit.OptionSynchronous,
			})
		case "s":
			idx := rand.Intn(max(m.lv.ItemCount(), 1))
			m.lv.EnsureVisible(idx, true, nil)
			m.status = fmt.Sprintf("jumped to %d", idx)
		}
	}
	return m, nil
}

func firstVisible(lv *listkit.ListView) int {
	if v := lv.VisibleRange(); !v.Empty() {
		return v.First
	}
	return 0
}

func (m *model) View() string {
	viewH := m.height - 2
	if viewH < 1 {
		viewH = 1
	}
	rows := make([]string, viewH)

	for _, rec := range m.lv.Records() {
		node := m.lv.NodeFor(rec)
		if node == nil {
			continue
		}
		frame := node.VisualFrame()
		lines, _ := node.Content.([]string)
		style := rowStyle
		if rec.Placeholder() {
			style = ghostStyle
		}
		// Clip to the node's apparent extent so collapsing rows vanish
		// progressively.
		visible := int(node.ApparentHeight() + 0.5)
		for i := 0; i < len(lines) && i < visible; i++ {
			y := int(frame.Y) + i
			if y < 0 || y >= viewH {
				continue
			}
			if rec.Placeholder() {
				rows[y] = style.Render(stripANSI(lines[i]))
			} else {
				rows[y] = lines[i]
			}
		}
	}

	if ind, ok := m.lv.Indicator(); ok {
		top := int(ind.Y)
		bottom := int(ind.Y + ind.Height)
		for y := top; y < bottom && y < viewH; y++ {
			if y >= 0 {
				rows[y] = padTo(rows[y], m.width-1) + thumbStyle.Render("┃")
			}
		}
	}

	var b strings.Builder
	b.WriteString(statusStyle.Render("listkit demo") +
		rowStyle.Render("  j/k scroll  a append  i insert  d delete  r replace  g/G ends  s jump  q quit"))
	b.WriteByte('\n')
	for _, row := range rows {
		b.WriteString(row)
		b.WriteByte('\n')
	}
	loaded, visible := m.lv.LoadedRange(), m.lv.VisibleRange()
	b.WriteString(statusStyle.Render(fmt.Sprintf("items %d  loaded [%d,%d]  visible [%d,%d]  %s",
		m.lv.ItemCount(), loaded.First, loaded.Last, visible.First, visible.Last, m.status)))
	return b.String()
}

func padTo(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
		case r == 0x1b:
			inEscape = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func main() {
	if _, err := tea.NewProgram(newModel(), tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
