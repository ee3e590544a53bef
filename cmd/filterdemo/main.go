package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"listkit"
)

// Fuzzy-filter demo: type to narrow a backing list, with every query
// change diffed into an animated delete/insert transaction. Feed lines on
// stdin to filter your own data, e.g. `ls | filterdemo`.

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	lineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type row struct {
	text string
}

func (r *row) Selectable() bool { return true }

func (r *row) ConfigureNode(d listkit.Dispatcher, node *listkit.Node, params listkit.LayoutParams, synchronous bool, prev, next listkit.Item, completion func(listkit.NodeLayout, func())) {
	layout := listkit.NodeLayout{Size: listkit.Size{Width: params.Width, Height: 1}}
	text := r.text
	completion(layout, func() { node.Content = text })
}

func (r *row) UpdateNode(d listkit.Dispatcher, node *listkit.Node, params listkit.LayoutParams, prev, next listkit.Item, spec *listkit.TransitionSpec, completion func(listkit.NodeLayout, func())) {
	r.ConfigureNode(d, node, params, true, prev, next, completion)
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type model struct {
	lv     *listkit.ListView
	filter *listkit.Filter
	query  string
	total  int
	height int
}

func newModel(lines []string) *model {
	backing := make([]listkit.Item, len(lines))
	for i, l := range lines {
		backing[i] = &row{text: l}
	}
	m := &model{
		filter: listkit.NewFilter(backing, func(it listkit.Item) string { return it.(*row).text }),
		total:  len(backing),
		height: 24,
	}
	m.lv = listkit.New(listkit.SyncDispatcher{}, listkit.Config{
		Size:       listkit.Size{Width: 80, Height: 22},
		ManualTick: true,
	})
	var tx listkit.Transaction
	for i, it := range backing {
		tx.Inserts = append(tx.Inserts, listkit.InsertItem{Index: i, Item: it, PreviousIndex: -1})
	}
	tx.Options = listkit.OptionSynchronous
	m.lv.Transaction(tx)
	return m
}

func (m *model) Init() tea.Cmd { return tick() }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.lv.Step(time.Time(msg))
		return m, tick()

	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.lv.Transaction(listkit.Transaction{
			Resize: &listkit.Resize{Size: listkit.Size{
				Width:  float64(msg.Width),
				Height: float64(msg.Height - 2),
			}},
			Options: listkit.OptionSynchronous,
		})

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "down":
			m.lv.ScrollBy(1)
		case "up":
			m.lv.ScrollBy(-1)
		case "backspace":
			if len(m.query) > 0 {
				m.query = m.query[:len(m.query)-1]
				m.requery()
			}
		default:
			if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
				m.query += msg.String()
				m.requery()
			}
		}
	}
	return m, nil
}

func (m *model) requery() {
	tx := m.filter.Apply(m.query)
	tx.Options = listkit.OptionAnimateInsertion | listkit.OptionSynchronous
	m.lv.Transaction(tx)
}

func (m *model) View() string {
	viewH := m.height - 2
	if viewH < 1 {
		viewH = 1
	}
	rows := make([]string, viewH)
	for _, rec := range m.lv.Records() {
		node := m.lv.NodeFor(rec)
		if node == nil || node.ApparentHeight() < 0.5 {
			continue
		}
		y := int(node.VisualFrame().Y)
		if y < 0 || y >= viewH {
			continue
		}
		text, _ := node.Content.(string)
		if rec.Placeholder() {
			rows[y] = dimStyle.Render(text)
		} else {
			rows[y] = lineStyle.Render(text)
		}
	}

	var b strings.Builder
	b.WriteString(promptStyle.Render("> "+m.query) + dimStyle.Render("█"))
	b.WriteByte('\n')
	for _, r := range rows {
		b.WriteString(r)
		b.WriteByte('\n')
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d/%d  esc to quit", m.lv.ItemCount(), m.total)))
	return b.String()
}

func defaultLines() []string {
	names := []string{
		"internal/reconcile.go", "internal/player.go", "internal/arena.go",
		"cmd/listdemo/main.go", "cmd/filterdemo/main.go", "cmd/stress/main.go",
		"docs/transactions.md", "docs/animations.md", "Makefile", "go.mod",
	}
	out := make([]string, 0, 200)
	for i := 0; i < 20; i++ {
		for _, n := range names {
			out = append(out, fmt.Sprintf("%s:%d", n, i*17+3))
		}
	}
	return out
}

func main() {
	lines := defaultLines()
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if stat, _ := os.Stdin.Stat(); stat != nil && stat.Mode()&os.ModeCharDevice == 0 {
		lines = lines[:0]
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		// Keys come from the tty once stdin is a pipe.
		opts = append(opts, tea.WithInputTTY())
	}
	if _, err := tea.NewProgram(newModel(lines), opts...).Run(); err != nil {
		log.Fatal(err)
	}
}
