package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"venuerag/internal/domain"
)

const queryTimeout = 30 * time.Second

// Retriever is the TUI-facing subset of the service.
type Retriever interface {
	Retrieve(ctx context.Context, f domain.Filter, query string, topK int) ([]domain.Record, error)
}

// Model is the Bubble Tea model of the venue browser: a query line, a list
// of ranked venues and the details of the selected one.
type Model struct {
	retriever Retriever
	filter    domain.Filter
	topK      int
	overview  string

	keys    keyMap
	help    help.Model
	input   textinput.Model
	details viewport.Model
	width   int

	venues    []domain.Record
	selected  int
	query     string
	status    string
	searching bool
	sized     bool
}

type searchDoneMsg struct {
	query  string
	venues []domain.Record
	err    error
}

// New creates the browser. Every query is combined with filter; overview is
// shown under the title.
func New(r Retriever, filter domain.Filter, topK int, overview string) Model {
	in := textinput.New()
	in.Prompt = "query> "
	in.Placeholder = "e.g. quiet art museum (empty lists every filtered venue)"
	in.Focus()

	return Model{
		retriever: r,
		filter:    filter,
		topK:      topK,
		overview:  overview,
		keys:      defaultKeyMap(),
		help:      help.New(),
		input:     in,
		details:   viewport.New(0, 0),
		status:    "Ready.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case searchDoneMsg:
		m.searching = false
		if msg.err != nil {
			m.venues, m.selected = nil, 0
			m.status = "Search failed: " + msg.err.Error()
		} else {
			m.venues, m.selected, m.query = msg.venues, 0, msg.query
			m.status = m.resultStatus()
		}
		m.showSelected()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Search):
			if m.searching {
				return m, nil
			}
			m.searching = true
			m.status = "Searching..."
			return m, m.search(strings.TrimSpace(m.input.Value()))
		case key.Matches(msg, m.keys.Next):
			m.move(1)
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			m.move(-1)
			return m, nil
		case key.Matches(msg, m.keys.ScrollUp):
			m.details.HalfViewUp()
			return m, nil
		case key.Matches(msg, m.keys.ScrollDown):
			m.details.HalfViewDown()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) search(query string) tea.Cmd {
	r, filter, topK := m.retriever, m.filter, m.topK
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		venues, err := r.Retrieve(ctx, filter, query, topK)
		return searchDoneMsg{query: query, venues: venues, err: err}
	}
}

// move changes the selection, wrapping at both ends.
func (m *Model) move(delta int) {
	if n := len(m.venues); n > 0 {
		m.selected = (m.selected + delta + n) % n
		m.showSelected()
	}
}

func (m *Model) showSelected() {
	m.details.SetContent(m.renderDetails())
	m.details.GotoTop()
}

func (m *Model) resize(width, height int) {
	m.sized = true
	m.width = width
	m.help.Width = width
	m.input.Width = max(10, width-len(m.input.Prompt)-4)

	// title, overview, input box (3), status and help
	chrome := 2 + 3 + 2
	frameW, frameH := paneStyle.GetFrameSize()
	m.details.Width = max(20, width-listWidth(width)-2*frameW)
	m.details.Height = max(3, height-chrome-frameH)
	m.showSelected()
}

func (m Model) resultStatus() string {
	if m.query == "" {
		return fmt.Sprintf("%d venues match the filter", len(m.venues))
	}
	return fmt.Sprintf("%d results for %q", len(m.venues), m.query)
}
