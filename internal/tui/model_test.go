package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuerag/internal/domain"
)

type fakeRetriever struct {
	venues []domain.Record
	err    error

	query  string
	filter domain.Filter
	topK   int
}

func (f *fakeRetriever) Retrieve(_ context.Context, filter domain.Filter, query string, topK int) ([]domain.Record, error) {
	f.filter, f.query, f.topK = filter, query, topK
	return f.venues, f.err
}

func send(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeText(m Model, text string) Model {
	for _, r := range text {
		m, _ = send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

// search presses enter and feeds the finished search back into the model.
func search(t *testing.T, m Model) Model {
	t.Helper()
	m, cmd := send(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, m.searching)
	require.NotNil(t, cmd)
	m, _ = send(m, cmd())
	require.False(t, m.searching)
	return m
}

func parisVenues() []domain.Record {
	rating := 4.7
	return []domain.Record{
		{ID: "a", Name: "Louvre", Type: "museum", Destination: "Paris", Rating: &rating,
			Tags: []string{"art"}, Description: "Huge palace. Famous art museum."},
		{ID: "b", Name: "Orsay", Type: "museum", Destination: "Paris", Description: "Impressionist paintings."},
	}
}

func TestSearchAndBrowse(t *testing.T) {
	r := &fakeRetriever{venues: parisVenues()}
	filter := domain.Filter{Destination: "Paris"}
	m, _ := send(New(r, filter, 4, "2 records: Paris (2)"), tea.WindowSizeMsg{Width: 100, Height: 30})

	m = search(t, typeText(m, "art museum"))
	assert.Equal(t, "art museum", r.query)
	assert.Equal(t, filter, r.filter)
	assert.Equal(t, 4, r.topK)
	assert.Equal(t, `2 results for "art museum"`, m.status)

	details := m.renderDetails()
	assert.Contains(t, details, "Louvre")
	assert.Contains(t, details, "(1/2)")
	assert.Contains(t, details, "4.7")
	assert.Contains(t, details, "art")

	m, _ = send(m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.selected)
	assert.Contains(t, m.renderDetails(), "Orsay")

	m, _ = send(m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 0, m.selected, "selection wraps around")

	m, _ = send(m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m.selected)

	view := m.View()
	assert.Contains(t, view, "destination=Paris")
	assert.Contains(t, view, "2 records: Paris (2)")
	assert.Contains(t, m.renderList(), "2. Orsay")
}

func TestEmptyQueryListsFilteredVenues(t *testing.T) {
	r := &fakeRetriever{venues: parisVenues()[:1]}
	m := search(t, New(r, domain.Filter{}, 5, ""))

	assert.Empty(t, r.query)
	assert.Equal(t, "1 venues match the filter", m.status)
}

func TestSearchFailure(t *testing.T) {
	m := search(t, New(&fakeRetriever{err: errors.New("provider down")}, domain.Filter{}, 5, ""))

	assert.Equal(t, "Search failed: provider down", m.status)
	assert.Equal(t, "Press enter to search.", m.renderDetails())
	assert.Contains(t, m.renderList(), "Nothing to show.")
}

func TestEnterIgnoredWhileSearching(t *testing.T) {
	m, cmd := send(New(&fakeRetriever{}, domain.Filter{}, 5, ""), tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	_, cmd = send(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestNavigationWithoutResults(t *testing.T) {
	m, _ := send(New(&fakeRetriever{}, domain.Filter{}, 5, ""), tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 0, m.selected)
}

func TestQuitKeys(t *testing.T) {
	m := New(&fakeRetriever{}, domain.Filter{}, 5, "")
	for _, k := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC, tea.KeyCtrlD} {
		_, cmd := send(m, tea.KeyMsg{Type: k})
		require.NotNil(t, cmd)
		assert.Equal(t, tea.Quit(), cmd())
	}
}

func TestViewBeforeSize(t *testing.T) {
	assert.Equal(t, "Loading...", New(&fakeRetriever{}, domain.Filter{}, 5, "").View())
}
