package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuerag/internal/domain"
	"venuerag/internal/knowledgebase"
	"venuerag/internal/vectorstore"
	"venuerag/internal/vectorstore/memory"
)

var keywords = []string{"museum", "food", "hotel"}

// keywordEmbedder marks which keywords a text mentions.
type keywordEmbedder struct {
	failDocsFrom int // 1-based EmbedDocuments call that starts failing, 0 never
	queryErr     error
	queryDim     int
	calls        int
}

func (k *keywordEmbedder) Name() string   { return "keyword" }
func (k *keywordEmbedder) Dimension() int { return len(keywords) }

func (k *keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	k.calls++
	if k.failDocsFrom > 0 && k.calls >= k.failDocsFrom {
		return nil, errors.New("provider down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectorFor(t)
	}
	return out, nil
}

func (k *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if k.queryErr != nil {
		return nil, k.queryErr
	}
	if k.queryDim > 0 {
		return make([]float32, k.queryDim), nil
	}
	return vectorFor(text), nil
}

func vectorFor(text string) []float32 {
	v := make([]float32, len(keywords))
	for i, kw := range keywords {
		if strings.Contains(strings.ToLower(text), kw) {
			v[i] = 1
		}
	}
	return v
}

// shiftedStore reports a position the snapshot cannot resolve before the real hits.
type shiftedStore struct{ *memory.Storage }

func (s shiftedStore) Search(ctx context.Context, v []float32, k int) ([]vectorstore.Neighbor, error) {
	hits, err := s.Storage.Search(ctx, v, k)
	return append([]vectorstore.Neighbor{{Position: 99, Distance: -1}}, hits...), err
}

func corpus() []domain.Record {
	return []domain.Record{
		{ID: "d", Destination: "Tokyo", Budget: "luxury", Tags: []string{"food"}, Description: "Sushi food counter."},
		{ID: "c", Destination: "Paris", Budget: "Luxury", SuitableFor: []string{"couples"}, Description: "Grand hotel."},
		{ID: "b", Destination: "Paris", Budget: "economy", Tags: []string{"food"}, Description: "Street food market."},
		{ID: "a", Destination: "Paris", Budget: "luxury", Tags: []string{"art"}, Description: "Art museum."},
		{ID: "e", Destination: "Paris Suburbs", Description: "Quiet park by the museum."},
	}
}

func build(t *testing.T, emb *keywordEmbedder, opts ...knowledgebase.BuilderOption) *knowledgebase.Snapshot {
	t.Helper()
	factory := func() vectorstore.Storage { return memory.NewStorage() }
	snap, err := knowledgebase.NewBuilder(emb, factory, opts...).Build(context.Background(), corpus())
	require.NoError(t, err)
	return snap
}

func ids(records []domain.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestFilterRecords_DestinationAndBudget(t *testing.T) {
	records := []domain.Record{
		{ID: "a", Destination: "Paris", Budget: "luxury", Tags: []string{"art"}},
		{ID: "b", Destination: "Paris", Budget: "economy", Tags: []string{"food"}},
	}

	got := FilterRecords(records, domain.Filter{Destination: "Paris", Budget: "luxury"})
	assert.Equal(t, []string{"a"}, ids(got))
}

func TestFilterRecords(t *testing.T) {
	tests := []struct {
		name   string
		filter domain.Filter
		want   []string
	}{
		{"no criteria keeps corpus order", domain.Filter{}, []string{"d", "c", "b", "a", "e"}},
		{"destination substring ignores case", domain.Filter{Destination: "PAR"}, []string{"c", "b", "a", "e"}},
		{"budget substring ignores case", domain.Filter{Budget: "lux"}, []string{"d", "c", "a"}},
		{"missing budget fails a set budget", domain.Filter{Destination: "suburbs", Budget: "economy"}, []string{}},
		{"interest matches tags exactly", domain.Filter{Interests: []string{"ART"}}, []string{"a"}},
		{"interest matches suitable_for", domain.Filter{Interests: []string{"Couples"}}, []string{"c"}},
		{"any interest suffices", domain.Filter{Interests: []string{"nightlife", "food"}}, []string{"d", "b"}},
		{"interest is not a substring match", domain.Filter{Interests: []string{"foo"}}, []string{}},
		{"all criteria combine", domain.Filter{Destination: "paris", Budget: "luxury", Interests: []string{"couples"}}, []string{"c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(FilterRecords(corpus(), tt.filter)))
		})
	}
}

func TestRetrieve_RanksFilteredCandidates(t *testing.T) {
	r := NewRetriever(build(t, &keywordEmbedder{}), nil)

	got, err := r.Retrieve(context.Background(), domain.Filter{Destination: "Paris"}, "cheap food", 3)
	require.NoError(t, err)
	// b matches the query; a, c and e tie and break on index position.
	assert.Equal(t, []string{"b", "a", "c"}, ids(got))

	got, err = r.Retrieve(context.Background(), domain.Filter{Destination: "Paris"}, "cheap food", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(got))
}

func TestRetrieve_DestinationCorrectnessAndBound(t *testing.T) {
	r := NewRetriever(build(t, &keywordEmbedder{}), nil)

	for _, topK := range []int{1, 2, 3, 10} {
		got, err := r.Retrieve(context.Background(), domain.Filter{Destination: "Paris"}, "food hotel", topK)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(got), topK)
		for _, rec := range got {
			assert.Contains(t, strings.ToLower(rec.Destination), "paris")
		}
	}
}

func TestRetrieve_Stable(t *testing.T) {
	r := NewRetriever(build(t, &keywordEmbedder{}), nil)
	f := domain.Filter{Budget: "luxury"}

	first, err := r.Retrieve(context.Background(), f, "museum", 5)
	require.NoError(t, err)
	for range 5 {
		again, err := r.Retrieve(context.Background(), f, "museum", 5)
		require.NoError(t, err)
		assert.Equal(t, ids(first), ids(again))
	}
}

func TestRetrieve_WithoutQueryReturnsFilteredRecords(t *testing.T) {
	r := NewRetriever(build(t, &keywordEmbedder{}), nil)

	got, err := r.Retrieve(context.Background(), domain.Filter{Budget: "luxury"}, "  ", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d"}, ids(got), "snapshot order is id order")

	got, err = r.Retrieve(context.Background(), domain.Filter{Budget: "luxury"}, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(got))
}

func TestRetrieve_DegradesWithoutIndex(t *testing.T) {
	r := NewRetriever(knowledgebase.NewSnapshot(corpus()), nil)

	got, err := r.Retrieve(context.Background(), domain.Filter{Destination: "Paris"}, "food", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, ids(got))

	empty := NewRetriever(nil, nil)
	got, err = empty.Retrieve(context.Background(), domain.Filter{}, "food", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieve_PartialIndex(t *testing.T) {
	snap := build(t, &keywordEmbedder{failDocsFrom: 2}, knowledgebase.WithBatchSize(2))
	require.Equal(t, 2, snap.Indexed())
	r := NewRetriever(snap, nil)

	got, err := r.Retrieve(context.Background(), domain.Filter{Destination: "Paris"}, "hotel", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(got), "unindexed candidates are not ranked")

	got, err = r.Retrieve(context.Background(), domain.Filter{Destination: "Paris"}, "", 5)
	require.NoError(t, err)
	assert.Len(t, got, 4, "unindexed records remain filterable")
}

func TestRetrieve_SkipsUnknownPositions(t *testing.T) {
	factory := func() vectorstore.Storage { return shiftedStore{memory.NewStorage()} }
	snap, err := knowledgebase.NewBuilder(&keywordEmbedder{}, factory).Build(context.Background(), corpus())
	require.NoError(t, err)

	got, err := NewRetriever(snap, nil).Retrieve(context.Background(), domain.Filter{}, "museum", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "e"}, ids(got))
}

func TestRetrieve_QueryErrors(t *testing.T) {
	emb := &keywordEmbedder{}
	r := NewRetriever(build(t, emb), nil)

	emb.queryDim = 7
	_, err := r.Retrieve(context.Background(), domain.Filter{}, "museum", 3)
	assert.ErrorIs(t, err, domain.ErrConsistency)

	emb.queryDim = 0
	emb.queryErr = errors.New("timeout")
	_, err = r.Retrieve(context.Background(), domain.Filter{}, "museum", 3)
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestRank_EmptyQuery(t *testing.T) {
	snap := build(t, &keywordEmbedder{})
	_, err := Rank(context.Background(), snap, " \x00 ", snap.Records(), 3)
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestRetriever_Swap(t *testing.T) {
	r := NewRetriever(nil, nil)
	next := build(t, &keywordEmbedder{})

	prev := r.Swap(next)
	assert.Zero(t, prev.Len())
	assert.Same(t, next, r.Snapshot())

	got, err := r.Retrieve(context.Background(), domain.Filter{}, "museum", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(got))
}

func TestRetriever_ConcurrentSwapAndRetrieve(t *testing.T) {
	snaps := []*knowledgebase.Snapshot{
		build(t, &keywordEmbedder{}),
		knowledgebase.NewSnapshot(corpus()),
	}
	r := NewRetriever(snaps[0], nil)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				if i == 0 {
					r.Swap(snaps[j%2])
					continue
				}
				got, err := r.Retrieve(context.Background(), domain.Filter{Destination: "Paris"}, "food", 2)
				assert.NoError(t, err)
				assert.Len(t, got, 2)
			}
		}()
	}
	wg.Wait()
}

func TestMarshalRecords(t *testing.T) {
	data, err := MarshalRecords(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	rating := 4.5
	data, err = MarshalRecords([]domain.Record{{ID: "a", Name: "Louvre", Destination: "Paris", Rating: &rating, Tags: []string{"art"}}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a","name":"Louvre","type":"","description":"","destination":"Paris","rating":4.5,"tags":["art"]}]`, string(data))
}
