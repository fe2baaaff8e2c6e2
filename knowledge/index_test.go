package knowledge

import (
	"context"
	"log/slog"
	"testing"

	"github.com/blugelabs/bluge"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	blugeCfg := bluge.DefaultConfig(t.TempDir())
	writer, err := bluge.OpenWriter(blugeCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewIndex(writer, slog.Default())
}

func TestLoader_ParsesEmbeddedMonographs(t *testing.T) {
	req := require.New(t)

	monographs, err := NewEmbeddedLoader().LoadAll("monographs")
	req.NoError(err)
	req.GreaterOrEqual(len(monographs), 5)

	names := make(map[string]Monograph, len(monographs))
	for _, m := range monographs {
		req.NotEmpty(m.Name)
		req.NotEmpty(m.Body)
		names[m.Name] = m
	}

	paracetamol, ok := names["Paracetamol"]
	req.True(ok)
	req.Contains(paracetamol.Aliases, "acetaminophen")
	req.Contains(paracetamol.Body, "4 g")
}

func TestIndex_SearchRanksNameAboveBody(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := openTestIndex(t)

	monographs, err := NewEmbeddedLoader().LoadAll("monographs")
	req.NoError(err)
	req.NoError(index.Load(monographs))
	req.Equal(len(monographs), index.Count())

	cards, err := index.Search(ctx, "ibuprofen dosage", 3)
	req.NoError(err)
	req.NotEmpty(cards)
	req.Equal("Ibuprofen", cards[0].Title)
	req.NotEmpty(cards[0].Content)
	req.Greater(cards[0].Score, 0.0)

	// Alias lookup still resolves to the right monograph
	cards, err = index.Search(ctx, "acetaminophen liver", 3)
	req.NoError(err)
	req.NotEmpty(cards)
	req.Equal("Paracetamol", cards[0].Title)
}

func TestIndex_SearchEdgeCases(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := openTestIndex(t)

	req.NoError(index.Load([]Monograph{{Name: "Aspirin", Body: "antiplatelet"}}))

	cards, err := index.Search(ctx, "   ", 3)
	req.NoError(err)
	req.Nil(cards)

	cards, err = index.Search(ctx, "aspirin", 0)
	req.NoError(err)
	req.Nil(cards)
}
