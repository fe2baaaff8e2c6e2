package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blugelabs/bluge"
)

// Card is a knowledge snippet handed to an agent's prompt.
type Card struct {
	Title   string
	Content string
	Score   float64
}

// Index wraps the Bluge writer holding the monograph corpus.
type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
	count  int
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

// Load (re)indexes the given monographs. Update is idempotent per name,
// so rebooting with the same embedded corpus does not duplicate documents.
func (i *Index) Load(monographs []Monograph) error {
	for _, m := range monographs {
		doc := bluge.NewDocument(m.Name).
			AddField(bluge.NewTextField("name", m.Name).StoreValue()).
			AddField(bluge.NewTextField("aliases", strings.Join(m.Aliases, " ")).StoreValue()).
			AddField(bluge.NewTextField("body", m.Body).StoreValue())

		if err := i.writer.Update(doc.ID(), doc); err != nil {
			return fmt.Errorf("indexing monograph %q: %w", m.Name, err)
		}
	}
	i.count = len(monographs)
	i.log.Info(fmt.Sprintf("%d monographs indexed", len(monographs)))
	return nil
}

// Count returns how many monographs the last Load indexed.
func (i *Index) Count() int {
	return i.count
}

// Search returns the best-matching cards for a free-text query.
// Name matches are boosted over body matches so "ibuprofen dosage"
// surfaces the ibuprofen monograph first.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]Card, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("opening index reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	q := bluge.NewBooleanQuery().
		AddShould(bluge.NewMatchQuery(query).SetField("name").SetBoost(3)).
		AddShould(bluge.NewMatchQuery(query).SetField("aliases").SetBoost(2)).
		AddShould(bluge.NewMatchQuery(query).SetField("body"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	var cards []Card
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		card := Card{Score: match.Score}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "name":
				card.Title = string(value)
			case "body":
				card.Content = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}

	i.log.Debug("knowledge search", "query", query, "hits", len(cards))
	return cards, nil
}
