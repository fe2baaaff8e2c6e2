//go:generate go run go.uber.org/mock/mockgen -source=consultation.go -destination=../mocks/mock_consultation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IConsultationRepository interface {
	Store(consultation Consultation) error
	GetConsultations(conversation string, cursor *string) ([]Consultation, *string, error)
}

// Consultation is the audit record of one answered query: which intents
// were detected, which agents ran, what grounded the answer.
type Consultation struct {
	ID           uuid.UUID
	Conversation string
	Query        string
	Intents      []string
	Agents       []string
	Sources      []string
	Language     string
	Emergency    bool
	Model        string
	Latency      time.Duration
	At           time.Time
}

type consultationRecord struct {
	ID           string   `json:"id"`
	Conversation string   `json:"conversation"`
	Query        string   `json:"query"`
	Intents      []string `json:"intents"`
	Agents       []string `json:"agents"`
	Sources      []string `json:"sources,omitempty"`
	Language     string   `json:"language,omitempty"`
	Emergency    bool     `json:"emergency"`
	Model        string   `json:"model,omitempty"`
	LatencyMs    int64    `json:"latency_ms"`
	At           int64    `json:"at"`
}

type ConsultationRepository struct {
	db    *badger.DB
	log   *slog.Logger
	limit *int
}

func NewConsultationRepository(db *badger.DB, log *slog.Logger, limit *int) ConsultationRepository {
	return ConsultationRepository{db: db, log: log, limit: limit}
}

// Store persists a consultation under "consult:{conversation}:{ts}:{uuid}",
// the same padded-timestamp layout the message repository uses.
func (c ConsultationRepository) Store(consultation Consultation) error {
	key := fmt.Sprintf("consult:%s:%019d:%s",
		consultation.Conversation,
		consultation.At.UnixNano(),
		consultation.ID,
	)
	bytes, err := json.Marshal(fromConsultation(consultation))
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// GetConsultations pages backwards through a conversation's consultations,
// newest first, using the key suffix as the cursor.
func (c ConsultationRepository) GetConsultations(conversation string, cursor *string) ([]Consultation, *string, error) {
	var rawValues [][]byte
	var lastKey string
	err := c.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("consult:%s:", conversation)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if c.limit != nil && len(rawValues) == *c.limit {
				c.log.Debug(fmt.Sprintf("Maximum of %d consultations reached", *c.limit))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				rawValues = append(rawValues, value)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var consultations []Consultation
	for _, b := range rawValues {
		var record consultationRecord
		if err = json.Unmarshal(b, &record); err != nil {
			return nil, nil, err
		}
		consultation, err := toConsultation(record)
		if err != nil {
			return nil, nil, err
		}
		consultations = append(consultations, consultation)
	}
	return consultations, &lastKey, nil
}

func fromConsultation(c Consultation) consultationRecord {
	return consultationRecord{
		ID:           c.ID.String(),
		Conversation: c.Conversation,
		Query:        c.Query,
		Intents:      c.Intents,
		Agents:       c.Agents,
		Sources:      c.Sources,
		Language:     c.Language,
		Emergency:    c.Emergency,
		Model:        c.Model,
		LatencyMs:    c.Latency.Milliseconds(),
		At:           c.At.UnixNano(),
	}
}

func toConsultation(record consultationRecord) (Consultation, error) {
	parsedID, err := uuid.Parse(record.ID)
	if err != nil {
		return Consultation{}, err
	}
	return Consultation{
		ID:           parsedID,
		Conversation: record.Conversation,
		Query:        record.Query,
		Intents:      record.Intents,
		Agents:       record.Agents,
		Sources:      record.Sources,
		Language:     record.Language,
		Emergency:    record.Emergency,
		Model:        record.Model,
		Latency:      time.Duration(record.LatencyMs) * time.Millisecond,
		At:           time.Unix(0, record.At).UTC(),
	}, nil
}
