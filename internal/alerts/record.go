package alerts

import (
	"encoding/json"
	"fmt"

	"alertbot/internal/storage"
)

func toRecord(n Notification) (*storage.Record, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", n.ID, err)
	}
	return &storage.Record{
		ID:        n.ID,
		CreatedAt: n.CreatedAt,
		FireAt:    n.FireAt,
		State:     string(n.State),
		Read:      n.Read,
		Data:      data,
	}, nil
}

func fromRecord(rec storage.Record) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(rec.Data, &n); err != nil {
		return Notification{}, fmt.Errorf("decode %s: %w", rec.ID, err)
	}
	// Indexed columns win; SQL drivers may update them without rewriting data.
	n.ID = rec.ID
	n.Read = rec.Read
	if rec.State != "" {
		n.State = State(rec.State)
	}
	return n, nil
}
