package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewRecordsEventCapsPayload(t *testing.T) {
	t.Parallel()

	delta := Delta{}
	for i := 0; i < 8; i++ {
		delta.Records = append(delta.Records, Record{ID: int64(i + 1), Title: string(rune('A' + i)), Link: "https://example.org"})
	}

	event := NewRecordsEvent(delta, 5)
	if event.Kind != EventNewRecords {
		t.Fatalf("unexpected kind: %s", event.Kind)
	}

	payload, ok := event.Data.(NewRecords)
	if !ok {
		t.Fatalf("unexpected payload type %T", event.Data)
	}
	if len(payload.Records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(payload.Records))
	}
	if payload.TotalNewCount != 8 {
		t.Fatalf("expected total 8, got %d", payload.TotalNewCount)
	}
	for i, rec := range payload.Records {
		if rec.ID != int64(i+1) {
			t.Fatalf("record %d out of source order: id %d", i, rec.ID)
		}
	}
}

func TestNewRecordsEventKeepsAllWhenUnderLimit(t *testing.T) {
	t.Parallel()

	delta := Delta{Records: []Record{{Title: "A", Link: "x"}, {Title: "B", Link: "y"}}}
	payload := NewRecordsEvent(delta, 5).Data.(NewRecords)
	if len(payload.Records) != 2 || payload.TotalNewCount != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	payload = NewRecordsEvent(delta, 0).Data.(NewRecords)
	if len(payload.Records) != 2 {
		t.Fatalf("limit 0 should keep everything, got %d", len(payload.Records))
	}
}

func TestEventWireFormat(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(NewInitialCountEvent(3))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"type":"initialCount","data":{"count":3}}` {
		t.Fatalf("unexpected initialCount encoding: %s", raw)
	}

	created := time.Date(2025, time.November, 8, 10, 0, 0, 0, time.UTC)
	raw, err = json.Marshal(NewRecordsEvent(Delta{Records: []Record{{ID: 7, Title: "A", Link: "x", CreatedAt: created}}}, 5))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"type":"newRecords"`, `"totalNewCount":1`, `"createdAt":"2025-11-08T10:00:00Z"`, `"id":7`} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("expected %s in %s", want, raw)
		}
	}
}

func TestIdentitySetIsCaseSensitive(t *testing.T) {
	t.Parallel()

	set := IdentitySet{}
	set.Add(Identity{Title: "Go", Link: "https://go.dev"})

	if !set.Has(Candidate{Title: "Go", Link: "https://go.dev"}.Identity()) {
		t.Fatalf("expected exact identity to match")
	}
	if set.Has(Identity{Title: "go", Link: "https://go.dev"}) {
		t.Fatalf("identity comparison must be case-sensitive")
	}
}
