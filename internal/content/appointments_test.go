package content

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wellora/telehealth-booking/pkg/logging"
)

// contentFixture is a tiny fake of the data API: queries answer from canned
// results, mutations are recorded.
type contentFixture struct {
	queryResult string
	patches     []map[string]any
	creates     []map[string]any
}

func (f *contentFixture) server(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"result":` + f.queryResult + `}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Mutations []struct {
				Create map[string]any `json:"create"`
				Patch  struct {
					ID  string         `json:"id"`
					Set map[string]any `json:"set"`
				} `json:"patch"`
			} `json:"mutations"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("decode mutations: %v", err)
		}
		for _, m := range payload.Mutations {
			if m.Create != nil {
				f.creates = append(f.creates, m.Create)
			}
			if m.Patch.ID != "" {
				f.patches = append(f.patches, m.Patch.Set)
			}
		}
		w.Write([]byte(`{"results":[{"id":"doc-1","operation":"update"}]}`))
	}))
}

func newFixtureStore(t *testing.T, f *contentFixture) (*AppointmentStore, func()) {
	t.Helper()
	srv := f.server(t)
	client := NewClient(srv.URL, "production", "tok", logging.Default())
	return NewAppointmentStore(client, logging.Default()), srv.Close
}

func TestGetAppointmentType(t *testing.T) {
	f := &contentFixture{queryResult: `{"_id":"type-1","title":"Initial Consultation","priceCents":10000,"durationMinutes":30,"qualiphyExamId":"exam-42"}`}
	store, done := newFixtureStore(t, f)
	defer done()

	at, err := store.GetAppointmentType(context.Background(), "type-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if at.PriceCents != 10000 || at.ExamCatalogID != "exam-42" {
		t.Fatalf("unexpected type: %+v", at)
	}
}

func TestGetAppointmentType_EmptyDocIsNotFound(t *testing.T) {
	f := &contentFixture{queryResult: `{}`}
	store, done := newFixtureStore(t, f)
	defer done()

	if _, err := store.GetAppointmentType(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetStripeRefs_SkipsEmptyValues(t *testing.T) {
	f := &contentFixture{}
	store, done := newFixtureStore(t, f)
	defer done()

	if err := store.SetStripeRefs(context.Background(), "type-1", "prod_1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.patches) != 1 {
		t.Fatalf("expected one patch, got %d", len(f.patches))
	}
	if f.patches[0]["stripeProductId"] != "prod_1" {
		t.Fatalf("expected product ref, got %v", f.patches[0])
	}
	if _, ok := f.patches[0]["stripePriceId"]; ok {
		t.Fatalf("expected empty price ref skipped, got %v", f.patches[0])
	}

	// All-empty refs are a no-op.
	if err := store.SetStripeRefs(context.Background(), "type-1", "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.patches) != 1 {
		t.Fatalf("expected no additional patch, got %d", len(f.patches))
	}
}

func TestCreateUserAppointment_SetsDocType(t *testing.T) {
	f := &contentFixture{}
	store, done := newFixtureStore(t, f)
	defer done()

	id, err := store.CreateUserAppointment(context.Background(), UserAppointmentDoc{
		UserID:    "user-1",
		UserEmail: "pat@example.com",
		Status:    "pending",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "doc-1" {
		t.Fatalf("expected doc-1, got %q", id)
	}
	if len(f.creates) != 1 || f.creates[0]["_type"] != "userAppointment" {
		t.Fatalf("expected userAppointment doc, got %v", f.creates)
	}
}

func TestMarkScheduled(t *testing.T) {
	f := &contentFixture{}
	store, done := newFixtureStore(t, f)
	defer done()

	if err := store.MarkScheduled(context.Background(), "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.patches) != 1 || f.patches[0]["status"] != "scheduled" {
		t.Fatalf("expected scheduled patch, got %v", f.patches)
	}
}

func TestAppendNotes_CombinesExisting(t *testing.T) {
	f := &contentFixture{queryResult: `{"notes":"first entry"}`}
	store, done := newFixtureStore(t, f)
	defer done()

	if err := store.AppendNotes(context.Background(), "doc-1", "second entry"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.patches) != 1 {
		t.Fatalf("expected one patch, got %d", len(f.patches))
	}
	if f.patches[0]["notes"] != "first entry\n\nsecond entry" {
		t.Fatalf("expected combined notes, got %v", f.patches[0]["notes"])
	}
}
