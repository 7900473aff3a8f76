package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestService_AppendRequiresType(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if err := svc.Append(context.Background(), Event{CallID: "CA1"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestService_FillsIDAndTimestamp(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return at }

	if err := svc.RecordTurn(context.Background(), Event{Type: EventTurnRejected, Reason: "empty-speech", CallID: "CA1"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].ID == "" || !evs[0].CreatedAt.Equal(at) {
		t.Fatalf("expected id and timestamp, got %+v", evs[0])
	}
}

func TestService_ListFiltersTenantAndWindow(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_ = svc.Append(ctx, Event{TenantID: "t1", Type: EventTurnContinued, CreatedAt: base})
	_ = svc.Append(ctx, Event{TenantID: "t1", Type: EventTurnDegraded, CreatedAt: base.Add(time.Hour)})
	_ = svc.Append(ctx, Event{TenantID: "t2", Type: EventTurnContinued, CreatedAt: base})

	evs, err := svc.List(ctx, Filter{TenantID: "t1", From: base, To: base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(evs) != 1 || evs[0].Type != EventTurnContinued {
		t.Fatalf("expected only the first t1 event, got %+v", evs)
	}

	all, _ := svc.List(ctx, Filter{})
	if len(all) != 3 {
		t.Fatalf("expected all events, got %d", len(all))
	}
}

func TestService_ListRejectsInvertedWindow(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Now()
	if _, err := svc.List(context.Background(), Filter{From: now, To: now.Add(-time.Minute)}); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestListQuery_BuildsPlaceholdersInOrder(t *testing.T) {
	now := time.Now()
	q, args := listQuery(Filter{TenantID: "t1", From: now, To: now.Add(time.Hour)})
	if !strings.Contains(q, "tenant_id = $1 AND created_at >= $2 AND created_at < $3") {
		t.Fatalf("unexpected query: %s", q)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}

	q, args = listQuery(Filter{})
	if strings.Contains(q, "WHERE") || len(args) != 0 {
		t.Fatalf("expected unfiltered query, got %s %v", q, args)
	}
}

func TestLoadSchema_DefinesTurnEvents(t *testing.T) {
	ddl, err := LoadSchema(PostgresSchemaName)
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS turn_events") {
		t.Fatalf("schema missing turn_events table")
	}
}
