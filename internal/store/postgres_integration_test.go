package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"formbuilder/api/internal/forms"
)

func openTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, dsn); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db)
}

func seedUser(t *testing.T, db *sql.DB, id, email string) {
	t.Helper()
	if _, err := db.Exec(`INSERT INTO users (id, name, email) VALUES ($1, $2, $3)`, id, id, email); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func TestMigrationsRoundTripPostgres(t *testing.T) {
	s := openTestStore(t)
	dsn := os.Getenv("TEST_DATABASE_URL")
	ctx := context.Background()

	if err := RollbackMigrations(ctx, dsn); err != nil {
		t.Fatalf("rollback migrations: %v", err)
	}
	if err := ApplyMigrations(ctx, dsn); err != nil {
		t.Fatalf("re-apply migrations: %v", err)
	}
	if err := ApplyMigrations(ctx, dsn); err != nil {
		t.Fatalf("applying twice must be a no-op: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestTemplateLifecyclePostgres(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s.DB(), "u1", "u1@example.gc.ca")
	seedUser(t, s.DB(), "u2", "u2@example.gc.ca")

	created, err := s.CreateTemplate(ctx, NewTemplate{
		OwnerID:    "u1",
		JSONConfig: json.RawMessage(`{"title":"T"}`),
		Name:       "Intake",
		DeliveryOption: &forms.DeliveryOption{
			EmailAddress: "inbox@example.gc.ca",
		},
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	if created.IsPublished || created.SecurityAttribute != "Unclassified" || created.DeliveryOption == nil {
		t.Fatalf("unexpected created row %+v", created)
	}

	_, users, err := s.FindTemplateWithUsers(ctx, created.ID)
	if err != nil || len(users) != 1 || users[0].ID != "u1" {
		t.Fatalf("expected owner u1, got %+v err=%v", users, err)
	}

	updated, err := s.UpdateTemplate(ctx, created.ID, TemplatePatch{
		FormPurpose:    Some("nonAdmin"),
		DeliveryOption: Some[*forms.DeliveryOption](nil),
	})
	if err != nil || updated == nil {
		t.Fatalf("update template: %v", err)
	}
	if updated.DeliveryOption != nil || updated.FormPurpose != "nonAdmin" || updated.Name != "Intake" {
		t.Fatalf("unexpected updated row %+v", updated)
	}

	_, owners, err := s.UpdateTemplateUsers(ctx, created.ID, []string{"u2"}, []string{"u1"})
	if err != nil || len(owners) != 1 || owners[0].ID != "u2" {
		t.Fatalf("expected owner u2, got %+v err=%v", owners, err)
	}
	if _, _, err := s.UpdateTemplateUsers(ctx, created.ID, []string{"ghost"}, nil); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}

	mine, err := s.ListTemplates(ctx, TemplateFilter{OwnerID: "u2", Sort: forms.SortDesc})
	if err != nil || len(mine) != 1 {
		t.Fatalf("expected one template for u2, got %d err=%v", len(mine), err)
	}

	if _, err := s.InsertResponse(ctx, FormResponse{TemplateID: created.ID}); err != nil {
		t.Fatalf("insert response: %v", err)
	}
	count, err := s.CountUnprocessedResponses(ctx, created.ID)
	if err != nil || count != 1 {
		t.Fatalf("expected one unprocessed response, got %d err=%v", count, err)
	}
	deleted, err := s.DeleteResponses(ctx, created.ID)
	if err != nil || deleted != 1 {
		t.Fatalf("expected one deleted response, got %d err=%v", deleted, err)
	}

	published, err := s.UpdateTemplate(ctx, created.ID, TemplatePatch{RequireDraft: true, IsPublished: Some(true)})
	if err != nil || published == nil || !published.IsPublished {
		t.Fatalf("publish: %+v err=%v", published, err)
	}
	if _, err := s.UpdateTemplate(ctx, created.ID, TemplatePatch{RequireDraft: true, IsPublished: Some(true)}); !errors.Is(err, ErrPublished) {
		t.Fatalf("expected ErrPublished on second publish, got %v", err)
	}
	if _, err := s.UpdateTemplate(ctx, created.ID, TemplatePatch{RequireDraft: true, Name: Some("Renamed")}); !errors.Is(err, ErrPublished) {
		t.Fatalf("expected ErrPublished on draft-only update, got %v", err)
	}

	ttl := time.Now().Add(30 * 24 * time.Hour)
	if _, err := s.UpdateTemplate(ctx, created.ID, TemplatePatch{TTL: Some(&ttl)}); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	again, err := s.UpdateTemplate(ctx, created.ID, TemplatePatch{Name: Some("x")})
	if err != nil || again != nil {
		t.Fatalf("expected soft-deleted template to be absent for updates, got %+v err=%v", again, err)
	}
	listed, err := s.ListTemplates(ctx, TemplateFilter{})
	if err != nil || len(listed) != 0 {
		t.Fatalf("expected soft-deleted template to be hidden, got %d err=%v", len(listed), err)
	}

	if err := s.InsertAuditEvent(ctx, AuditEvent{ActorID: "u1", TargetType: "Form", TargetID: created.ID, Event: "DeleteForm"}); err != nil {
		t.Fatalf("insert audit event: %v", err)
	}
	events, err := s.ListAuditEvents(ctx, created.ID, 10)
	if err != nil || len(events) != 1 || events[0].Event != "DeleteForm" {
		t.Fatalf("unexpected audit events %+v err=%v", events, err)
	}
}
