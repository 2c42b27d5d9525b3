package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"

	"catchup-relay/internal/domain/entity"
	"catchup-relay/internal/infra/adapter/persistence/postgres"
	"catchup-relay/tests/fixtures"
)

/* ──────────────────────────────── 1. Record ──────────────────────────────── */

func TestDeliveryRepo_Record(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	delivered := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	d := fixtures.NewTestDelivery(fixtures.WithDeliveredAt(delivered))

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO deliveries`)).
		WithArgs(d.DedupeKey, d.Channel, d.FeedName, d.Title, d.Link, delivered).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := postgres.NewDeliveryRepo(db)
	if err := repo.Record(context.Background(), d); err != nil {
		t.Fatalf("Record err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryRepo_Record_FillsDeliveredAt(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO deliveries`)).
		WithArgs("feed-a:entry-1", "discord", "feed-a", "t", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := postgres.NewDeliveryRepo(db)
	err := repo.Record(context.Background(), &entity.Delivery{
		DedupeKey: "feed-a:entry-1", Channel: "discord", FeedName: "feed-a", Title: "t",
	})
	if err != nil {
		t.Fatalf("Record err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryRepo_Record_Duplicate(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	// UNIQUE(dedupe_key, channel) 違反は ErrDuplicate に正規化する
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO deliveries`)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	repo := postgres.NewDeliveryRepo(db)
	err := repo.Record(context.Background(), &entity.Delivery{
		DedupeKey: "feed-a:entry-1", Channel: "discord",
	})
	if !errors.Is(err, entity.ErrDuplicate) {
		t.Fatalf("Record err=%v, want ErrDuplicate", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryRepo_Record_InvalidDelivery(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	repo := postgres.NewDeliveryRepo(db)
	err := repo.Record(context.Background(), &entity.Delivery{Channel: "discord"})
	if err == nil {
		t.Fatal("Record with empty dedupe key should return error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ──────────────────────────────── 2. RecentKeys ──────────────────────────────── */

func TestDeliveryRepo_RecentKeys(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	since := time.Now().Add(-72 * time.Hour)
	mock.ExpectQuery(`SELECT dedupe_key FROM deliveries`).
		WithArgs("discord", since).
		WillReturnRows(sqlmock.NewRows([]string{"dedupe_key"}).
			AddRow("feed-a:entry-1").
			AddRow("feed-b:entry-9"))

	repo := postgres.NewDeliveryRepo(db)
	got, err := repo.RecentKeys(context.Background(), "discord", since)
	if err != nil {
		t.Fatalf("RecentKeys err=%v", err)
	}
	want := map[string]bool{"feed-a:entry-1": true, "feed-b:entry-9": true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryRepo_RecentKeys_Empty(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	since := time.Now()
	mock.ExpectQuery(`SELECT dedupe_key FROM deliveries`).
		WithArgs("slack", since).
		WillReturnRows(sqlmock.NewRows([]string{"dedupe_key"}))

	repo := postgres.NewDeliveryRepo(db)
	got, err := repo.RecentKeys(context.Background(), "slack", since)
	if err != nil {
		t.Fatalf("RecentKeys err=%v", err)
	}
	if len(got) != 0 {
		t.Fatalf("RecentKeys len=%d, want 0", len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ──────────────────────────────── 3. Prune ──────────────────────────────── */

func TestDeliveryRepo_Prune(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM deliveries`)).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	repo := postgres.NewDeliveryRepo(db)
	n, err := repo.Prune(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("Prune err=%v", err)
	}
	if n != 3 {
		t.Fatalf("Prune n=%d, want 3", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
