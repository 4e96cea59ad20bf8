package notifications

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/spaceshare/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO notifications \(id, kind, author_id, entity_id, created_at\)`).
		WithArgs("n1", "POST", "u1", "e1", created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Notification{
		ID:        "n1",
		Kind:      models.NotificationKindPost,
		AuthorID:  "u1",
		EntityID:  "e1",
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAddTargets_MultiRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO notification_targets \(notification_id, user_id\) VALUES \(\$1, \$2\), \(\$1, \$3\)`).
		WithArgs("n1", "u1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.AddTargets(context.Background(), "n1", []string{"u1", "u2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAddTargets_EmptyAudienceIsNoop(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	if err := repo.AddTargets(context.Background(), "n1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected statement executed: %v", err)
	}
}
