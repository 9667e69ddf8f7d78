//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ncrtrack/internal/platform/lock"
	"ncrtrack/internal/store"
	"ncrtrack/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB, lock.NewMemoryManager(5*time.Second))
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "table_rows", "table_headers"))
	s.Require().NoError(s.store.EnsureTable(ctx, "Records",
		[]string{"NCR Number", "Status", "Risk"}))
}

func (s *PostgresStoreSuite) TestInsertFindRoundTrip() {
	ctx := context.Background()

	res, err := s.store.Insert(ctx, "Records",
		store.Row{"NCR Number": "0001/2025", "Status": "Open", "Risk": "High"},
		store.Row{"NCR Number": "0002/2025", "Status": "Open", "Risk": "Low"},
	)
	s.Require().NoError(err)
	s.Equal(2, res.RowsInserted)

	rows, err := s.store.Find(ctx, "Records",
		store.Filters{"Risk": store.Condition{Op: "in", Value: []string{"High", "Critical"}}}, nil)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("0001/2025", rows[0]["NCR Number"])
}

func (s *PostgresStoreSuite) TestUpdateWritesWholeRow() {
	ctx := context.Background()

	_, err := s.store.Insert(ctx, "Records",
		store.Row{"NCR Number": "0001/2025", "Status": "Open", "Risk": "High"})
	s.Require().NoError(err)

	res, err := s.store.Update(ctx, "Records",
		store.Filters{"NCR Number": "0001/2025"},
		store.Row{"Status": "Closed"})
	s.Require().NoError(err)
	s.Equal(1, res.RowsUpdated)

	rows, err := s.store.Find(ctx, "Records", store.Filters{"NCR Number": "0001/2025"}, nil)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("Closed", rows[0]["Status"])
	s.Equal("High", rows[0]["Risk"], "untouched cells survive the whole-row write")
}

func (s *PostgresStoreSuite) TestDeleteByFilter() {
	ctx := context.Background()

	_, err := s.store.Insert(ctx, "Records",
		store.Row{"NCR Number": "0001/2025", "Status": "Stale"},
		store.Row{"NCR Number": "0002/2025", "Status": "Open"},
		store.Row{"NCR Number": "0003/2025", "Status": "Stale"},
	)
	s.Require().NoError(err)

	res, err := s.store.Delete(ctx, "Records", store.Filters{"Status": "Stale"})
	s.Require().NoError(err)
	s.Equal(2, res.RowsDeleted)

	rows, err := s.store.Find(ctx, "Records", store.Filters{}, nil)
	s.Require().NoError(err)
	s.Len(rows, 1)
}

func (s *PostgresStoreSuite) TestAbsentTableFindsEmpty() {
	rows, err := s.store.Find(context.Background(), "NoSuchTable", store.Filters{}, nil)
	s.Require().NoError(err)
	s.Empty(rows)
}

func (s *PostgresStoreSuite) TestBatchWindows() {
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		_, err := s.store.Insert(ctx, "Records", store.Row{"Status": "Open"})
		s.Require().NoError(err)
	}

	res, err := s.store.Batch(ctx, "Records", func(rows []store.Row, offset int) (any, error) {
		return len(rows), nil
	}, 3)
	s.Require().NoError(err)
	s.Equal(7, res.ProcessedRows)
	s.Equal([]any{3, 3, 1}, res.Results)
}
