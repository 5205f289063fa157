//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"bibflow/internal/pidstore/models"
	"bibflow/internal/pidstore/store"
	recmodels "bibflow/internal/records/models"
	recstore "bibflow/internal/records/store"
	"bibflow/pkg/platform/sentinel"
	txcontext "bibflow/pkg/platform/tx"
	"bibflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	records  *recstore.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.records = recstore.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	// Truncate in dependency order
	err := s.postgres.TruncateTables(ctx, "persistent_identifiers", "records")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) createRecord() uuid.UUID {
	id, err := s.records.Create(context.Background(), &recmodels.Record{
		Titles: []recmodels.Title{{Title: "integration fixture"}},
	})
	s.Require().NoError(err)
	return id
}

func newPid(recordID uuid.UUID, pidType models.Type, value string) models.Identifier {
	return models.Identifier{
		RecordID: recordID,
		Type:     pidType,
		Value:    value,
		Status:   models.StatusRegistered,
	}
}

// TestConcurrentMintSameValue verifies the unique constraint lets exactly one
// record claim a value while every other claimant sees a conflict.
func (s *PostgresStoreSuite) TestConcurrentMintSameValue() {
	ctx := context.Background()
	const goroutines = 20

	recordIDs := make([]uuid.UUID, goroutines)
	for i := range recordIDs {
		recordIDs[i] = s.createRecord()
	}

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(recordID uuid.UUID) {
			defer wg.Done()

			err := s.store.Create(ctx, newPid(recordID, models.TypeArxiv, "2301.00001"))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}(recordIDs[i])
	}

	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one mint should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should conflict")
}

// TestSameOwnerRemintIsNoOp verifies reconciliation can re-run without error.
func (s *PostgresStoreSuite) TestSameOwnerRemintIsNoOp() {
	ctx := context.Background()
	recordID := s.createRecord()

	s.Require().NoError(s.store.Create(ctx, newPid(recordID, models.TypeISBN, "9781108499996")))
	s.Require().NoError(s.store.Create(ctx, newPid(recordID, models.TypeISBN, "9781108499996")))

	pids, err := s.store.FindByRecord(ctx, recordID, models.TypeISBN)
	s.Require().NoError(err)
	s.Len(pids, 1)
}

// TestFindByRecordOrdering verifies newest-first ordering across inserts.
func (s *PostgresStoreSuite) TestFindByRecordOrdering() {
	ctx := context.Background()
	recordID := s.createRecord()

	s.Require().NoError(s.store.Create(ctx, newPid(recordID, models.TypeTexkey, "Jones:2001abc")))
	s.Require().NoError(s.store.Create(ctx, newPid(recordID, models.TypeTexkey, "Rand:2001xyz")))

	pids, err := s.store.FindByRecord(ctx, recordID, models.TypeTexkey)
	s.Require().NoError(err)
	s.Require().Len(pids, 2)
	s.Equal("Rand:2001xyz", pids[0].Value)
	s.Equal("Jones:2001abc", pids[1].Value)
}

// TestRetireFreesValue verifies a retired value can be claimed by another record.
func (s *PostgresStoreSuite) TestRetireFreesValue() {
	ctx := context.Background()
	first := s.createRecord()
	second := s.createRecord()

	s.Require().NoError(s.store.Create(ctx, newPid(first, models.TypeISBN, "9780521670531")))
	s.Require().NoError(s.store.Retire(ctx, first, models.TypeISBN, "9780521670531"))
	s.Require().NoError(s.store.Create(ctx, newPid(second, models.TypeISBN, "9780521670531")))

	found, err := s.store.FindByValue(ctx, models.TypeISBN, "9780521670531")
	s.Require().NoError(err)
	s.Equal(second, found.RecordID)
}

// TestRetireForeignValue verifies ownership is checked on retirement.
func (s *PostgresStoreSuite) TestRetireForeignValue() {
	ctx := context.Background()
	owner := s.createRecord()
	s.Require().NoError(s.store.Create(ctx, newPid(owner, models.TypeISBN, "9780306471094")))

	err := s.store.Retire(ctx, s.createRecord(), models.TypeISBN, "9780306471094")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

// TestCollisionInsideTransactionIsNonFatal verifies a skipped mint leaves the
// ambient transaction usable: later inserts in the same transaction succeed
// and the transaction commits.
func (s *PostgresStoreSuite) TestCollisionInsideTransactionIsNonFatal() {
	ctx := context.Background()
	owner := s.createRecord()
	claimant := s.createRecord()

	s.Require().NoError(s.store.Create(ctx, newPid(owner, models.TypeArxiv, "hep-th/9711200")))

	runner := txcontext.NewRunner(s.postgres.DB)
	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		err := s.store.Create(ctx, newPid(claimant, models.TypeArxiv, "hep-th/9711200"))
		s.Require().ErrorIs(err, sentinel.ErrConflict)

		// Same-owner re-mint detection must also work after the collision.
		s.Require().NoError(s.store.Create(ctx, newPid(owner, models.TypeArxiv, "hep-th/9711200")))

		return s.store.Create(ctx, newPid(claimant, models.TypeArxiv, "2301.00001"))
	})
	s.Require().NoError(err)

	pids, err := s.store.FindByRecord(ctx, claimant, models.TypeArxiv)
	s.Require().NoError(err)
	s.Require().Len(pids, 1)
	s.Equal("2301.00001", pids[0].Value)
}

// TestControlNumberSequence verifies the sequence is gapless under this
// workload and starts at the configured base.
func (s *PostgresStoreSuite) TestControlNumberSequence() {
	ctx := context.Background()

	first, err := s.store.NextControlNumber(ctx)
	s.Require().NoError(err)
	s.GreaterOrEqual(first, int64(1000000))

	second, err := s.store.NextControlNumber(ctx)
	s.Require().NoError(err)
	s.Greater(second, first)
}
