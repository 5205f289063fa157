package minter

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	dErrors "bibflow/pkg/domain-errors"

	"bibflow/internal/pidstore/models"
	"bibflow/internal/pidstore/store"
	recmodels "bibflow/internal/records/models"
	recstore "bibflow/internal/records/store"
)

type MinterSuite struct {
	suite.Suite
	ctx     context.Context
	pids    *store.InMemory
	records *recstore.InMemory
	minter  *Minter
}

func TestMinterSuite(t *testing.T) {
	suite.Run(t, new(MinterSuite))
}

func (s *MinterSuite) SetupTest() {
	s.ctx = context.Background()
	s.pids = store.NewInMemory()
	s.records = recstore.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.minter = New(s.pids, s.records, nil, logger, nil)
}

func (s *MinterSuite) createRecord(record *recmodels.Record) uuid.UUID {
	id, err := s.records.Create(s.ctx, record)
	s.Require().NoError(err)
	return id
}

func (s *MinterSuite) pidValues(recordID uuid.UUID, pidType models.Type) []string {
	pids, err := s.pids.FindByRecord(s.ctx, recordID, pidType)
	s.Require().NoError(err)
	values := make([]string, 0, len(pids))
	for _, pid := range pids {
		values = append(values, pid.Value)
	}
	return values
}

func (s *MinterSuite) TestMintRecordIDAllocatesControlNumber() {
	record := &recmodels.Record{Titles: []recmodels.Title{{Title: "A search"}}}
	id := s.createRecord(record)

	s.Require().NoError(s.minter.MintRecordID(s.ctx, id, record))

	s.NotZero(record.ControlNumber)
	s.Equal([]string{"1000000"}, s.pidValues(id, models.TypeRecID))
}

func (s *MinterSuite) TestMintRecordIDKeepsDeclaredControlNumber() {
	record := &recmodels.Record{ControlNumber: 4328}
	id := s.createRecord(record)

	s.Require().NoError(s.minter.MintRecordID(s.ctx, id, record))

	s.Equal(int64(4328), record.ControlNumber)
	s.Equal([]string{"4328"}, s.pidValues(id, models.TypeRecID))
}

func (s *MinterSuite) TestMintRecordIDIdempotent() {
	record := &recmodels.Record{ControlNumber: 4328}
	id := s.createRecord(record)

	s.Require().NoError(s.minter.MintRecordID(s.ctx, id, record))
	s.Require().NoError(s.minter.MintRecordID(s.ctx, id, record))

	s.Equal([]string{"4328"}, s.pidValues(id, models.TypeRecID))
}

func (s *MinterSuite) TestMintRecordIDCollisionReported() {
	first := &recmodels.Record{ControlNumber: 4328}
	firstID := s.createRecord(first)
	s.Require().NoError(s.minter.MintRecordID(s.ctx, firstID, first))

	second := &recmodels.Record{ControlNumber: 4328}
	secondID := s.createRecord(second)

	err := s.minter.MintRecordID(s.ctx, secondID, second)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Empty(s.pidValues(secondID, models.TypeRecID))
}

func (s *MinterSuite) TestMintArxivOnlyAccumulates() {
	record := &recmodels.Record{ArxivEprints: []recmodels.ArxivEprint{{Value: "hep-th/9711200"}}}
	id := s.createRecord(record)
	s.Require().NoError(s.minter.MintArxiv(s.ctx, id, record))

	record.ArxivEprints = []recmodels.ArxivEprint{{Value: "2301.00001"}}
	s.Require().NoError(s.minter.MintArxiv(s.ctx, id, record))

	s.ElementsMatch([]string{"hep-th/9711200", "2301.00001"}, s.pidValues(id, models.TypeArxiv))
}

func (s *MinterSuite) TestMintArxivForeignValueSkipped() {
	owner := &recmodels.Record{ArxivEprints: []recmodels.ArxivEprint{{Value: "hep-th/9711200"}}}
	ownerID := s.createRecord(owner)
	s.Require().NoError(s.minter.MintArxiv(s.ctx, ownerID, owner))

	claimant := &recmodels.Record{ArxivEprints: []recmodels.ArxivEprint{
		{Value: "hep-th/9711200"},
		{Value: "2301.00001"},
	}}
	claimantID := s.createRecord(claimant)

	s.Require().NoError(s.minter.MintArxiv(s.ctx, claimantID, claimant))

	owned, err := s.pids.FindByValue(s.ctx, models.TypeArxiv, "hep-th/9711200")
	s.Require().NoError(err)
	s.Equal(ownerID, owned.RecordID)
	s.Equal([]string{"2301.00001"}, s.pidValues(claimantID, models.TypeArxiv))
}

func (s *MinterSuite) TestMintISBNsTracksDeclaredSet() {
	record := &recmodels.Record{ISBNs: []recmodels.ISBN{
		{Value: "9781108499996"},
		{Value: "9780521670531"},
	}}
	id := s.createRecord(record)
	s.Require().NoError(s.minter.MintISBNs(s.ctx, id, record))

	// One stays, one goes, one arrives.
	record.ISBNs = []recmodels.ISBN{
		{Value: "9780521670531"},
		{Value: "9780306471094"},
	}
	s.Require().NoError(s.minter.MintISBNs(s.ctx, id, record))

	s.ElementsMatch([]string{"9780521670531", "9780306471094"}, s.pidValues(id, models.TypeISBN))
}

func (s *MinterSuite) TestMintISBNsIdempotent() {
	record := &recmodels.Record{ISBNs: []recmodels.ISBN{{Value: "9781108499996"}}}
	id := s.createRecord(record)

	s.Require().NoError(s.minter.MintISBNs(s.ctx, id, record))
	s.Require().NoError(s.minter.MintISBNs(s.ctx, id, record))

	s.Equal([]string{"9781108499996"}, s.pidValues(id, models.TypeISBN))
}

func (s *MinterSuite) TestMintTexkeyGeneratesFirstKey() {
	record := &recmodels.Record{
		Authors:      []recmodels.Author{{FullName: "Jones, Sarah"}},
		PreprintDate: "2001-03-14",
	}
	id := s.createRecord(record)

	s.Require().NoError(s.minter.MintTexkey(s.ctx, id, record))

	s.Require().Len(record.Texkeys, 1)
	s.Regexp(`^Jones:2001[a-z]{3}$`, record.Texkeys[0])
	s.Equal(record.Texkeys, s.pidValues(id, models.TypeTexkey))
}

func (s *MinterSuite) TestMintTexkeyStableWhileValid() {
	record := &recmodels.Record{
		Authors:      []recmodels.Author{{FullName: "Jones, Sarah"}},
		PreprintDate: "2001-03-14",
	}
	id := s.createRecord(record)
	s.Require().NoError(s.minter.MintTexkey(s.ctx, id, record))
	key := record.Texkeys[0]

	s.Require().NoError(s.minter.MintTexkey(s.ctx, id, record))

	s.Equal([]string{key}, record.Texkeys)
}

func (s *MinterSuite) TestMintTexkeyEvolvesAndKeepsOldKeys() {
	record := &recmodels.Record{
		Authors:      []recmodels.Author{{FullName: "Jones, Sarah"}},
		PreprintDate: "2001-03-14",
	}
	id := s.createRecord(record)
	s.Require().NoError(s.minter.MintTexkey(s.ctx, id, record))
	oldKey := record.Texkeys[0]

	record.Authors = []recmodels.Author{{FullName: "Rand, Ayn"}}
	s.Require().NoError(s.minter.MintTexkey(s.ctx, id, record))

	s.Require().Len(record.Texkeys, 2)
	s.Regexp(`^Rand:2001[a-z]{3}$`, record.Texkeys[0])
	s.Equal(oldKey, record.Texkeys[1])
	s.ElementsMatch(record.Texkeys, s.pidValues(id, models.TypeTexkey))
}

func (s *MinterSuite) TestMintTexkeyBindsImportedKeys() {
	record := &recmodels.Record{
		Authors:      []recmodels.Author{{FullName: "Jones, Sarah"}},
		PreprintDate: "2001-03-14",
		Texkeys:      []string{"Jones:2001abc"},
	}
	id := s.createRecord(record)

	s.Require().NoError(s.minter.MintTexkey(s.ctx, id, record))

	s.Equal([]string{"Jones:2001abc"}, record.Texkeys)
	s.Equal([]string{"Jones:2001abc"}, s.pidValues(id, models.TypeTexkey))
}

func (s *MinterSuite) TestMintTexkeyStaleImportedKeyPrependsFreshKey() {
	record := &recmodels.Record{
		Authors:      []recmodels.Author{{FullName: "Jones, Sarah"}},
		PreprintDate: "2001-03-14",
		Texkeys:      []string{"Old:1999abc"},
	}
	id := s.createRecord(record)

	s.Require().NoError(s.minter.MintTexkey(s.ctx, id, record))

	s.Require().Len(record.Texkeys, 2)
	s.Regexp(`^Jones:2001[a-z]{3}$`, record.Texkeys[0])
	s.Equal("Old:1999abc", record.Texkeys[1])

	// A second pass over the unchanged record must not mint a third key.
	s.Require().NoError(s.minter.MintTexkey(s.ctx, id, record))

	s.Len(record.Texkeys, 2)
	s.Len(s.pidValues(id, models.TypeTexkey), 2)
}

func (s *MinterSuite) TestReconcileCommitsRewrittenFields() {
	record := &recmodels.Record{
		Authors:      []recmodels.Author{{FullName: "Jones, Sarah"}},
		PreprintDate: "2001-03-14",
		ArxivEprints: []recmodels.ArxivEprint{{Value: "2301.00001"}},
		ISBNs:        []recmodels.ISBN{{Value: "9781108499996"}},
	}
	id := s.createRecord(record)

	s.Require().NoError(s.minter.Reconcile(s.ctx, id, record))

	stored, err := s.records.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(record.ControlNumber, stored.ControlNumber)
	s.Equal(record.Texkeys, stored.Texkeys)
	s.Equal([]string{"2301.00001"}, s.pidValues(id, models.TypeArxiv))
	s.Equal([]string{"9781108499996"}, s.pidValues(id, models.TypeISBN))
}

func (s *MinterSuite) TestReconcileIdempotent() {
	record := &recmodels.Record{
		Authors:      []recmodels.Author{{FullName: "Jones, Sarah"}},
		PreprintDate: "2001-03-14",
		ISBNs:        []recmodels.ISBN{{Value: "9781108499996"}},
	}
	id := s.createRecord(record)

	s.Require().NoError(s.minter.Reconcile(s.ctx, id, record))
	controlNumber := record.ControlNumber
	texkeys := append([]string(nil), record.Texkeys...)

	s.Require().NoError(s.minter.Reconcile(s.ctx, id, record))

	s.Equal(controlNumber, record.ControlNumber)
	s.Equal(texkeys, record.Texkeys)
	s.Len(s.pidValues(id, models.TypeTexkey), 1)
}

func TestMissingFrom(t *testing.T) {
	t.Parallel()

	got := missingFrom([]string{"a", "b", "c"}, []string{"b"})
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("missingFrom = %v, want [a c]", got)
	}
	if missingFrom(nil, []string{"a"}) != nil {
		t.Fatal("missingFrom(nil, ...) should be nil")
	}
}
