package pgstore_test

import (
	"os"
	"testing"

	"github.com/google/uuid"
	gc "gopkg.in/check.v1"

	"github.com/hlscosim/cosim/result"
	"github.com/hlscosim/cosim/result/pgstore"
	"github.com/hlscosim/cosim/trace"
)

func Test(t *testing.T) { gc.TestingT(t) }

var _ = gc.Suite(new(StoreSuite))

// StoreSuite exercises pgstore against a real Postgres/CockroachDB instance,
// the same SuiteBase-less skip-on-missing-DSN pattern
// Chapter06/linkgraph/store/cdb's test suite uses: no DSN, no assertions.
type StoreSuite struct {
	store *pgstore.Store
}

func (s *StoreSuite) SetUpSuite(c *gc.C) {
	dsn := os.Getenv("HLSCOSIM_PG_DSN")
	if dsn == "" {
		c.Skip("Missing HLSCOSIM_PG_DSN envvar; skipping Postgres-backed pgstore suite")
	}

	store, err := pgstore.Open(dsn)
	c.Assert(err, gc.IsNil)
	s.store = store
}

func (s *StoreSuite) TearDownSuite(c *gc.C) {
	if s.store != nil {
		c.Assert(s.store.Close(), gc.IsNil)
	}
}

func (s *StoreSuite) TestSaveThenFindRoundTripsReport(c *gc.C) {
	report := &result.Report{
		Top: &result.ModuleInterval{
			Name:       "dut",
			StartCycle: 0,
			EndCycle:   42,
			Children: []*result.ModuleInterval{
				{Name: "helper", StartCycle: 3, EndCycle: 20},
			},
		},
		ObservedFifoDepths: map[trace.StreamID]int{1: 4, 2: 0},
	}

	runID := uuid.New()
	c.Assert(s.store.Save(runID, report), gc.IsNil)

	got, err := s.store.Find(runID)
	c.Assert(err, gc.IsNil)
	c.Assert(got.Top.Name, gc.Equals, report.Top.Name)
	c.Assert(got.Top.EndCycle, gc.Equals, report.Top.EndCycle)
	c.Assert(got.Top.Children, gc.HasLen, 1)
	c.Assert(got.Top.Children[0].Name, gc.Equals, "helper")
	c.Assert(got.ObservedFifoDepths[trace.StreamID(1)], gc.Equals, 4)
}

func (s *StoreSuite) TestFindMissingRunReturnsErrNotFound(c *gc.C) {
	_, err := s.store.Find(uuid.New())
	c.Assert(err, gc.ErrorMatches, ".*run not found.*")
}
