package resolve_test

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	gc "gopkg.in/check.v1"

	"github.com/hlscosim/cosim/cdfg"
	"github.com/hlscosim/cosim/resolve"
	"github.com/hlscosim/cosim/resolve/mocks"
	"github.com/hlscosim/cosim/trace"
)

var _ = gc.Suite(new(ResolverMockSuite))

// ResolverMockSuite exercises Resolver against a mocked FunctionLookup,
// the same gomock.Controller/EXPECT()/Finish() idiom
// Chapter07/crawler's link_fetcher_test.go uses for its own single-method
// collaborators.
type ResolverMockSuite struct{}

func (s *ResolverMockSuite) TestUnknownFunctionIsAProtocolViolation(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	fns := mocks.NewMockFunctionLookup(ctrl)
	fns.EXPECT().Function("dut").Return(nil, false)

	toks := []trace.Token{
		{Kind: trace.KindTraceBB, Function: "dut", BlockIndex: 0},
	}

	r := resolve.NewResolver(fns, trace.NewCatalog())
	_, err := r.Resolve(context.Background(), toks, nil)
	c.Assert(err, gc.ErrorMatches, `.*unknown function "dut".*protocol violation.*`)
	c.Assert(err, gc.NotNil)
}

func (s *ResolverMockSuite) TestFunctionLookupIsOnlyConsultedOnceForRootFrame(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	dut := cdfg.NewFunction("dut", 0)
	dut.AddBlock(&cdfg.BasicBlock{Index: 0, Name: "entry", Start: 0, End: 1, Length: 1, Terminator: "ret"})

	fns := mocks.NewMockFunctionLookup(ctrl)
	fns.EXPECT().Function("dut").Return(dut, true).Times(1)

	toks := []trace.Token{
		{Kind: trace.KindTraceBB, Function: "dut", BlockIndex: 0},
	}

	r := resolve.NewResolver(fns, trace.NewCatalog())
	tr, err := r.Resolve(context.Background(), toks, nil)
	c.Assert(err, gc.IsNil)
	c.Assert(tr.Blocks, gc.HasLen, 1)
}
