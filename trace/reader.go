package trace

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// ErrMalformedToken is returned for a line that does not match its kind's
// expected field count or field syntax.
var ErrMalformedToken = xerrors.New("malformed trace token")

// ReadAll parses every line of r into an ordered Token slice. Declaration
// tokens (spec_channel, spec_interface, ap_ctrl_chain) are returned inline,
// in stream order, alongside everything else — the resolver is the one
// that interns them into a Catalog as it walks the sequence, since they
// are part of the same token alphabet it folds over (spec.md §4.1).
//
// Blank lines are skipped. Each non-blank line is a tab-separated record
// whose first field names the token Kind.
func ReadAll(r io.Reader) ([]Token, error) {
	var toks []Token

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimRight(sc.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		tok, err := parseFields(fields)
		if err != nil {
			return nil, xerrors.Errorf("line %d: %w", lineNo, err)
		}
		toks = append(toks, tok)
	}
	if err := sc.Err(); err != nil {
		return nil, xerrors.Errorf("reading trace: %w", err)
	}
	return toks, nil
}

func parseFields(f []string) (Token, error) {
	kind := Kind(f[0])
	switch kind {
	case KindSpecChannel:
		if len(f) != 4 {
			return Token{}, xerrors.Errorf("%s: expected 3 fields: %w", kind, ErrMalformedToken)
		}
		addr, err := parseHex(f[1])
		if err != nil {
			return Token{}, err
		}
		depth := UnboundedDepth
		if f[3] != "unbounded" {
			d, err := strconv.Atoi(f[3])
			if err != nil {
				return Token{}, xerrors.Errorf("%s: depth %q: %w", kind, f[3], ErrMalformedToken)
			}
			depth = d
		}
		return Token{Kind: kind, Addr: addr, Name: f[2], Depth: depth}, nil

	case KindSpecInterface:
		if len(f) != 4 {
			return Token{}, xerrors.Errorf("%s: expected 3 fields: %w", kind, ErrMalformedToken)
		}
		addr, err := parseHex(f[1])
		if err != nil {
			return Token{}, err
		}
		latency, err := strconv.Atoi(f[3])
		if err != nil {
			return Token{}, xerrors.Errorf("%s: latency %q: %w", kind, f[3], ErrMalformedToken)
		}
		return Token{Kind: kind, Addr: addr, Name: f[2], Latency: latency}, nil

	case KindApCtrlChain, KindEndLoopBlocks, KindEndLoop:
		return Token{Kind: kind}, nil

	case KindTraceBB, KindLoopBB:
		if len(f) != 3 {
			return Token{}, xerrors.Errorf("%s: expected 2 fields: %w", kind, ErrMalformedToken)
		}
		idx, err := strconv.Atoi(f[2])
		if err != nil {
			return Token{}, xerrors.Errorf("%s: block index %q: %w", kind, f[2], ErrMalformedToken)
		}
		return Token{Kind: kind, Function: f[1], BlockIndex: idx}, nil

	case KindLoop:
		if len(f) != 3 {
			return Token{}, xerrors.Errorf("%s: expected 2 fields: %w", kind, ErrMalformedToken)
		}
		trip, err := strconv.Atoi(f[2])
		if err != nil {
			return Token{}, xerrors.Errorf("%s: tripcount %q: %w", kind, f[2], ErrMalformedToken)
		}
		return Token{Kind: kind, LoopName: f[1], TripCount: trip}, nil

	case KindFifoRead, KindFifoWrite, KindAxiWriteResp:
		if len(f) != 2 {
			return Token{}, xerrors.Errorf("%s: expected 1 field: %w", kind, ErrMalformedToken)
		}
		addr, err := parseHex(f[1])
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: kind, Addr: addr}, nil

	case KindAxiReadReq, KindAxiWriteReq, KindAxiRead, KindAxiWrite:
		if len(f) != 4 {
			return Token{}, xerrors.Errorf("%s: expected 3 fields: %w", kind, ErrMalformedToken)
		}
		addr, err := parseHex(f[1])
		if err != nil {
			return Token{}, err
		}
		offset, err := strconv.ParseInt(f[2], 10, 64)
		if err != nil {
			return Token{}, xerrors.Errorf("%s: offset %q: %w", kind, f[2], ErrMalformedToken)
		}
		length, err := strconv.ParseInt(f[3], 10, 64)
		if err != nil {
			return Token{}, xerrors.Errorf("%s: length %q: %w", kind, f[3], ErrMalformedToken)
		}
		return Token{Kind: kind, Addr: addr, Offset: offset, Length: length}, nil

	default:
		return Token{}, xerrors.Errorf("unknown token kind %q: %w", f[0], ErrMalformedToken)
	}
}

func parseHex(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, xerrors.Errorf("address %q: %w", s, ErrMalformedToken)
	}
	return v, nil
}
