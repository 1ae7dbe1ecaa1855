package parser

import (
	"os"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
)

func TestMain(m *testing.M) {
	code := m.Run()
	snaps.Clean(m)
	os.Exit(code)
}

// TestParseSnapshot locks the printed form of a representative script.
func TestParseSnapshot(t *testing.T) {
	input := `import "base" as b;
import "tools" as *;

pub type Pairing = { subject: Int, slot: Int };
pub enum Grade = Pass(Int) | Fail { reason: String } | Missing;

/// Student String(s.id) sits exactly once
pub let exactly_one(s: Student) -> Constraint =
    sum i in [0..10] { $StudentInSlot(s, i) } === 1;

pub reify exactly_one as $SitsOnce;

pub let objective() -> LinExpr =
    sum s in @[Student] { $SitsOnce(s) };

pub let helper(xs: [Int]) -> Int =
    fold x in xs accum a = 0 where x % 2 == 0 { a + x };
`

	file := testParse(t, input)
	snaps.MatchSnapshot(t, file.String())
}

// TestLexSnapshot locks the token stream of the operator zoo.
func TestLexSnapshot(t *testing.T) {
	input := "a === b <== c >== d == e != f <= g >= h ?? i // j % k && l || m |n| $V() @[T] panic! 0"

	p := New(input)
	var out string
	for _, tok := range p.tokens {
		out += tok.Type.String() + " " + tok.Literal + "\n"
	}
	snaps.MatchSnapshot(t, out)
}
