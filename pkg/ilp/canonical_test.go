package ilp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// exprComparer lets go-cmp inspect the sparse representation directly.
var exprComparer = cmp.AllowUnexported(Expr[strVar]{}, term[strVar]{}, Constraint[strVar]{})

// TestCanonicalRepresentation checks that mathematically equal
// expressions share one representation, so map-level equality works for
// deduplication.
func TestCanonicalRepresentation(t *testing.T) {
	t.Run("different construction orders converge", func(t *testing.T) {
		left := v("a").Add(v("b")).AddK(2)
		right := Constant[strVar](2).Add(v("b")).Add(v("a"))
		if diff := cmp.Diff(left, right, exprComparer); diff != "" {
			t.Errorf("representations differ (-left +right):\n%s", diff)
		}
	})

	t.Run("cancelled terms leave no residue", func(t *testing.T) {
		left := v("a").Add(v("b")).Sub(v("b"))
		right := v("a")
		if diff := cmp.Diff(left, right, exprComparer); diff != "" {
			t.Errorf("representations differ (-left +right):\n%s", diff)
		}
	})

	t.Run("geq and flipped leq share a representation", func(t *testing.T) {
		left := v("a").Geq(v("b"))
		right := v("b").Leq(v("a"))
		if diff := cmp.Diff(left, right, exprComparer); diff != "" {
			t.Errorf("constraints differ (-left +right):\n%s", diff)
		}
	})
}
