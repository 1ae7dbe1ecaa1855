package value

import (
	"strings"

	"github.com/christophcharles/colloml/pkg/ilp"
)

// Formula is a constraint expression awaiting linearisation: comparison
// atoms combined with and/or/not. The set of implementations is closed.
type Formula interface {
	String() string

	key() string
	formulaNode()
}

// Atom is a single linear comparison `Expr <symbol> 0`.
type Atom struct {
	Expr   ilp.Expr[IlpVar]
	Symbol ilp.EqSymbol
}

func (f *Atom) formulaNode() {}

func (f *Atom) String() string {
	return f.Expr.String() + " " + f.Symbol.String() + " 0"
}

func (f *Atom) key() string {
	return "a(" + (&Lin{Expr: f.Expr}).Key() + " " + f.Symbol.String() + ")"
}

// And is a conjunction; the empty conjunction is trivially true.
type And struct {
	Parts []Formula
}

func (f *And) formulaNode() {}

func (f *And) String() string {
	if len(f.Parts) == 0 {
		return "true"
	}
	parts := make([]string, len(f.Parts))
	for i, p := range f.Parts {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, " and ") + ")"
}

func (f *And) key() string {
	parts := make([]string, len(f.Parts))
	for i, p := range f.Parts {
		parts[i] = p.key()
	}
	return "and(" + strings.Join(parts, ",") + ")"
}

// Or is a disjunction.
type Or struct {
	Parts []Formula
}

func (f *Or) formulaNode() {}

func (f *Or) String() string {
	parts := make([]string, len(f.Parts))
	for i, p := range f.Parts {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, " or ") + ")"
}

func (f *Or) key() string {
	parts := make([]string, len(f.Parts))
	for i, p := range f.Parts {
		parts[i] = p.key()
	}
	return "or(" + strings.Join(parts, ",") + ")"
}

// Not is a negation.
type Not struct {
	Inner Formula
}

func (f *Not) formulaNode() {}

func (f *Not) String() string {
	return "(not " + f.Inner.String() + ")"
}

func (f *Not) key() string {
	return "not(" + f.Inner.key() + ")"
}

// TrueFormula returns the trivially-true formula (the empty conjunction),
// produced by forall over an empty collection.
func TrueFormula() Formula {
	return &And{}
}
