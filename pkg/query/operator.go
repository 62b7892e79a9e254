package query

import (
	"strings"

	"github.com/pkg/errors"
)

// Comparison is the base predicate of an operator
type Comparison uint8

const (
	CompareEQ Comparison = iota + 1
	CompareGT
	CompareGE
	CompareLT
	CompareLE
	CompareNE
	CompareLikeLeft
	CompareLikeMid
	CompareLikeRight
	CompareInList
	CompareBetween
	CompareIsNull
)

var comparisonNames = map[Comparison]string{
	CompareEQ:        "EQ",
	CompareGT:        "GT",
	CompareGE:        "GE",
	CompareLT:        "LT",
	CompareLE:        "LE",
	CompareNE:        "NE",
	CompareLikeLeft:  "LIKE_LEFT",
	CompareLikeMid:   "LIKE_MID",
	CompareLikeRight: "LIKE_RIGHT",
	CompareInList:    "IN_LIST",
	CompareBetween:   "BETWEEN",
	CompareIsNull:    "IS_NULL",
}

var comparisonSymbols = map[string]Comparison{
	"=":  CompareEQ,
	"==": CompareEQ,
	">":  CompareGT,
	">=": CompareGE,
	"<":  CompareLT,
	"<=": CompareLE,
	"!=": CompareNE,
	"<>": CompareNE,
}

func (c Comparison) String() string {
	if name, ok := comparisonNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// Arity returns the accepted number of operand values. max is -1 when
// unbounded.
func (c Comparison) Arity() (min, max int) {
	switch c {
	case CompareIsNull:
		return 0, 0
	case CompareBetween:
		return 2, 2
	case CompareInList:
		return 1, -1
	}
	return 1, 1
}

func (c Comparison) isLike() bool {
	return c == CompareLikeLeft || c == CompareLikeMid || c == CompareLikeRight
}

// Operator is a base comparison plus the case-insensitive and negated facets
type Operator struct {
	Base    Comparison
	NoCase  bool
	Negated bool
}

// Named operators
var (
	EQ        = Operator{Base: CompareEQ}
	GT        = Operator{Base: CompareGT}
	GE        = Operator{Base: CompareGE}
	LT        = Operator{Base: CompareLT}
	LE        = Operator{Base: CompareLE}
	NE        = Operator{Base: CompareNE}
	LikeLeft  = Operator{Base: CompareLikeLeft}
	LikeMid   = Operator{Base: CompareLikeMid}
	LikeRight = Operator{Base: CompareLikeRight}
	InList    = Operator{Base: CompareInList}
	Between   = Operator{Base: CompareBetween}
	IsNull    = Operator{Base: CompareIsNull}

	NotLikeLeft  = LikeLeft.Not()
	NotLikeMid   = LikeMid.Not()
	NotLikeRight = LikeRight.Not()
	NotInList    = InList.Not()
	NotBetween   = Between.Not()
	NotIsNull    = IsNull.Not()

	EQNoCase           = EQ.IgnoreCase()
	GTNoCase           = GT.IgnoreCase()
	GENoCase           = GE.IgnoreCase()
	LTNoCase           = LT.IgnoreCase()
	LENoCase           = LE.IgnoreCase()
	NENoCase           = NE.IgnoreCase()
	LikeLeftNoCase     = LikeLeft.IgnoreCase()
	LikeMidNoCase      = LikeMid.IgnoreCase()
	LikeRightNoCase    = LikeRight.IgnoreCase()
	NotLikeLeftNoCase  = NotLikeLeft.IgnoreCase()
	NotLikeMidNoCase   = NotLikeMid.IgnoreCase()
	NotLikeRightNoCase = NotLikeRight.IgnoreCase()
	InListNoCase       = InList.IgnoreCase()
	NotInListNoCase    = NotInList.IgnoreCase()
	BetweenNoCase      = Between.IgnoreCase()
	NotBetweenNoCase   = NotBetween.IgnoreCase()
)

// Not returns the operator with its result complemented
func (o Operator) Not() Operator {
	o.Negated = !o.Negated
	return o
}

// IgnoreCase returns the case-insensitive twin of the operator
func (o Operator) IgnoreCase() Operator {
	o.NoCase = true
	return o
}

func (o Operator) Arity() (min, max int) {
	return o.Base.Arity()
}

func (o Operator) Valid() bool {
	_, ok := comparisonNames[o.Base]
	return ok && !(o.NoCase && o.Base == CompareIsNull)
}

// String renders names like NOT_LIKE_MID_NOCASE
func (o Operator) String() string {
	var b strings.Builder
	if o.Negated {
		b.WriteString("NOT_")
	}
	b.WriteString(o.Base.String())
	if o.NoCase {
		b.WriteString("_NOCASE")
	}
	return b.String()
}

// ParseOperator reads an operator name such as "GE", "not_in_list",
// "LIKE_MID_NOCASE" or one of the symbols = == > >= < <= != <>
func ParseOperator(name string) (Operator, error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	if base, ok := comparisonSymbols[s]; ok {
		return Operator{Base: base}, nil
	}

	var op Operator
	if rest, ok := strings.CutPrefix(s, "NOT_"); ok {
		op.Negated = true
		s = rest
	}
	if rest, ok := strings.CutSuffix(s, "_NOCASE"); ok {
		op.NoCase = true
		s = rest
	}
	for base, n := range comparisonNames {
		if n == s {
			op.Base = base
			break
		}
	}
	if !op.Valid() {
		return Operator{}, errors.Wrapf(ErrInvalidCondition, "unknown operator %q", name)
	}
	return op, nil
}
