package value

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies the payload type carried by a Value
type Kind int

const (
	KindBoolean Kind = iota
	KindString
	KindDecimal
	KindDouble
	KindInteger
	KindLong
	KindDate
	KindTime
	KindTimestamp
	KindBytes
	KindArray
)

var kindNames = map[Kind]string{
	KindBoolean:   "boolean",
	KindString:    "string",
	KindDecimal:   "decimal",
	KindDouble:    "double",
	KindInteger:   "integer",
	KindLong:      "long",
	KindDate:      "date",
	KindTime:      "time",
	KindTimestamp: "timestamp",
	KindBytes:     "bytes",
	KindArray:     "array",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind resolves a kind from its configuration name
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for k, kn := range kindNames {
		if kn == n {
			return k, nil
		}
	}
	switch n {
	case "bool":
		return KindBoolean, nil
	case "int", "int32":
		return KindInteger, nil
	case "int64":
		return KindLong, nil
	case "float", "float64":
		return KindDouble, nil
	}
	return 0, errors.Errorf("unknown kind %q", name)
}

// Family groups kinds whose values can be compared and converted into each other
type Family int

const (
	FamilyBoolean Family = iota
	FamilyString
	FamilyNumber
	FamilyTemporal
	FamilyBytes
	FamilyArray
)

// Family returns the comparable family of the kind
func (k Kind) Family() Family {
	switch k {
	case KindBoolean:
		return FamilyBoolean
	case KindString:
		return FamilyString
	case KindDecimal, KindDouble, KindInteger, KindLong:
		return FamilyNumber
	case KindDate, KindTime, KindTimestamp:
		return FamilyTemporal
	case KindBytes:
		return FamilyBytes
	default:
		return FamilyArray
	}
}

// Compatible reports whether values of both kinds may be compared
func (k Kind) Compatible(other Kind) bool {
	return k.Family() == other.Family()
}
