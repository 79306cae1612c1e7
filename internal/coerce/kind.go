package coerce

import "fmt"

// Kind is the semantic type of a worksheet column.
type Kind int

const (
	KindString Kind = iota
	KindDate
	KindTime
	KindInt
	KindFloat
	KindBool
)

var kindNames = map[Kind]string{
	KindString: "string",
	KindDate:   "date",
	KindTime:   "time",
	KindInt:    "int",
	KindFloat:  "float",
	KindBool:   "bool",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind resolves a kind name as used in worksheet schemas.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return KindString, fmt.Errorf("unknown column type %q", name)
}

// Kinds returns all kind names in declaration order.
func Kinds() []string {
	return []string{"string", "date", "time", "int", "float", "bool"}
}
