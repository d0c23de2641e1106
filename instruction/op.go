package instruction

import "fmt"

// Op identifies a store instruction.
type Op uint8

// Instruction set. Values are part of the wire encoding.
const (
	OpCreate Op = iota + 1
	OpCreateVersioned
	OpAppend
	OpUpdate
	OpDelete
	OpDeleteVersionCounter
	OpCreateLegacy
	OpAppendLegacy
	OpUpdateLegacy
	OpDeleteLegacy
)

var opNames = map[Op]string{
	OpCreate:               "create",
	OpCreateVersioned:      "create_versioned",
	OpAppend:               "append",
	OpUpdate:               "update",
	OpDelete:               "delete",
	OpDeleteVersionCounter: "delete_version_counter",
	OpCreateLegacy:         "create_legacy",
	OpAppendLegacy:         "append_legacy",
	OpUpdateLegacy:         "update_legacy",
	OpDeleteLegacy:         "delete_legacy",
}

// String returns the snake_case name of the operation.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Valid reports whether o is part of the instruction set.
func (o Op) Valid() bool {
	_, ok := opNames[o]
	return ok
}

// Legacy reports whether o targets the single-record legacy layout.
func (o Op) Legacy() bool {
	return o >= OpCreateLegacy && o <= OpDeleteLegacy
}

// ParseOp parses an operation name as returned by Op.String.
func ParseOp(name string) (Op, error) {
	for op, n := range opNames {
		if n == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOp, name)
}
