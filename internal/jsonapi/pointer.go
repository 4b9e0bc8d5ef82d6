package jsonapi

import (
	"fmt"
	"strings"
)

// OperationPointer returns the source pointer for the batch element at the
// given zero-based index: "/atomic:operations[3]".
func OperationPointer(index int) string {
	return fmt.Sprintf("/atomic:operations[%d]", index)
}

// JoinPointer appends path segments to a base pointer, separating each with
// a slash: JoinPointer("/atomic:operations[0]", "data", "attributes", "title")
// yields "/atomic:operations[0]/data/attributes/title".
func JoinPointer(base string, segments ...string) string {
	if len(segments) == 0 {
		return base
	}
	var b strings.Builder
	b.WriteString(base)
	for _, seg := range segments {
		b.WriteByte('/')
		b.WriteString(seg)
	}
	return b.String()
}

// ElementPointer appends an array index segment to a base pointer:
// ElementPointer("/atomic:operations[1]/data", 2) yields
// "/atomic:operations[1]/data[2]".
func ElementPointer(base string, index int) string {
	return fmt.Sprintf("%s[%d]", base, index)
}
