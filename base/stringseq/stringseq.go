// Package stringseq renders iterator sequences as strings, mostly to
// print node lists in diagnostics.
package stringseq

import (
	"fmt"
	"iter"
	"strings"
)

// AppendStringer writes the stringified elements of seq to the given
// builder, separated by sep.
func AppendStringer[T fmt.Stringer](b *strings.Builder, seq iter.Seq[T], sep string) {
	n := 0
	for item := range seq {
		if n > 0 {
			b.WriteString(sep)
		}
		b.WriteString(item.String())
		n++
	}
}

// JoinStringer concatenates the stringified elements of seq into a
// single string, separated by sep.
func JoinStringer[T fmt.Stringer](seq iter.Seq[T], sep string) string {
	var b strings.Builder
	AppendStringer(&b, seq, sep)
	return b.String()
}
