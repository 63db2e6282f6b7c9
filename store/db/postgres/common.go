package postgres

import (
	"fmt"
	"strings"
)

// placeholder returns the n-th positional parameter ($n).
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns $1, $2, ... $n.
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

// appendIDList appends the ids to args and returns the matching placeholder list.
func appendIDList(args []any, ids []int32) (string, []any) {
	holders := make([]string, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
		holders = append(holders, placeholder(len(args)))
	}
	return strings.Join(holders, ", "), args
}
