package repository

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// postgreSQLInList returns "$n, $n+1, ..." for ids starting at position start.
func postgreSQLInList(ids []uuid.UUID, start int) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", start+i)
		args[i] = id
	}
	return strings.Join(placeholders, ", "), args
}

// mySQLInList returns "?, ?, ..." for ids with their BINARY(16) encodings.
func mySQLInList(ids []uuid.UUID) (string, []any, error) {
	args := make([]any, len(ids))
	for i, id := range ids {
		data, err := id.MarshalBinary()
		if err != nil {
			return "", nil, err
		}
		args[i] = data
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args, nil
}
