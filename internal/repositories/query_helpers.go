package repositories

import (
	"encoding/json"
	"fmt"
	"sort"
)

// buildSetClause turns the allow-listed entries of fields into "col = $n"
// clauses, numbering placeholders from firstArg. Columns are emitted in
// sorted order so the generated SQL is stable.
func buildSetClause(fields map[string]interface{}, allowed map[string]bool, firstArg int) ([]string, []interface{}) {
	columns := make([]string, 0, len(fields))
	for col := range fields {
		if allowed[col] {
			columns = append(columns, col)
		}
	}
	sort.Strings(columns)

	clauses := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for i, col := range columns {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", col, firstArg+i))
		args = append(args, fields[col])
	}
	return clauses, args
}

// FilterAllowedFields drops every key of fields that is not in allowed.
func FilterAllowedFields(fields map[string]interface{}, allowed map[string]bool) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if allowed[k] {
			out[k] = v
		}
	}
	return out
}

// jsonParam converts a JSON document into a driver value for a JSONB column.
// lib/pq sends []byte as bytea, so the document is passed as text.
func jsonParam(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// pageBounds converts page/pageSize into LIMIT/OFFSET values.
func pageBounds(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}
