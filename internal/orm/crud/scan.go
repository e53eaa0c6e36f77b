package crud

import (
	"database/sql"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/compiler"
	"github.com/conduit-lang/sensorthings/internal/orm/fields"
)

// scanRows scans every row into a slice of n values
func scanRows(rows *sql.Rows, n int) ([][]interface{}, error) {
	var results [][]interface{}
	for rows.Next() {
		values := make([]interface{}, n)
		valuePtrs := make([]interface{}, n)
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}
		results = append(results, values)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// entityFromRow groups the row values by field entry and lets each entry
// read its property
func entityFromRow(res *compiler.Result, row []interface{}) (*model.Entity, error) {
	grouped := make(map[*fields.Entry]fields.Values, len(res.Entries))
	for i, col := range res.Columns {
		if col.Entry == nil {
			continue
		}
		values := grouped[col.Entry]
		if values == nil {
			values = make(fields.Values)
			grouped[col.Entry] = values
		}
		values[col.Key] = row[i]
	}

	e := model.NewEntity(res.Type)
	for _, entry := range res.Entries {
		if entry.Converter.Read == nil {
			continue
		}
		if err := entry.Converter.Read(grouped[entry], e); err != nil {
			return nil, err
		}
	}
	return e, nil
}
