package repository

import (
	"fmt"
	"strings"
)

// sortColumns whitelists the sortable fields and maps them to columns.
var sortColumns = map[string]string{
	"time":       "time_ms",
	"dataVolume": "data_volume",
	"dataLength": "data_length",
}

// BuildWhere maps filters to a parameterized WHERE clause. Predicates are
// independently optional and joined by AND; with no criteria the clause is
// empty and the query matches every record. A range with only one bound stays
// open on the other side. Pure function, no store required.
func BuildWhere(filters *SignalFilters) (string, []interface{}) {
	var where []string
	var args []interface{}
	argN := 1

	add := func(cond string, v interface{}) {
		where = append(where, fmt.Sprintf(cond, argN))
		args = append(args, v)
		argN++
	}

	if filters != nil {
		if filters.DeviceID != "" {
			add("device_id = $%d", filters.DeviceID)
		}
		if filters.TimeStart != nil {
			add("time_ms >= $%d", *filters.TimeStart)
		}
		if filters.TimeEnd != nil {
			add("time_ms <= $%d", *filters.TimeEnd)
		}
		if filters.DataVolumeMin != nil {
			add("data_volume >= $%d", *filters.DataVolumeMin)
		}
		if filters.DataVolumeMax != nil {
			add("data_volume <= $%d", *filters.DataVolumeMax)
		}
		if filters.DataLengthMin != nil {
			add("data_length >= $%d", *filters.DataLengthMin)
		}
		if filters.DataLengthMax != nil {
			add("data_length <= $%d", *filters.DataLengthMax)
		}
	}

	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// BuildOrderBy maps the sort criteria to an ORDER BY clause. Unknown fields
// fall back to the default (time ascending); only whitelisted columns are ever
// interpolated. The id tiebreak keeps pagination deterministic.
func BuildOrderBy(sortBy, sortOrder string) string {
	col, ok := sortColumns[sortBy]
	if !ok {
		col = sortColumns["time"]
	}
	dir := "ASC"
	if strings.EqualFold(sortOrder, "desc") {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, signal_id ASC", col, dir)
}
