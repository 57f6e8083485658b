package db

import (
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/nickyhof/sqlbatch/core"
)

// EncodeRows drains rows into records in fetch order and closes them.
func EncodeRows(rows *sqlx.Rows) ([]core.Record, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "read columns")
	}

	records := []core.Record{}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		records = append(records, EncodeRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate rows")
	}

	return records, nil
}

// EncodeRow pairs column names with values. A repeated column name keeps its
// first position and takes the later value.
func EncodeRow(columns []string, values []any) core.Record {
	record := make(core.Record, 0, len(columns))
	for i, name := range columns {
		var v any
		if i < len(values) {
			v = values[i]
		}
		record = record.Set(name, EncodeValue(v))
	}
	return record
}

// EncodeValue maps a driver value onto the tagged value variant without
// turning numbers or blobs into strings.
func EncodeValue(v any) core.Value {
	switch x := v.(type) {
	case nil:
		return core.Null()
	case int64:
		return core.Integer(x)
	case int:
		return core.Integer(int64(x))
	case int32:
		return core.Integer(int64(x))
	case int16:
		return core.Integer(int64(x))
	case int8:
		return core.Integer(int64(x))
	case uint8:
		return core.Integer(int64(x))
	case uint16:
		return core.Integer(int64(x))
	case uint32:
		return core.Integer(int64(x))
	case uint:
		return encodeUnsigned(uint64(x))
	case uint64:
		return encodeUnsigned(x)
	case float64:
		return core.Real(x)
	case float32:
		return core.Real(float64(x))
	case bool:
		if x {
			return core.Integer(1)
		}
		return core.Integer(0)
	case string:
		return core.Text(x)
	case []byte:
		return core.Binary(x)
	case time.Time:
		return core.Text(x.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return core.Text(x.String())
	default:
		return core.Text(fmt.Sprint(x))
	}
}

func encodeUnsigned(x uint64) core.Value {
	if x > math.MaxInt64 {
		return core.Real(float64(x))
	}
	return core.Integer(int64(x))
}
