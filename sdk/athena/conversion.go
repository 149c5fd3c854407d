package athena

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/kent-id/athenaq"
	"github.com/kent-id/athenaq/logging"
)

// castDatum converts one result cell to its Go value based on the column's Athena type.
// A datum without VarCharValue is NULL.
//
// for supported data types, see https://docs.aws.amazon.com/athena/latest/ug/data-types.html
func castDatum(datum types.Datum, athenaType string) athenaq.CellValue {
	if datum.VarCharValue == nil {
		return nil
	}
	data := *datum.VarCharValue

	switch normalizeType(athenaType) {
	case "boolean":
		v, err := strconv.ParseBool(data)
		if err != nil {
			return unparseable(data, athenaType, err)
		}
		return v
	case "tinyint", "smallint", "integer", "int", "bigint":
		v, err := strconv.ParseInt(strings.TrimSpace(data), 10, 64)
		if err != nil {
			return unparseable(data, athenaType, err)
		}
		return v
	case "real", "float", "double":
		v, err := strconv.ParseFloat(strings.TrimSpace(data), 64)
		if err != nil {
			return unparseable(data, athenaType, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			// JSON has no representation for these
			logging.Logger().Warn().
				Str("athena_type", athenaType).
				Str("value", data).
				Msg("non-finite float, keeping raw string")
			return data
		}
		return v
	case "decimal":
		// kept as text so precision survives; json.Number still encodes as a number
		if _, err := strconv.ParseFloat(strings.TrimSpace(data), 64); err != nil {
			return unparseable(data, athenaType, err)
		}
		return json.Number(strings.TrimSpace(data))
	default:
		return data
	}
}

// normalizeType strips parameters such as "decimal(10,2)" or "varchar(20)".
func normalizeType(athenaType string) string {
	t := strings.ToLower(strings.TrimSpace(athenaType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	return t
}

func unparseable(data, athenaType string, err error) athenaq.CellValue {
	logging.Logger().Warn().
		Err(err).
		Str("athena_type", athenaType).
		Str("value", data).
		Msg("could not convert cell, keeping raw string")
	return data
}

// castRow converts a row against columns; missing trailing cells are NULL.
func castRow(row types.Row, columns []athenaq.Column) []athenaq.CellValue {
	out := make([]athenaq.CellValue, len(columns))
	for i, col := range columns {
		if i < len(row.Data) {
			out[i] = castDatum(row.Data[i], col.Type)
		}
	}
	return out
}
