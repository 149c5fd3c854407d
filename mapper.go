package athenaq

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// ScanRows appends every row of result to dest, which must be a pointer to a slice of
// structs (or struct pointers) whose fields carry `athena:"column_name"` tags. The tags must
// name exactly the result's columns.
//
// Example:
//
//	type row struct {
//		ID   int64  `athena:"id"`
//		Name string `athena:"name"`
//	}
//	var rows []row
//	err := athenaq.ScanRows(result, &rows)
func ScanRows(result *QueryResult, dest interface{}) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr || destValue.IsNil() || destValue.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("dest should be a non-nil pointer to a slice, got: %T", dest)
	}
	sliceValue := destValue.Elem()
	elemType := sliceValue.Type().Elem()
	modelType := elemType
	if modelType.Kind() == reflect.Ptr {
		modelType = modelType.Elem()
	}

	modelDefinitionSchema, err := newModelDefinitionMap(modelType)
	if err != nil {
		return err
	}
	resultSetSchema, err := newResultSetDefinitionMap(result.Columns)
	if err != nil {
		return err
	}
	if err := validateResultSetSchema(resultSetSchema, modelDefinitionSchema); err != nil {
		return err
	}

	for rowIndex, row := range result.Rows {
		model := reflect.New(modelType)
		for colName, modelDefColInfo := range modelDefinitionSchema {
			mappedColumnInfo := resultSetSchema[colName]
			if mappedColumnInfo.index >= len(row) {
				return fmt.Errorf("row %d has %d cells, column '%s' is at index %d", rowIndex, len(row), colName, mappedColumnInfo.index)
			}

			field := model.Elem().Field(modelDefColInfo.fieldIndex)
			if err := assignCell(field, row[mappedColumnInfo.index]); err != nil {
				return fmt.Errorf("row %d, column '%s' into field %s: %w", rowIndex, colName, modelDefColInfo.fieldName, err)
			}
		}

		if elemType.Kind() == reflect.Ptr {
			sliceValue.Set(reflect.Append(sliceValue, model))
		} else {
			sliceValue.Set(reflect.Append(sliceValue, model.Elem()))
		}
	}
	return nil
}

// assignCell sets field from a cell value. NULL leaves the field at its zero value.
func assignCell(field reflect.Value, cell CellValue) error {
	if cell == nil {
		return nil
	}
	if field.Kind() == reflect.Ptr {
		target := reflect.New(field.Type().Elem())
		if err := assignCell(target.Elem(), cell); err != nil {
			return err
		}
		field.Set(target)
		return nil
	}

	if field.Type() == timeType {
		s, ok := cell.(string)
		if !ok {
			return fmt.Errorf("cannot convert %T to time.Time", cell)
		}
		t, err := parseTime(s)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(t))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(cellString(cell))
		return nil
	case reflect.Bool:
		switch v := cell.(type) {
		case bool:
			field.SetBool(v)
			return nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			field.SetBool(b)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(cellString(cell), 10, 64)
		if err != nil {
			return err
		}
		if field.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %s", n, field.Type())
		}
		field.SetInt(n)
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(cellString(cell), 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
		return nil
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			field.Set(reflect.ValueOf(parseArray(cellString(cell))))
			return nil
		}
	}
	return fmt.Errorf("cannot convert %T to %s", cell, field.Type())
}

func cellString(cell CellValue) string {
	switch v := cell.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// parseTime accepts Athena's timestamp and date renderings.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}

// parseArray splits Athena's "[a, b, c]" array rendering.
func parseArray(s string) []string {
	inner := strings.Trim(s, "[]")
	if len(inner) == 0 {
		return make([]string, 0)
	}
	return strings.Split(inner, ", ")
}
