package database

import (
	"fmt"
	"reflect"

	"github.com/go-pg/pg/orm"

	"dicom-scp-server/dicomutil"
)

type SelectQueryOptions struct {
	Limit          int
	Offset         int
	OrderBy        string
	OrderDirection string
}

func (s *SelectQueryOptions) Apply(q *orm.Query) *orm.Query {
	if s.Limit > 0 {
		q = q.Limit(s.Limit)
	}

	if s.Offset > 0 {
		q = q.Offset(s.Offset)
	}

	if s.OrderBy != "" {
		if s.OrderDirection == "" {
			s.OrderDirection = "ASC"
		}

		q = q.Order(s.OrderBy + " " + s.OrderDirection)
	}

	return q
}

// applyFieldFilters adds a WHERE clause per entry, translating Go field
// names to column names. model must be a pointer to the zero value of
// the row struct so field names can be verified.
func applyFieldFilters(q *orm.Query, model interface{}, fields map[string]interface{}) (*orm.Query, error) {
	for fieldName, fieldValue := range fields {
		structField := reflect.ValueOf(model).Elem().FieldByName(fieldName)
		if !structField.IsValid() {
			return nil, fmt.Errorf("invalid field name: %s", fieldName)
		}
		q = q.Where(fmt.Sprintf("%s = ?", dicomutil.ToSnakeCase(fieldName)), fieldValue)
	}
	return q, nil
}
