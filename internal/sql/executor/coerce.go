package executor

import (
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/memrel/memrel/internal/kernelerr"
	"github.com/memrel/memrel/internal/schema"
)

// dateTimeLayouts are tried in order for a DateTime string literal that
// does not parse as RFC3339 (offset or "Z" present): the same layout with
// no offset at all, assumed UTC.
var dateTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// coerceLiteral converts a parsed literal value (nil, bool, int64,
// decimal.Decimal, or string — everything the lexer can produce) into the
// Go representation the target column's logical type expects. Required-
// field/foreign-key/primary-key validation stays in internal/table; this
// only narrows "a literal" down to "a value of this column's type."
func coerceLiteral(t schema.LogicalType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case schema.Integer:
		switch x := v.(type) {
		case int64:
			return int32(x), nil
		case int32:
			return x, nil
		}
	case schema.Long:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int32:
			return int64(x), nil
		}
	case schema.Decimal:
		switch x := v.(type) {
		case decimal.Decimal:
			return x, nil
		case int64:
			return decimal.NewFromInt(x), nil
		case int32:
			return decimal.NewFromInt(int64(x)), nil
		}
	case schema.Bool:
		if x, ok := v.(bool); ok {
			return x, nil
		}
	case schema.String:
		if x, ok := v.(string); ok {
			return x, nil
		}
	case schema.DateTime:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			if parsed, err := time.Parse(time.RFC3339, x); err == nil {
				return parsed, nil
			}
			for _, layout := range dateTimeLayouts {
				if parsed, err := time.ParseInLocation(layout, x, time.UTC); err == nil {
					return parsed, nil
				}
			}
			return nil, kernelerr.New(kernelerr.InvalidArgument, "invalid date/time literal %q", x)
		}
	case schema.UUID:
		switch x := v.(type) {
		case uuid.UUID:
			return x, nil
		case string:
			parsed, err := uuid.Parse(x)
			if err != nil {
				return nil, kernelerr.Wrap(kernelerr.InvalidArgument, err, "invalid uuid literal %q", x)
			}
			return parsed, nil
		}
	case schema.Bytes:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			decoded, err := base64.StdEncoding.DecodeString(x)
			if err != nil {
				return nil, kernelerr.Wrap(kernelerr.InvalidArgument, err, "invalid base64 literal %q", x)
			}
			return decoded, nil
		}
	}

	return nil, kernelerr.New(kernelerr.InvalidArgument, "cannot assign value of type %T to a %s column", v, t)
}

// coerceInsertValues builds the column-name-keyed map InsertMap expects
// from an INSERT statement's explicit column list and evaluated values.
func coerceInsertValues(s *schema.Schema, cols []string, vals []any) (map[string]any, error) {
	out := make(map[string]any, len(cols))
	for i, name := range cols {
		col, ok := s.ColumnByName(name)
		if !ok {
			return nil, kernelerr.New(kernelerr.InvalidArgument, "unknown column %q", name)
		}
		cv, err := coerceLiteral(col.Type, vals[i])
		if err != nil {
			return nil, err
		}
		out[col.Name] = cv
	}
	return out, nil
}
