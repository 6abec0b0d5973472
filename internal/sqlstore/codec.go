package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mistfall/mistfall/pkg/mistfallerr"
	"github.com/mistfall/mistfall/pkg/schema"
)

// sqlType returns the SQLite column type for a schema column kind, per the
// mapping table in SPEC_FULL.md §6.
func sqlType(k schema.ColumnKind) string {
	switch k {
	case schema.KindInteger, schema.KindBigInteger:
		return "INTEGER"
	case schema.KindFloat:
		return "REAL"
	case schema.KindBoolean:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// encodeValue converts a Go row value into the driver value modernc.org/sqlite
// should bind, per column kind. A nil value passes through unchanged so
// NULL is stored and later read back as nil.
func encodeValue(c *schema.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c.Kind {
	case schema.KindInteger, schema.KindBigInteger:
		return toInt64(v)
	case schema.KindFloat:
		return toFloat64(v)
	case schema.KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s expected bool, got %T", mistfallerr.ErrBackend, c.Table().Name, c.Name, v)
		}
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	case schema.KindTimestamp:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s expected time.Time, got %T", mistfallerr.ErrBackend, c.Table().Name, c.Name, v)
		}
		return t.UTC().Format(time.RFC3339Nano), nil
	case schema.KindJSON:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding %s.%s: %v", mistfallerr.ErrBackend, c.Table().Name, c.Name, err)
		}
		return string(data), nil
	default: // Decimal, StringBounded, StringUnbounded, Enum
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s expected string, got %T", mistfallerr.ErrBackend, c.Table().Name, c.Name, v)
		}
		return s, nil
	}
}

// decodeValue is encodeValue's inverse, applied to values read back from
// the database driver.
func decodeValue(c *schema.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c.Kind {
	case schema.KindInteger, schema.KindBigInteger:
		return toInt64(v)
	case schema.KindFloat:
		return toFloat64(v)
	case schema.KindBoolean:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return n != 0, nil
	case schema.KindTimestamp:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s expected string timestamp, got %T", mistfallerr.ErrBackend, c.Table().Name, c.Name, v)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing %s.%s: %v", mistfallerr.ErrBackend, c.Table().Name, c.Name, err)
		}
		return t, nil
	case schema.KindJSON:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s expected JSON text, got %T", mistfallerr.ErrBackend, c.Table().Name, c.Name, v)
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("%w: decoding %s.%s: %v", mistfallerr.ErrBackend, c.Table().Name, c.Name, err)
		}
		return out, nil
	default:
		return v, nil
	}
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case float64:
		return int64(t), nil
	default:
		return 0, fmt.Errorf("%w: expected integer, got %T", mistfallerr.ErrBackend, v)
	}
}

func toFloat64(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("%w: expected float, got %T", mistfallerr.ErrBackend, v)
	}
}
