package pal

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// dateNone encodes "no date value". The maximum representable value keeps
// unset dates sorting after every real one, and the update diff can tell
// an unset date from any stored default.
const dateNone = int64(math.MaxInt64)

// defaultDateLayout parses declared date default literals.
const defaultDateLayout = "2006-01-02 15:04:05"

// encodeField converts a field's runtime value into its storage form.
func encodeField(f *Field, m any, ciph *Cipher) (any, error) {
	v := f.Get(m)
	switch f.Kind {
	case KindBool:
		if v.(bool) {
			return int64(1), nil
		}
		return int64(0), nil
	case KindTime:
		t := v.(time.Time)
		if t.IsZero() {
			if f.Default != "" {
				if parsed, err := time.Parse(defaultDateLayout, f.Default); err == nil {
					return parsed.UnixMilli(), nil
				}
			}
			return dateNone, nil
		}
		return t.UnixMilli(), nil
	case KindString:
		s := v.(string)
		switch f.Cipher {
		case CipherAES:
			if ciph == nil {
				return nil, schemaErr("field %s is encrypted but no key is configured", f.Name)
			}
			return ciph.Encrypt(s)
		case CipherMD5:
			return MD5Hash(s), nil
		}
		return s, nil
	default:
		return v, nil
	}
}

// encodeElem converts one generic collection element into storage form.
func encodeElem(kind Kind, v any) any {
	switch kind {
	case KindBool:
		if v.(bool) {
			return int64(1)
		}
		return int64(0)
	case KindTime:
		t := v.(time.Time)
		if t.IsZero() {
			return dateNone
		}
		return t.UnixMilli()
	default:
		return v
	}
}

// decodeField writes a raw storage value back into a field.
func decodeField(f *Field, m any, raw any, ciph *Cipher) error {
	if raw == nil {
		return nil
	}
	switch f.Kind {
	case KindString:
		s := asString(raw)
		if f.Cipher == CipherAES {
			if ciph == nil {
				return schemaErr("field %s is encrypted but no key is configured", f.Name)
			}
			plain, err := ciph.Decrypt(s)
			if err != nil {
				return err
			}
			s = plain
		}
		f.Set(m, s)
	default:
		f.Set(m, decodeElem(f.Kind, raw))
	}
	return nil
}

// decodeElem decodes a raw storage value into a runtime scalar.
func decodeElem(kind Kind, raw any) any {
	switch kind {
	case KindInt:
		return asInt64(raw)
	case KindFloat:
		return asFloat64(raw)
	case KindBool:
		return asInt64(raw) != 0
	case KindBytes:
		if b, ok := raw.([]byte); ok {
			return b
		}
		return []byte(asString(raw))
	case KindTime:
		millis := asInt64(raw)
		if millis == dateNone {
			return time.Time{}
		}
		return time.UnixMilli(millis)
	default:
		return asString(raw)
	}
}

// parseDefaultDate converts a declared date default literal into its
// stored epoch-millisecond form.
func parseDefaultDate(lit string) (string, error) {
	t, err := time.Parse(defaultDateLayout, lit)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(t.UnixMilli(), 10), nil
}

// isDefaultValue reports whether a field currently holds its type's
// zero/empty default. Compared against a freshly constructed empty
// instance via printed form, so every scalar kind shares one rule.
func isDefaultValue(f *Field, m, empty any) bool {
	return fmt.Sprint(f.Get(m)) == fmt.Sprint(f.Get(empty))
}

// asInt64 coerces the value shapes storage drivers hand back.
func asInt64(raw any) int64 {
	switch v := raw.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

func asFloat64(raw any) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

func asString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
