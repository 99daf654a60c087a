package rpc

import "encoding/json"

// Params is the request parameter map handed to handlers. Handlers bind
// their own arguments through the typed accessors; the Required variants
// produce the invalid-params envelope error directly.
type Params map[string]any

// String returns the named string parameter and whether it was present
// and a string.
func (p Params) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StringDefault returns the named string parameter or def when absent.
func (p Params) StringDefault(key, def string) string {
	if s, ok := p.String(key); ok {
		return s
	}
	return def
}

// RequiredString returns the named string parameter or an invalid-params
// error naming the gap.
func (p Params) RequiredString(key string) (string, *Error) {
	v, ok := p[key]
	if !ok {
		return "", InvalidParams("missing required parameter: %s", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", InvalidParams("parameter %s must be a non-empty string", key)
	}
	return s, nil
}

// Int returns the named parameter as int. JSON numbers decode as
// float64; both are accepted.
func (p Params) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// IntDefault returns the named int parameter or def when absent or not
// a number.
func (p Params) IntDefault(key string, def int) int {
	if n, ok := p.Int(key); ok {
		return n
	}
	return def
}

// Bool returns the named bool parameter.
func (p Params) Bool(key string) (bool, bool) {
	b, ok := p[key].(bool)
	return b, ok
}

// Map returns the named object parameter.
func (p Params) Map(key string) (map[string]any, bool) {
	m, ok := p[key].(map[string]any)
	return m, ok
}

// Bind unmarshals the whole parameter map into a typed struct, for
// handlers with larger argument sets. Failures are invalid-params.
func (p Params) Bind(dst any) *Error {
	data, err := json.Marshal(map[string]any(p))
	if err != nil {
		return InvalidParams("cannot encode parameters: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return InvalidParams("cannot bind parameters: %v", err)
	}
	return nil
}

// BindKey unmarshals one object-valued parameter into a typed struct.
func (p Params) BindKey(key string, dst any) *Error {
	v, ok := p[key]
	if !ok {
		return InvalidParams("missing required parameter: %s", key)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return InvalidParams("cannot encode parameter %s: %v", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return InvalidParams("parameter %s has the wrong shape: %v", key, err)
	}
	return nil
}
