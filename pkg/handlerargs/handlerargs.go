// Package handlerargs validates request arguments against declared schemas
// and reports problems in the wire format admin clients parse.
package handlerargs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/alice21mota/oppia/pkg/apperr"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Kind is the declared type of an argument.
type Kind int

const (
	// String accepts JSON strings.
	String Kind = iota
	// Int accepts integers and strings convertible to integers.
	Int
	// Bool accepts booleans.
	Bool
	// List accepts JSON arrays.
	List
	// Dict accepts JSON objects.
	Dict
	// DictList accepts JSON arrays whose elements are objects.
	DictList
	// Any accepts every value.
	Any
)

// Arg declares one argument.
type Arg struct {
	Name      string
	Kind      Kind
	Optional  bool
	MaxLength int
	Choices   []string
}

// Spec is an ordered argument schema. Problems are reported in this order.
type Spec []Arg

// Args holds validated arguments. Absent optional arguments have no entry.
type Args map[string]any

// Has reports whether key was supplied.
func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// String returns the string argument key, or "".
func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Int returns the integer argument key, or 0.
func (a Args) Int(key string) int {
	n, _ := a[key].(int)
	return n
}

// Bool returns the boolean argument key, or false.
func (a Args) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// List returns the list argument key, or nil.
func (a Args) List(key string) []any {
	l, _ := a[key].([]any)
	return l
}

// Dict returns the dict argument key, or nil.
func (a Args) Dict(key string) map[string]any {
	d, _ := a[key].(map[string]any)
	return d
}

// Parse reads the arguments of r and validates them against spec. POST and
// PUT requests carry a JSON object body; other methods use the query string.
func Parse(r *http.Request, spec Spec) (Args, error) {
	raw, fromQuery, err := readRaw(r)
	if err != nil {
		return nil, requestError(r, []string{err.Error()})
	}
	args, problems := Validate(raw, spec, fromQuery)
	if len(problems) > 0 {
		return nil, requestError(r, problems)
	}
	return args, nil
}

// requestError formats problems for the request URL.
func requestError(r *http.Request, problems []string) error {
	return apperr.InvalidInput("At '%s' these errors are happening:\n%s",
		requestURL(r), strings.Join(problems, "\n"))
}

// requestURL reconstructs the absolute URL of r including its query.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// readRaw decodes the request into a generic map.
func readRaw(r *http.Request) (map[string]any, bool, error) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		raw := map[string]any{}
		for k, vs := range r.URL.Query() {
			if len(vs) > 0 {
				raw[k] = vs[0]
			}
		}
		return raw, true, nil
	}

	raw := map[string]any{}
	if r.Body == nil {
		return raw, false, nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, false, nil
		}
		return nil, false, fmt.Errorf("Invalid JSON payload: %s", err.Error()) //nolint:staticcheck // client-facing message
	}
	return raw, false, nil
}

// Validate checks raw against spec. Query-string input arrives as strings
// and is converted per kind. A nil value is treated as absent.
func Validate(raw map[string]any, spec Spec, fromQuery bool) (Args, []string) {
	args := Args{}
	var problems []string

	for _, a := range spec {
		v, ok := raw[a.Name]
		if !ok || v == nil {
			if !a.Optional {
				problems = append(problems, fmt.Sprintf("Missing key in handler args: %s.", a.Name))
			}
			continue
		}
		normalized, err := normalize(a, v, fromQuery)
		if err != nil {
			problems = append(problems, fmt.Sprintf("Schema validation for '%s' failed: %s", a.Name, err.Error()))
			continue
		}
		args[a.Name] = normalized
	}

	var extra []string
	for k := range raw {
		if !slices.ContainsFunc(spec, func(a Arg) bool { return a.Name == k }) {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		problems = append(problems, fmt.Sprintf("Found extra args: %s.", repr(extra)))
	}

	return args, problems
}

// normalize converts v to the Go representation of a.Kind.
func normalize(a Arg, v any, fromQuery bool) (any, error) {
	if fromQuery {
		if s, ok := v.(string); ok {
			var err error
			if v, err = fromQueryString(a.Kind, s); err != nil {
				return nil, err
			}
		}
	}

	switch a.Kind {
	case String:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("Expected string, received %s", display(v)) //nolint:staticcheck // client-facing message
		}
		if a.MaxLength > 0 && len(s) > a.MaxLength {
			return nil, fmt.Errorf("Validation failed: has_length_at_most ({'max_value': %d}) for object %s", a.MaxLength, s) //nolint:staticcheck // client-facing message
		}
		if len(a.Choices) > 0 && !slices.Contains(a.Choices, s) {
			return nil, fmt.Errorf("Received %s which is not in the allowed range of choices: %s", s, repr(a.Choices)) //nolint:staticcheck // client-facing message
		}
		return s, nil
	case Int:
		return toInt(v)
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("Expected bool, received %s", display(v)) //nolint:staticcheck // client-facing message
		}
		return b, nil
	case List:
		l, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("Expected list, received %s", display(v)) //nolint:staticcheck // client-facing message
		}
		return l, nil
	case DictList:
		l, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("Expected list, received %s", display(v)) //nolint:staticcheck // client-facing message
		}
		for _, e := range l {
			if _, ok := e.(map[string]any); !ok {
				return nil, fmt.Errorf("'%s' object is not subscriptable", typeName(e))
			}
		}
		return l, nil
	case Dict:
		d, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("Expected dict, received %s", display(v)) //nolint:staticcheck // client-facing message
		}
		return d, nil
	default:
		return v, nil
	}
}

// fromQueryString decodes a query-string value for kinds that are not
// strings on the wire.
func fromQueryString(kind Kind, s string) (any, error) {
	switch kind {
	case Bool:
		switch strings.ToLower(s) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return s, nil
	case List, Dict, DictList, Any:
		var v any
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return s, nil //nolint:nilerr // fall through to the type check
		}
		return v, nil
	default:
		return s, nil
	}
}

// toInt converts decoded JSON or query values to int.
func toInt(v any) (int, error) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), nil
		}
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("Could not convert %s to int: %s", typeName(v), t.String()) //nolint:staticcheck // client-facing message
		}
		return int(math.Trunc(f)), nil
	case float64:
		return int(math.Trunc(t)), nil
	case int:
		return t, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("Could not convert str to int: %s", t) //nolint:staticcheck // client-facing message
		}
		return n, nil
	default:
		return 0, fmt.Errorf("Could not convert %s to int: %s", typeName(v), display(v)) //nolint:staticcheck // client-facing message
	}
}
