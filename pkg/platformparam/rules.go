package platformparam

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/alice21mota/oppia/pkg/apperr"
)

var (
	versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)

	platformTypes = []string{"Web", "Android", "Backend"}
	flavors       = []string{"test", "alpha", "beta", "release"}

	filterOperators = map[string][]string{
		FilterPlatformType:     {"="},
		FilterAppVersion:       {"=", "<", "<=", ">", ">="},
		FilterAppVersionFlavor: {"=", "<", "<=", ">", ">="},
	}
)

// ValidateValue checks a value against a data type, returning the
// normalized value.
func ValidateValue(dt DataType, v any) (any, bool) {
	v = normalizeValue(v)
	switch dt {
	case DataTypeBool:
		_, ok := v.(bool)
		return v, ok
	case DataTypeString:
		_, ok := v.(string)
		return v, ok
	case DataTypeNumber:
		_, ok := v.(float64)
		return v, ok
	default:
		return v, false
	}
}

// ValidateRules checks every rule's value and filters against the data type.
func ValidateRules(dt DataType, rules []Rule) error {
	for i, rule := range rules {
		v, ok := ValidateValue(dt, rule.ValueWhenMatched)
		if !ok {
			return apperr.InvalidInput("Expected %s, received '%v' in value_when_matched.", dt, rule.ValueWhenMatched)
		}
		rules[i].ValueWhenMatched = v
		for _, f := range rule.Filters {
			if err := validateFilter(f); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateFilter(f Filter) error {
	ops, ok := filterOperators[f.Type]
	if !ok {
		return apperr.InvalidInput("Unsupported filter type '%s'", f.Type)
	}
	for _, cond := range f.Conditions {
		op, _ := cond[0].(string)
		if !slices.Contains(ops, op) {
			return apperr.InvalidInput("Unsupported comparison operator '%v' for %s filter, expected one of %s",
				cond[0], f.Type, quoteList(ops))
		}
		value, _ := cond[1].(string)
		switch f.Type {
		case FilterPlatformType:
			if !slices.Contains(platformTypes, value) {
				return apperr.InvalidInput("Unsupported platform type '%v'", cond[1])
			}
		case FilterAppVersion:
			if !versionPattern.MatchString(value) {
				return apperr.InvalidInput("Invalid version string '%v'", cond[1])
			}
		case FilterAppVersionFlavor:
			if !slices.Contains(flavors, value) {
				return apperr.InvalidInput("Invalid app version flavor '%v'", cond[1])
			}
		}
	}
	return nil
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// Evaluate returns the value of the first rule matching the client, or
// the default value when none match.
func (p Parameter) Evaluate(ctx ClientContext) any {
	for _, rule := range p.Rules {
		if rule.matches(ctx) {
			return rule.ValueWhenMatched
		}
	}
	return p.DefaultValue
}

func (r Rule) matches(ctx ClientContext) bool {
	for _, f := range r.Filters {
		if !f.matches(ctx) {
			return false
		}
	}
	return true
}

// matches reports whether any condition of the filter holds.
func (f Filter) matches(ctx ClientContext) bool {
	for _, cond := range f.Conditions {
		op, _ := cond[0].(string)
		value, _ := cond[1].(string)
		switch f.Type {
		case FilterPlatformType:
			if op == "=" && ctx.PlatformType == value {
				return true
			}
		case FilterAppVersion:
			if ctx.AppVersion == "" {
				continue
			}
			c, ok := compareVersions(ctx.AppVersion, value)
			if ok && compare(op, c) {
				return true
			}
		case FilterAppVersionFlavor:
			a := slices.Index(flavors, ctx.AppVersionFlavor)
			b := slices.Index(flavors, value)
			if a >= 0 && b >= 0 && compare(op, a-b) {
				return true
			}
		}
	}
	return false
}

func compare(op string, c int) bool {
	switch op {
	case "=":
		return c == 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	default:
		return false
	}
}

// compareVersions compares two x.y.z version strings.
func compareVersions(a, b string) (int, bool) {
	pa, ok := parseVersion(a)
	if !ok {
		return 0, false
	}
	pb, ok := parseVersion(b)
	if !ok {
		return 0, false
	}
	return slices.Compare(pa, pb), true
}

func parseVersion(v string) ([]int, bool) {
	// Clients may send a build suffix such as "1.2.3-abcdef-alpha".
	if i := strings.IndexByte(v, '-'); i >= 0 {
		v = v[:i]
	}
	m := versionPattern.FindStringSubmatch(v)
	if m == nil {
		return nil, false
	}
	parts := make([]int, 3)
	for i := range parts {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return nil, false
		}
		parts[i] = n
	}
	return parts, true
}

// validateDefault checks that a default value matches the data type.
func validateDefault(dt DataType, v any) (any, error) {
	nv, ok := ValidateValue(dt, v)
	if !ok {
		return nil, apperr.InvalidInput("Expected %s, received '%v' in default value.", dt, v)
	}
	return nv, nil
}
