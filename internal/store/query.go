package store

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"distrigo/backend/internal/domain"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// ApplyOptions runs the full list contract over an in-order snapshot of a
// collection: free-text search, equality filters, single-field sort and
// offset pagination. Both store implementations share it so list semantics
// cannot drift between them. Fields are addressed by their json tag name.
func ApplyOptions[T any](items []T, opts domain.ListOptions) domain.ListResult[T] {
	filtered := make([]T, 0, len(items))
	for _, item := range items {
		if opts.Query != "" && !matchesQuery(item, opts.Query) {
			continue
		}
		if !matchesFilters(item, opts.Filters) {
			continue
		}
		filtered = append(filtered, item)
	}

	if opts.Sort != "" {
		sortItems(filtered, opts.Sort)
	}

	page := opts.Page
	if page < 1 {
		page = DefaultPage
	}
	limit := opts.Limit
	if limit < 1 {
		limit = DefaultLimit
	}

	total := len(filtered)
	totalPages := (total + limit - 1) / limit
	offset := (page - 1) * limit

	window := []T{}
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		window = make([]T, end-offset)
		copy(window, filtered[offset:end])
	}

	return domain.ListResult[T]{
		Items:      window,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}

func matchesQuery(item any, query string) bool {
	query = strings.ToLower(query)
	found := false
	walkStrings(reflect.ValueOf(item), func(s string) {
		if strings.Contains(strings.ToLower(s), query) {
			found = true
		}
	})
	return found
}

func walkStrings(v reflect.Value, visit func(string)) {
	switch v.Kind() {
	case reflect.String:
		visit(v.String())
	case reflect.Struct:
		if v.Type() == reflect.TypeOf(time.Time{}) {
			return
		}
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				walkStrings(v.Field(i), visit)
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			walkStrings(v.Index(i), visit)
		}
	case reflect.Pointer:
		if !v.IsNil() {
			walkStrings(v.Elem(), visit)
		}
	}
}

func matchesFilters(item any, filters map[string]string) bool {
	for name, want := range filters {
		if strings.TrimSpace(want) == "" {
			continue
		}
		field, ok := fieldByJSONName(reflect.ValueOf(item), name)
		if !ok {
			return false
		}
		if stringify(field) != want {
			return false
		}
	}
	return true
}

// fieldByJSONName resolves a struct field by its json tag, descending into
// embedded structs (domain.Base).
func fieldByJSONName(v reflect.Value, name string) (reflect.Value, bool) {
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if inner, ok := fieldByJSONName(v.Field(i), name); ok {
				return inner, true
			}
			continue
		}
		tag := field.Tag.Get("json")
		tagName := strings.Split(tag, ",")[0]
		if tagName == "" {
			tagName = strings.ToLower(field.Name)
		}
		if tagName == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func stringify(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Struct:
		if ts, ok := v.Interface().(time.Time); ok {
			return ts.UTC().Format(time.RFC3339)
		}
	}
	return ""
}

func sortItems[T any](items []T, spec string) {
	field, direction, _ := strings.Cut(spec, ":")
	field = strings.TrimSpace(field)
	if field == "" {
		return
	}
	descending := strings.EqualFold(strings.TrimSpace(direction), "desc")

	sort.SliceStable(items, func(i, j int) bool {
		a, okA := fieldByJSONName(reflect.ValueOf(items[i]), field)
		b, okB := fieldByJSONName(reflect.ValueOf(items[j]), field)
		if !okA || !okB {
			return false
		}
		less := compareValues(a, b) < 0
		if descending {
			less = compareValues(a, b) > 0
		}
		return less
	})
}

func compareValues(a, b reflect.Value) int {
	switch a.Kind() {
	case reflect.String:
		return strings.Compare(a.String(), b.String())
	case reflect.Bool:
		return boolToInt(a.Bool()) - boolToInt(b.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmpInt64(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return cmpInt64(int64(a.Uint()), int64(b.Uint()))
	case reflect.Float32, reflect.Float64:
		switch {
		case a.Float() < b.Float():
			return -1
		case a.Float() > b.Float():
			return 1
		}
		return 0
	case reflect.Struct:
		ta, okA := a.Interface().(time.Time)
		tb, okB := b.Interface().(time.Time)
		if okA && okB {
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			}
		}
		return 0
	}
	return 0
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
