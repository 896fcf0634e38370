package docstore

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// matches evaluates the subset of the MongoDB query language the in-process
// store supports: field equality (including array membership), dotted paths,
// $and/$or/$nor and the $eq/$ne/$in/$nin/$exists/$gt/$gte/$lt/$lte operators.
func matches(doc, filter bson.M) (bool, error) {
	for key, cond := range filter {
		switch key {
		case "$and", "$or", "$nor":
			subs, ok := cond.(bson.A)
			if !ok {
				return false, fmt.Errorf("%w: %s expects an array", ErrUnsupported, key)
			}
			ok, err := matchLogical(doc, key, subs)
			if err != nil || !ok {
				return false, err
			}
		default:
			if strings.HasPrefix(key, "$") {
				return false, fmt.Errorf("%w: %s", ErrUnsupported, key)
			}
			val, present := lookup(doc, key)
			ok, err := matchField(val, present, cond)
			if err != nil || !ok {
				return false, err
			}
		}
	}
	return true, nil
}

func matchLogical(doc bson.M, op string, subs bson.A) (bool, error) {
	matched := false
	for _, s := range subs {
		sub, ok := asDoc(s)
		if !ok {
			return false, fmt.Errorf("%w: %s element is not a document", ErrUnsupported, op)
		}
		ok, err := matches(doc, sub)
		if err != nil {
			return false, err
		}
		switch {
		case op == "$and" && !ok:
			return false, nil
		case ok:
			matched = true
		}
	}
	switch op {
	case "$and":
		return true, nil
	case "$or":
		return matched, nil
	default:
		return !matched, nil
	}
}

func matchField(val any, present bool, cond any) (bool, error) {
	ops, ok := asDoc(cond)
	if !ok || !isOperatorDoc(ops) {
		return equalsMatch(val, present, cond), nil
	}

	for op, arg := range ops {
		var ok bool
		switch op {
		case "$eq":
			ok = equalsMatch(val, present, arg)
		case "$ne":
			ok = !equalsMatch(val, present, arg)
		case "$in", "$nin":
			list, isList := arg.(bson.A)
			if !isList {
				return false, fmt.Errorf("%w: %s expects an array", ErrUnsupported, op)
			}
			for _, want := range list {
				if equalsMatch(val, present, want) {
					ok = true
					break
				}
			}
			if op == "$nin" {
				ok = !ok
			}
		case "$exists":
			want, _ := arg.(bool)
			ok = want == present
		case "$gt", "$gte", "$lt", "$lte":
			if !present {
				return false, nil
			}
			n, ordered := compare(val, arg)
			if !ordered {
				return false, nil
			}
			ok = (op == "$gt" && n > 0) || (op == "$gte" && n >= 0) ||
				(op == "$lt" && n < 0) || (op == "$lte" && n <= 0)
		default:
			return false, fmt.Errorf("%w: %s", ErrUnsupported, op)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func equalsMatch(val any, present bool, want any) bool {
	if !present {
		return want == nil
	}
	if arr, ok := val.(bson.A); ok {
		if _, wantArr := want.(bson.A); !wantArr {
			for _, el := range arr {
				if valuesEqual(el, want) {
					return true
				}
			}
			return false
		}
	}
	return valuesEqual(val, want)
}

func valuesEqual(a, b any) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	if x, ok := asDoc(a); ok {
		y, ok := asDoc(b)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !valuesEqual(xv, yv) {
				return false
			}
		}
		return true
	}
	if x, ok := a.(bson.A); ok {
		y, ok := b.(bson.A)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !valuesEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// compare orders numbers, strings and timestamps. The bool is false for
// values of different or unordered kinds.
func compare(a, b any) (int, bool) {
	if x, ok := number(a); ok {
		y, ok := number(b)
		if !ok {
			return 0, false
		}
		return cmp3(x < y, x > y), true
	}
	if x, ok := a.(string); ok {
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	}
	if x, ok := instant(a); ok {
		y, ok := instant(b)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	}
	return 0, false
}

// order is a total order for sorting: missing and unordered values sort first.
func order(a, b any) int {
	if n, ok := compare(a, b); ok {
		return n
	}
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return 0
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func instant(v any) (time.Time, bool) {
	switch t := v.(type) {
	case bson.DateTime:
		return t.Time(), true
	case time.Time:
		return t, true
	}
	return time.Time{}, false
}

func asDoc(v any) (bson.M, bool) {
	switch d := v.(type) {
	case bson.M:
		return d, true
	case map[string]any:
		return bson.M(d), true
	case bson.D:
		m := make(bson.M, len(d))
		for _, e := range d {
			m[e.Key] = e.Value
		}
		return m, true
	}
	return nil, false
}

func isOperatorDoc(m bson.M) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func lookup(doc bson.M, path string) (any, bool) {
	cur := doc
	parts := strings.Split(path, ".")
	for i, p := range parts {
		v, ok := cur[p]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := asDoc(v)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

func validateUpdate(update bson.M) error {
	if len(update) == 0 {
		return fmt.Errorf("%w: empty update", ErrUnsupported)
	}
	for op, arg := range update {
		switch op {
		case "$set", "$unset", "$inc":
		default:
			return fmt.Errorf("%w: update operator %q", ErrUnsupported, op)
		}
		if _, ok := asDoc(arg); !ok {
			return fmt.Errorf("%w: %s expects a document", ErrUnsupported, op)
		}
	}
	return nil
}

func applyUpdate(doc, update bson.M) error {
	for op, arg := range update {
		fields, _ := asDoc(arg)
		for path, v := range fields {
			switch op {
			case "$set":
				setPath(doc, path, v)
			case "$unset":
				unsetPath(doc, path)
			case "$inc":
				cur, present := lookup(doc, path)
				if !present {
					cur = int64(0)
				}
				sum, err := add(cur, v)
				if err != nil {
					return fmt.Errorf("$inc %s: %w", path, err)
				}
				setPath(doc, path, sum)
			}
		}
	}
	return nil
}

func add(a, b any) (any, error) {
	x, ok := number(a)
	y, ok2 := number(b)
	if !ok || !ok2 {
		return nil, fmt.Errorf("%w: non-numeric operand", ErrUnsupported)
	}
	_, af := a.(float64)
	_, bf := b.(float64)
	if af || bf {
		return x + y, nil
	}
	return int64(x) + int64(y), nil
}

func setPath(doc bson.M, path string, v any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := asDoc(cur[p])
		if !ok {
			next = bson.M{}
		}
		cur[p] = next
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func unsetPath(doc bson.M, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := asDoc(cur[p])
		if !ok {
			return
		}
		cur[p] = next
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}
