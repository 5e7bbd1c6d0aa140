package patch

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/reposync/admin-backend/internal/directory"
)

// ErrTypeMismatch means Diff was handed two records of different concrete
// types. That is a programmer error; it propagates and is never handled
// here.
var ErrTypeMismatch = errors.New("patch: records have different concrete types")

type OpKind string

const (
	OpAdd     OpKind = "add"
	OpRemove  OpKind = "remove"
	OpReplace OpKind = "replace"
)

// Op is one add/remove/replace instruction describing a minimal change to a
// structured resource, in the remote directory's PATCH shape.
type Op struct {
	Op    OpKind `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Options restricts the diff to a subset of attributes. Both sets match
// attribute names at every nesting level; Include, once matched, covers the
// whole subtree beneath the matched attribute.
type Options struct {
	Include []string
	Exclude []string
}

const (
	keyedValueField = "value"
	keyedTypeField  = "type"
)

// Diff computes the minimal operations that turn original into updated.
// Keyed-list elements are identified by their (value, type) pair; an element
// present on both sides is treated as unchanged no matter what its other
// attributes do, so label churn never produces remove/add pairs.
func Diff(original, updated any, opts Options) ([]Op, error) {
	if err := checkSameType(original, updated); err != nil {
		return nil, err
	}
	o, err := canonicalize(original)
	if err != nil {
		return nil, err
	}
	u, err := canonicalize(updated)
	if err != nil {
		return nil, err
	}
	d := differ{
		include: attributeSet(opts.Include),
		exclude: attributeSet(opts.Exclude),
	}
	d.walk("", o, u, len(d.include) > 0)
	return d.ops, nil
}

func checkSameType(original, updated any) error {
	to, tu := reflect.TypeOf(original), reflect.TypeOf(updated)
	if to != tu {
		return fmt.Errorf("%w: %v vs %v", ErrTypeMismatch, to, tu)
	}
	return nil
}

// canonicalize flattens typed records into the generic map form the walk
// operates on. The JSON round-trip keeps attribute names aligned with the
// wire representation.
func canonicalize(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("patch: canonicalize record: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("patch: canonicalize record: %w", err)
	}
	return m, nil
}

func attributeSet(names []string) map[string]struct{} {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[directory.AttributeName(n)] = struct{}{}
	}
	return set
}

type differ struct {
	include map[string]struct{}
	exclude map[string]struct{}
	ops     []Op
}

func (d *differ) walk(prefix string, original, updated map[string]any, filtering bool) {
	for _, key := range sortedKeyUnion(original, updated) {
		attr := directory.AttributeName(key)
		if _, skip := d.exclude[attr]; skip {
			continue
		}
		childFiltering := filtering
		if filtering {
			if _, ok := d.include[attr]; !ok {
				continue
			}
			childFiltering = false
		}

		path := attr
		if prefix != "" {
			path = prefix + "." + attr
		}
		ov, oOK := original[key]
		uv, uOK := updated[key]
		switch {
		case !oOK && uOK:
			d.ops = append(d.ops, Op{Op: OpAdd, Path: path, Value: uv})
		case oOK && !uOK:
			d.ops = append(d.ops, Op{Op: OpRemove, Path: path})
		default:
			d.diffValue(path, ov, uv, childFiltering)
		}
	}
}

func (d *differ) diffValue(path string, original, updated any, filtering bool) {
	om, oIsMap := original.(map[string]any)
	um, uIsMap := updated.(map[string]any)
	if oIsMap && uIsMap {
		d.walk(path, om, um, filtering)
		return
	}
	ol, oIsList := original.([]any)
	ul, uIsList := updated.([]any)
	if oIsList && uIsList && isKeyedList(ol) && isKeyedList(ul) {
		d.diffKeyedList(path, ol, ul)
		return
	}
	if !reflect.DeepEqual(original, updated) {
		d.ops = append(d.ops, Op{Op: OpReplace, Path: path, Value: updated})
	}
}

func (d *differ) diffKeyedList(path string, original, updated []any) {
	oByKey := keyElements(original)
	uByKey := keyElements(updated)

	removed := make([]string, 0, len(oByKey))
	for key := range oByKey {
		if _, ok := uByKey[key]; !ok {
			removed = append(removed, key)
		}
	}
	sort.Strings(removed)
	for _, key := range removed {
		d.ops = append(d.ops, Op{Op: OpRemove, Path: path + elementSelector(oByKey[key])})
	}

	// Additions keep the updated list's order.
	for _, elem := range updated {
		key, ok := elementKey(elem)
		if !ok {
			continue
		}
		if _, existed := oByKey[key]; existed {
			continue
		}
		d.ops = append(d.ops, Op{Op: OpAdd, Path: path, Value: elem})
	}
}

// isKeyedList reports whether every element is a record carrying the key
// field. Lists that are not keyed diff as opaque values.
func isKeyedList(list []any) bool {
	if len(list) == 0 {
		return true
	}
	for _, elem := range list {
		if _, ok := elementKey(elem); !ok {
			return false
		}
	}
	return true
}

func elementKey(elem any) (string, bool) {
	m, ok := elem.(map[string]any)
	if !ok {
		return "", false
	}
	value, ok := m[keyedValueField].(string)
	if !ok || value == "" {
		return "", false
	}
	typ, _ := m[keyedTypeField].(string)
	return value + "\x00" + typ, true
}

func elementSelector(elem map[string]any) string {
	value, _ := elem[keyedValueField].(string)
	sel := keyedValueField + ` eq "` + escapeFilterValue(value) + `"`
	if typ, ok := elem[keyedTypeField].(string); ok && typ != "" {
		sel += ` and ` + keyedTypeField + ` eq "` + escapeFilterValue(typ) + `"`
	}
	return "[" + sel + "]"
}

func escapeFilterValue(v string) string {
	out := make([]byte, 0, len(v))
	for i := 0; i < len(v); i++ {
		if v[i] == '"' || v[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, v[i])
	}
	return string(out)
}

func keyElements(list []any) map[string]map[string]any {
	out := make(map[string]map[string]any, len(list))
	for _, elem := range list {
		key, ok := elementKey(elem)
		if !ok {
			continue
		}
		if _, dup := out[key]; dup {
			continue
		}
		out[key] = elem.(map[string]any)
	}
	return out
}

func sortedKeyUnion(a, b map[string]any) []string {
	keys := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
		seen[k] = struct{}{}
	}
	for k := range b {
		if _, dup := seen[k]; !dup {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
