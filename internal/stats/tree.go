package stats

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// Kind tags a Tree node
type Kind uint8

const (
	KindLeaf Kind = iota + 1
	KindNode
)

// Tree is a tagged value: a numeric leaf or a mapping of named children
type Tree struct {
	Kind     Kind
	Value    float64
	Children map[string]*Tree
}

var treeDecMode cbor.DecMode

func init() {
	var err error
	treeDecMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// TreeOf converts a record into a Tree using its CBOR field names
func TreeOf(rec interface{}) (*Tree, error) {
	data, err := cbor.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var generic interface{}
	if err := treeDecMode.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return build("", generic)
}

func build(path string, v interface{}) (*Tree, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		node := &Tree{Kind: KindNode, Children: make(map[string]*Tree, len(val))}
		for key, child := range val {
			sub, err := build(join(path, key), child)
			if err != nil {
				return nil, err
			}
			node.Children[key] = sub
		}
		return node, nil
	case uint64:
		return &Tree{Kind: KindLeaf, Value: float64(val)}, nil
	case int64:
		return &Tree{Kind: KindLeaf, Value: float64(val)}, nil
	case float64:
		return &Tree{Kind: KindLeaf, Value: val}, nil
	case float32:
		return &Tree{Kind: KindLeaf, Value: float64(val)}, nil
	default:
		return nil, fmt.Errorf("%w: %q holds %T", ErrUnknownShape, path, v)
	}
}

// Walk visits every leaf in path order
func (t *Tree) Walk(fn func(path string, value float64)) error {
	return t.walk("", fn)
}

func (t *Tree) walk(path string, fn func(string, float64)) error {
	switch t.Kind {
	case KindLeaf:
		fn(path, t.Value)
		return nil
	case KindNode:
		keys := make([]string, 0, len(t.Children))
		for k := range t.Children {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := t.Children[k].walk(join(path, k), fn); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %q tagged %d", ErrUnknownShape, path, t.Kind)
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
