package form

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"
)

// PatchOperation is one RFC6902 operation against the values map. The first
// path segment names a registered field; deeper segments address structure
// inside map- or slice-valued fields.
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

const (
	patchOpAdd     = "add"
	patchOpReplace = "replace"
	patchOpRemove  = "remove"
)

// ApplyPatch applies RFC6902 operations to the live values as one
// transaction with a single notification. Operations addressing
// unregistered fields fail the whole call; nothing is partially applied.
// Replace on a missing path is rewritten to add, and remove on a missing
// path is dropped, so generated patches stay usable against sparse state.
func (c *Controller) ApplyPatch(ops []PatchOperation) (SetValuesResult, error) {
	if len(ops) == 0 {
		return SetValuesResult{}, nil
	}

	c.mu.Lock()
	for i, op := range ops {
		key := rootSegment(op.Path)
		if _, ok := c.defs[key]; !ok {
			c.mu.Unlock()
			return SetValuesResult{}, fmt.Errorf("operation %d: %w: %q", i, ErrFieldNotRegistered, key)
		}
	}
	current := c.snap.Values()
	c.mu.Unlock()

	currentJSON, err := sonic.Marshal(current)
	if err != nil {
		return SetValuesResult{}, fmt.Errorf("failed to marshal current values: %w", err)
	}

	ops = fixOperations(currentJSON, ops)

	patchJSON, err := sonic.Marshal(ops)
	if err != nil {
		return SetValuesResult{}, fmt.Errorf("failed to marshal patch operations: %w", err)
	}
	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return SetValuesResult{}, fmt.Errorf("failed to decode patch: %w", err)
	}
	modifiedJSON, err := patch.Apply(currentJSON)
	if err != nil {
		return SetValuesResult{}, fmt.Errorf("failed to apply patch: %w", err)
	}

	var modified map[string]any
	if err := sonic.Unmarshal(modifiedJSON, &modified); err != nil {
		return SetValuesResult{}, fmt.Errorf("failed to decode patched values: %w", err)
	}

	// Narrow JSON numbers back to the registered types, then hand the
	// changed keys to the normal bulk pipeline.
	changed := map[string]any{}
	c.mu.Lock()
	for key, reg := range c.defs {
		v, ok := modified[key]
		if !ok {
			continue
		}
		if converted, ok := convertStored(v, reg.typ); ok {
			v = converted
		}
		if !valuesEqual(c.snap.values[key], v) {
			changed[key] = v
		}
	}
	c.mu.Unlock()

	return c.SetValues(changed, false)
}

// fixOperations adjusts generated patches the way the state actually looks:
// replace becomes add when the path does not exist yet, and remove of a
// missing path is dropped.
func fixOperations(currentJSON []byte, ops []PatchOperation) []PatchOperation {
	var doc any
	if err := sonic.Unmarshal(currentJSON, &doc); err != nil {
		return ops
	}
	fixed := make([]PatchOperation, 0, len(ops))
	for _, op := range ops {
		switch op.Op {
		case patchOpReplace:
			if !pathExists(doc, op.Path) {
				op.Op = patchOpAdd
			}
			fixed = append(fixed, op)
		case patchOpRemove:
			if pathExists(doc, op.Path) {
				fixed = append(fixed, op)
			}
		default:
			fixed = append(fixed, op)
		}
	}
	return fixed
}

func rootSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	path = strings.ReplaceAll(path, "~1", "/")
	return strings.ReplaceAll(path, "~0", "~")
}

func pathExists(doc any, path string) bool {
	if path == "" {
		return true
	}
	if !strings.HasPrefix(path, "/") {
		return false
	}
	tokens := strings.Split(path[1:], "/")
	cur := doc
	for _, token := range tokens {
		token = strings.ReplaceAll(token, "~1", "/")
		token = strings.ReplaceAll(token, "~0", "~")
		switch node := cur.(type) {
		case map[string]any:
			value, ok := node[token]
			if !ok {
				return false
			}
			cur = value
		case []any:
			index, err := strconv.Atoi(token)
			if err != nil || index < 0 || index >= len(node) {
				return false
			}
			cur = node[index]
		default:
			return false
		}
	}
	return true
}
