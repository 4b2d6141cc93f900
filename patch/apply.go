package patch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"
)

// ApplyRFC6902 runs one session transition: ops are checked against allowed,
// applied to the JSON form of current and decoded into a new T. current is
// never modified. An empty allowed set permits every path.
func ApplyRFC6902[T any](current T, ops []Operation, allowed map[string]bool) (T, error) {
	if err := ValidatePatchOperations(ops, allowed); err != nil {
		return current, fmt.Errorf("transition rejected: %w", err)
	}
	if len(ops) == 0 {
		return current, nil
	}

	doc, err := sonic.Marshal(current)
	if err != nil {
		return current, fmt.Errorf("encode state before transition: %w", err)
	}
	p, err := compile(doc, ops)
	if err != nil {
		return current, err
	}

	options := jsonpatch.NewApplyOptions()
	options.AllowMissingPathOnRemove = true
	next, err := p.ApplyWithOptions(doc, options)
	if err != nil {
		return current, fmt.Errorf("apply transition: %w", err)
	}

	var out T
	if err := sonic.Unmarshal(next, &out); err != nil {
		return current, fmt.Errorf("transition left state with a bad field type: %w", err)
	}
	return out, nil
}

// compile turns ops into a json-patch. Zeroed omitempty fields vanish from
// doc, so a replace aimed at one is sent as an add.
func compile(doc []byte, ops []Operation) (jsonpatch.Patch, error) {
	resolved := make([]Operation, len(ops))
	for i, op := range ops {
		if op.Op == OperationReplace && !hasPointer(doc, op.Path) {
			op.Op = OperationAdd
		}
		resolved[i] = op
	}
	raw, err := sonic.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("encode transition ops: %w", err)
	}
	p, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, fmt.Errorf("decode transition ops: %w", err)
	}
	return p, nil
}

// hasPointer reports whether the JSON pointer resolves inside doc.
func hasPointer(doc []byte, pointer string) bool {
	if pointer == "" {
		return true
	}
	if !strings.HasPrefix(pointer, "/") {
		return false
	}
	var path []any
	for _, token := range strings.Split(pointer[1:], "/") {
		token = strings.NewReplacer("~1", "/", "~0", "~").Replace(token)
		if index, err := strconv.Atoi(token); err == nil && index >= 0 {
			path = append(path, index)
			continue
		}
		path = append(path, token)
	}
	node, err := sonic.Get(doc, path...)
	return err == nil && node.Exists()
}
