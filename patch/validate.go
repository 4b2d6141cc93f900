package patch

import (
	"fmt"
	"strings"
)

// AllowedPaths builds the allow-list consumed by ValidatePatchOperations.
func AllowedPaths(paths ...string) map[string]bool {
	allowed := make(map[string]bool, len(paths))
	for _, p := range paths {
		allowed[p] = true
	}
	return allowed
}

func ValidatePatchOperations(ops []Operation, allowedPaths map[string]bool) error {
	for i, op := range ops {
		switch op.Op {
		case OperationAdd, OperationRemove, OperationReplace:
		default:
			return fmt.Errorf("operation %d: unsupported op %q", i, op.Op)
		}
		if err := validatePathAllowed(op.Path, allowedPaths); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return nil
}

func validatePathAllowed(path string, allowedPaths map[string]bool) error {
	if len(allowedPaths) == 0 {
		return nil
	}
	if allowedPaths[path] {
		return nil
	}
	if isPathMatchedByWildcard(path, allowedPaths) {
		return nil
	}
	return fmt.Errorf("path %q is not in the allowed paths set", path)
}

func isPathMatchedByWildcard(path string, allowedPaths map[string]bool) bool {
	segments := strings.Split(path, "/")
	return matchWildcardRecursive(segments, 0, allowedPaths, false)
}

func matchWildcardRecursive(segments []string, index int, allowedPaths map[string]bool, hasWildcard bool) bool {
	if index >= len(segments) {
		if !hasWildcard {
			return false
		}
		return allowedPaths[strings.Join(segments, "/")]
	}

	if index == 0 {
		return matchWildcardRecursive(segments, index+1, allowedPaths, hasWildcard)
	}

	original := segments[index]
	for _, wildcard := range []string{"-", "*"} {
		segments[index] = wildcard
		if matchWildcardRecursive(segments, index+1, allowedPaths, true) {
			segments[index] = original
			return true
		}
	}

	segments[index] = original
	return matchWildcardRecursive(segments, index+1, allowedPaths, hasWildcard)
}
