package patch

const (
	OperationAdd     = "add"
	OperationRemove  = "remove"
	OperationReplace = "replace"
)

type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Replace sets path to value; it becomes an add when path is absent.
func Replace(path string, value any) Operation {
	return Operation{Op: OperationReplace, Path: path, Value: value}
}

// Remove clears path; it is dropped when path is already absent.
func Remove(path string) Operation {
	return Operation{Op: OperationRemove, Path: path}
}
