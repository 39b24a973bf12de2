package models

// Change records the old and new value of one tracked property.
type Change struct {
	Old any `json:"old" yaml:"old"`
	New any `json:"new" yaml:"new"`
}

// StateResult is the outcome of one reconciliation. A nil Result means the
// run was a dry run and Changes describes what would happen.
type StateResult struct {
	Name    string         `json:"name" yaml:"name"`
	Result  *bool          `json:"result" yaml:"result"`
	Comment string         `json:"comment" yaml:"comment"`
	Changes map[string]any `json:"changes" yaml:"changes"`
}

func NewStateResult(name string) *StateResult {
	failed := false
	return &StateResult{
		Name:    name,
		Result:  &failed,
		Changes: map[string]any{},
	}
}

func (r *StateResult) Succeed(comment string) *StateResult {
	ok := true
	r.Result = &ok
	r.Comment = comment
	return r
}

func (r *StateResult) Fail(comment string) *StateResult {
	failed := false
	r.Result = &failed
	r.Comment = comment
	return r
}

// Pending marks the result as a dry run.
func (r *StateResult) Pending(comment string) *StateResult {
	r.Result = nil
	r.Comment = comment
	return r
}

func (r *StateResult) IsSuccess() bool {
	return r.Result != nil && *r.Result
}

func (r *StateResult) IsPending() bool {
	return r.Result == nil
}

func (r *StateResult) HasChanges() bool {
	return len(r.Changes) > 0
}

// AsMap is the plain mapping returned across the loader boundary.
func (r *StateResult) AsMap() map[string]any {
	var result any
	if r.Result != nil {
		result = *r.Result
	}
	changes := r.Changes
	if changes == nil {
		changes = map[string]any{}
	}
	return map[string]any{
		"name":    r.Name,
		"result":  result,
		"comment": r.Comment,
		"changes": changes,
	}
}
