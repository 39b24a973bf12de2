package states

import (
	"github.com/spf13/cast"

	"github.com/thand-io/azurerm/internal/models"
)

// ParseResult reads a state function's return value back into a result.
func ParseResult(value any) *models.StateResult {
	m, ok := value.(map[string]any)
	if !ok {
		return models.NewStateResult("").Fail("state function returned no result")
	}
	r := &models.StateResult{
		Name:    cast.ToString(m["name"]),
		Comment: cast.ToString(m["comment"]),
	}
	if raw, ok := m["result"]; ok && raw != nil {
		b := cast.ToBool(raw)
		r.Result = &b
	}
	r.Changes, _ = m["changes"].(map[string]any)
	if r.Changes == nil {
		r.Changes = map[string]any{}
	}
	return r
}

// change is the {"old": ..., "new": ...} entry of a changes map.
func change(old, new any) map[string]any {
	return map[string]any{"old": old, "new": new}
}
