package tools

// FilterResult holds the outcome of filtering calls against an allow list.
type FilterResult struct {
	// Allowed contains calls that passed the filter.
	Allowed []Call

	// Rejected contains error results for calls outside the allow list,
	// to be fed back to the model.
	Rejected []Result
}

// FilterAllowedTools checks each call against allowedTools. An empty or
// nil list allows everything.
func FilterAllowedTools(calls []Call, allowedTools []string) FilterResult {
	if len(allowedTools) == 0 {
		return FilterResult{Allowed: calls}
	}

	allowed := make(map[string]bool, len(allowedTools))
	for _, name := range allowedTools {
		allowed[name] = true
	}

	var result FilterResult
	for _, call := range calls {
		if allowed[call.Name] {
			result.Allowed = append(result.Allowed, call)
			continue
		}
		te := &ToolError{Tool: call.Name, Code: CodeNotAllowed, Message: "tool " + call.Name + " is not in the allowed tools list"}
		result.Rejected = append(result.Rejected, Result{
			CallID:  call.ID,
			Name:    call.Name,
			Output:  te.Payload(),
			IsError: true,
		})
	}
	return result
}
