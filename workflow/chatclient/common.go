package chatclient

import "encoding/json"

// parseToolInput decodes a tool call's JSON arguments string into a map.
// An empty or malformed string yields a nil map rather than an error,
// since a tool invocation with unparseable arguments is still worth
// surfacing to the caller.
func parseToolInput(jsonStr string) map[string]interface{} {
	if jsonStr == "" {
		return nil
	}
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil
	}
	return result
}
