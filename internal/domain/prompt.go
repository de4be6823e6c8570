package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PayloadPlaceholder is replaced with the caller payload in the user prompt.
const PayloadPlaceholder = "{text}"

// RenderUserPrompt substitutes payload into the template's user prompt.
// Strings are inserted verbatim, anything else is JSON-encoded first.
func RenderUserPrompt(prompt *PromptTemplate, payload any) (string, error) {
	if prompt == nil {
		return "", ErrPromptNotFound
	}

	var text string
	switch v := payload.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode payload: %w", err)
		}
		text = string(encoded)
	}

	return strings.ReplaceAll(prompt.Content.UserPrompt, PayloadPlaceholder, text), nil
}
