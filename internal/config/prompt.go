package config

import (
	_ "embed"
	"fmt"
	"os"
)

//go:embed prompt.md
var defaultPrompt string

// BuildPrompt returns the system prompt text. An explicit prompt file takes
// precedence over the embedded default.
func BuildPrompt(promptFile string) (string, error) {
	if promptFile == "" {
		return defaultPrompt, nil
	}

	data, err := os.ReadFile(promptFile)
	if err != nil {
		return "", fmt.Errorf("reading prompt file: %w", err)
	}
	return string(data), nil
}

// WithInstructions appends the user's personal instructions to the prompt.
// Empty instructions return the prompt unchanged.
func WithInstructions(prompt, instructions string) string {
	if instructions == "" {
		return prompt
	}
	return prompt + "\n\n## Additional User Context\n\n" + instructions
}
