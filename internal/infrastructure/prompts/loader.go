package prompts

import (
	_ "embed"
)

//go:embed system.txt
var SystemPrompt string

//go:embed suggest.txt
var SuggestPrompt string
