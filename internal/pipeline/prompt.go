package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kalambet/uigen/internal/llm"
)

const (
	planSystemPrompt    = "You are a UI Architect. Create a brief 3-step plan."
	explainSystemPrompt = "Explain in 1 sentence why you chose these components."

	noPlanPlaceholder      = "No plan generated"
	explanationPlaceholder = "Generated successfully"
)

// allowedComponents is the closed component set generated markup may use,
// with the attributes each one accepts.
var allowedComponents = []struct{ name, attrs string }{
	{"Container", ""},
	{"Card", ` title="" footer=""`},
	{"Button", ` variant="primary|secondary|danger"`},
	{"Input", ` label=""`},
	{"Alert", ` type="info|success|warning"`},
	{"Row", ""},
	{"Col", ""},
}

var generateSystemPrompt = `
You are a React UI Generator. You strictly adhere to a FIXED Component System.
You MUST use these components:
` + componentLine() + `
RULES:
1. Return ONLY the JSX code. No markdown, no ` + "```" + `.
2. Do NOT include import statements or 'export default'.
`

func componentLine() string {
	tags := make([]string, len(allowedComponents))
	for i, c := range allowedComponents {
		tags[i] = "<" + c.name + c.attrs + ">"
	}
	return strings.Join(tags, ", ")
}

// planMessages builds the stage 1 request.
func planMessages(userPrompt string) []llm.Message {
	return []llm.Message{
		llm.System(planSystemPrompt),
		llm.User(userPrompt),
	}
}

// generateMessages builds the stage 2 request from the plan, the code the
// user is currently looking at, and the original request.
func generateMessages(plan, currentCode, userPrompt string) []llm.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PLAN: %s\n", plan)
	fmt.Fprintf(&sb, "CURRENT CODE: %s\n", currentCode)
	fmt.Fprintf(&sb, "USER REQUEST: %s\n", userPrompt)
	sb.WriteString("Generate JSX:")

	return []llm.Message{
		llm.System(generateSystemPrompt),
		llm.User(sb.String()),
	}
}

// explainMessages builds the stage 3 request.
func explainMessages(userPrompt string) []llm.Message {
	return []llm.Message{
		llm.System(explainSystemPrompt),
		llm.User("Request: " + userPrompt),
	}
}

// codeFence matches a fence marker together with a common language tag.
var codeFence = regexp.MustCompile("```(?:jsx|tsx|javascript|typescript|json|html|js|ts)?")

// StripCodeFences removes markdown code fence markers the model may add
// despite being told not to, and trims surrounding whitespace.
func StripCodeFences(code string) string {
	return strings.TrimSpace(codeFence.ReplaceAllString(code, ""))
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
