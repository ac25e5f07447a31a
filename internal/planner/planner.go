package planner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/lulo-labs/lulo/internal/observability"
	"github.com/lulo-labs/lulo/internal/plan"
)

// PageContext tells the planner what the user is currently looking at.
type PageContext struct {
	URL   string
	Title string
}

// Exchange is one past request/reply pair replayed into the model
// context, so follow-ups like "now click the second one" keep their
// referent.
type Exchange struct {
	Input string
	Reply string
}

// Planner turns a natural-language request into a plan by asking the
// model to call the propose_steps tool. The planner is the only
// collaborator whose failure is fatal for a request: without a plan
// there is nothing to dispatch.
type Planner struct {
	Model   llms.Model
	Prompts *PromptManager
	Logger  *observability.Logger
}

func New(model llms.Model, prompts *PromptManager, logger *observability.Logger) *Planner {
	return &Planner{Model: model, Prompts: prompts, Logger: logger}
}

// BuildPlan requests a plan for input, replaying past exchanges first
// (oldest to newest) so the model sees the conversation. A prose-only
// answer from the model becomes a single think step so the user still
// gets a reply.
func (p *Planner) BuildPlan(ctx context.Context, chatID, input string, page PageContext, history []Exchange) (*plan.Plan, error) {
	systemPrompt := p.Prompts.GetPlannerPrompt()

	userPrompt := input
	if page.URL != "" {
		userPrompt = fmt.Sprintf("%s\n\nCurrent page: %s (%s)", input, page.Title, page.URL)
	}

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		},
	}
	for _, ex := range history {
		if ex.Input == "" {
			continue
		}
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(ex.Input)},
		})
		if ex.Reply != "" {
			messages = append(messages, llms.MessageContent{
				Role:  llms.ChatMessageTypeAI,
				Parts: []llms.ContentPart{llms.TextPart(ex.Reply)},
			})
		}
	}
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(userPrompt)},
	})

	resp, err := p.Model.GenerateContent(ctx, messages, llms.WithTools(plannerTools))
	if err != nil {
		return nil, fmt.Errorf("planning error: %v", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("planner returned no choices")
	}
	choice := resp.Choices[0]

	if p.Logger != nil {
		p.Logger.LogLLM(chatID, "", userPrompt, choice.Content, choice.ToolCalls)
	}

	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil || tc.FunctionCall.Name != "propose_steps" {
			continue
		}
		parsed, err := ParseSteps(tc.FunctionCall.Arguments)
		if err != nil {
			return nil, err
		}
		return parsed, nil
	}

	if choice.Content != "" {
		return &plan.Plan{Steps: []plan.Step{
			{Action: plan.ActionThink, Description: choice.Content},
		}}, nil
	}

	return nil, fmt.Errorf("planner provided neither steps nor a text response")
}

// ParseSteps decodes the propose_steps tool arguments.
func ParseSteps(arguments string) (*plan.Plan, error) {
	var parsed plan.Plan
	if err := json.Unmarshal([]byte(arguments), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse propose_steps arguments: %v", err)
	}
	return &parsed, nil
}

// plannerTools defines the propose_steps function-call surface.
var plannerTools = []llms.Tool{
	{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "propose_steps",
			Description: "Submit an ordered list of browser automation steps for the user's request.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"steps": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"action": map[string]any{
									"type": "string",
									"enum": []string{
										"navigate", "browse", "click", "type", "extract",
										"email", "search", "guide", "preview", "think",
									},
								},
								"description": map[string]any{
									"type":        "string",
									"description": "Short human-readable description of the step.",
								},
								"data": map[string]any{
									"type": "object",
									"properties": map[string]any{
										"url":      map[string]any{"type": "string"},
										"selector": map[string]any{"type": "string"},
										"text":     map[string]any{"type": "string"},
										"to":       map[string]any{"type": "string"},
										"subject":  map[string]any{"type": "string"},
										"body":     map[string]any{"type": "string"},
										"query":    map[string]any{"type": "string"},
										"message":  map[string]any{"type": "string"},
										"target":   map[string]any{"type": "string"},
										"html":     map[string]any{"type": "string"},
										"css":      map[string]any{"type": "string"},
										"js":       map[string]any{"type": "string"},
									},
								},
							},
							"required": []string{"action", "description"},
						},
					},
				},
				"required": []string{"steps"},
			},
		},
	},
}
