package google

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"aratta-hq/aratta/pkg/schema"
)

// Gemini wire types.

type generateRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	Tools             []geminiToolSet   `json:"tools,omitempty"`
}

type generationConfig struct {
	MaxOutputTokens int             `json:"maxOutputTokens,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"topP,omitempty"`
	StopSequences   []string        `json:"stopSequences,omitempty"`
	ThinkingConfig  *thinkingConfig `json:"thinkingConfig,omitempty"`
}

// thinkingConfig takes a discrete level on Gemini 3 and a token budget
// on 2.5 models.
type thinkingConfig struct {
	ThinkingLevel  string `json:"thinkingLevel,omitempty"`
	ThinkingBudget int    `json:"thinkingBudget,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text                string            `json:"text,omitempty"`
	InlineData          *inlineData       `json:"inlineData,omitempty"`
	FunctionCall        *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse    *functionResponse `json:"functionResponse,omitempty"`
	ExecutableCode      *executableCode   `json:"executableCode,omitempty"`
	CodeExecutionResult *codeExecResult   `json:"codeExecutionResult,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type functionResponse struct {
	Name     string `json:"name"`
	Response any    `json:"response"`
}

type executableCode struct {
	Language string `json:"language,omitempty"`
	Code     string `json:"code,omitempty"`
}

type codeExecResult struct {
	Outcome string `json:"outcome,omitempty"`
	Output  string `json:"output,omitempty"`
}

type geminiToolSet struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type generateResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
}

type candidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type usageMetadata struct {
	PromptTokenCount        int  `json:"promptTokenCount"`
	CandidatesTokenCount    int  `json:"candidatesTokenCount"`
	TotalTokenCount         int  `json:"totalTokenCount"`
	CachedContentTokenCount *int `json:"cachedContentTokenCount,omitempty"`
}

const minThinkingBudget = 1024

// transformRequest converts a canonical request to the generateContent
// format. The system message becomes systemInstruction, tool role maps
// to user with a functionResponse part, and assistant maps to model.
func transformRequest(req *schema.ChatRequest) *generateRequest {
	system, contents := convertMessages(req.Messages)

	out := &generateRequest{
		Contents:         contents,
		GenerationConfig: &generationConfig{},
	}
	if system != "" {
		out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}

	gc := out.GenerationConfig
	gc.MaxOutputTokens = req.MaxTokens
	gc.Temperature = req.Temperature
	gc.TopP = req.TopP
	gc.StopSequences = req.Stop

	if req.ThinkingEnabled() {
		if strings.Contains(req.Model, "gemini-3") {
			level := "low"
			if req.ThinkingBudget() > 8192 {
				level = "high"
			} else if strings.Contains(req.Model, "flash") {
				level = "medium"
			}
			gc.ThinkingConfig = &thinkingConfig{ThinkingLevel: level}
		} else {
			budget := req.ThinkingBudget()
			if budget < minThinkingBudget {
				budget = minThinkingBudget
			}
			gc.ThinkingConfig = &thinkingConfig{ThinkingBudget: budget}
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]functionDeclaration, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = functionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			}
		}
		out.Tools = []geminiToolSet{{FunctionDeclarations: decls}}
	}

	return out
}

func convertMessages(messages []schema.Message) (string, []geminiContent) {
	var system string
	contents := make([]geminiContent, 0, len(messages))

	// Gemini addresses function responses by name, not id. Track the
	// names of prior tool_use blocks so tool_result blocks that carry
	// only an id still resolve.
	toolNames := make(map[string]string)

	for _, msg := range messages {
		if msg.Role == schema.RoleSystem {
			if msg.Content != "" {
				system = msg.Content
			} else {
				var parts []string
				for _, b := range msg.Blocks {
					if b.Type == schema.ContentText && b.Text != "" {
						parts = append(parts, b.Text)
					}
				}
				system = strings.Join(parts, "\n")
			}
			continue
		}

		// Gemini has no tool role; tool results go back as user turns.
		role := "user"
		if msg.Role == schema.RoleAssistant {
			role = "model"
		}

		var parts []geminiPart
		if msg.Blocks == nil {
			if msg.Role == schema.RoleTool {
				name := toolNames[msg.ToolCallID]
				if name == "" {
					name = "unknown"
				}
				parts = append(parts, geminiPart{FunctionResponse: &functionResponse{
					Name:     name,
					Response: msg.Content,
				}})
			} else {
				parts = append(parts, geminiPart{Text: msg.Content})
			}
		} else {
			for _, b := range msg.Blocks {
				switch b.Type {
				case schema.ContentText:
					parts = append(parts, geminiPart{Text: b.Text})
				case schema.ContentImage:
					if b.ImageBase64 != "" {
						mimeType := b.MediaType
						if mimeType == "" {
							mimeType = "image/jpeg"
						}
						parts = append(parts, geminiPart{InlineData: &inlineData{
							MimeType: mimeType,
							Data:     b.ImageBase64,
						}})
					}
				case schema.ContentToolResult:
					name := b.ToolName
					if name == "" {
						name = toolNames[b.ToolUseID]
					}
					if name == "" {
						name = "unknown"
					}
					parts = append(parts, geminiPart{FunctionResponse: &functionResponse{
						Name:     name,
						Response: b.ToolResult,
					}})
				case schema.ContentToolUse:
					if b.ToolUseID != "" {
						toolNames[b.ToolUseID] = b.ToolName
					}
					parts = append(parts, geminiPart{FunctionCall: &functionCall{
						Name: b.ToolName,
						Args: b.ToolInput,
					}})
				}
			}
		}

		if len(parts) > 0 {
			contents = append(contents, geminiContent{Role: role, Parts: parts})
		}
	}

	return system, contents
}

// transformResponse converts a generateContent response to the canonical
// format. Gemini issues no response or call ids, so both are generated.
func transformResponse(resp *generateResponse, model string, latency time.Duration) *schema.ChatResponse {
	var text strings.Builder
	var toolCalls []schema.ToolCall

	if len(resp.Candidates) > 0 {
		for _, p := range resp.Candidates[0].Content.Parts {
			switch {
			case p.FunctionCall != nil:
				args := p.FunctionCall.Args
				if args == nil {
					args = map[string]any{}
				}
				toolCalls = append(toolCalls, schema.ToolCall{
					ID:        "call_" + newCallSuffix(),
					Name:      p.FunctionCall.Name,
					Arguments: args,
				})
			case p.ExecutableCode != nil:
				text.WriteString("\n```python\n" + p.ExecutableCode.Code + "\n```\n")
			case p.CodeExecutionResult != nil:
				text.WriteString("\n[Output]\n" + p.CodeExecutionResult.Output + "\n")
			default:
				text.WriteString(p.Text)
			}
		}
	}

	lineageModel := resp.ModelVersion
	if lineageModel == "" {
		lineageModel = model
	}
	lineage := schema.NewLineage("google", lineageModel, latency)

	out := &schema.ChatResponse{
		ID:           newResponseID(),
		Content:      text.String(),
		Model:        model,
		Provider:     "google",
		FinishReason: schema.FinishStop,
		ToolCalls:    toolCalls,
		Lineage:      &lineage,
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = normalizeFinishReason(resp.Candidates[0].FinishReason)
	}
	if resp.UsageMetadata != nil {
		out.Usage = &schema.Usage{
			InputTokens:     resp.UsageMetadata.PromptTokenCount,
			OutputTokens:    resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:     resp.UsageMetadata.TotalTokenCount,
			CacheReadTokens: resp.UsageMetadata.CachedContentTokenCount,
		}
	}
	out.Normalize()
	return out
}

func newResponseID() string {
	return "gemini_" + uuid.NewString()[:12]
}

func newCallSuffix() string {
	return uuid.NewString()[:12]
}

// normalizeFinishReason maps Gemini finish reasons onto the canonical
// set.
func normalizeFinishReason(reason string) schema.FinishReason {
	switch reason {
	case "STOP", "":
		return schema.FinishStop
	case "MAX_TOKENS":
		return schema.FinishLength
	case "SAFETY":
		return schema.FinishContentFilter
	default:
		return schema.FinishStop
	}
}
