package gemini

import (
	"encoding/json"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/internal/wire"
)

// EncodeRequest renders a canonical request as a generateContent body. The
// model is left out; it belongs in the URL. Inline images become inlineData
// parts and remote images fileData parts.
func (g *provider) EncodeRequest(req *llm.ChatRequest) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("encoding gemini request: nil request")
	}

	out := geminiRequest{Contents: []geminiContent{}}

	if req.System != "" {
		out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	cfg := geminiGenerationConfig{
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		TopK:            req.TopK,
		MaxOutputTokens: req.MaxTokens,
		StopSequences:   req.Stop,
		Seed:            req.Seed,
	}
	if cfg.Temperature != nil || cfg.TopP != nil || cfg.TopK != nil ||
		cfg.MaxOutputTokens != nil || len(cfg.StopSequences) > 0 || cfg.Seed != nil {
		out.GenerationConfig = &cfg
	}

	toolNames := make(map[string]string)
	for _, msg := range req.Messages {
		for _, block := range msg.Content {
			if block.Type == llm.BlockToolUse && block.ToolUseID != "" {
				toolNames[block.ToolUseID] = block.ToolName
			}
		}
	}

	for _, msg := range req.Messages {
		if msg.Role == llm.RoleSystem {
			if text := msg.GetText(); text != "" {
				if out.SystemInstruction == nil {
					out.SystemInstruction = &geminiContent{}
				}
				out.SystemInstruction.Parts = append(out.SystemInstruction.Parts, geminiPart{Text: text})
			}
			continue
		}

		parts := encodeParts(msg.Content, toolNames)
		if len(parts) == 0 {
			continue
		}

		role := "user"
		if msg.Role == llm.RoleAssistant {
			role = "model"
		}

		// Gemini requires alternating turns.
		if n := len(out.Contents); n > 0 && out.Contents[n-1].Role == role {
			out.Contents[n-1].Parts = append(out.Contents[n-1].Parts, parts...)
			continue
		}
		out.Contents = append(out.Contents, geminiContent{Role: role, Parts: parts})
	}

	if len(req.Tools) > 0 {
		tool := geminiTool{}
		for _, t := range req.Tools {
			tool.FunctionDeclarations = append(tool.FunctionDeclarations, geminiFunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		out.Tools = []geminiTool{tool}
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding gemini request: %w", err)
	}
	return wire.MergeExtra(body, req.Extra, extraFields...)
}

func encodeParts(blocks []llm.ContentBlock, toolNames map[string]string) []geminiPart {
	var parts []geminiPart
	for _, block := range blocks {
		switch block.Type {
		case llm.BlockText:
			if block.Text != "" {
				parts = append(parts, geminiPart{Text: block.Text})
			}
		case llm.BlockImage:
			if part, ok := imagePart(block); ok {
				parts = append(parts, part)
			}
		case llm.BlockToolUse:
			parts = append(parts, geminiPart{FunctionCall: &geminiFunctionCall{
				Name: block.ToolName,
				Args: block.ToolInput,
			}})
		case llm.BlockToolResult:
			name := toolNames[block.ToolResultID]
			if name == "" {
				name = block.ToolResultID
			}
			parts = append(parts, geminiPart{FunctionResponse: &geminiFunctionResponse{
				Name:     name,
				Response: functionResponse(block.ToolOutput),
			}})
		}
	}
	return parts
}

func imagePart(block llm.ContentBlock) (geminiPart, bool) {
	if mt, data, ok := block.InlineImage(); ok {
		if mt == "" {
			mt = llm.SniffImageMediaType(data)
		}
		if mt == "" {
			return geminiPart{}, false
		}
		return geminiPart{InlineData: &geminiBlob{MimeType: mt, Data: data}}, true
	}

	url, ok := block.RemoteImage()
	if !ok {
		return geminiPart{}, false
	}
	mt := block.MediaType
	if mt == "" {
		mt = mime.TypeByExtension(path.Ext(strings.SplitN(url, "?", 2)[0]))
	}
	return geminiPart{FileData: &geminiFileData{MimeType: mt, FileURI: url}}, true
}

// functionResponse wraps tool output in the object Gemini expects. Output
// that already is a JSON object is sent as is.
func functionResponse(output string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(output), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"content": output}
}
