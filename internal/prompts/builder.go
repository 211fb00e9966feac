package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/replytrainer/pkg/models"
)

// BuildMaterials renders the photo captions and chat transcriptions. When both
// are empty it returns NoMaterialsSentinel so the section is never missing.
func BuildMaterials(extraction models.ExtractionResult) string {
	var sections []string

	if len(extraction.Captions) > 0 {
		var sb strings.Builder
		sb.WriteString(ProfileSectionHeader)
		for i, caption := range extraction.Captions {
			sb.WriteString(fmt.Sprintf("\n%d. %s", i+1, caption))
		}
		sections = append(sections, sb.String())
	}

	if len(extraction.ChatTexts) > 0 {
		sections = append(sections, ChatSectionHeader+"\n"+strings.Join(extraction.ChatTexts, ChatTextSeparator))
	}

	if len(sections) == 0 {
		return NoMaterialsSentinel
	}
	return strings.Join(sections, "\n\n")
}

// BuildContextBlock serializes the caller context as compact JSON. Map keys
// are emitted in sorted order.
func BuildContextBlock(callerContext map[string]interface{}) (string, error) {
	if callerContext == nil {
		callerContext = map[string]interface{}{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(callerContext); err != nil {
		return "", fmt.Errorf("failed to encode context: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// BuildCandidatePrompt renders the generation prompt for one pipeline run.
// The output depends only on its inputs.
func BuildCandidatePrompt(extraction models.ExtractionResult, callerContext map[string]interface{}) (string, error) {
	contextBlock, err := BuildContextBlock(callerContext)
	if err != nil {
		return "", err
	}

	return RenderVars(CandidateTemplate, map[string]string{
		"materials": BuildMaterials(extraction),
		"context":   contextBlock,
	})
}
