package llm

import (
	_ "embed"
	"strings"
)

// MaxExtractionChars caps the document text sent for term extraction.
const MaxExtractionChars = 100000

var (
	//go:embed prompts/lease_extract_v1.txt
	leaseExtractV1 string
	//go:embed prompts/chat_system_v1.txt
	chatSystemV1 string
)

// ExtractionPrompt builds the user message for term extraction. Text beyond
// MaxExtractionChars runes is dropped.
func ExtractionPrompt(documentText string) string {
	runes := []rune(documentText)
	if len(runes) > MaxExtractionChars {
		documentText = string(runes[:MaxExtractionChars])
	}
	return strings.TrimSpace(leaseExtractV1) + "\n\nLEASE DOCUMENT TEXT:\n" + documentText
}

// ChatSystemPrompt frames the assembled portfolio context for the chat model.
func ChatSystemPrompt(portfolioContext string) string {
	return strings.TrimSpace(chatSystemV1) +
		"\n\n--- LEASE PORTFOLIO CONTEXT ---\n" +
		portfolioContext +
		"\n--- END CONTEXT ---"
}
