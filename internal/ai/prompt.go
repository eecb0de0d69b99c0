package ai

import (
	"fmt"
	"strings"
)

const DocumentParserInstruction = `You are a document parser. Your task is to read the provided document and output all parsed content in plain text.
Ensure that any formulas in the document are accurately formatted. Additionally, structure the output to be AI data-ready,
as it will be ingested into a vector database. Provide efficient and comprehensive data.`

const tutorPrompt = `You are a helpful AI tutor designed to help students learn.
Your knowledge comes from the provided context only.
If the context doesn't contain enough information to fully answer the question, acknowledge what you know
from the context and suggest what additional information might be needed.
Always be encouraging, clear, and explain concepts in a way that's easy to understand.`

const noContextPrompt = `You are a helpful AI tutor designed to help students learn.
None of the student's study material matched this question.
Answer from general knowledge, and say clearly at the start that the answer is not based on their uploaded material.
Always be encouraging, clear, and explain concepts in a way that's easy to understand.`

// BuildAnswerPrompt joins retrieved passages into the tutor prompt.
func BuildAnswerPrompt(query string, passages []string) string {
	contextText := strings.TrimSpace(strings.Join(passages, "\n\n"))
	if contextText == "" {
		return fmt.Sprintf("%s\n\nUser Question: %s", noContextPrompt, query)
	}
	return fmt.Sprintf("%s\n\nContext:\n%s\n\nUser Question: %s", tutorPrompt, contextText, query)
}
