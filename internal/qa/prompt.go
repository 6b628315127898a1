package qa

import (
	"strings"

	"rulesbot/internal/models"
)

// answerPrompt builds the grounded answer prompt from the retrieved
// rulebook sections.
func answerPrompt(gameName string, sections []models.Section, question string) string {
	var b strings.Builder

	b.WriteString("Please use the following information to provide a clear and accurate answer to this question regarding the rules of the game ")
	b.WriteString(gameName)
	b.WriteString(".\n")
	b.WriteString("Explain your answer in detail using the rulebook information provided.\n")
	b.WriteString("If the question is not related to the rules of the specified game, kindly decline to answer.\n")
	b.WriteString("If the question is not a question but a greeting or a thank you, kindly respond with a greeting or a thank you.\n")
	b.WriteString("If the question is claiming that the answer is wrong, kindly respond with an apology.\n")
	b.WriteString("Ignore any variant or optional rules unless specifically instructed not to.\n\n")

	b.WriteString("**Rulebook Context:**\n")
	for _, section := range sections {
		b.WriteString(section.Content)
		b.WriteString("\n\n")
	}

	b.WriteString("\n**User's Question:** ")
	b.WriteString(question)
	b.WriteString("\n\n**Answer:**")

	return b.String()
}

// condensePrompt builds the reformulation prompt that turns a follow-up
// question into a standalone one.
func condensePrompt(history []models.Message, question string) string {
	var b strings.Builder

	b.WriteString("Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.\n")
	b.WriteString("If the follow up question is not a question do not rephrase it.\n\n")

	b.WriteString("**Conversation**:\n")
	for _, msg := range history {
		switch msg.Role {
		case models.RoleHuman:
			b.WriteString("Human: ")
		case models.RoleAI:
			b.WriteString("Assistant: ")
		default:
			continue
		}
		b.WriteString(msg.Text)
		b.WriteString("\n")
	}

	b.WriteString("**Follow Up Question**: ")
	b.WriteString(question)
	b.WriteString("\n**Standalone Question**:\n")

	return b.String()
}
