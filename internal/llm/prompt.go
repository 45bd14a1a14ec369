package llm

import (
	"strings"

	"github.com/joseph-ayodele/tender-extractor/constants"
)

// SystemPrompt is sent as the system message for every extraction call.
const SystemPrompt = "You extract structured data from public tender and contract documents. " +
	"You reply with a single JSON value and nothing else."

// BuildFieldsPrompt asks for one JSON object keyed by every field name.
func BuildFieldsPrompt(fieldNames []string, text string) string {
	var b strings.Builder
	b.WriteString("Read the tender document below and extract the following fields.\n\n")
	for _, name := range fieldNames {
		b.WriteString("- ")
		b.WriteString(name)
		if hint := constants.Hint(name); hint != "" {
			b.WriteString(": ")
			b.WriteString(hint)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- Return ONLY a JSON object with exactly these keys: ")
	b.WriteString(strings.Join(fieldNames, ", "))
	b.WriteString(".\n")
	b.WriteString("- Every value is a string copied or condensed from the document, or null.\n")
	b.WriteString("- Use null for any field that is not explicitly stated in the text. Never guess, infer or fabricate values.\n")
	b.WriteString("- Keep amounts with their currency and dates as written.\n")
	b.WriteString("\nExample shape: {\"")
	b.WriteString(firstOr(fieldNames, "ClientName"))
	b.WriteString("\": \"Ministry of Works\", \"")
	b.WriteString(lastOr(fieldNames, "PaymentTerms"))
	b.WriteString("\": null}\n")
	b.WriteString("\nDocument:\n")
	b.WriteString(text)
	return b.String()
}

// BuildSubmittalsPrompt asks for the list of documents a bidder must submit.
func BuildSubmittalsPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Read the tender document below and list every submittal: each document, certificate, form or ")
	b.WriteString("schedule the bidder must include in the bid, and each blank in the document the bidder must fill in.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Return ONLY a JSON object of the form {\"submittals\": [{\"item\": string, \"page\": number or null, \"reason\": string}]}.\n")
	b.WriteString("- \"item\" names the document or blank. \"reason\" quotes or summarises why it is required (may be empty).\n")
	b.WriteString("- The text is marked with [Page N] headers. Use that N for \"page\", or null if the page is unknown.\n")
	b.WriteString("- Only list submittals explicitly required by the text. Never fabricate items or page numbers.\n")
	b.WriteString("- If there are none, return {\"submittals\": []}.\n")
	b.WriteString("\nDocument:\n")
	b.WriteString(text)
	return b.String()
}

func firstOr(s []string, def string) string {
	if len(s) == 0 {
		return def
	}
	return s[0]
}

func lastOr(s []string, def string) string {
	if len(s) == 0 {
		return def
	}
	return s[len(s)-1]
}
