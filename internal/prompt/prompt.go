// Package prompt renders the text sent to the remote model. Build is pure:
// identical inputs always produce identical prompts.
package prompt

import (
	"strings"

	"github.com/sqlassist/sqlassist/internal/schema"
)

// Cue ends every prompt so the model continues with a query rather than
// commentary.
const Cue = "SQL Query:"

// Build renders question verbatim with the schema block when s is non-empty,
// and the schema-less variant otherwise.
func Build(question string, s *schema.Schema) string {
	if s.IsEmpty() {
		return "Convert this question to a SQL query.\n" +
			"Question: " + question + "\n\n" +
			Cue
	}

	var b strings.Builder
	b.WriteString("Given the following database schema:\n\n")
	b.WriteString(Describe(s))
	b.WriteString("\n\nConvert this question to a SQL query that works with the above schema.\n")
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\n")
	b.WriteString(Cue)
	return b.String()
}

// Describe renders one "Table '<name>' with columns: ..." line per table in
// iteration order, under a "Database Schema:" header.
func Describe(s *schema.Schema) string {
	var b strings.Builder
	b.WriteString("Database Schema:\n")
	for _, table := range s.Tables() {
		b.WriteString("Table '")
		b.WriteString(table.Name)
		b.WriteString("' with columns: ")
		b.WriteString(strings.Join(table.Columns, ", "))
		b.WriteString("\n")
	}
	return b.String()
}
