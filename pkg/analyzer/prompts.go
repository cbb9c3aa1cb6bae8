package analyzer

import (
	"fmt"
	"strings"

	"github.com/xhad/brightpath/internal/models"
)

// NotProvided is the fixed answer for information the documents do not contain.
const NotProvided = "Not provided"

// RoleQuery is used to pull the role's requirements for the summary and score prompts.
const RoleQuery = "What are the role's required skills, qualifications, experience and responsibilities?"

// ComprehensiveQuery asks for the full multi-section match report.
const ComprehensiveQuery = `Generate a comprehensive report analyzing the match between an uploaded resume and a given role. The uploaded resume and role information are provided as documents.

1. **Resume Analysis:**
   - Parse and analyze the content of the uploaded resume.
   - Identify and highlight key features, qualifications, and experiences mentioned in the resume.
   - Provide an overview of the candidate's skills and expertise.

2. **Role Comparison:**
   - Extract relevant information from the provided role details.
   - Compare the skills, qualifications, and experiences required for the role with those present in the resume.
   - Evaluate the extent to which the candidate matches the expectations of the role.

3. **Strengths and Weaknesses:**
   - Identify and emphasize the candidate's strengths based on the resume analysis.
   - Highlight any potential weaknesses or areas that may need improvement.

4. **Overall Assessment:**
   - Provide a summary of the overall fit between the candidate's profile and the role requirements.
   - Offer insights into how well the candidate aligns with the expectations of the position.

5. **Recommendations:**
   - Suggest any specific recommendations for further development or areas for improvement.
   - Offer guidance on potential next steps in the hiring process.

Please generate a detailed report considering the points mentioned above. Ensure that the report is clear, concise, and provides actionable insights for decision-making in the hiring process.`

const scoreRubric = `90-100: meets every must-have requirement and most nice-to-haves
70-89: meets every must-have requirement with minor gaps
50-69: meets some must-haves; notable gaps
25-49: significant gaps against the core requirements
0-24: little or no alignment with the role`

// Question turns an attribute name into the retrieval question.
func Question(attribute string) string {
	return fmt.Sprintf("What is the candidate's %s?", strings.TrimSpace(attribute))
}

// FormatContext lays retrieved chunks out as numbered excerpts.
func FormatContext(chunks []models.ScoredChunk) string {
	if len(chunks) == 0 {
		return "(no excerpts found)"
	}
	var sb strings.Builder
	for i, c := range chunks {
		source := string(c.Source)
		if source == "" {
			source = "document"
		}
		fmt.Fprintf(&sb, "[%d] (%s)\n%s\n\n", i+1, source, strings.TrimSpace(c.Text))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatTable(rows []models.AttributeAnswer) string {
	if len(rows) == 0 {
		return "(no attributes were extracted)"
	}
	var sb strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&sb, "- %s: %s\n", r.Label, r.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func answerPrompt(attribute string, chunks []models.ScoredChunk, maxWords int) string {
	return fmt.Sprintf(`Excerpts from the candidate's resume and the role description:

%s

Question: %s

Answer in at most %d words using only the excerpts. If the excerpts do not contain this information, reply exactly "%s".`,
		FormatContext(chunks), Question(attribute), maxWords, NotProvided)
}

func summaryPrompt(rows []models.AttributeAnswer, role []models.ScoredChunk) string {
	return fmt.Sprintf(`Facts extracted from the candidate's resume:
%s

Excerpts describing the role:
%s

In two to four sentences, summarize how suitable the candidate is for the role. Mention the strongest match and the most important gap.`,
		formatTable(rows), FormatContext(role))
}

func scorePrompt(rows []models.AttributeAnswer, summary string, role []models.ScoredChunk) string {
	return fmt.Sprintf(`Facts extracted from the candidate's resume:
%s

Suitability summary:
%s

Excerpts describing the role:
%s

Rate the match between the candidate and the role from 0 to 100 using this rubric:
%s

Reply with a single integer between 0 and 100 and nothing else.`,
		formatTable(rows), summary, FormatContext(role), scoreRubric)
}

func comprehensivePrompt(chunks []models.ScoredChunk) string {
	return fmt.Sprintf("Excerpts from the resume and the role information:\n\n%s\n\n%s", FormatContext(chunks), ComprehensiveQuery)
}

func followUpPrompt(question string, chunks []models.ScoredChunk) string {
	return fmt.Sprintf(`Excerpts from the candidate's resume and the role description:

%s

Question: %s

Answer using only the excerpts. Say so if they do not contain the answer.`, FormatContext(chunks), question)
}
