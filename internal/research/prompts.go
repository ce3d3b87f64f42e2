package research

import (
	"fmt"
	"strings"

	searchmodels "github.com/jamesnation/deepsearch/tools/web_search/models"
)

// Phase names the LLM call sites. They key routing config, usage records
// and metrics labels.
const (
	PhasePlanning      = "planning"
	PhaseEvaluation    = "evaluation"
	PhaseSummarization = "summarization"
	PhaseAnswering     = "answering"
)

func buildPlanPrompt(c *Context, minQueries, maxQueries int) string {
	var b strings.Builder

	b.WriteString(`You are a strategic research planner with expertise in breaking down complex questions into logical search steps. Your primary role is to create a detailed research plan before generating any search queries.

First, analyze the question thoroughly: break down the core components and key concepts, identify implicit assumptions or context needed, and consider what foundational knowledge might be required.

Then develop a strategic research plan that outlines the logical progression of information needed, identifies dependencies between pieces of information, and anticipates potential dead ends.

IMPORTANT: If there is previous evaluation feedback available, use it to inform your strategy. Address the specific information gaps it mentions, refine your approach based on what was already found, and avoid repeating searches that did not yield useful results.

`)
	fmt.Fprintf(&b, `Finally, translate the plan into %d-%d sequential search queries that:
- Are specific and focused (avoid broad queries that return general information)
- Are written in natural language without Boolean operators (no AND/OR)
- Progress logically from foundational to specific information
- Address any gaps or guidance from previous feedback

RESPONSE FORMAT:
Respond ONLY with valid JSON in the following format:
{
  "plan": "your detailed research plan",
  "queries": ["query 1", "query 2", "query 3"]
}
Do not include any other text or explanation.

`, minQueries, maxQueries)

	fmt.Fprintf(&b, "User Question: %q\n\nCurrent Context:\n%s\n", c.Question(), c.FormattedContext())
	if fb := c.LastFeedback(); fb != "" {
		fmt.Fprintf(&b, "\nPrevious Evaluation Feedback: %s\n", fb)
	}
	b.WriteString("\nBased on the current context, previous feedback (if any), and the user's question, create a research plan and generate the next set of search queries.\n")
	return b.String()
}

func buildDecisionPrompt(c *Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are a research assistant that decides whether enough evidence has been gathered to answer the user's question: %q

You can take one of two actions:
- "continue": run another round of web research because important information is still missing
- "answer": the gathered evidence is sufficient to answer the question

Here is your current context:

%s

RESPONSE FORMAT:
Respond ONLY with valid JSON in the following format:
{
  "action": "continue" | "answer",
  "title": "extremely concise action title for display, e.g. 'Checking injury history'",
  "reasoning": "why you chose this action",
  "feedback": "only when action is continue: concrete guidance for the next round of queries, naming the information still missing"
}
Do not include any other text or explanation.
`, c.Question(), c.FormattedContext())
	return b.String()
}

func buildSummaryPrompt(conversation, query string, meta searchmodels.Result, extracted string) string {
	var b strings.Builder

	b.WriteString(`You are a research extraction specialist. Given a research topic and raw web content, create a thoroughly detailed synthesis as a cohesive narrative that flows naturally between key concepts.

Extract the most valuable information related to the research topic, including relevant facts, statistics, methodologies, claims, and contextual information. Preserve technical terminology and domain-specific language from the source material.

Important guidelines:
- Maintain original data context (e.g., "2024 study of 150 patients" rather than generic "recent study")
- Keep details anchored to their original context
- Create a cohesive narrative rather than disconnected bullet points
- If the content lacks a specific aspect of the research topic, clearly state that; NEVER make up information and NEVER rely on external knowledge

`)

	fmt.Fprintf(&b, "Research Topic: %q\n\n", query)
	fmt.Fprintf(&b, "Conversation Context:\n%s\n\n", conversation)
	fmt.Fprintf(&b, "Source Information:\n- Title: %s\n- URL: %s\n- Date: %s\n- Snippet: %s\n\n", meta.Title, meta.URL, meta.Date, meta.Snippet)
	fmt.Fprintf(&b, "Raw Content:\n%s\n\n", extracted)
	b.WriteString("Provide a comprehensive synthesis of the above content as it relates to the research topic. Respond with the synthesis in plain text only.\n")
	return b.String()
}

func buildAnswerPrompt(c *Context, isFinal bool) string {
	var b strings.Builder

	b.WriteString(`You are a thorough research assistant. Your task is to answer the user's question using the evidence gathered from web research.

Guidelines:
- Answer clearly and directly, leading with the conclusion
- Use information from the search context to support every claim
- Cite your sources using markdown links, e.g. [Source Title](https://example.com)
- If sources conflict, acknowledge the different perspectives and explain why
- Be accurate and factual; do not invent information that is not in the context

`)

	if isFinal {
		b.WriteString("IMPORTANT: The research budget is exhausted and you may not have complete information. Make your best effort with the available evidence and clearly state any limitations or gaps that could affect the accuracy of your answer.\n\n")
	} else {
		b.WriteString("You have gathered sufficient information to provide a reliable answer.\n\n")
	}

	fmt.Fprintf(&b, "User Question:\n%s\n\nSearch Context:\n%s\n", c.Question(), c.FormattedContext())
	b.WriteString("\nRespond with the answer in Markdown. Do not include any preamble before the answer.\n")
	return b.String()
}

// degradedAnswer is what the user sees when the loop itself fails. It names
// the question so the reply still reads as a response to it.
func degradedAnswer(question string, err error) string {
	return fmt.Sprintf("Sorry, I could not fully gather the research needed to answer your question: %q. Error: %v", question, err)
}
