package analysis

import "strings"

const promptTemplate = `
You are an advanced HR sentiment analysis engine specialized in understanding employee feedback.
Analyze the following employee survey response. Your goal is to provide a concise and structured analysis.

Employee Response:
"{{feedback}}"

Return your analysis strictly as a JSON object with the following structure:
{
  "sentiment": "Positive" | "Neutral" | "Negative",
  "themes": ["string", "..."],
  "emotions": ["string", "..."]
}

Instructions for your response:
1.  **Sentiment**: Classify the overall sentiment of the text as "Positive", "Neutral", or "Negative".
2.  **Themes**: Extract up to 5 key themes or topics discussed in the response. These should be concise phrases.
3.  **Emotions**: Identify any strong emotional indicators present in the text (e.g., "joy", "frustration", "appreciation", "concern"). If no strong distinct emotions are detected, return an empty array for emotions.

Example of a valid JSON output:
{
  "sentiment": "Negative",
  "themes": ["Work-life balance", "Communication issues"],
  "emotions": ["Frustration", "Stress"]
}
`

// BuildPrompt embeds feedback verbatim into the fixed instruction template.
func BuildPrompt(feedback string) string {
	return strings.Replace(promptTemplate, "{{feedback}}", feedback, 1)
}
