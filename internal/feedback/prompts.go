package feedback

const (
	systemAnswer       = "Always response in plain English. No JSON-looking text.\n"
	systemStreamAnswer = "You are wonderfully witty! Always answer in plain English. No JSON-looking text."

	systemGrammar = "You are a careful English writing assistant.\n" +
		"Fix grammar and word choice errors but keep the original meaning.\n" +
		"Return ONLY the corrected sentence. No explanations. No quotes.\n"

	systemMetadata = "Extract the student_name, student_number, essay_title, and essay.\n" +
		"Do not edit any content you receive.\n" +
		"Return ONLY valid JSON with double-quoted keys and string values.\n" +
		"No extra text, no markdown, no trailing commas.\n" +
		"Example:\n" +
		`{"student_name":"Daniel Parsons","student_number":"St29879.dfij9","essay_title":"Having Part Time Jobs","essay":"I disagree with..."}` + "\n" +
		"If there is no student_name leave the property blank.\n" +
		"If there is no student_number leave the property blank.\n" +
		"If there is no essay_title leave the property blank.\n" +
		"Example:\n" +
		`{"student_name":"","student_number":"","essay_title":"","essay":"I disagree with..."}` + "\n"

	systemTopicGenerate = "You are a writer of English.\n" +
		"You write plain English.\n" +
		"Read a paragraph that is missing the topic sentence\n" +
		"Then write a topic sentence that introduces the topic of the paragraph.\n" +
		"Write only one concise topic sentence that does not contain too many specific details from the paragraph.\n" +
		"No comments. No analysis. No trailing text. No JSON.\n"

	systemTopicAnalyze = "You receive JSON and output only text.\n" +
		"Parse the JSON.\n" +
		"Complete the task provided in the JSON in response to the learner_text in the JSON.\n" +
		"Do not output JSON.\n" +
		"Be concise.\n"

	topicTask = "Determine whether learner_topic_sentence is too general, too specific, off topic, " +
		"or just right. If too general, too specific or off topic, explain why and offer " +
		"the good_topic_sentence as an alternative."

	systemContentCompare = "You are a reader who is interested in AI.\n" +
		"You must compare two paragraphs about AI.\n" +
		"Which paragraph is more engaging for the reader?\n" +
		"Explain your choice by comparing:\n" +
		"-Use of examples.\n" +
		"-Clarity of main idea.\n" +
		"-Reader interest and flow.\n" +
		"Output only plain text.\n"

	// referenceParagraph is the fixed model paragraph learners are compared against.
	referenceParagraph = "This is the first paragraph:\n\n" +
		"AI is changing the world. I think AI will make us more useful in the future. " +
		"Also, AI will help us to learn more things more quickly. AI is very interesting to use. " +
		"But some people think AI is dangerous. I don't think so. Thank you."
)

const tutor = "You are a helpful writing tutor.\n"

var causeEffect = dimension{
	category: "LLM - cause effect",
	extract: "Extract cause-effect phrases from the paragraph.\n" +
		"Return ONLY valid JSON.\n" +
		"Schema:\n" +
		`{"examples": ["<word or phrase>", ...]}` + "\n" +
		"If there is no cause-effect language, return:\n" +
		`{"examples": []}` + "\n",
	suggest: tutor +
		"Provide one sentence that adds a supporting detail using cause-effect language.\n" +
		"Be concise. Output only the sentence.\n",
	feedback: tutor +
		"Praise the writer for using cause-effect language, then suggest one additional " +
		"supporting detail using cause-effect language.\n" +
		"Be concise. Output only plain text.\n",
	praise: tutor +
		"Praise the writer for using cause-effect language in their paragraph.\n" +
		"Be concise. Output only plain text.\n",
	fallbackSuggest:  "Try adding a cause-effect sentence to support your idea.",
	fallbackFeedback: "Good use of cause-effect language. Consider adding one more supporting detail.",
	fallbackPraise:   "Strong use of cause-effect language.",
}

var compareContrast = dimension{
	category: "LLM - compare contrast",
	extract: "Extract compare/contrast language from the paragraph.\n" +
		`Include contrast words/phrases (e.g., "in contrast", "however", "but"), ` +
		"comparative and superlative adjectives/adverbs, and other comparison signals.\n" +
		"Return ONLY valid JSON.\n" +
		"Schema:\n" +
		`{"examples": ["<word or phrase>", ...]}` + "\n" +
		"If there is no compare/contrast language, return:\n" +
		`{"examples": []}` + "\n",
	suggest: tutor +
		"Provide one sentence that adds a supporting detail using compare/contrast language.\n" +
		"Be concise. Output only the sentence.\n",
	feedback: tutor +
		"Praise the writer for using compare/contrast language, then suggest one additional " +
		"supporting detail using compare/contrast language.\n" +
		"Be concise. Output only plain text.\n",
	praise: tutor +
		"Praise the writer for using compare/contrast language in their paragraph.\n" +
		"Be concise. Output only plain text.\n",
	fallbackSuggest:  "Try adding a compare/contrast sentence to support your idea.",
	fallbackFeedback: "Good use of compare/contrast language. Consider adding one more supporting detail.",
	fallbackPraise:   "Strong use of compare/contrast language.",
}

var hedging = dimension{
	category: "LLM - hedging",
	extract: "Extract language that shows uncertainty or certainty in the paragraph.\n" +
		`Include hedging and strength-of-claim phrases (e.g., "probably", "definitely", ` +
		`"maybe", "perhaps", "it could be said that", "should", "must").` + "\n" +
		"Return ONLY valid JSON.\n" +
		"Schema:\n" +
		`{"examples": ["<word or phrase>", ...]}` + "\n" +
		"If there is no hedging or certainty language, return:\n" +
		`{"examples": []}` + "\n",
	suggest: tutor +
		"Provide one sentence that naturally adds hedging or strength-of-claim language.\n" +
		"Be concise. Output only the sentence.\n",
	praise: tutor +
		"Praise the writer for using hedging or strength-of-claim language in their paragraph.\n" +
		"Be concise. Output only plain text.\n",
	fallbackSuggest: "Try adding a sentence that shows uncertainty or strength of claim.",
	fallbackPraise:  "Good use of hedging or strength-of-claim language.",
}

var examplesSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"examples": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required": []any{"examples"},
}

var metadataSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"student_name":   map[string]any{"type": "string"},
		"student_number": map[string]any{"type": "string"},
		"essay_title":    map[string]any{"type": "string"},
		"essay":          map[string]any{"type": "string"},
	},
	"required": []any{"student_name", "student_number", "essay_title", "essay"},
}
