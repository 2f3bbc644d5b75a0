package config

// Task names used by the feedback services.
const (
	TaskAnswer                  = "answer"
	TaskStreamAnswer            = "stream_answer"
	TaskMetadataExtraction      = "metadata_extraction"
	TaskGrammarCorrection       = "grammar_correction"
	TaskTopicSentenceGenerate   = "topic_sentence_generate"
	TaskTopicSentenceAnalyze    = "topic_sentence_analyze"
	TaskCauseEffectFeedback     = "cause_effect_feedback"
	TaskCompareContrastFeedback = "compare_contrast_feedback"
	TaskHedgingFeedback         = "hedging_feedback"
	TaskContentCompare          = "content_compare"
	TaskContentFilter           = "content_filter"
	TaskConclusionFeedback      = "conclusion_feedback"
	TaskSummarizePersonalize    = "summarize_personalize"
)

var taskDefaults = map[string]map[string]any{
	TaskAnswer:                  {"max_tokens": 128, "temperature": 0.0},
	TaskStreamAnswer:            {"max_tokens": 128, "temperature": 0.0},
	TaskMetadataExtraction:      {"max_tokens": 1024, "temperature": 0.0},
	TaskGrammarCorrection:       {"max_tokens": 128, "temperature": 0.0},
	TaskTopicSentenceGenerate:   {"max_tokens": 1024, "temperature": 0.5},
	TaskTopicSentenceAnalyze:    {"max_tokens": 1024, "temperature": 0.0},
	TaskCauseEffectFeedback:     {"max_tokens": 512, "temperature": 0.2},
	TaskCompareContrastFeedback: {"max_tokens": 512, "temperature": 0.2},
	TaskHedgingFeedback:         {"max_tokens": 512, "temperature": 0.2},
	TaskContentCompare:          {"max_tokens": 512, "temperature": 0.2},
	TaskContentFilter:           {"max_tokens": 256, "temperature": 0.0},
	TaskConclusionFeedback:      {"max_tokens": 512, "temperature": 0.2},
	TaskSummarizePersonalize:    {"max_tokens": 512, "temperature": 0.2},
}

// TaskDefaults returns a copy of the built-in per-task presets.
func TaskDefaults() map[string]map[string]any {
	out := make(map[string]map[string]any, len(taskDefaults))
	for name, vals := range taskDefaults {
		m := make(map[string]any, len(vals))
		for k, v := range vals {
			m[k] = v
		}
		out[name] = m
	}
	return out
}
