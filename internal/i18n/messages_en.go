package i18n

// loadEnglishMessages loads all English translations
func loadEnglishMessages() {
	messages[LangEN] = map[string]string{
		// Conversation
		"chat.apology":        "Sorry, something went wrong while processing your request: %v",
		"chat.degraded":       "The service is temporarily unavailable, please try again later. (%v)",
		"chat.session.absent": "Session not found: %s",
		"chat.rag.enabled":    "Knowledge retrieval enabled for this session",
		"chat.rag.disabled":   "Knowledge retrieval disabled for this session",
		"chat.cleared":        "Conversation cleared",

		// Knowledge
		"knowledge.added":     "Knowledge added",
		"knowledge.deleted":   "Knowledge deleted",
		"knowledge.not.found": "Knowledge entry not found: %s",

		// API
		"api.rate.limited":  "Too many requests, please slow down",
		"api.bad.request":   "Invalid request: %v",
		"api.internal":      "Internal server error",
		"api.health.ok":     "ok",
	}
}
