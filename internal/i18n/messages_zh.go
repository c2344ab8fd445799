package i18n

// loadChineseMessages loads all Traditional Chinese translations
func loadChineseMessages() {
	messages[LangZhTW] = map[string]string{
		// Conversation
		"chat.apology":        "抱歉，處理您的請求時發生錯誤：%v",
		"chat.degraded":       "服務暫時無法使用，請稍後再試。（%v）",
		"chat.session.absent": "找不到對話：%s",
		"chat.rag.enabled":    "已為此對話啟用知識檢索",
		"chat.rag.disabled":   "已為此對話停用知識檢索",
		"chat.cleared":        "對話已清除",

		// Knowledge
		"knowledge.added":     "知識已新增",
		"knowledge.deleted":   "知識已刪除",
		"knowledge.not.found": "找不到知識條目：%s",

		// API
		"api.rate.limited":  "請求過於頻繁，請稍後再試",
		"api.bad.request":   "無效的請求：%v",
		"api.internal":      "伺服器內部錯誤",
		"api.health.ok":     "ok",
	}
}
