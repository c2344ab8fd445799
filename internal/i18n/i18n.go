// Package i18n provides the user-facing message tables.
package i18n

import (
	"fmt"
	"os"
	"strings"
)

// Supported languages
const (
	LangEN   = "en"
	LangZhTW = "zh-TW"
)

// currentLang holds the current language setting
var currentLang = LangEN

// messages stores all translations
var messages = make(map[string]map[string]string)

func init() {
	loadMessages()
}

// Init sets the language. Unrecognized codes fall back to the
// CONVERSE_LANG environment variable, then English.
func Init(lang string) {
	lang = strings.ToLower(strings.TrimSpace(lang))

	switch lang {
	case "en", "en-us", "english":
		currentLang = LangEN
	case "zh-tw", "zh_tw", "zh-hant", "chinese", "traditional chinese":
		currentLang = LangZhTW
	default:
		if envLang := os.Getenv("CONVERSE_LANG"); envLang != "" && !strings.EqualFold(envLang, lang) {
			Init(envLang)
			return
		}
		currentLang = LangEN
	}
}

// GetLanguage returns the current language code.
func GetLanguage() string {
	return currentLang
}

// T returns the translated message for the given key, falling back to
// English, then to the key itself.
func T(key string) string {
	if msg, ok := messages[currentLang][key]; ok {
		return msg
	}
	if msg, ok := messages[LangEN][key]; ok {
		return msg
	}
	return key
}

// Sprintf returns the translated and formatted message.
func Sprintf(key string, args ...any) string {
	return fmt.Sprintf(T(key), args...)
}

func loadMessages() {
	loadEnglishMessages()
	loadChineseMessages()
}

// GetSupportedLanguages returns the supported language codes.
func GetSupportedLanguages() []string {
	return []string{LangEN, LangZhTW}
}
