package translation

import (
	"github.com/leonelquinteros/gotext"
)

// Configure points gotext at the locales directory for the given language.
func Configure(localesDir, lang string) {
	gotext.Configure(localesDir, lang, "default")
}

func GetLanguage() string {
	lang := gotext.GetLanguage()

	if lang == "und" || lang == "" {
		return "en"
	}

	return lang
}

// Translate resolves a message id for the configured language. Untranslated
// ids fall through verbatim, so message ids double as the English copy.
func Translate(msgID string, vars ...interface{}) string {
	return gotext.Get(msgID, vars...)
}
