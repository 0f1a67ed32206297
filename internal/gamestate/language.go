package gamestate

// Language is a UI locale the guide/tile text can be rendered in,
// mirroring the C enum vsx_text_language. Only the languages in
// languageCodes are recognised; any other code resolves to English.
type Language int

const (
	LanguageEnglish Language = iota
	LanguageEsperanto
	LanguageFrench
	LanguageEnglishShavian
)

var languageNames = map[Language]string{
	LanguageEnglish:        "English",
	LanguageEsperanto:      "Esperanto",
	LanguageFrench:         "French",
	LanguageEnglishShavian: "English (Shavian)",
}

func (l Language) String() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return "English"
}

// languageCodes maps an ASCII locale code, as sent in a LANGUAGE server
// message or SET_LANGUAGE command, to the Language it selects. An
// unrecognised code resolves to English (§3 Data Model).
var languageCodes = map[string]Language{
	"en":    LanguageEnglish,
	"eo":    LanguageEsperanto,
	"fr":    LanguageFrench,
	"en-sv": LanguageEnglishShavian,
}

func languageForCode(code string) Language {
	if lang, ok := languageCodes[code]; ok {
		return lang
	}
	return LanguageEnglish
}
