package models

// Language is one of the locales the bot can speak.
type Language string

const (
	LangEN Language = "en"
	LangRU Language = "ru"
	LangUK Language = "uk"
	LangDE Language = "de"
	LangES Language = "es"
	LangFR Language = "fr"
)

// DefaultLanguage is used on first contact and as the localization fallback.
const DefaultLanguage = LangEN

// AllLanguages lists every supported locale in menu order.
var AllLanguages = []Language{LangEN, LangRU, LangUK, LangDE, LangES, LangFR}

// ParseLanguage maps a locale code (possibly a full BCP 47 tag reported by the
// chat client, e.g. "ru-RU") to a supported Language. Returns false if the
// code matches none of them.
func ParseLanguage(code string) (Language, bool) {
	if len(code) > 2 {
		code = code[:2]
	}
	for _, l := range AllLanguages {
		if string(l) == code {
			return l, true
		}
	}
	return DefaultLanguage, false
}

// Player is a chat user known to the bot. Identity comes from the chat
// platform's numeric user id; a player row is never deleted because finished
// games keep referencing it.
type Player struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Handle   string   `json:"handle,omitempty"`
	Language Language `json:"language"`
}
