// Package i18n resolves message keys into user-visible text. Catalogs are
// embedded YAML files, one per supported language; missing keys and unknown
// languages fall back to the default locale.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yulbax/SecretSantaBot/internal/models"
)

//go:embed locales/*.yaml
var localesFS embed.FS

// Localizer holds the parsed catalogs. Read-only after New, safe for
// concurrent use.
type Localizer struct {
	catalogs map[models.Language]map[string]string
}

// New parses every embedded locale file. The default language catalog must be
// present and is the fallback for everything else.
func New() (*Localizer, error) {
	entries, err := localesFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded locales: %w", err)
	}

	l := &Localizer{catalogs: make(map[models.Language]map[string]string)}
	for _, e := range entries {
		lang := models.Language(strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
		data, err := localesFS.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read locale %s: %w", e.Name(), err)
		}
		catalog := make(map[string]string)
		if err := yaml.Unmarshal(data, &catalog); err != nil {
			return nil, fmt.Errorf("failed to parse locale %s: %w", e.Name(), err)
		}
		l.catalogs[lang] = catalog
	}

	if _, ok := l.catalogs[models.DefaultLanguage]; !ok {
		return nil, fmt.Errorf("fallback locale %q is missing", models.DefaultLanguage)
	}
	return l, nil
}

// Get resolves a key in the given language, falling back to the default
// locale and finally to the key itself so a missing translation never blanks
// a message.
func (l *Localizer) Get(lang models.Language, key string) string {
	if catalog, ok := l.catalogs[lang]; ok {
		if text, ok := catalog[key]; ok && text != "" {
			return text
		}
	}
	if text, ok := l.catalogs[models.DefaultLanguage][key]; ok && text != "" {
		return text
	}
	return key
}

// Getf is Get followed by Sprintf substitution.
func (l *Localizer) Getf(lang models.Language, key string, args ...any) string {
	return fmt.Sprintf(l.Get(lang, key), args...)
}

var languageNames = map[models.Language]string{
	models.LangEN: "English",
	models.LangRU: "Русский",
	models.LangUK: "Українська",
	models.LangDE: "Deutsch",
	models.LangES: "Español",
	models.LangFR: "Français",
}

// LanguageName is the native display name used on the language keyboard.
func LanguageName(lang models.Language) string {
	if name, ok := languageNames[lang]; ok {
		return name
	}
	return string(lang)
}
