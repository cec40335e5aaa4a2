package incident

// Translator looks up a localized string.
type Translator interface {
	GetString(lang, key string) string
}

// Example is a canned tenant message shown under the form.
type Example struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

var exampleKeys = []string{"technical", "cleaning", "coexistence", "admin", "emergency"}

// Examples returns the five sample messages in lang.
func Examples(t Translator, lang string) []Example {
	out := make([]Example, 0, len(exampleKeys))
	for _, k := range exampleKeys {
		out = append(out, Example{
			Key:   k,
			Label: t.GetString(lang, "example_"+k),
			Text:  t.GetString(lang, "example_"+k+"_text"),
		})
	}
	return out
}
