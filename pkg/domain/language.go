package domain

// languageNames maps the client's numeric language enum to display names.
// Unknown ids pass through opaquely; the store never interprets the hint.
var languageNames = map[string]string{
	"1": "Plain Text",
	"2": "HTML",
	"3": "JavaScript",
	"4": "TypeScript",
	"5": "PHP",
	"6": "Go",
	"7": "C++",
	"8": "C",
	"9": "Python",
}

func LanguageName(languageID string) string {
	if name, ok := languageNames[languageID]; ok {
		return name
	}
	if languageID == "" {
		return "Plain Text"
	}
	return languageID
}
