package ui

// Catalog holds the participant-facing strings for one language.
type Catalog struct {
	Title         string
	Welcome       string
	More          string
	QPrefix       string
	QSuffix       string
	Invalid       string
	TooManyErrors string
	Finisher      string
}

var catalogs = map[string]Catalog{
	"en": {
		Title:         "Uniqueness Assessment System (UAS)",
		Welcome:       "Welcome to the Uniqueness Assessment System (UAS). The system will ask you a series of questions to evaluate your uniqueness, please answer with 'y' (for yes) or 'n' (for no). Your answers will be saved and added to the tree later.",
		More:          "What else makes you unique?",
		QPrefix:       "Would you say that ",
		QSuffix:       " makes you unique?",
		Invalid:       "Invalid response. Please answer with 'y' (for yes) or 'n' (for no).",
		TooManyErrors: "Too many input errors. Application will restart.",
		Finisher:      "Thank you. Your answers have been saved and will be evaluated.",
	},
	"fr": {
		Title:         "Uniqueness Assessment System (UAS)",
		Welcome:       "Bienvenue dans le Uniqueness Assessment System (UAS). Le système va vous poser une série de questions afin d'évaluer votre unicité, veuillez répondre par 'o' (pour oui) ou 'n' (pour non). Vos réponses seront sauvegardées et ajoutées à l'arbre ultérieurement.",
		More:          "Quoi d'autre vous rend unique?",
		QPrefix:       "Diriez-vous que ",
		QSuffix:       " vous rend unique?",
		Invalid:       "Réponse invalide, veuillez répondre par 'o' (pour oui) ou 'n' (pour non).",
		TooManyErrors: "Trop d'erreurs de saisie, le programme va redémarrer.",
		Finisher:      "Merci. Vos réponses ont été sauvegardées et seront analysées.",
	},
}

// CatalogFor returns the catalog for lang, falling back to English.
func CatalogFor(lang string) Catalog {
	if c, ok := catalogs[lang]; ok {
		return c
	}
	return catalogs["en"]
}

// Question frames a trait phrase as a yes/no question.
func (c Catalog) Question(trait string) string {
	return c.QPrefix + trait + c.QSuffix
}
