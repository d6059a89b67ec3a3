package assistant

import (
	"strings"

	"github.com/kalambet/prospekt/internal/storage"
)

const (
	roleSentence = "Tu es un assistant IA spécialisé dans la gestion de prospects."
	genericTail  = " Tu aides à analyser les données des prospects, suggérer des actions et répondre aux questions."
	notProvided  = "Non renseigné"
	closingLine  = "Aide l'utilisateur avec ce prospect en répondant à ses questions et en suggérant des actions pertinentes."

	// summaryRunes bounds the content quoted for each exchange or note.
	summaryRunes = 100
)

// BuildPrompt renders the system prompt. Without a prospect it is the
// generic role description; extra is appended verbatim when non-empty.
func BuildPrompt(p *storage.Prospect, exchanges []storage.Exchange, notes []storage.Note, extra string) string {
	var sb strings.Builder
	sb.WriteString(roleSentence)

	if p == nil {
		sb.WriteString(genericTail)
	} else {
		sb.WriteString(" Voici les informations du prospect actuel:\n\n")
		field(&sb, "Prospect", p.ContactName)
		field(&sb, "Email", deref(p.Email))
		field(&sb, "Téléphone", deref(p.Phone))
		field(&sb, "Entreprise", p.CompanyName)
		field(&sb, "Statut", p.Status)
		field(&sb, "Priorité", p.Priority)

		if len(exchanges) > 0 {
			sb.WriteString("\nDerniers échanges:\n")
			for _, ex := range exchanges {
				summary := deref(ex.Subject)
				if summary == "" {
					summary = truncate(deref(ex.Content), summaryRunes)
				}
				sb.WriteString("- [" + ex.Type + "] " + summary + "\n")
			}
		}
		if len(notes) > 0 {
			sb.WriteString("\nDernières notes:\n")
			for _, n := range notes {
				sb.WriteString("- " + truncate(n.Content, summaryRunes) + "\n")
			}
		}

		sb.WriteString("\n" + closingLine)
	}

	if extra != "" {
		sb.WriteString("\n\nContexte supplémentaire: " + extra)
	}
	return sb.String()
}

func field(sb *strings.Builder, label, value string) {
	if value == "" {
		value = notProvided
	}
	sb.WriteString(label + ": " + value + "\n")
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
