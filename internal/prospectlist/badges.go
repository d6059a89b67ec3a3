package prospectlist

// Badge is a display label with a color name.
type Badge struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Both the pipeline-stage statuses and the older lowercase set are known.
var statusBadges = map[string]Badge{
	"NEW":            {"Nouveau", "gray"},
	"TO_CONTACT":     {"À contacter", "blue"},
	"IN_DISCUSSION":  {"En discussion", "purple"},
	"NEED_CONFIRMED": {"Besoin confirmé", "indigo"},
	"IN_PROGRESS":    {"En cours", "yellow"},
	"WON":            {"Gagné", "green"},
	"LOST":           {"Perdu", "red"},
	"ON_HOLD":        {"En pause", "orange"},

	"lead":        {"Lead", "gray"},
	"contacted":   {"Contacté", "blue"},
	"qualified":   {"Qualifié", "purple"},
	"proposal":    {"Proposition", "indigo"},
	"negotiation": {"Négociation", "yellow"},
	"won":         {"Gagné", "green"},
	"lost":        {"Perdu", "red"},
}

var priorityBadges = map[string]Badge{
	"low":    {"Basse", "gray"},
	"medium": {"Moyenne", "blue"},
	"high":   {"Haute", "orange"},
	"urgent": {"Urgente", "red"},
}

// StatusBadge labels a status. Unknown values get the NEW badge.
func StatusBadge(status string) Badge {
	if b, ok := statusBadges[status]; ok {
		return b
	}
	return statusBadges["NEW"]
}

// PriorityBadge labels a priority. Unknown values get the medium badge.
func PriorityBadge(priority string) Badge {
	if b, ok := priorityBadges[priority]; ok {
		return b
	}
	return priorityBadges["medium"]
}

// StatusLabel is the status text used in running prose; unknown values are
// shown as-is.
func StatusLabel(status string) string {
	if b, ok := statusBadges[status]; ok {
		return b.Label
	}
	return status
}

var categoryLabels = map[string]string{
	"SITUATION": "Situation",
	"SERVICE":   "Service",
	"PROCESS":   "Processus",
	"TEMPLATE":  "Template",
}

// CategoryLabel labels a knowledge doc category.
func CategoryLabel(category string) string {
	if l, ok := categoryLabels[category]; ok {
		return l
	}
	return category
}
