package prospectlist

import "github.com/kalambet/prospekt/internal/storage"

// Counts are the dashboard counters.
type Counts struct {
	Total        int `json:"total"`
	ToContact    int `json:"to_contact"`
	InDiscussion int `json:"in_discussion"`
	Won          int `json:"won"`
}

var (
	toContactStatuses    = set("lead", "contacted", "NEW", "TO_CONTACT")
	inDiscussionStatuses = set("qualified", "proposal", "negotiation", "IN_DISCUSSION", "NEED_CONFIRMED", "IN_PROGRESS")
	wonStatuses          = set("won", "WON")
)

func set(vals ...string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

func Count(list []storage.Prospect) Counts {
	c := Counts{Total: len(list)}
	for _, p := range list {
		switch {
		case toContactStatuses[p.Status]:
			c.ToContact++
		case inDiscussionStatuses[p.Status]:
			c.InDiscussion++
		case wonStatuses[p.Status]:
			c.Won++
		}
	}
	return c
}
