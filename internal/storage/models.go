package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type Prospect struct {
	ID            string     `json:"id"`
	CompanyName   string     `json:"company_name"`
	ContactName   string     `json:"contact_name"`
	Email         *string    `json:"email"`
	Phone         *string    `json:"phone"`
	Website       *string    `json:"website"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	PotentialNeed *string    `json:"potential_need"`
	ConfirmedNeed *string    `json:"confirmed_need"`
	Source        *string    `json:"source"`
	Tags          []string   `json:"tags"`
	LastExchange  *time.Time `json:"last_exchange"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ProspectInput carries the caller-supplied fields of a new prospect.
type ProspectInput struct {
	CompanyName   string   `json:"company_name"`
	ContactName   string   `json:"contact_name"`
	Email         *string  `json:"email"`
	Phone         *string  `json:"phone"`
	Website       *string  `json:"website"`
	Status        string   `json:"status"`
	Priority      string   `json:"priority"`
	PotentialNeed *string  `json:"potential_need"`
	ConfirmedNeed *string  `json:"confirmed_need"`
	Source        *string  `json:"source"`
	Tags          []string `json:"tags"`
}

// ProspectPatch is a partial update; nil fields are left unchanged.
type ProspectPatch struct {
	CompanyName   *string   `json:"company_name"`
	ContactName   *string   `json:"contact_name"`
	Email         *string   `json:"email"`
	Phone         *string   `json:"phone"`
	Website       *string   `json:"website"`
	Status        *string   `json:"status"`
	Priority      *string   `json:"priority"`
	PotentialNeed *string   `json:"potential_need"`
	ConfirmedNeed *string   `json:"confirmed_need"`
	Source        *string   `json:"source"`
	Tags          *[]string `json:"tags"`
}

type Exchange struct {
	ID          string     `json:"id"`
	ProspectID  string     `json:"prospect_id"`
	Type        string     `json:"type"`
	Subject     *string    `json:"subject"`
	Content     *string    `json:"content"`
	Direction   *string    `json:"direction"`
	Status      *string    `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Prospect    *Prospect  `json:"prospects,omitempty"`
}

type ExchangeInput struct {
	ProspectID  string     `json:"prospect_id"`
	Type        string     `json:"type"`
	Subject     *string    `json:"subject"`
	Content     *string    `json:"content"`
	Direction   *string    `json:"direction"`
	Status      *string    `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

type ExchangePatch struct {
	ProspectID  *string    `json:"prospect_id"`
	Type        *string    `json:"type"`
	Subject     *string    `json:"subject"`
	Content     *string    `json:"content"`
	Direction   *string    `json:"direction"`
	Status      *string    `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

type Note struct {
	ID         string    `json:"id"`
	ProspectID string    `json:"prospect_id"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	IsPinned   bool      `json:"is_pinned"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Prospect   *Prospect `json:"prospects,omitempty"`
}

type NoteInput struct {
	ProspectID string `json:"prospect_id"`
	Content    string `json:"content"`
	Type       string `json:"type"`
	IsPinned   bool   `json:"is_pinned"`
}

type NotePatch struct {
	ProspectID *string `json:"prospect_id"`
	Content    *string `json:"content"`
	Type       *string `json:"type"`
	IsPinned   *bool   `json:"is_pinned"`
}

// Text extraction states of a document.
const (
	TextStatusNone    = "none"
	TextStatusPending = "pending"
	TextStatusDone    = "done"
	TextStatusFailed  = "failed"
)

type Document struct {
	ID          string    `json:"id"`
	ProspectID  string    `json:"prospect_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Filename    string    `json:"filename"`
	FilePath    string    `json:"file_path"`
	ContentType string    `json:"content_type"`
	FileSize    int64     `json:"file_size"`
	TextStatus  string    `json:"text_status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Prospect    *Prospect `json:"prospects,omitempty"`
}

type DocumentPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// Knowledge doc categories.
const (
	CategorySituation = "SITUATION"
	CategoryService   = "SERVICE"
	CategoryProcess   = "PROCESS"
	CategoryTemplate  = "TEMPLATE"
)

type KnowledgeDoc struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type KnowledgeDocInput struct {
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
}

type KnowledgeDocPatch struct {
	Title    *string   `json:"title"`
	Category *string   `json:"category"`
	Content  *string   `json:"content"`
	Tags     *[]string `json:"tags"`
}

// KnowledgeFilter narrows ListKnowledgeDocs. Empty fields do not filter;
// Category "all" is treated as empty.
type KnowledgeFilter struct {
	Search   string
	Category string
	Tag      string
}

// Profile roles.
const (
	RoleTech       = "TECH"
	RoleCommercial = "COMMERCIAL"
)

type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
