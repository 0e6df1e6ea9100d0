package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	GigStatusCreated   = "CREATED"
	GigStatusAssigned  = "ASSIGNED"
	GigStatusCompleted = "COMPLETED"
)

// ValidSkills lists the skills a gig or profile may carry.
var ValidSkills = []string{"NextJs", "React", "Typescript", "Javascript", "Nodejs"}

type Gig struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Status      string    `json:"status"`
	Skills      []string  `json:"skills"`
	Embedding   []float64 `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EmbeddingText is the text the similarity search embeds for a gig.
func (g *Gig) EmbeddingText() string {
	return g.Name + "\n\n" + g.Description
}
