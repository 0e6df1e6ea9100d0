package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ProposalStatusOpen     = "OPEN"
	ProposalStatusAccepted = "ACCEPTED"
	ProposalStatusRejected = "REJECTED"
)

type Proposal struct {
	ID         uuid.UUID `json:"id"`
	GigID      uuid.UUID `json:"gig_id"`
	ProposerID uuid.UUID `json:"proposer_id"`
	Text       string    `json:"text"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProposalWithProposer is a proposal joined with the proposer's public profile.
type ProposalWithProposer struct {
	Proposal
	Proposer PublicUser `json:"proposer"`
}
