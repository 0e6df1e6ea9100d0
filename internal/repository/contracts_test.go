package repository

import (
	"github.com/nivekithan/gig-marketplace/internal/auth"
	"github.com/nivekithan/gig-marketplace/internal/dashboard"
	"github.com/nivekithan/gig-marketplace/internal/execution"
	"github.com/nivekithan/gig-marketplace/internal/handlers"
	"github.com/nivekithan/gig-marketplace/internal/services"
)

// The Postgres repositories must stay interchangeable with the in-memory
// store the service tests run against.
var (
	_ auth.UserStore              = (*UserRepo)(nil)
	_ dashboard.UserStore         = (*UserRepo)(nil)
	_ dashboard.CardStore         = (*CreditCardRepo)(nil)
	_ services.GigStore           = (*GigRepo)(nil)
	_ handlers.GigReader          = (*GigRepo)(nil)
	_ execution.GigEmbeddingStore = (*GigRepo)(nil)
	_ services.ProposalStore      = (*ProposalRepo)(nil)
)
