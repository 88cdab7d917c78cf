package rest

import (
	"github.com/google/uuid"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	"github.com/abhinavece/player-auction-backend/internal/domain/values"
)

type createAuctionRequest struct {
	Name string `json:"name" validate:"required,min=3,max=120"`
	Slug string `json:"slug" validate:"required,min=3,max=64,lowercase"`
}

type updateConfigRequest struct {
	Config auction.Config `json:"config" validate:"required"`
}

type addTeamRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=80"`
	ShortName  string `json:"short_name" validate:"required,min=2,max=8"`
	Credential string `json:"credential" validate:"required,min=6"`
}

type addPlayerRequest struct {
	PlayerNumber int               `json:"player_number" validate:"required,min=1"`
	Name         string            `json:"name" validate:"required,min=2,max=120"`
	Role         string            `json:"role" validate:"max=40"`
	Attributes   map[string]string `json:"attributes"`
}

type retainPlayerRequest struct {
	PlayerID uuid.UUID `json:"player_id" validate:"required"`
}

type placeBidRequest struct {
	TeamID uuid.UUID    `json:"team_id" validate:"required"`
	Amount values.Money `json:"amount" validate:"required"`
}

type adjustPurseRequest struct {
	Delta  values.Money `json:"delta" validate:"required"`
	Reason string       `json:"reason" validate:"required,min=3,max=200"`
}

type proposeTradeRequest struct {
	CounterpartyTeamID    uuid.UUID   `json:"counterparty_team_id" validate:"required"`
	InitiatorPlayerIDs    []uuid.UUID `json:"initiator_player_ids" validate:"required,min=1,dive,required"`
	CounterpartyPlayerIDs []uuid.UUID `json:"counterparty_player_ids" validate:"required,min=1,dive,required"`
	Message               string      `json:"message" validate:"max=500"`
}

type adminInitiateTradeRequest struct {
	InitiatorTeamID       uuid.UUID   `json:"initiator_team_id" validate:"required"`
	CounterpartyTeamID    uuid.UUID   `json:"counterparty_team_id" validate:"required"`
	InitiatorPlayerIDs    []uuid.UUID `json:"initiator_player_ids" validate:"required,min=1,dive,required"`
	CounterpartyPlayerIDs []uuid.UUID `json:"counterparty_player_ids" validate:"required,min=1,dive,required"`
}

type rejectTradeRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}

type adminLoginRequest struct {
	Key string `json:"key" validate:"required"`
}

type teamLoginRequest struct {
	AuctionID  uuid.UUID `json:"auction_id" validate:"required"`
	TeamID     uuid.UUID `json:"team_id" validate:"required"`
	Credential string    `json:"credential" validate:"required"`
}

type magicExchangeRequest struct {
	Token string `json:"token" validate:"required"`
}

type tokenResponse struct {
	Token     string     `json:"token"`
	Role      string     `json:"role"`
	AuctionID *uuid.UUID `json:"auction_id,omitempty"`
	TeamID    *uuid.UUID `json:"team_id,omitempty"`
}

type magicLinkResponse struct {
	URL string `json:"url"`
}
