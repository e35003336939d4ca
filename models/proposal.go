package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProposalStatus string

const (
	ProposalActive   ProposalStatus = "active"
	ProposalClosed   ProposalStatus = "closed"
	ProposalPassed   ProposalStatus = "passed"
	ProposalRejected ProposalStatus = "rejected"
)

type VoteChoice string

const (
	VoteYes VoteChoice = "yes"
	VoteNo  VoteChoice = "no"
)

func (c VoteChoice) Valid() bool { return c == VoteYes || c == VoteNo }

// Proposal tallies are the sum of recorded vote powers and change only inside a vote transaction.
type Proposal struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	CreatorID   *string        `gorm:"type:varchar(64)" json:"creator_id,omitempty"`
	Status      ProposalStatus `gorm:"not null;type:varchar(16);index" json:"status"`
	EndDate     time.Time      `gorm:"not null;index" json:"end_date"`
	YesPower    int64          `gorm:"not null;default:0" json:"yes_power"`
	NoPower     int64          `gorm:"not null;default:0" json:"no_power"`
	FinalizedAt *time.Time     `json:"finalized_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (p *Proposal) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Vote: one per (user, proposal), power fixed at cast time.
type Vote struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID     string     `gorm:"not null;type:varchar(64);uniqueIndex:idx_user_proposal" json:"user_id"`
	ProposalID string     `gorm:"not null;type:varchar(36);uniqueIndex:idx_user_proposal;index" json:"proposal_id"`
	Choice     VoteChoice `gorm:"not null;type:varchar(8)" json:"choice"`
	Power      int64      `gorm:"not null" json:"power"`
	VotedAt    time.Time  `gorm:"not null" json:"voted_at"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}
