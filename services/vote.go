package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gamification-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteResult is returned by Vote.
type VoteResult struct {
	Vote     models.Vote     `json:"vote"`
	Proposal models.Proposal `json:"proposal"`
}

// NewProposal is the input for CreateProposal.
type NewProposal struct {
	Title       string
	Description string
	CreatorID   string
	EndDate     time.Time
}

// FinalizeSummary counts proposals closed by one finalizer run.
type FinalizeSummary struct {
	Passed   int
	Rejected int
}

func lockProposal(tx *gorm.DB, id string) (*models.Proposal, error) {
	var p models.Proposal
	if err := lockForUpdate(tx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("proposal", id)
		}
		return nil, err
	}
	return &p, nil
}

// VotePower is 1 plus the weight of every governance item the user owns.
func (e *Engine) VotePower(ctx context.Context, userID string) (int64, error) {
	return e.votePower(e.DB.WithContext(ctx), userID)
}

func (e *Engine) votePower(tx *gorm.DB, userID string) (int64, error) {
	var categories []string
	err := tx.Model(&models.UserItem{}).
		Joins("JOIN items ON items.id = user_items.item_id").
		Where("user_items.user_id = ?", userID).
		Pluck("items.category", &categories).Error
	if err != nil {
		return 0, err
	}

	power := int64(1)
	for _, c := range categories {
		power += e.Economy.VoteWeights[c]
	}
	return power, nil
}

// Vote records the user's single vote on a proposal and adds its power to the tally.
func (e *Engine) Vote(ctx context.Context, userID, proposalID string, choice models.VoteChoice) (*VoteResult, error) {
	if !choice.Valid() {
		return nil, invalid("vote choice must be %q or %q, got %q", models.VoteYes, models.VoteNo, choice)
	}
	now := e.now()
	var result *VoteResult

	err := e.inTx(ctx, "Vote", func(tx *gorm.DB) error {
		u, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		p, err := lockProposal(tx, proposalID)
		if err != nil {
			return err
		}
		if p.Status != models.ProposalActive {
			return precondition(ReasonProposalNotActive, map[string]any{"proposal_id": p.ID, "status": p.Status})
		}
		if now.After(p.EndDate) {
			return precondition(ReasonProposalExpired, map[string]any{"proposal_id": p.ID, "end_date": p.EndDate})
		}

		var existing int64
		if err := tx.Model(&models.Vote{}).
			Where("user_id = ? AND proposal_id = ?", u.ID, p.ID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return precondition(ReasonAlreadyVoted, map[string]any{"proposal_id": p.ID})
		}

		power, err := e.votePower(tx, u.ID)
		if err != nil {
			return err
		}

		v := models.Vote{
			UserID:     u.ID,
			ProposalID: p.ID,
			Choice:     choice,
			Power:      power,
			VotedAt:    now,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&v)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return precondition(ReasonAlreadyVoted, map[string]any{"proposal_id": p.ID})
		}

		column := "no_power"
		if choice == models.VoteYes {
			column = "yes_power"
		}
		if err := tx.Model(&models.Proposal{}).
			Where("id = ?", p.ID).
			Update(column, gorm.Expr(column+" + ?", power)).Error; err != nil {
			return err
		}
		if choice == models.VoteYes {
			p.YesPower += power
		} else {
			p.NoPower += power
		}

		result = &VoteResult{Vote: v, Proposal: *p}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.Log.Info("vote cast", "user_id", userID, "proposal_id", proposalID, "choice", choice, "power", result.Vote.Power)
	return result, nil
}

// UserVote returns the user's vote on a proposal, or nil.
func (e *Engine) UserVote(ctx context.Context, userID, proposalID string) (*models.Vote, error) {
	var v models.Vote
	res := e.DB.WithContext(ctx).
		Where("user_id = ? AND proposal_id = ?", userID, proposalID).
		Limit(1).
		Find(&v)
	if res.Error != nil || res.RowsAffected == 0 {
		return nil, res.Error
	}
	return &v, nil
}

// CreateProposal opens a new active proposal.
func (e *Engine) CreateProposal(ctx context.Context, in NewProposal) (*models.Proposal, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("proposal title is required")
	}
	if !in.EndDate.After(e.now()) {
		return nil, invalid("proposal end date must be in the future")
	}

	p := models.Proposal{
		Title:       title,
		Description: in.Description,
		Status:      models.ProposalActive,
		EndDate:     in.EndDate.UTC(),
	}
	if in.CreatorID != "" {
		creator := in.CreatorID
		p.CreatorID = &creator
	}
	if err := e.DB.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, err
	}
	e.Log.Info("proposal created", "proposal_id", p.ID, "end_date", p.EndDate)
	return &p, nil
}

// CloseProposal withdraws an active proposal before its end date. The
// tallies are kept but no outcome is recorded.
func (e *Engine) CloseProposal(ctx context.Context, proposalID string) (*models.Proposal, error) {
	now := e.now()
	var closed *models.Proposal

	err := e.inTx(ctx, "CloseProposal", func(tx *gorm.DB) error {
		p, err := lockProposal(tx, proposalID)
		if err != nil {
			return err
		}
		if p.Status != models.ProposalActive {
			return precondition(ReasonProposalNotActive, map[string]any{
				"proposal_id": p.ID,
				"status":      p.Status,
			})
		}
		if err := tx.Model(p).Updates(map[string]any{
			"status":       models.ProposalClosed,
			"finalized_at": now,
		}).Error; err != nil {
			return err
		}
		p.Status = models.ProposalClosed
		p.FinalizedAt = &now
		closed = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.Log.Info("proposal closed", "proposal_id", proposalID)
	return closed, nil
}

// FinalizeExpiredProposals closes every active proposal past its end date:
// passed when yes outweighs no, rejected otherwise.
func (e *Engine) FinalizeExpiredProposals(ctx context.Context) (FinalizeSummary, error) {
	var summary FinalizeSummary
	now := e.now()

	active, err := e.Catalog.Proposals(ctx, models.ProposalActive)
	if err != nil {
		return summary, err
	}

	for _, candidate := range active {
		if !now.After(candidate.EndDate) {
			continue
		}
		id := candidate.ID
		var status models.ProposalStatus

		err := e.inTx(ctx, "FinalizeProposal", func(tx *gorm.DB) error {
			p, err := lockProposal(tx, id)
			if err != nil {
				return err
			}
			if p.Status != models.ProposalActive {
				return nil
			}
			status = models.ProposalRejected
			if p.YesPower > p.NoPower {
				status = models.ProposalPassed
			}
			return tx.Model(p).Updates(map[string]any{
				"status":       status,
				"finalized_at": now,
			}).Error
		})
		if err != nil {
			return summary, err
		}

		switch status {
		case models.ProposalPassed:
			summary.Passed++
		case models.ProposalRejected:
			summary.Rejected++
		}
		if status != "" {
			e.Log.Info("proposal finalized", "proposal_id", id, "status", status)
		}
	}
	return summary, nil
}
