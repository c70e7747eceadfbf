package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"istqrar/internal/models"
	"istqrar/internal/repository"
)

type GameyaRepository interface {
	Create(ctx context.Context, g models.Gameya) (models.Gameya, error)
	Get(ctx context.Context, id uuid.UUID) (models.Gameya, error)
	List(ctx context.Context) ([]models.Gameya, error)
	MyGameyas(ctx context.Context, userID uuid.UUID) ([]models.Gameya, error)
	Join(ctx context.Context, gameyaID, userID uuid.UUID) (models.Membership, error)
	Leave(ctx context.Context, gameyaID, userID uuid.UUID) error
	Contribute(ctx context.Context, gameyaID, userID uuid.UUID, round int, amount decimal.Decimal) (models.Contribution, error)
	Payout(ctx context.Context, gameyaID uuid.UUID) (models.PayoutResult, error)
	ContributionsByUser(ctx context.Context, gameyaID, userID uuid.UUID) ([]models.Contribution, error)
	RoundContributions(ctx context.Context, gameyaID uuid.UUID, round int) (int, error)
}

// TrustScores is the external reputation collaborator. Adjustments are
// best-effort side effects; engines log failures and keep going.
type TrustScores interface {
	Adjust(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	Get(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// Trust-score deltas for gameya behavior.
var (
	trustLeavePenalty     = decimal.NewFromInt(-10)
	trustContributeReward = decimal.NewFromInt(5)
	trustRepayPartReward  = decimal.NewFromInt(5)
	trustRepayFullReward  = decimal.NewFromInt(20)
	minLoanTrustScore     = decimal.NewFromInt(60)
)

// GameyaService runs the rotating-savings state machine.
type GameyaService struct {
	repo       GameyaRepository
	trust      TrustScores
	logger     *slog.Logger
	maxRetries int
}

func NewGameyaService(repo GameyaRepository, trust TrustScores, logger *slog.Logger) *GameyaService {
	return &GameyaService{
		repo:       repo,
		trust:      trust,
		logger:     logger,
		maxRetries: 3,
	}
}

func (s *GameyaService) Create(ctx context.Context, creatorID uuid.UUID, req models.CreateGameyaRequest) (models.Gameya, error) {
	if !req.ContributionAmount.IsPositive() {
		return models.Gameya{}, repository.ErrInvalidAmount
	}
	g := models.Gameya{
		Name:               req.Name,
		Description:        req.Description,
		CreatorID:          creatorID,
		ContributionAmount: req.ContributionAmount,
		MaxMembers:         req.MaxMembers,
		DurationRounds:     req.DurationRounds,
	}
	created, err := s.repo.Create(ctx, g)
	if err != nil {
		return models.Gameya{}, err
	}
	s.logger.Info("Gameya created",
		slog.String("gameya_id", created.ID.String()),
		slog.String("creator_id", creatorID.String()),
	)
	return created, nil
}

func (s *GameyaService) Get(ctx context.Context, id uuid.UUID) (models.Gameya, error) {
	return s.repo.Get(ctx, id)
}

func (s *GameyaService) List(ctx context.Context) ([]models.Gameya, error) {
	return s.repo.List(ctx)
}

func (s *GameyaService) MyGameyas(ctx context.Context, userID uuid.UUID) ([]models.Gameya, error) {
	return s.repo.MyGameyas(ctx, userID)
}

func (s *GameyaService) Join(ctx context.Context, gameyaID, userID uuid.UUID) (models.Membership, error) {
	var m models.Membership
	err := withRetry(ctx, s.logger, "gameya.join", s.maxRetries, func() error {
		var err error
		m, err = s.repo.Join(ctx, gameyaID, userID)
		return err
	})
	if err != nil {
		return models.Membership{}, err
	}
	return m, nil
}

// Leave deactivates the membership and applies the reputation penalty.
func (s *GameyaService) Leave(ctx context.Context, gameyaID, userID uuid.UUID) error {
	err := withRetry(ctx, s.logger, "gameya.leave", s.maxRetries, func() error {
		return s.repo.Leave(ctx, gameyaID, userID)
	})
	if err != nil {
		return err
	}
	s.adjustTrust(ctx, userID, trustLeavePenalty, "gameya.leave")
	return nil
}

// Contribute pays the member's share for the round. round 0 means the
// gameya's current round; a nil amount means the gameya's contribution
// amount.
func (s *GameyaService) Contribute(ctx context.Context, gameyaID, userID uuid.UUID, round int, amount *decimal.Decimal) (models.Contribution, error) {
	if round < 0 {
		return models.Contribution{}, repository.ErrInvalidAmount
	}
	amt := decimal.Zero
	if amount != nil {
		if !amount.IsPositive() {
			return models.Contribution{}, repository.ErrInvalidAmount
		}
		amt = *amount
	}
	var c models.Contribution
	err := withRetry(ctx, s.logger, "gameya.contribute", s.maxRetries, func() error {
		var err error
		c, err = s.repo.Contribute(ctx, gameyaID, userID, round, amt)
		return err
	})
	if err != nil {
		return models.Contribution{}, err
	}
	s.adjustTrust(ctx, userID, trustContributeReward, "gameya.contribute")
	return c, nil
}

// Payout disburses the pot to the member whose payout order matches the
// current round. Creator or admin only.
func (s *GameyaService) Payout(ctx context.Context, actor Actor, gameyaID uuid.UUID) (models.PayoutResult, error) {
	g, err := s.repo.Get(ctx, gameyaID)
	if err != nil {
		return models.PayoutResult{}, err
	}
	if err := Authorize(actor, ActionTriggerPayout, g.CreatorID); err != nil {
		return models.PayoutResult{}, err
	}
	var res models.PayoutResult
	err = withRetry(ctx, s.logger, "gameya.payout", s.maxRetries, func() error {
		var err error
		res, err = s.repo.Payout(ctx, gameyaID)
		return err
	})
	if err != nil {
		return models.PayoutResult{}, err
	}
	s.logger.Info("Payout completed",
		slog.String("gameya_id", gameyaID.String()),
		slog.Int("round", res.Round),
		slog.Any("amount", res.Amount),
		slog.String("beneficiary_id", res.BeneficiaryID.String()),
	)
	return res, nil
}

func (s *GameyaService) ContributionHistory(ctx context.Context, gameyaID, userID uuid.UUID) ([]models.Contribution, error) {
	return s.repo.ContributionsByUser(ctx, gameyaID, userID)
}

// ActiveSummary is a read-only projection of the gameya's current round.
type ActiveSummary struct {
	Gameya             models.Gameya   `json:"gameya"`
	ActiveMembers      int             `json:"activeMembers"`
	RoundContributions int             `json:"roundContributions"`
	Pot                decimal.Decimal `json:"pot"`
}

func (s *GameyaService) Summary(ctx context.Context, gameyaID uuid.UUID) (ActiveSummary, error) {
	g, err := s.repo.Get(ctx, gameyaID)
	if err != nil {
		return ActiveSummary{}, err
	}
	n, err := s.repo.RoundContributions(ctx, gameyaID, g.CurrentRound)
	if err != nil {
		return ActiveSummary{}, err
	}
	return ActiveSummary{
		Gameya:             g,
		ActiveMembers:      g.TotalMembers,
		RoundContributions: n,
		Pot:                g.ContributionAmount.Mul(decimal.NewFromInt(int64(g.TotalMembers))),
	}, nil
}

func (s *GameyaService) adjustTrust(ctx context.Context, userID uuid.UUID, delta decimal.Decimal, op string) {
	if _, err := s.trust.Adjust(ctx, userID, delta); err != nil {
		s.logger.Warn("Trust score adjustment failed",
			slog.String("op", op),
			slog.String("user_id", userID.String()),
			slog.Any("delta", delta),
			slog.Any("err", err),
		)
	}
}
