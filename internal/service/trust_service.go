package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/trust"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// TrustService recomputes PIS, SCS and UBA when order events arrive. Each
// event is applied at most once.
type TrustService struct {
	repo   TrustRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewTrustService creates a new trust service
func NewTrustService(repo TrustRepository) *TrustService {
	return &TrustService{
		repo:   repo,
		logger: util.Named("trust"),
		now:    time.Now,
	}
}

// HandleOrderPlaced refreshes the buyer's behavior score
func (ts *TrustService) HandleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	ctx, span := util.StartSpan(ctx, "TrustService.HandleOrderPlaced")
	defer span.End()

	return ts.once(ctx, event.BaseEvent, func() error {
		_, err := ts.RecalculateUser(ctx, event.UserID)
		return err
	})
}

// HandleItemEvent refreshes the product, seller and buyer scores touched by
// an item transition. The product goes first since the seller score
// averages product scores.
func (ts *TrustService) HandleItemEvent(ctx context.Context, event *models.ItemEvent) error {
	ctx, span := util.StartSpan(ctx, "TrustService.HandleItemEvent")
	defer span.End()

	return ts.once(ctx, event.BaseEvent, func() error {
		if _, err := ts.RecalculateProduct(ctx, event.ProductID); err != nil {
			return err
		}
		if _, err := ts.RecalculateSeller(ctx, event.SellerID); err != nil {
			return err
		}
		_, err := ts.RecalculateUser(ctx, event.UserID)
		return err
	})
}

func (ts *TrustService) once(ctx context.Context, event models.BaseEvent, apply func() error) error {
	processed, err := ts.repo.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		ts.logger.Info("event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := apply(); err != nil {
		return err
	}

	if err := ts.repo.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		ts.logger.Error("failed to mark event processed", zap.String("event_id", event.EventID), zap.Error(err))
	}
	return nil
}

// RecalculateSeller recomputes and stores a seller's SCS
func (ts *TrustService) RecalculateSeller(ctx context.Context, sellerID int64) (float64, error) {
	stats, err := ts.repo.GetSellerStats(ctx, sellerID)
	if err != nil {
		return 0, err
	}
	now := ts.now()
	score := trust.SellerCredibility(stats, now)
	if err := ts.repo.UpdateSellerScore(ctx, sellerID, score, now); err != nil {
		return 0, err
	}
	ts.recorded(trust.SCS, sellerID, score)
	return score, nil
}

// RecalculateUser recomputes and stores a buyer's UBA
func (ts *TrustService) RecalculateUser(ctx context.Context, userID int64) (float64, error) {
	now := ts.now()
	stats, err := ts.repo.GetUserStats(ctx, userID, now)
	if err != nil {
		return 0, err
	}
	score := trust.UserBehavior(stats, now)
	if err := ts.repo.UpdateUserScore(ctx, userID, score, now); err != nil {
		return 0, err
	}
	ts.recorded(trust.UBA, userID, score)
	return score, nil
}

// RecalculateProduct recomputes and stores a product's PIS
func (ts *TrustService) RecalculateProduct(ctx context.Context, productID int64) (float64, error) {
	stats, err := ts.repo.GetProductStats(ctx, productID)
	if err != nil {
		return 0, err
	}
	score := trust.ProductIntegrity(stats)
	if err := ts.repo.UpdateProductScore(ctx, productID, score, ts.now()); err != nil {
		return 0, err
	}
	ts.recorded(trust.PIS, productID, score)
	return score, nil
}

func (ts *TrustService) recorded(t trust.ScoreType, id int64, score float64) {
	util.TrustRecalculationsTotal.WithLabelValues(string(t)).Inc()
	insight, _ := trust.Lookup(t, score)
	ts.logger.Debug("score updated",
		zap.String("type", string(t)),
		zap.Int64("id", id),
		zap.Float64("score", score),
		zap.String("flag", insight.Flag),
	)
}
