package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Cerjho/canteen-orders/internal/application"
	"github.com/Cerjho/canteen-orders/internal/config"
	"github.com/Cerjho/canteen-orders/internal/domain"
	"github.com/google/uuid"
)

type TopupResult struct {
	TopupID     string
	CheckoutURL string
	ExpiresAt   time.Time
	Amount      int64
}

// TopupService starts hosted-checkout sessions that credit a guardian's
// wallet when paid. Settlement happens in the reconciler.
type TopupService struct {
	topups  application.TopupRepository
	gateway application.GatewayClient
	cfg     config.CheckoutConfig
	logger  *slog.Logger

	now   func() time.Time
	newID func() string
}

func NewTopupService(
	topups application.TopupRepository,
	gateway application.GatewayClient,
	cfg config.CheckoutConfig,
	logger *slog.Logger,
) *TopupService {
	return &TopupService{
		topups:  topups,
		gateway: gateway,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// CreateTopup opens a top-up session. The local row is written before the
// gateway call; on gateway failure it is marked failed rather than deleted
// so the attempt stays visible.
func (s *TopupService) CreateTopup(ctx context.Context, parentID string, amount int64) (*TopupResult, error) {
	if parentID == "" {
		return nil, application.NewValidationError("parent ID is required")
	}
	if amount < s.cfg.MinimumTopup {
		return nil, application.NewMinimumAmountError(s.cfg.MinimumTopup)
	}

	expiresAt := s.now().Add(s.cfg.TopupWindow)
	topup, err := domain.NewTopupSession(s.newID(), parentID, amount, expiresAt)
	if err != nil {
		return nil, application.NewValidationError(err.Error())
	}
	if err := s.topups.Create(ctx, topup); err != nil {
		return nil, application.NewInternalError(err)
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, application.CheckoutSessionRequest{
		LineItems: []application.LineItem{{
			Name:     "Wallet top-up",
			Amount:   amount,
			Currency: "PHP",
			Quantity: 1,
		}},
		PaymentMethodTypes: []string{string(domain.MethodGCash), string(domain.MethodMaya), string(domain.MethodCard)},
		ReferenceNumber:    topup.ID,
		Description:        "Canteen wallet top-up",
		Metadata: map[string]string{
			"type":      "topup",
			"topup_id":  topup.ID,
			"parent_id": parentID,
		},
	})
	if err != nil {
		if _, markErr := s.topups.MarkFailed(ctx, topup.ID); markErr != nil {
			s.logger.Error("failed to mark unstarted topup failed", "topup_id", topup.ID, "error", markErr)
		}
		return nil, application.NewPaymentUnavailableError(err)
	}

	if err := s.topups.SetCheckoutSession(ctx, topup.ID, session.ID); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("topup session created",
		"topup_id", topup.ID,
		"parent_id", parentID,
		"amount", amount,
		"checkout_session_id", session.ID,
	)
	return &TopupResult{
		TopupID:     topup.ID,
		CheckoutURL: session.CheckoutURL,
		ExpiresAt:   expiresAt,
		Amount:      amount,
	}, nil
}
