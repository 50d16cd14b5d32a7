package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Eursukkul/booking-microservice/carpool-service/config"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/apperr"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/audit"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/auth"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/idempotency"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/notify"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/publicid"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/repository"
	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

type PayoutService interface {
	GeneratePayouts(ctx context.Context, p auth.Principal, period, idempotencyKey string) ([]models.Payout, error)
	ExecutePaypalPayout(ctx context.Context, p auth.Principal, payoutID, idempotencyKey string) (*models.Payout, error)
	FailPayout(ctx context.Context, p auth.Principal, payoutID, reason, idempotencyKey string) (*models.Payout, error)
	GetPayout(ctx context.Context, p auth.Principal, payoutID string) (*models.Payout, error)
	ListPayouts(ctx context.Context, p auth.Principal, period string) ([]models.Payout, error)
	ListDriverPayouts(ctx context.Context, p auth.Principal) ([]models.Payout, error)
}

type payoutService struct {
	uow      repository.UnitOfWork
	gateway  PaymentGateway
	guard    *idempotency.Guard
	ids      publicid.Allocator
	audit    audit.Logger
	notifier notify.Notifier
	validate *validator.Validate
	policy   config.Policy
	log      logger.ILogger
	now      Clock
}

func NewPayoutService(
	uow repository.UnitOfWork,
	gw PaymentGateway,
	guard *idempotency.Guard,
	ids publicid.Allocator,
	auditLog audit.Logger,
	notifier notify.Notifier,
	policy config.Policy,
	log logger.ILogger,
	now Clock,
) PayoutService {
	return &payoutService{
		uow:      uow,
		gateway:  gw,
		guard:    guard,
		ids:      ids,
		audit:    auditLog,
		notifier: notifier,
		validate: validator.New(),
		policy:   policy,
		log:      log,
		now:      now,
	}
}

func requireOperator(p auth.Principal) error {
	if p.Operator() {
		return nil
	}
	return apperr.Forbidden("only operators may manage payouts")
}

func (s *payoutService) GeneratePayouts(ctx context.Context, p auth.Principal, period, idempotencyKey string) ([]models.Payout, error) {
	return idempotency.Run(ctx, s.guard, idempotency.ScopePayoutGenerate, p.ID, idempotencyKey,
		func(ctx context.Context) ([]models.Payout, error) {
			payouts, err := s.generatePayouts(ctx, p, period)
			record(ctx, s.audit, audit.PayoutGenerate, p, err, map[string]any{"period": period, "payouts": len(payouts)})
			return payouts, err
		})
}

func (s *payoutService) generatePayouts(ctx context.Context, p auth.Principal, period string) ([]models.Payout, error) {
	if err := requireOperator(p); err != nil {
		return nil, err
	}
	from, to, err := periodBounds(period)
	if err != nil {
		return nil, err
	}

	drivers, err := s.uow.Payments().ListUnclaimedDriverIDs(ctx, from, to)
	if err != nil {
		return nil, err
	}

	payouts := make([]models.Payout, 0, len(drivers))
	for _, driverID := range drivers {
		payout, err := s.claimForDriver(ctx, driverID, period, from, to)
		if err != nil {
			s.log.Error("payout generation stopped",
				logger.Uint("driver_id", driverID),
				logger.String("period", period),
				logger.Error(err),
			)
			return nil, err
		}
		if payout != nil {
			payouts = append(payouts, *payout)
		}
	}

	s.log.Info("payouts generated", logger.String("period", period), logger.Int("count", len(payouts)))
	return payouts, nil
}

// claimForDriver aggregates the driver's unclaimed payments into the
// period's payout and stamps them, all in one transaction. It returns nil
// when there is nothing left to claim.
func (s *payoutService) claimForDriver(ctx context.Context, driverID uint, period string, from, to time.Time) (*models.Payout, error) {
	var payout *models.Payout
	err := s.uow.Transaction(ctx, func(tx repository.Repositories) error {
		payments, err := tx.Payments().LockUnclaimedForDriver(ctx, driverID, from, to)
		if err != nil {
			return err
		}
		if len(payments) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(payments))
		var sum float64
		for _, pay := range payments {
			ids = append(ids, pay.ID)
			sum += pay.Amount
		}

		existing, err := tx.Payouts().FindByDriverAndPeriodForUpdate(ctx, driverID, period)
		switch {
		case err == nil:
			if existing.Status != models.PayoutPending {
				s.log.Warning("settled payments left unclaimed, payout already closed",
					logger.String("payout_id", existing.ExternalID),
					logger.String("status", string(existing.Status)),
					logger.Int("payments", len(ids)),
				)
				return nil
			}
			existing.Amount = round2(existing.Amount + sum)
			if err := tx.Payouts().Update(ctx, existing); err != nil {
				return err
			}
			payout = existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			id, err := allocate(ctx, s.ids, publicid.Payout, tx.Payouts().ExternalIDExists)
			if err != nil {
				return err
			}
			payout = &models.Payout{
				ExternalID: id,
				DriverID:   driverID,
				Period:     period,
				Amount:     round2(sum),
				Currency:   s.policy.Currency,
				Status:     models.PayoutPending,
			}
			if err := tx.Payouts().Create(ctx, payout); err != nil {
				return err
			}
		default:
			return err
		}

		return tx.Payments().Claim(ctx, ids, payout.ID)
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

func (s *payoutService) ExecutePaypalPayout(ctx context.Context, p auth.Principal, payoutID, idempotencyKey string) (*models.Payout, error) {
	return idempotency.Run(ctx, s.guard, idempotency.ScopePayoutExecute, p.ID, idempotencyKey,
		func(ctx context.Context) (*models.Payout, error) {
			payout, err := s.executePayout(ctx, p, payoutID)
			meta := map[string]any{"payout_id": payoutID}
			if payout != nil {
				meta["status"] = string(payout.Status)
				meta["attempts"] = payout.Attempts
			}
			record(ctx, s.audit, audit.PayoutExecute, p, err, meta)
			if err != nil {
				return nil, err
			}
			return payout, nil
		})
}

func (s *payoutService) executePayout(ctx context.Context, p auth.Principal, payoutID string) (*models.Payout, error) {
	if err := requireOperator(p); err != nil {
		return nil, err
	}
	found, err := s.uow.Payouts().FindByExternalID(ctx, payoutID)
	if err != nil {
		return nil, notFound(err, ErrPayoutNotFound)
	}

	var (
		payout     *models.Payout
		driver     *models.DriverProfile
		gatewayErr error
	)
	err = s.uow.Transaction(ctx, func(tx repository.Repositories) error {
		locked, err := tx.Payouts().FindByIDForUpdate(ctx, found.ID)
		if err != nil {
			return notFound(err, ErrPayoutNotFound)
		}
		if locked.Status != models.PayoutPending {
			return ErrPayoutNotPending
		}
		if locked.Amount < s.policy.PayoutMinAmount {
			return ErrPayoutBelowMinimum
		}
		driver, err = tx.Profiles().FindDriver(ctx, locked.DriverID)
		if err != nil {
			return notFound(err, ErrDriverNotFound)
		}
		payee := strings.TrimSpace(driver.PayeeEmail)
		if s.validate.Var(payee, "required,email") != nil {
			return ErrInvalidPayee
		}

		batch, err := s.gateway.CreatePayout(ctx, gateway.PayoutItem{
			SenderItemID:  locked.ExternalID,
			ReceiverEmail: payee,
			Amount:        locked.Amount,
			Currency:      locked.Currency,
			Note:          "Carpool earnings " + locked.Period,
		})
		if err == nil && !batch.Completed() {
			err = &apperr.GatewayError{Op: "create payout", Status: batch.Status}
		}
		if batch != nil && batch.BatchID != "" {
			locked.GatewayBatchID = ptr(batch.BatchID)
		}

		locked.Attempts++
		if err != nil {
			gatewayErr = err
			locked.Status = models.PayoutFailed
			locked.LastError = ptr(failureReason(err))
		} else {
			now := s.now()
			locked.Status = models.PayoutPaid
			locked.PaidAt = &now
			locked.LastError = nil
		}
		payout = locked
		return tx.Payouts().Update(ctx, locked)
	})
	if err != nil {
		return nil, err
	}
	if gatewayErr != nil {
		return payout, gatewayErr
	}

	s.notifier.Send(ctx, notify.Message{
		Template: notify.TemplatePayoutPaid,
		To:       driver.Email,
		Data:     map[string]any{"payout_id": payout.ExternalID, "amount": payout.Amount, "period": payout.Period},
	})
	return payout, nil
}

func (s *payoutService) FailPayout(ctx context.Context, p auth.Principal, payoutID, reason, idempotencyKey string) (*models.Payout, error) {
	return idempotency.Run(ctx, s.guard, idempotency.ScopePayoutFail, p.ID, idempotencyKey,
		func(ctx context.Context) (*models.Payout, error) {
			payout, err := s.failPayout(ctx, p, payoutID, strings.TrimSpace(reason))
			record(ctx, s.audit, audit.PayoutFail, p, err, map[string]any{"payout_id": payoutID, "reason": reason})
			return payout, err
		})
}

func (s *payoutService) failPayout(ctx context.Context, p auth.Principal, payoutID, reason string) (*models.Payout, error) {
	if err := requireOperator(p); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, ErrReasonRequired
	}
	found, err := s.uow.Payouts().FindByExternalID(ctx, payoutID)
	if err != nil {
		return nil, notFound(err, ErrPayoutNotFound)
	}

	var payout *models.Payout
	err = s.uow.Transaction(ctx, func(tx repository.Repositories) error {
		locked, err := tx.Payouts().FindByIDForUpdate(ctx, found.ID)
		if err != nil {
			return notFound(err, ErrPayoutNotFound)
		}
		locked.Status = models.PayoutFailed
		locked.LastError = ptr(reason)
		locked.Attempts++
		payout = locked
		return tx.Payouts().Update(ctx, locked)
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

func (s *payoutService) GetPayout(ctx context.Context, p auth.Principal, payoutID string) (*models.Payout, error) {
	payout, err := s.uow.Payouts().FindByExternalID(ctx, payoutID)
	if err != nil {
		return nil, notFound(err, ErrPayoutNotFound)
	}
	if !p.Operator() && !(p.Is(auth.RoleDriver) && payout.DriverID == p.ID) {
		return nil, apperr.Forbidden("payout is not visible to the caller")
	}
	return payout, nil
}

func (s *payoutService) ListPayouts(ctx context.Context, p auth.Principal, period string) ([]models.Payout, error) {
	if err := requireOperator(p); err != nil {
		return nil, err
	}
	if _, _, err := periodBounds(period); err != nil {
		return nil, err
	}
	return s.uow.Payouts().ListByPeriod(ctx, period)
}

func (s *payoutService) ListDriverPayouts(ctx context.Context, p auth.Principal) ([]models.Payout, error) {
	if err := p.Require(auth.RoleDriver); err != nil {
		return nil, err
	}
	return s.uow.Payouts().ListByDriver(ctx, p.ID)
}
