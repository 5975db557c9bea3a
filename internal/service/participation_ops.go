// internal/service/participation_ops.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/repository"
	"lotto-ledger/internal/util"
)

type limitResolver func(ctx context.Context, actorID string) (domain.ResolvedLimit, error)

// ProcessPayout pays a winning ticket at the counter: the main balance
// receives the win amount, the commission balance the payout commission, and
// the ticket is marked paid. A ticket is paid at most once.
func (s *ledgerService) ProcessPayout(ctx context.Context, kind domain.ActorKind, actorID, ticketID string, winAmount decimal.Decimal) (result *PayoutResult, err error) {
	defer s.observe(opProcessPayout, kind, time.Now(), &err)

	b, err := s.binding(kind)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(winAmount); err != nil {
		return nil, err
	}

	// Advisory check, repeated inside the transaction.
	if _, err := s.checkPayout(ctx, s.dbExecutor, b, actorID, ticketID, winAmount, s.limits.ResolveLimit); err != nil {
		return nil, err
	}

	err = s.tx.run(ctx, opProcessPayout, func(q repository.DBExecutor) error {
		inTx := func(ctx context.Context, actorID string) (domain.ResolvedLimit, error) {
			return s.limits.ResolveLimitTx(ctx, q, actorID)
		}
		main, err := s.checkPayout(ctx, q, b, actorID, ticketID, winAmount, inTx)
		if err != nil {
			return err
		}
		commissionWallet, err := s.getWallet(ctx, q, b.Store.CommissionWallets, actorID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		commission := domain.CommissionOn(winAmount, b.Policy.PayoutCommissionPercent).Round(amountScale)

		claimed, err := s.participationRepo.MarkPaid(ctx, q, ticketID, domain.PayoutUpdate{
			PaidAt:           now,
			PaidBy:           actorID,
			PaymentAmount:    winAmount,
			CommissionAmount: commission,
		})
		if err != nil {
			return fmt.Errorf("process payout: %w", err)
		}
		if !claimed {
			return s.lostTicketClaim(ctx, q, ticketID)
		}

		if err := b.Store.MainWallets.CreditBalance(ctx, q, actorID, winAmount, now); err != nil {
			return fmt.Errorf("process payout: failed to update wallet balance: %w", err)
		}
		ref := ticketID
		if _, err := s.record(ctx, q, b.Store, main, domain.WalletTypeMain, domain.TransactionTypeCredit, winAmount, domain.ReferencePayout, &ref, now); err != nil {
			return fmt.Errorf("process payout: %w", err)
		}
		if commission.IsPositive() {
			if err := b.Store.CommissionWallets.CreditBalance(ctx, q, actorID, commission, now); err != nil {
				return fmt.Errorf("process payout: failed to update commission balance: %w", err)
			}
			if _, err := s.record(ctx, q, b.Store, commissionWallet, domain.WalletTypeCommission, domain.TransactionTypeCommission, commission, domain.ReferencePayout, &ref, now); err != nil {
				return fmt.Errorf("process payout: %w", err)
			}
		}

		pair, err := s.getPair(ctx, q, b.Store, actorID)
		if err != nil {
			return err
		}
		ticket, err := s.getTicket(ctx, q, ticketID)
		if err != nil {
			return err
		}
		result = &PayoutResult{
			Ticket:           ticket,
			Wallets:          pair,
			PaymentAmount:    winAmount,
			CommissionAmount: commission,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payout processed", "kind", kind, "actor_id", actorID, "ticket_id", ticketID,
		"amount", winAmount, "commission", result.CommissionAmount, "balance", result.Wallets.Main.Balance)
	return result, nil
}

// checkPayout validates a payout against the state visible through q and
// returns the payer's main wallet.
func (s *ledgerService) checkPayout(
	ctx context.Context,
	q repository.DBExecutor,
	b KindBinding,
	actorID, ticketID string,
	winAmount decimal.Decimal,
	resolve limitResolver,
) (*domain.Wallet, error) {
	ticket, err := s.getTicket(ctx, q, ticketID)
	if err != nil {
		return nil, err
	}
	switch {
	case !ticket.IsWinner:
		return nil, util.ErrNotWinner.WithMessage("ticket %s is not a winner", ticketID)
	case ticket.Paid:
		return nil, util.ErrAlreadyPaid.WithMessage("ticket %s was already paid", ticketID)
	case ticket.Status == domain.ParticipationCancelled:
		return nil, util.ErrAlreadyFinal.WithMessage("ticket %s is cancelled", ticketID)
	case !ticket.WinAmount.IsPositive() || !ticket.WinAmount.Equal(winAmount):
		return nil, util.NewInvalidWinAmount(winAmount, ticket.WinAmount)
	}

	if b.Policy.CheckPaymentPermission {
		actor, err := s.actorProfile(ctx, q, actorID)
		if err != nil {
			return nil, err
		}
		if !actor.PaymentAllowed() {
			return nil, util.ErrPaymentDisabled
		}
	}

	main, err := s.getWallet(ctx, q, b.Store.MainWallets, actorID)
	if err != nil {
		return nil, err
	}

	if b.Policy.EnforcePaymentLimit {
		limit, err := resolve(ctx, actorID)
		if err != nil {
			return nil, err
		}
		switch {
		case limit.Unlimited():
			return nil, util.NewPaymentLimitExceeded(winAmount, limit.MaxPaymentAmount, main.Currency, true)
		case limit.Currency != main.Currency:
			return nil, util.NewPaymentLimitCurrencyMismatch(winAmount, limit.MaxPaymentAmount, limit.Currency, main.Currency)
		case !limit.Allows(winAmount):
			return nil, util.NewPaymentLimitExceeded(winAmount, limit.MaxPaymentAmount, limit.Currency, false)
		}
	}

	if b.Policy.RequirePayoutFloat && main.Balance.LessThan(winAmount) {
		return nil, util.NewInsufficientBalance(util.KindInsufficientBalance, winAmount, main.Balance, main.Currency)
	}
	return main, nil
}

// RegisterParticipation records a ticket sold by actorID in the currency of
// its main wallet. The stake is charged separately through DeductForBet.
func (s *ledgerService) RegisterParticipation(ctx context.Context, kind domain.ActorKind, actorID string, sale domain.TicketSale) (ticket *domain.Participation, err error) {
	defer s.observe(opRegisterTicket, kind, time.Now(), &err)

	b, err := s.binding(kind)
	if err != nil {
		return nil, err
	}
	if sale.ID == "" {
		return nil, fmt.Errorf("%w: ticket id is required", util.ErrInvalidInput)
	}
	if err := validateAmount(sale.Stake); err != nil {
		return nil, err
	}

	err = s.tx.run(ctx, opRegisterTicket, func(q repository.DBExecutor) error {
		main, err := s.getWallet(ctx, q, b.Store.MainWallets, actorID)
		if err != nil {
			return err
		}
		p := domain.NewParticipation(sale, actorID, kind, main.Currency, s.clock.Now())
		if err := s.participationRepo.CreateParticipation(ctx, q, p); err != nil {
			if errors.Is(err, util.ErrDuplicateEntry) {
				return fmt.Errorf("register participation: ticket %s: %w", sale.ID, util.ErrDuplicateEntry)
			}
			return fmt.Errorf("register participation: %w", err)
		}
		ticket = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Participation registered", "kind", kind, "actor_id", actorID, "ticket_id", ticket.ID, "stake", ticket.Stake)
	return ticket, nil
}

// CancelParticipation cancels a ticket for its purchaser within the
// cancellation window, charging the configured fee.
func (s *ledgerService) CancelParticipation(ctx context.Context, kind domain.ActorKind, ticketID, actorID string) (ticket *domain.Participation, err error) {
	defer s.observe(opCancelParticipation, kind, time.Now(), &err)

	b, err := s.binding(kind)
	if err != nil {
		return nil, err
	}
	if _, err := s.checkCancellation(ctx, s.dbExecutor, kind, ticketID, actorID); err != nil {
		return nil, err
	}

	var fee decimal.Decimal
	err = s.tx.run(ctx, opCancelParticipation, func(q repository.DBExecutor) error {
		current, err := s.checkCancellation(ctx, q, kind, ticketID, actorID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		fee = s.feePolicy.Fee(current)
		if fee.IsNegative() {
			fee = decimal.Zero
		}

		cancelled, err := s.participationRepo.MarkCancelled(ctx, q, ticketID, domain.CancellationUpdate{
			CancelledBy: actorID,
			CancelledAt: now,
			Fee:         fee,
		})
		if err != nil {
			return fmt.Errorf("cancel participation: %w", err)
		}
		if !cancelled {
			return s.lostTicketClaim(ctx, q, ticketID)
		}

		if fee.IsPositive() {
			main, err := s.getWallet(ctx, q, b.Store.MainWallets, actorID)
			if err != nil {
				return err
			}
			debited, err := b.Store.MainWallets.DebitBalance(ctx, q, actorID, fee, now)
			if err != nil {
				return fmt.Errorf("cancel participation: failed to update wallet balance: %w", err)
			}
			if !debited {
				return util.NewInsufficientBalance(util.KindInsufficientBalance, fee, main.Balance, main.Currency)
			}
			ref := ticketID
			if _, err := s.record(ctx, q, b.Store, main, domain.WalletTypeMain, domain.TransactionTypeDebit, fee, domain.ReferenceCancellationFee, &ref, now); err != nil {
				return fmt.Errorf("cancel participation: %w", err)
			}
		}

		updated, err := s.getTicket(ctx, q, ticketID)
		if err != nil {
			return err
		}
		ticket = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Participation cancelled", "kind", kind, "actor_id", actorID, "ticket_id", ticketID, "fee", fee)
	return ticket, nil
}

// checkCancellation applies the cancellation rules in order: ownership,
// payment, final state, then the time window.
func (s *ledgerService) checkCancellation(ctx context.Context, q repository.DBExecutor, kind domain.ActorKind, ticketID, actorID string) (*domain.Participation, error) {
	ticket, err := s.getTicket(ctx, q, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != actorID || ticket.UserType != kind {
		return nil, util.ErrNotOwner
	}
	if ticket.Paid {
		return nil, util.ErrAlreadyPaid.WithMessage("ticket %s was already paid", ticketID)
	}
	if ticket.IsFinal() {
		return nil, util.ErrAlreadyFinal.WithMessage("ticket %s is already %s", ticketID, ticket.Status)
	}
	if elapsed := s.clock.Now().Sub(ticket.PurchaseDate); elapsed > s.cancellationWindow {
		return nil, util.ErrWindowExpired.WithMessage("ticket %s was bought %s ago, cancellation is allowed within %s",
			ticketID, elapsed.Truncate(time.Second), s.cancellationWindow)
	}
	return ticket, nil
}

// RecordDrawResult completes an active ticket with the outcome of its draw.
func (s *ledgerService) RecordDrawResult(ctx context.Context, ticketID string, isWinner bool, winAmount decimal.Decimal) (ticket *domain.Participation, err error) {
	defer s.observe(opRecordDrawResult, "", time.Now(), &err)

	if isWinner {
		if err := validateAmount(winAmount); err != nil {
			return nil, util.ErrInvalidWinAmount.WithMessage("winning ticket %s needs a positive win amount, got %s", ticketID, winAmount.String())
		}
	} else {
		winAmount = decimal.Zero
	}

	err = s.tx.run(ctx, opRecordDrawResult, func(q repository.DBExecutor) error {
		if _, err := s.getTicket(ctx, q, ticketID); err != nil {
			return err
		}
		recorded, err := s.participationRepo.RecordDrawResult(ctx, q, ticketID, isWinner, winAmount, s.clock.Now())
		if err != nil {
			return fmt.Errorf("record draw result: %w", err)
		}
		if !recorded {
			return s.lostTicketClaim(ctx, q, ticketID)
		}
		updated, err := s.getTicket(ctx, q, ticketID)
		if err != nil {
			return err
		}
		ticket = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Draw result recorded", "ticket_id", ticketID, "is_winner", isWinner, "win_amount", winAmount)
	return ticket, nil
}

func (s *ledgerService) getTicket(ctx context.Context, q repository.DBExecutor, id string) (*domain.Participation, error) {
	ticket, err := s.participationRepo.GetParticipationByID(ctx, q, id)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, util.ErrTicketNotFound.WithMessage("ticket %s not found", id)
		}
		return nil, err
	}
	return ticket, nil
}

// lostTicketClaim explains why a guarded ticket update matched no row.
func (s *ledgerService) lostTicketClaim(ctx context.Context, q repository.DBExecutor, ticketID string) error {
	ticket, err := s.getTicket(ctx, q, ticketID)
	if err != nil {
		return err
	}
	if ticket.Paid {
		return util.ErrAlreadyPaid.WithMessage("ticket %s was already paid", ticketID)
	}
	return util.ErrAlreadyFinal.WithMessage("ticket %s is already %s", ticketID, ticket.Status)
}
