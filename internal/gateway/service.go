package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/drfms/drfms/internal/journal"
	"github.com/drfms/drfms/internal/ledger"
	"github.com/drfms/drfms/internal/metrics"
	"github.com/drfms/drfms/internal/notification"
	"github.com/drfms/drfms/internal/units"
	"github.com/drfms/drfms/internal/wallet"
)

// DefaultConfirmTimeout bounds how long a donation may wait for its receipt.
const DefaultConfirmTimeout = 5 * time.Minute

// Service is the ledger gateway.
type Service struct {
	session    *wallet.Session
	deployment ledger.Deployment
	notifier   notification.Notifier
	journal    journal.Repository
	metrics    *metrics.Gateway
	logger     *slog.Logger
	location   *time.Location

	confirmTimeout time.Duration
	pollInterval   time.Duration

	tracker    *tracker
	background sync.WaitGroup
}

// Option customises a Service.
type Option func(*Service)

// WithNotifier sets where donation outcomes are announced.
func WithNotifier(n notification.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithJournal records every submitted transaction in repo.
func WithJournal(repo journal.Repository) Option {
	return func(s *Service) { s.journal = repo }
}

// WithMetrics instruments the service.
func WithMetrics(m *metrics.Gateway) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithLocation sets the time zone used to render calendar dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

// WithConfirmTimeout bounds the wait for a donation receipt.
func WithConfirmTimeout(d time.Duration) Option {
	return func(s *Service) { s.confirmTimeout = d }
}

// WithPollInterval sets how often receipts are polled.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) { s.pollInterval = d }
}

// WithHandleHistory sets how many settled donations stay queryable by hash.
func WithHandleHistory(n int) Option {
	return func(s *Service) { s.tracker = newTracker(n) }
}

// NewService builds a gateway over an explicitly owned wallet session and a
// contract deployment.
func NewService(session *wallet.Session, deployment ledger.Deployment, opts ...Option) *Service {
	s := &Service{
		session:        session,
		deployment:     deployment,
		location:       time.UTC,
		confirmTimeout: DefaultConfirmTimeout,
		pollInterval:   ledger.DefaultPollInterval,
		tracker:        newTracker(defaultHandleHistory),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "gateway")
	if s.location == nil {
		s.location = time.UTC
	}
	return s
}

// Session returns the current wallet session.
func (s *Service) Session() wallet.Snapshot {
	return s.session.Snapshot()
}

// Connect asks the signing agent to authorize an account.
func (s *Service) Connect(ctx context.Context) (address string, err error) {
	defer s.observe(OpConnect, &err)

	address, connErr := s.session.Connect(ctx)
	if connErr != nil {
		return "", normalize(OpConnect, connErr)
	}
	return address, nil
}

// SearchFund reads a relief fund. No connected account is needed, but a
// signing agent must exist.
func (s *Service) SearchFund(ctx context.Context, fundsAddress string) (fund ReliefFund, err error) {
	defer s.observe(OpSearchFund, &err)

	addr, gwErr := parseAddress(OpSearchFund, fundsAddress)
	if gwErr != nil {
		return ReliefFund{}, gwErr
	}
	if _, perr := s.session.Provider(ctx); perr != nil {
		return ReliefFund{}, normalize(OpSearchFund, perr)
	}
	contract, berr := s.deployment.Bind(nil)
	if berr != nil {
		return ReliefFund{}, normalize(OpSearchFund, berr)
	}
	rec, ferr := contract.Fund(ctx, addr)
	if ferr != nil {
		return ReliefFund{}, normalize(OpSearchFund, ferr)
	}
	return s.toReliefFund(addr, rec), nil
}

// Donate submits a donation and waits for it to be confirmed, bounded by the
// confirm timeout and ctx. A failed confirmation returns the settled handle
// together with the error.
func (s *Service) Donate(ctx context.Context, receiver, amount string) (TransactionHandle, error) {
	handle, err := s.submitDonation(ctx, receiver, amount)
	if err != nil {
		return TransactionHandle{}, err
	}
	return s.confirm(ctx, handle)
}

// DonateAsync submits a donation and confirms it in the background. The
// returned handle is in the submitted state; poll Transaction for the outcome.
func (s *Service) DonateAsync(ctx context.Context, receiver, amount string) (TransactionHandle, error) {
	handle, err := s.submitDonation(ctx, receiver, amount)
	if err != nil {
		return TransactionHandle{}, err
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		_, _ = s.confirm(context.WithoutCancel(ctx), handle)
	}()
	return handle, nil
}

// submitDonation converts amount, sends it to receiver through the contract
// and marks the donation in flight. The caller must confirm the handle.
func (s *Service) submitDonation(ctx context.Context, receiver, amount string) (handle TransactionHandle, err error) {
	defer func() {
		if err != nil {
			s.observe(OpDonate, &err)
		}
	}()

	to, gwErr := parseAddress(OpDonate, receiver)
	if gwErr != nil {
		return TransactionHandle{}, gwErr
	}
	value, aerr := units.ToLedgerAmount(amount)
	if aerr != nil {
		return TransactionHandle{}, normalize(OpDonate, aerr)
	}

	var from common.Address
	hash, err := withSession(ctx, s, OpDonate, func(ctx context.Context, c *ledger.Contract, signer ledger.Signer) (common.Hash, error) {
		from = signer.Address()
		return c.Donate(ctx, to, value)
	})
	if err != nil {
		return TransactionHandle{}, err
	}

	handle = TransactionHandle{
		Hash:         hash.Hex(),
		FundsAddress: to.Hex(),
		From:         from.Hex(),
		Amount:       units.ToDecimalString(value),
		State:        TxSubmitted,
		SubmittedAt:  time.Now().UTC(),
	}
	s.tracker.submitted(handle)
	s.metrics.DonationSubmitted()
	s.record(ctx, journal.KindDonation, handle.Hash, handle.FundsAddress, handle.From, handle.Amount)
	s.logger.Info("donation submitted", "hash", handle.Hash, "funds_address", handle.FundsAddress, "amount", handle.Amount)
	return handle, nil
}

// confirm waits for the donation's receipt and settles the handle exactly once.
func (s *Service) confirm(ctx context.Context, handle TransactionHandle) (settled TransactionHandle, err error) {
	defer s.observe(OpDonate, &err)

	started := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	_, waitErr := ledger.WaitMined(waitCtx, s.deployment.Backend, common.HexToHash(handle.Hash), s.pollInterval)

	now := time.Now().UTC()
	handle.SettledAt = &now
	if waitErr != nil {
		handle.State = TxFailed
		handle.Failure = normalize(OpDonate, waitErr)
		if errors.Is(waitErr, context.DeadlineExceeded) {
			handle.Failure = &Error{
				Kind:    KindTransactionTimeout,
				Op:      OpDonate,
				Message: fmt.Sprintf("donation %s was not confirmed within %s", handle.Hash, s.confirmTimeout),
			}
		}
	} else {
		handle.State = TxConfirmed
	}
	if !s.tracker.settle(handle) {
		s.logger.Warn("donation settled twice", "hash", handle.Hash)
		return handle, handle.failure()
	}
	s.metrics.DonationSettled(string(handle.State), time.Since(started))

	detached := context.WithoutCancel(ctx)
	s.settleJournal(detached, handle)
	s.announce(detached, handle)

	if handle.Failure != nil {
		s.logger.Warn("donation failed", "hash", handle.Hash, "kind", handle.Failure.Kind, "error", handle.Failure.Message)
		return handle, handle.Failure
	}
	s.logger.Info("donation confirmed", "hash", handle.Hash, "funds_address", handle.FundsAddress)
	return handle, nil
}

// AddFundManager registers fundsAddress with the connected account as manager.
func (s *Service) AddFundManager(ctx context.Context, fundsAddress, description string) (result WriteResult, err error) {
	defer s.observe(OpAddFundManager, &err)

	addr, gwErr := parseAddress(OpAddFundManager, fundsAddress)
	if gwErr != nil {
		return WriteResult{}, gwErr
	}
	return s.write(ctx, OpAddFundManager, journal.KindRegistration, addr, "", func(ctx context.Context, c *ledger.Contract) (common.Hash, error) {
		return c.RegisterManager(ctx, addr, description)
	})
}

// AddUsage records that amount of the fund was spent on reason at usedOn.
func (s *Service) AddUsage(ctx context.Context, fundsAddress, reason, amount string, usedOn time.Time) (result WriteResult, err error) {
	defer s.observe(OpAddUsage, &err)

	addr, gwErr := parseAddress(OpAddUsage, fundsAddress)
	if gwErr != nil {
		return WriteResult{}, gwErr
	}
	value, aerr := units.ToLedgerAmount(amount)
	if aerr != nil {
		return WriteResult{}, normalize(OpAddUsage, aerr)
	}
	day := big.NewInt(usedOn.Unix())
	return s.write(ctx, OpAddUsage, journal.KindUsage, addr, units.ToDecimalString(value), func(ctx context.Context, c *ledger.Contract) (common.Hash, error) {
		return c.AddUsage(ctx, addr, reason, value, day)
	})
}

// CloseFund removes the fund at fundsAddress. Only its manager may do so.
func (s *Service) CloseFund(ctx context.Context, fundsAddress string) (result WriteResult, err error) {
	defer s.observe(OpCloseFund, &err)

	addr, gwErr := parseAddress(OpCloseFund, fundsAddress)
	if gwErr != nil {
		return WriteResult{}, gwErr
	}
	return s.write(ctx, OpCloseFund, journal.KindClosure, addr, "", func(ctx context.Context, c *ledger.Contract) (common.Hash, error) {
		return c.RemoveFund(ctx, addr)
	})
}

// ListUsage returns the fund's usage history in ledger order.
func (s *Service) ListUsage(ctx context.Context, fundsAddress string) (records []UsageRecord, err error) {
	defer s.observe(OpListUsage, &err)

	addr, gwErr := parseAddress(OpListUsage, fundsAddress)
	if gwErr != nil {
		return nil, gwErr
	}
	entries, err := withSession(ctx, s, OpListUsage, func(ctx context.Context, c *ledger.Contract, _ ledger.Signer) ([]ledger.UsageEntry, error) {
		return c.Usage(ctx, addr)
	})
	if err != nil {
		return nil, err
	}

	records = make([]UsageRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, UsageRecord{
			FundsAddress: addr.Hex(),
			UsedOn:       units.ToCalendarDate(e.UsedOn, units.Seconds, s.location),
			Amount:       units.ToDecimalString(e.Val),
			Reason:       e.Reason,
		})
	}
	return records, nil
}

// DonationInProgress reports whether any donation is awaiting confirmation.
func (s *Service) DonationInProgress() bool {
	return s.tracker.inProgress()
}

// PendingDonations returns how many donations are awaiting confirmation.
func (s *Service) PendingDonations() int {
	return s.tracker.pending()
}

// Transaction returns the latest known handle of a donation submitted by this gateway.
func (s *Service) Transaction(hash string) (TransactionHandle, error) {
	raw, err := hexutil.Decode(hash)
	if err != nil || len(raw) != common.HashLength {
		return TransactionHandle{}, &Error{Kind: KindNotFound, Op: OpTransaction, Message: fmt.Sprintf("%q is not a transaction hash", hash)}
	}
	handle, ok := s.tracker.get(common.BytesToHash(raw).Hex())
	if !ok {
		return TransactionHandle{}, &Error{Kind: KindNotFound, Op: OpTransaction, Message: fmt.Sprintf("transaction %s is not tracked", hash)}
	}
	return handle, nil
}

// Journal lists journaled transactions, newest first.
func (s *Service) Journal(ctx context.Context, fundsAddress string, limit int) ([]journal.Entry, error) {
	if s.journal == nil {
		return nil, &Error{Kind: KindNotFound, Op: OpJournal, Message: "journal is not configured"}
	}
	if fundsAddress != "" {
		addr, gwErr := parseAddress(OpJournal, fundsAddress)
		if gwErr != nil {
			return nil, gwErr
		}
		fundsAddress = addr.Hex()
	}
	entries, err := s.journal.List(ctx, fundsAddress, limit)
	if err != nil {
		s.logger.Error("list journal", "error", err)
		return nil, &Error{Kind: KindLedgerCallFailed, Op: OpJournal, Message: "journal unavailable"}
	}
	return entries, nil
}

// Wait blocks until background confirmations started by DonateAsync finish.
func (s *Service) Wait() {
	s.background.Wait()
}

// withSession makes sure an account is connected, connecting at most once,
// then runs call against a handle bound to that account. call is never
// invoked when no account could be connected.
func withSession[T any](ctx context.Context, s *Service, op string, call func(context.Context, *ledger.Contract, ledger.Signer) (T, error)) (T, error) {
	var zero T
	if _, err := s.session.Provider(ctx); err != nil {
		return zero, normalize(op, err)
	}
	if !s.session.Probe(ctx) {
		if _, err := s.session.Connect(ctx); err != nil {
			return zero, normalize(op, err)
		}
	}
	signer, err := s.session.Signer(ctx)
	if err != nil {
		return zero, normalize(op, err)
	}
	contract, err := s.deployment.Bind(signer)
	if err != nil {
		return zero, normalize(op, err)
	}
	out, err := call(ctx, contract, signer)
	if err != nil {
		return zero, normalize(op, err)
	}
	return out, nil
}

func (s *Service) write(ctx context.Context, op, kind string, addr common.Address, amount string, call func(context.Context, *ledger.Contract) (common.Hash, error)) (WriteResult, error) {
	var from common.Address
	hash, err := withSession(ctx, s, op, func(ctx context.Context, c *ledger.Contract, signer ledger.Signer) (common.Hash, error) {
		from = signer.Address()
		return call(ctx, c)
	})
	if err != nil {
		return WriteResult{}, err
	}
	s.record(ctx, kind, hash.Hex(), addr.Hex(), from.Hex(), amount)
	s.logger.Info("transaction submitted", "operation", op, "hash", hash.Hex(), "funds_address", addr.Hex())
	return WriteResult{Hash: hash.Hex()}, nil
}

// record appends to the journal. Journal failures never fail the operation.
func (s *Service) record(ctx context.Context, kind, hash, fundsAddress, sender, amount string) {
	if s.journal == nil {
		return
	}
	_, err := s.journal.Append(context.WithoutCancel(ctx), journal.Entry{
		Hash:         hash,
		Kind:         kind,
		FundsAddress: fundsAddress,
		Sender:       sender,
		Amount:       amount,
		State:        journal.StateSubmitted,
	})
	if err != nil {
		s.logger.Error("journal append", "hash", hash, "error", err)
	}
}

func (s *Service) settleJournal(ctx context.Context, handle TransactionHandle) {
	if s.journal == nil {
		return
	}
	state, reason := journal.StateConfirmed, ""
	if handle.Failure != nil {
		state, reason = journal.StateFailed, handle.Failure.Message
	}
	if err := s.journal.UpdateState(ctx, handle.Hash, state, reason); err != nil {
		s.logger.Error("journal update", "hash", handle.Hash, "error", err)
	}
}

func (s *Service) announce(ctx context.Context, handle TransactionHandle) {
	if s.notifier == nil {
		return
	}
	msg := notification.Message{
		Kind:        notification.KindDonationConfirmed,
		Destination: handle.From,
		Body:        fmt.Sprintf("Your donation of %s to %s was confirmed", handle.Amount, handle.FundsAddress),
	}
	if handle.Failure != nil {
		msg.Kind = notification.KindDonationFailed
		msg.Body = fmt.Sprintf("Your donation of %s to %s failed: %s", handle.Amount, handle.FundsAddress, handle.Failure.Message)
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("send donation notification", "hash", handle.Hash, "error", err)
	}
}

func (s *Service) observe(op string, errp *error) {
	outcome := "ok"
	if errp != nil && *errp != nil {
		outcome = string(KindLedgerCallFailed)
		if gwErr, ok := AsError(*errp); ok {
			outcome = string(gwErr.Kind)
		}
	}
	s.metrics.ObserveOperation(op, outcome)
}

func (s *Service) toReliefFund(addr common.Address, rec ledger.FundRecord) ReliefFund {
	fund := ReliefFund{
		FundsAddress:  addr.Hex(),
		Description:   rec.Description,
		Manager:       rec.Manager.Hex(),
		CreatedOnDate: units.ToCalendarDate(rec.CreatedOn, units.Seconds, s.location),
		FundsNeeded:   "0",
		TotalAmount:   units.ToDecimalString(rec.TotalAmount),
		Registered:    rec.Manager != (common.Address{}),
	}
	if created, ok := units.SecondsToTime(rec.CreatedOn); ok {
		fund.CreatedOn = created
	}
	if rec.FundsNeeded != nil {
		fund.FundsNeeded = rec.FundsNeeded.String()
	}
	return fund
}

func (h TransactionHandle) failure() error {
	if h.Failure == nil {
		return nil
	}
	return h.Failure
}

func parseAddress(op, value string) (common.Address, *Error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, invalidAddress(op, value)
	}
	return common.HexToAddress(value), nil
}
