package handler

import (
	"context"
	"time"

	"github.com/iliyamo/event-reservations/internal/ledger"
	"github.com/iliyamo/event-reservations/internal/model"
	"github.com/iliyamo/event-reservations/internal/repository"
)

type fakeUsers struct {
	create     func(ctx context.Context, nu repository.NewUser, cost int) (uint64, error)
	getByEmail func(ctx context.Context, email string) (*model.User, error)
	getByID    func(ctx context.Context, id uint64) (*model.User, error)
	list       func(ctx context.Context, limit, offset int) ([]model.User, error)
	update     func(ctx context.Context, id uint64, p repository.UserPatch, cost int) (*model.User, error)
}

func (f *fakeUsers) Create(ctx context.Context, nu repository.NewUser, cost int) (uint64, error) {
	return f.create(ctx, nu, cost)
}
func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return f.getByEmail(ctx, email)
}
func (f *fakeUsers) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return f.getByID(ctx, id)
}
func (f *fakeUsers) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	return f.list(ctx, limit, offset)
}
func (f *fakeUsers) Update(ctx context.Context, id uint64, p repository.UserPatch, cost int) (*model.User, error) {
	return f.update(ctx, id, p, cost)
}

type fakeTokens struct {
	stored   []string
	revoked  []string
	allFor   []uint64
	validate func(ctx context.Context, hash string, now time.Time) (uint64, error)
}

func (f *fakeTokens) StoreRefresh(_ context.Context, _ uint64, hash string, _ time.Time) error {
	f.stored = append(f.stored, hash)
	return nil
}
func (f *fakeTokens) ValidateRefresh(ctx context.Context, hash string, now time.Time) (uint64, error) {
	return f.validate(ctx, hash, now)
}
func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) error {
	f.revoked = append(f.revoked, hash)
	return nil
}
func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	f.allFor = append(f.allFor, userID)
	return nil
}

type fakeEvents struct {
	create    func(ctx context.Context, e *model.Event) error
	getByID   func(ctx context.Context, id uint64) (*model.Event, error)
	getByName func(ctx context.Context, name string) (*model.Event, error)
	list      func(ctx context.Context, onlyActive bool, limit, offset int) ([]model.Event, error)
	update    func(ctx context.Context, id uint64, p repository.EventPatch) (*model.Event, error)
}

func (f *fakeEvents) Create(ctx context.Context, e *model.Event) error { return f.create(ctx, e) }
func (f *fakeEvents) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	return f.getByID(ctx, id)
}
func (f *fakeEvents) GetByName(ctx context.Context, name string) (*model.Event, error) {
	return f.getByName(ctx, name)
}
func (f *fakeEvents) List(ctx context.Context, onlyActive bool, limit, offset int) ([]model.Event, error) {
	return f.list(ctx, onlyActive, limit, offset)
}
func (f *fakeEvents) Update(ctx context.Context, id uint64, p repository.EventPatch) (*model.Event, error) {
	return f.update(ctx, id, p)
}

type fakeBookings struct {
	getByID    func(ctx context.Context, id uint64) (*model.Booking, error)
	listByUser func(ctx context.Context, userID uint64) ([]model.Booking, error)
}

func (f *fakeBookings) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return f.getByID(ctx, id)
}
func (f *fakeBookings) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return f.listByUser(ctx, userID)
}

type fakePayments struct{ p *model.Payment }

func (f fakePayments) GetByBooking(context.Context, uint64) (*model.Payment, error) {
	if f.p == nil {
		return nil, repository.ErrNotFound
	}
	return f.p, nil
}

type fakeCancellations struct{ c *model.Cancellation }

func (f fakeCancellations) GetByBooking(context.Context, uint64) (*model.Cancellation, error) {
	if f.c == nil {
		return nil, repository.ErrNotFound
	}
	return f.c, nil
}

// fakeLedger answers ErrInternal for every operation a test leaves unset.
type fakeLedger struct {
	createBooking      func(ctx context.Context, p ledger.CreateBookingParams) (*ledger.BookingResult, error)
	cancelBooking      func(ctx context.Context, p ledger.CancelBookingParams) (*ledger.CancellationResult, error)
	deleteEvent        func(ctx context.Context, id uint64) (*ledger.CascadeSummary, error)
	deleteEventByName  func(ctx context.Context, name string) (*ledger.CascadeSummary, error)
	deleteUser         func(ctx context.Context, id uint64) (*ledger.CascadeSummary, error)
	deleteBooking      func(ctx context.Context, id uint64) (*ledger.CascadeSummary, error)
	deletePayment      func(ctx context.Context, id uint64) error
	deleteCancellation func(ctx context.Context, id uint64) error
	audit              func(ctx context.Context, id uint64) (*ledger.AuditReport, error)
	repair             func(ctx context.Context, id uint64) (*ledger.AuditReport, error)
}

func (f *fakeLedger) CreateBooking(ctx context.Context, p ledger.CreateBookingParams) (*ledger.BookingResult, error) {
	if f.createBooking == nil {
		return nil, ledger.ErrInternal
	}
	return f.createBooking(ctx, p)
}
func (f *fakeLedger) CancelBooking(ctx context.Context, p ledger.CancelBookingParams) (*ledger.CancellationResult, error) {
	if f.cancelBooking == nil {
		return nil, ledger.ErrInternal
	}
	return f.cancelBooking(ctx, p)
}
func (f *fakeLedger) DeleteEvent(ctx context.Context, id uint64) (*ledger.CascadeSummary, error) {
	if f.deleteEvent == nil {
		return nil, ledger.ErrInternal
	}
	return f.deleteEvent(ctx, id)
}
func (f *fakeLedger) DeleteEventByName(ctx context.Context, name string) (*ledger.CascadeSummary, error) {
	if f.deleteEventByName == nil {
		return nil, ledger.ErrInternal
	}
	return f.deleteEventByName(ctx, name)
}
func (f *fakeLedger) DeleteUser(ctx context.Context, id uint64) (*ledger.CascadeSummary, error) {
	if f.deleteUser == nil {
		return nil, ledger.ErrInternal
	}
	return f.deleteUser(ctx, id)
}
func (f *fakeLedger) DeleteBooking(ctx context.Context, id uint64) (*ledger.CascadeSummary, error) {
	if f.deleteBooking == nil {
		return nil, ledger.ErrInternal
	}
	return f.deleteBooking(ctx, id)
}
func (f *fakeLedger) DeletePayment(ctx context.Context, id uint64) error {
	if f.deletePayment == nil {
		return ledger.ErrInternal
	}
	return f.deletePayment(ctx, id)
}
func (f *fakeLedger) DeleteCancellation(ctx context.Context, id uint64) error {
	if f.deleteCancellation == nil {
		return ledger.ErrInternal
	}
	return f.deleteCancellation(ctx, id)
}
func (f *fakeLedger) Audit(ctx context.Context, id uint64) (*ledger.AuditReport, error) {
	if f.audit == nil {
		return nil, ledger.ErrInternal
	}
	return f.audit(ctx, id)
}
func (f *fakeLedger) Repair(ctx context.Context, id uint64) (*ledger.AuditReport, error) {
	if f.repair == nil {
		return nil, ledger.ErrInternal
	}
	return f.repair(ctx, id)
}
