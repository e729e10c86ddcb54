// Package freight orchestrates the freight documents: booking orders, shipping
// orders and loading operations. Every mutating operation takes document locks,
// runs in one store transaction and fires the billing steps explicitly after
// the state transition it belongs to.
package freight

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/freight_backend/billing"
	"github.com/mmdatafocus/freight_backend/config"
	"github.com/mmdatafocus/freight_backend/ledger"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/storage"
	"github.com/mmdatafocus/freight_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Service struct {
	store     storage.Store
	accounts  billing.ServiceFactory
	locker    utils.DocumentLocker
	settings  config.FreightSettings
	logger    *logrus.Logger
	tracer    trace.Tracer
	now       func() time.Time
	deferLogs bool
}

type Option func(*Service)

// WithAccounting replaces the local books with another accounting service.
func WithAccounting(factory billing.ServiceFactory) Option {
	return func(s *Service) { s.accounts = factory }
}

func WithLocker(locker utils.DocumentLocker) Option {
	return func(s *Service) { s.locker = locker }
}

func WithSettings(settings config.FreightSettings) Option {
	return func(s *Service) { s.settings = settings }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDeferredOperationLogs queues the shipping log of submitted loading operations to the worker.
func WithDeferredOperationLogs(deferred bool) Option {
	return func(s *Service) { s.deferLogs = deferred }
}

func NewService(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		accounts:  billing.BooksFactory,
		locker:    utils.NewLocalLocker(),
		settings:  config.GetFreightSettings(),
		logger:    config.GetLogger(),
		tracer:    otel.Tracer("freight"),
		now:       time.Now,
		deferLogs: config.DeferOperationLogs(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// txScope is what one orchestrator operation works with inside its transaction.
type txScope struct {
	store  storage.Store
	ledger *ledger.Ledger
	bridge *billing.Bridge
}

// run executes fn under document locks in one transaction. Invoices created by
// a non-transactional accounting service are cancelled when fn fails.
func (s *Service) run(ctx context.Context, op string, lockKeys []string, fn func(ctx context.Context, tx txScope) error) error {
	ctx, span := s.tracer.Start(ctx, "freight."+op)
	defer span.End()

	if len(lockKeys) > 0 {
		release, err := s.locker.Lock(ctx, lockKeys...)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		defer release()
	}

	var created []int
	err := s.store.RunInTx(ctx, func(store storage.Store) error {
		scope := txScope{
			store:  store,
			ledger: ledger.New(store),
			bridge: billing.NewBridge(store, s.accounts(store), s.settings),
		}
		err := fn(ctx, scope)
		created = scope.bridge.Created()
		return err
	})
	if err == nil {
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if !isDomainError(err) {
		config.LogError(s.logger, "freight", op, "transaction rolled back", nil, err)
	}
	if len(created) > 0 {
		if cerr := billing.Compensate(ctx, s.accounts(s.store), created); cerr != nil {
			config.LogError(s.logger, "freight", op, "compensate invoices", created, cerr)
		}
	}
	return err
}

// read runs fn against the store without locks or a transaction.
func (s *Service) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "freight."+op)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (s *Service) logInfo(op string, fields logrus.Fields, msg string) {
	fields["field"] = op
	s.logger.WithFields(fields).Info(msg)
}

// Ledger exposes read access to the freight ledger.
func (s *Service) Ledger() *ledger.Ledger {
	return ledger.New(s.store)
}

func isDomainError(err error) bool {
	return errors.Is(err, models.ErrValidation) ||
		errors.Is(err, models.ErrConflict) ||
		errors.Is(err, models.ErrQuantityExceeded) ||
		errors.Is(err, models.ErrInvalidConversion) ||
		errors.Is(err, models.ErrNotFound)
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}

func stationKey(id int) string {
	return utils.LockKey("Station", id)
}

func shippingOrderKey(id int) string {
	return utils.LockKey(models.DocTypeShippingOrder, id)
}

func bookingOrderKey(id int) string {
	return utils.LockKey(models.DocTypeBookingOrder, id)
}

func vehicleKey(id int) string {
	return utils.LockKey("Vehicle", id)
}

func postingTime(at *time.Time, now func() time.Time) time.Time {
	if at != nil && !at.IsZero() {
		return *at
	}
	return now()
}
