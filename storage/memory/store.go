// Package memory is an in-process Store used by tests and local tooling.
//
// Documents are stored as private copies; every read returns a fresh copy so
// callers can mutate what they get back without touching stored state.
// Transactions serialize on one mutex and roll back by restoring a snapshot.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/storage"
)

type table[T any] map[int]*T

func (t table[T]) copy() table[T] {
	out := make(table[T], len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

func (t table[T]) sortedIds() []int {
	ids := make([]int, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

type state struct {
	seq               map[string]int
	series            map[string]int
	stations          table[models.Station]
	vehicles          table[models.Vehicle]
	parties           table[models.BookingParty]
	vendors           table[models.ShippingVendor]
	templates         table[models.BookingOrderChargeTemplate]
	bookingOrders     table[models.BookingOrder]
	bookingLogs       table[models.BookingLog]
	shippingOrders    table[models.ShippingOrder]
	shippingLogs      table[models.ShippingLog]
	loadingOps        table[models.LoadingOperation]
	invoices          table[models.Invoice]
	taxes             table[models.TaxTemplate]
	payments          table[models.PaymentEntry]
	accountingParties table[models.AccountingPartyRecord]
	outbox            table[models.PubSubMessageRecord]
}

func newState() *state {
	return &state{
		seq:               make(map[string]int),
		series:            make(map[string]int),
		stations:          make(table[models.Station]),
		vehicles:          make(table[models.Vehicle]),
		parties:           make(table[models.BookingParty]),
		vendors:           make(table[models.ShippingVendor]),
		templates:         make(table[models.BookingOrderChargeTemplate]),
		bookingOrders:     make(table[models.BookingOrder]),
		bookingLogs:       make(table[models.BookingLog]),
		shippingOrders:    make(table[models.ShippingOrder]),
		shippingLogs:      make(table[models.ShippingLog]),
		loadingOps:        make(table[models.LoadingOperation]),
		invoices:          make(table[models.Invoice]),
		taxes:             make(table[models.TaxTemplate]),
		payments:          make(table[models.PaymentEntry]),
		accountingParties: make(table[models.AccountingPartyRecord]),
		outbox:            make(table[models.PubSubMessageRecord]),
	}
}

// snapshot copies the maps; stored documents are never mutated in place so sharing them is safe.
func (st *state) snapshot() *state {
	seq := make(map[string]int, len(st.seq))
	for k, v := range st.seq {
		seq[k] = v
	}
	series := make(map[string]int, len(st.series))
	for k, v := range st.series {
		series[k] = v
	}
	return &state{
		seq:               seq,
		series:            series,
		stations:          st.stations.copy(),
		vehicles:          st.vehicles.copy(),
		parties:           st.parties.copy(),
		vendors:           st.vendors.copy(),
		templates:         st.templates.copy(),
		bookingOrders:     st.bookingOrders.copy(),
		bookingLogs:       st.bookingLogs.copy(),
		shippingOrders:    st.shippingOrders.copy(),
		shippingLogs:      st.shippingLogs.copy(),
		loadingOps:        st.loadingOps.copy(),
		invoices:          st.invoices.copy(),
		taxes:             st.taxes.copy(),
		payments:          st.payments.copy(),
		accountingParties: st.accountingParties.copy(),
		outbox:            st.outbox.copy(),
	}
}

func (st *state) nextId(name string) int {
	st.seq[name]++
	return st.seq[name]
}

type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState()}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx storage.Store) error) error {
	unlock := s.lock()
	defer unlock()

	snap := s.st.snapshot()
	tx := &Store{mu: s.mu, st: s.st, inTx: true}
	if err := fn(tx); err != nil {
		*s.st = *snap
		return err
	}
	return nil
}

func (s *Store) NextName(ctx context.Context, doctype string) (string, error) {
	defer s.lock()()
	s.st.series[doctype]++
	return models.FormatName(models.NamingPrefix(doctype), s.st.series[doctype]), nil
}

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}
