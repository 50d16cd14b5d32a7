package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Eursukkul/booking-microservice/carpool-service/config"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/audit"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/auth"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/idempotency"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/notify"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/publicid"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/repository"
	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
	"gorm.io/gorm"
)

// --- In-memory unit of work ---

// memState is the committed content of the fake database.
type memState struct {
	seq        uint
	routes     map[uint]models.Route
	stops      map[uint]models.Stop
	bookings   map[uint]models.Booking
	payments   map[uint]models.Payment
	payouts    map[uint]models.Payout
	drivers    map[uint]models.DriverProfile
	vehicles   map[uint]models.Vehicle
	passengers map[uint]models.PassengerProfile
}

func newMemState() *memState {
	return &memState{
		routes:     map[uint]models.Route{},
		stops:      map[uint]models.Stop{},
		bookings:   map[uint]models.Booking{},
		payments:   map[uint]models.Payment{},
		payouts:    map[uint]models.Payout{},
		drivers:    map[uint]models.DriverProfile{},
		vehicles:   map[uint]models.Vehicle{},
		passengers: map[uint]models.PassengerProfile{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memState) clone() *memState {
	return &memState{
		seq:        s.seq,
		routes:     cloneMap(s.routes),
		stops:      cloneMap(s.stops),
		bookings:   cloneMap(s.bookings),
		payments:   cloneMap(s.payments),
		payouts:    cloneMap(s.payouts),
		drivers:    cloneMap(s.drivers),
		vehicles:   cloneMap(s.vehicles),
		passengers: cloneMap(s.passengers),
	}
}

// memDB is an in-memory unit of work. Transactions are serialized, which
// stands in for the row locks of the real database, and rolled back by
// restoring a snapshot.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   *memState

	// locks records every row lock taken, in order, as "<table>:<id>".
	locks []string
}

func (db *memDB) lockRow(table string, id uint) {
	db.mu.Lock()
	db.locks = append(db.locks, fmt.Sprintf("%s:%d", table, id))
	db.mu.Unlock()
}

func (db *memDB) takeLocks() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := db.locks
	db.locks = nil
	return out
}

var _ repository.UnitOfWork = (*memDB)(nil)

func newMemDB() *memDB {
	return &memDB{st: newMemState()}
}

func (db *memDB) Transaction(ctx context.Context, fn func(tx repository.Repositories) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	snapshot := db.st.clone()
	db.mu.Unlock()

	if err := fn(db); err != nil {
		db.mu.Lock()
		db.st = snapshot
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *memDB) Routes() repository.RouteRepository     { return memRoutes{db} }
func (db *memDB) Bookings() repository.BookingRepository { return memBookings{db} }
func (db *memDB) Payments() repository.PaymentRepository { return memPayments{db} }
func (db *memDB) Payouts() repository.PayoutRepository   { return memPayouts{db} }
func (db *memDB) Profiles() repository.ProfileRepository { return memProfiles{db} }

func (db *memDB) next() uint {
	db.st.seq++
	return db.st.seq
}

// seeding helpers

func (db *memDB) addDriver(p models.DriverProfile) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.st.drivers[p.UserID] = p
}

func (db *memDB) addVehicle(v models.Vehicle) {
	db.mu.Lock()
	defer db.mu.Unlock()
	v.ID = db.next()
	db.st.vehicles[v.ID] = v
}

func (db *memDB) addPassenger(p models.PassengerProfile) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.st.passengers[p.UserID] = p
}

func (db *memDB) addRoute(r models.Route) models.Route {
	db.mu.Lock()
	defer db.mu.Unlock()
	r.ID = db.next()
	if r.ExternalID == "" {
		r.ExternalID = fmt.Sprintf("RTE_SEED%04d", r.ID)
	}
	stops := r.Stops
	r.Stops = nil
	db.st.routes[r.ID] = r
	for _, st := range stops {
		st.ID = db.next()
		st.RouteID = r.ID
		db.st.stops[st.ID] = st
	}
	return r
}

func (db *memDB) addBooking(b models.Booking) models.Booking {
	db.mu.Lock()
	defer db.mu.Unlock()
	b.ID = db.next()
	if b.ExternalID == "" {
		b.ExternalID = fmt.Sprintf("BKG_SEED%04d", b.ID)
	}
	db.st.bookings[b.ID] = b
	return b
}

func (db *memDB) addPayment(p models.Payment) models.Payment {
	db.mu.Lock()
	defer db.mu.Unlock()
	p.ID = db.next()
	db.st.payments[p.ID] = p
	return p
}

func (db *memDB) addPayout(p models.Payout) models.Payout {
	db.mu.Lock()
	defer db.mu.Unlock()
	p.ID = db.next()
	db.st.payouts[p.ID] = p
	return p
}

func (db *memDB) route(id uint) models.Route {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.st.routes[id]
}

func (db *memDB) booking(id uint) models.Booking {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.st.bookings[id]
}

func (db *memDB) payment(id uint) models.Payment {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.st.payments[id]
}

func (db *memDB) payoutsFor(period string) []models.Payout {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.Payout
	for _, p := range db.st.payouts {
		if p.Period == period {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out
}

func (db *memDB) countPayments() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.st.payments)
}

func (db *memDB) stopsOf(routeID uint) []models.Stop {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.stopsLocked(routeID)
}

func (db *memDB) stopsLocked(routeID uint) []models.Stop {
	var out []models.Stop
	for _, st := range db.st.stops {
		if st.RouteID == routeID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

type memRoutes struct{ db *memDB }

func (r memRoutes) Create(ctx context.Context, route *models.Route) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	route.ID = r.db.next()
	for i := range route.Stops {
		route.Stops[i].ID = r.db.next()
		route.Stops[i].RouteID = route.ID
		r.db.st.stops[route.Stops[i].ID] = route.Stops[i]
	}
	row := *route
	row.Stops = nil
	r.db.st.routes[route.ID] = row
	return nil
}

func (r memRoutes) FindByID(ctx context.Context, id uint) (*models.Route, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	route, ok := r.db.st.routes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	route.Stops = r.db.stopsLocked(id)
	return &route, nil
}

func (r memRoutes) FindByExternalID(ctx context.Context, externalID string) (*models.Route, error) {
	r.db.mu.Lock()
	var id uint
	for _, route := range r.db.st.routes {
		if route.ExternalID == externalID {
			id = route.ID
		}
	}
	r.db.mu.Unlock()
	if id == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindByID(ctx, id)
}

func (r memRoutes) FindByIDForUpdate(ctx context.Context, id uint) (*models.Route, error) {
	r.db.lockRow("route", id)
	route, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	route.Stops = nil
	return route, nil
}

func (r memRoutes) ListByDriver(ctx context.Context, driverID uint) ([]models.Route, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Route
	for _, route := range r.db.st.routes {
		if route.OwnedBy(driverID) {
			out = append(out, route)
		}
	}
	return out, nil
}

func (r memRoutes) ListActiveDepartedBefore(ctx context.Context, before time.Time) ([]models.Route, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Route
	for _, route := range r.db.st.routes {
		if route.State == models.RouteActive && route.DepartureAt.Before(before) {
			out = append(out, route)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memRoutes) Update(ctx context.Context, route *models.Route) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row := *route
	row.Stops = nil
	r.db.st.routes[route.ID] = row
	return nil
}

func (r memRoutes) DecrementSeat(ctx context.Context, id uint) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	route, ok := r.db.st.routes[id]
	if !ok || route.State != models.RouteActive || route.SeatsAvailable <= 0 {
		return repository.ErrNoRowsAffected
	}
	route.SeatsAvailable--
	r.db.st.routes[id] = route
	return nil
}

func (r memRoutes) IncrementSeat(ctx context.Context, id uint) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	route, ok := r.db.st.routes[id]
	if !ok || route.SeatsAvailable >= route.SeatsTotal {
		return repository.ErrNoRowsAffected
	}
	route.SeatsAvailable++
	r.db.st.routes[id] = route
	return nil
}

func (r memRoutes) ListStops(ctx context.Context, routeID uint) ([]models.Stop, error) {
	return r.db.stopsOf(routeID), nil
}

func (r memRoutes) ShiftStops(ctx context.Context, routeID uint, fromOrder int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, st := range r.db.st.stops {
		if st.RouteID == routeID && st.Order >= fromOrder {
			st.Order++
			r.db.st.stops[id] = st
		}
	}
	return nil
}

func (r memRoutes) CreateStop(ctx context.Context, stop *models.Stop) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stop.ID = r.db.next()
	r.db.st.stops[stop.ID] = *stop
	return nil
}

func (r memRoutes) ExternalIDExists(ctx context.Context, externalID string) (bool, error) {
	_, err := r.FindByExternalID(ctx, externalID)
	return err == nil, nil
}

type memBookings struct{ db *memDB }

func (r memBookings) Create(ctx context.Context, b *models.Booking) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, other := range r.db.st.bookings {
		if other.RouteID == b.RouteID && other.PassengerID == b.PassengerID {
			return gorm.ErrDuplicatedKey
		}
	}
	b.ID = r.db.next()
	row := *b
	row.Route = nil
	r.db.st.bookings[b.ID] = row
	return nil
}

func (r memBookings) withRoute(b models.Booking) *models.Booking {
	if route, ok := r.db.st.routes[b.RouteID]; ok {
		b.Route = &route
	}
	return &b
}

func (r memBookings) FindByID(ctx context.Context, id uint) (*models.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b, ok := r.db.st.bookings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.withRoute(b), nil
}

func (r memBookings) FindByExternalID(ctx context.Context, externalID string) (*models.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, b := range r.db.st.bookings {
		if b.ExternalID == externalID {
			return r.withRoute(b), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memBookings) FindByIDForUpdate(ctx context.Context, id uint) (*models.Booking, error) {
	r.db.lockRow("booking", id)
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b, ok := r.db.st.bookings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &b, nil
}

func (r memBookings) FindByRouteAndPassenger(ctx context.Context, routeID, passengerID uint) (*models.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, b := range r.db.st.bookings {
		if b.RouteID == routeID && b.PassengerID == passengerID {
			return &b, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memBookings) ListByRoute(ctx context.Context, routeID uint, states ...models.BookingState) ([]models.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Booking
	for _, b := range r.db.st.bookings {
		if b.RouteID != routeID {
			continue
		}
		if len(states) > 0 {
			match := false
			for _, s := range states {
				match = match || b.State == s
			}
			if !match {
				continue
			}
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memBookings) CountOutstanding(ctx context.Context, routeID uint) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, b := range r.db.st.bookings {
		if b.RouteID != routeID {
			continue
		}
		if b.State == models.BookingConfirmed || (b.State == models.BookingCancelled && b.CancelledAt == nil) {
			n++
		}
	}
	return n, nil
}

func (r memBookings) HasCashDebt(ctx context.Context, passengerID uint) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, b := range r.db.st.bookings {
		if b.PassengerID == passengerID && b.PaymentMethod == models.MethodCash && b.DebtOutstanding {
			return true, nil
		}
	}
	return false, nil
}

func (r memBookings) Update(ctx context.Context, b *models.Booking) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row := *b
	row.Route = nil
	r.db.st.bookings[b.ID] = row
	return nil
}

func (r memBookings) ExternalIDExists(ctx context.Context, externalID string) (bool, error) {
	_, err := r.FindByExternalID(ctx, externalID)
	return err == nil, nil
}

type memPayments struct{ db *memDB }

func (r memPayments) Create(ctx context.Context, p *models.Payment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, other := range r.db.st.payments {
		if other.BookingID == p.BookingID {
			return gorm.ErrDuplicatedKey
		}
	}
	p.ID = r.db.next()
	row := *p
	row.Booking = nil
	r.db.st.payments[p.ID] = row
	return nil
}

func (r memPayments) withBooking(p models.Payment) *models.Payment {
	if b, ok := r.db.st.bookings[p.BookingID]; ok {
		if route, ok := r.db.st.routes[b.RouteID]; ok {
			b.Route = &route
		}
		p.Booking = &b
	}
	return &p
}

func (r memPayments) FindByID(ctx context.Context, id uint) (*models.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.st.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.withBooking(p), nil
}

func (r memPayments) FindByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.st.payments {
		if p.ExternalID == externalID {
			return r.withBooking(p), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memPayments) FindByIDForUpdate(ctx context.Context, id uint) (*models.Payment, error) {
	r.db.lockRow("payment", id)
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.st.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r memPayments) FindByBookingID(ctx context.Context, bookingID uint) (*models.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.st.payments {
		if p.BookingID == bookingID {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memPayments) Update(ctx context.Context, p *models.Payment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row := *p
	row.Booking = nil
	r.db.st.payments[p.ID] = row
	return nil
}

// unclaimedLocked applies the same filter as the SQL join.
func (r memPayments) unclaimedLocked(from, to time.Time) map[uint][]models.Payment {
	out := map[uint][]models.Payment{}
	for _, p := range r.db.st.payments {
		if p.Status != models.PaymentPaid || p.PayoutID != nil || p.PaidAt == nil {
			continue
		}
		if p.PaidAt.Before(from) || !p.PaidAt.Before(to) {
			continue
		}
		b, ok := r.db.st.bookings[p.BookingID]
		if !ok {
			continue
		}
		route, ok := r.db.st.routes[b.RouteID]
		if !ok || route.DriverID == nil {
			continue
		}
		out[*route.DriverID] = append(out[*route.DriverID], p)
	}
	return out
}

func (r memPayments) ListUnclaimedDriverIDs(ctx context.Context, from, to time.Time) ([]uint, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var ids []uint
	for id := range r.unclaimedLocked(from, to) {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r memPayments) LockUnclaimedForDriver(ctx context.Context, driverID uint, from, to time.Time) ([]models.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := r.unclaimedLocked(from, to)[driverID]
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memPayments) Claim(ctx context.Context, paymentIDs []uint, payoutID uint) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, id := range paymentIDs {
		p, ok := r.db.st.payments[id]
		if !ok || p.PayoutID != nil {
			return repository.ErrNoRowsAffected
		}
		p.PayoutID = &payoutID
		r.db.st.payments[id] = p
	}
	return nil
}

func (r memPayments) ExternalIDExists(ctx context.Context, externalID string) (bool, error) {
	_, err := r.FindByExternalID(ctx, externalID)
	return err == nil, nil
}

type memPayouts struct{ db *memDB }

func (r memPayouts) Create(ctx context.Context, p *models.Payout) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, other := range r.db.st.payouts {
		if other.DriverID == p.DriverID && other.Period == p.Period {
			return gorm.ErrDuplicatedKey
		}
	}
	p.ID = r.db.next()
	r.db.st.payouts[p.ID] = *p
	return nil
}

func (r memPayouts) FindByID(ctx context.Context, id uint) (*models.Payout, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.st.payouts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r memPayouts) FindByExternalID(ctx context.Context, externalID string) (*models.Payout, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.st.payouts {
		if p.ExternalID == externalID {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memPayouts) FindByIDForUpdate(ctx context.Context, id uint) (*models.Payout, error) {
	return r.FindByID(ctx, id)
}

func (r memPayouts) FindByDriverAndPeriodForUpdate(ctx context.Context, driverID uint, period string) (*models.Payout, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.st.payouts {
		if p.DriverID == driverID && p.Period == period {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memPayouts) ListByPeriod(ctx context.Context, period string) ([]models.Payout, error) {
	return r.db.payoutsFor(period), nil
}

func (r memPayouts) ListByDriver(ctx context.Context, driverID uint) ([]models.Payout, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Payout
	for _, p := range r.db.st.payouts {
		if p.DriverID == driverID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memPayouts) Update(ctx context.Context, p *models.Payout) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.st.payouts[p.ID] = *p
	return nil
}

func (r memPayouts) ExternalIDExists(ctx context.Context, externalID string) (bool, error) {
	_, err := r.FindByExternalID(ctx, externalID)
	return err == nil, nil
}

type memProfiles struct{ db *memDB }

func (r memProfiles) FindDriver(ctx context.Context, userID uint) (*models.DriverProfile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.st.drivers[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r memProfiles) FindActiveVehicle(ctx context.Context, driverID uint) (*models.Vehicle, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var best *models.Vehicle
	for _, v := range r.db.st.vehicles {
		if v.DriverID == driverID && v.Active && (best == nil || v.Seats > best.Seats) {
			v := v
			best = &v
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return best, nil
}

func (r memProfiles) FindPassenger(ctx context.Context, userID uint) (*models.PassengerProfile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.st.passengers[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

// --- Mock collaborators ---

type mockGateway struct {
	mu sync.Mutex

	createOrderFn  func(ctx context.Context, ref string, amount float64, currency string) (*gateway.Order, error)
	captureOrderFn func(ctx context.Context, orderID string) (*gateway.Capture, error)
	refundFn       func(ctx context.Context, captureID string, amount float64, currency string) (*gateway.Refund, error)
	createPayoutFn func(ctx context.Context, item gateway.PayoutItem) (*gateway.PayoutBatch, error)

	captures int
	refunds  int
	payouts  int
}

func (m *mockGateway) CreateOrder(ctx context.Context, ref string, amount float64, currency string) (*gateway.Order, error) {
	if m.createOrderFn != nil {
		return m.createOrderFn(ctx, ref, amount, currency)
	}
	return &gateway.Order{ID: "ORDER-" + ref, Status: "CREATED", ApprovalURL: "https://paypal.test/approve"}, nil
}

func (m *mockGateway) CaptureOrder(ctx context.Context, orderID string) (*gateway.Capture, error) {
	m.mu.Lock()
	m.captures++
	m.mu.Unlock()
	if m.captureOrderFn != nil {
		return m.captureOrderFn(ctx, orderID)
	}
	return &gateway.Capture{OrderID: orderID, OrderStatus: "COMPLETED", CaptureID: "CAP-" + orderID, CaptureStatus: "COMPLETED"}, nil
}

func (m *mockGateway) RefundCapture(ctx context.Context, captureID string, amount float64, currency string) (*gateway.Refund, error) {
	m.mu.Lock()
	m.refunds++
	m.mu.Unlock()
	if m.refundFn != nil {
		return m.refundFn(ctx, captureID, amount, currency)
	}
	return &gateway.Refund{ID: "REF-" + captureID, Status: "COMPLETED"}, nil
}

func (m *mockGateway) CreatePayout(ctx context.Context, item gateway.PayoutItem) (*gateway.PayoutBatch, error) {
	m.mu.Lock()
	m.payouts++
	m.mu.Unlock()
	if m.createPayoutFn != nil {
		return m.createPayoutFn(ctx, item)
	}
	return &gateway.PayoutBatch{BatchID: "BATCH-" + item.SenderItemID, Status: gateway.BatchSuccess}, nil
}

type captureAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *captureAudit) LogEvent(ctx context.Context, e audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *captureAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Action)
	}
	return out
}

func (a *captureAudit) last(action string) (audit.Event, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.events) - 1; i >= 0; i-- {
		if a.events[i].Action == action {
			return a.events[i], true
		}
	}
	return audit.Event{}, false
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (n *captureNotifier) Send(ctx context.Context, m notify.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, m)
}

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// engine wires the four services over the in-memory store.
type engine struct {
	db       *memDB
	gw       *mockGateway
	audit    *captureAudit
	notifier *captureNotifier
	clock    *fixedClock
	policy   config.Policy

	routes   RouteService
	bookings BookingService
	payments PaymentService
	payouts  PayoutService
}

var baseTime = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

func newEngine() *engine {
	e := &engine{
		db:       newMemDB(),
		gw:       &mockGateway{},
		audit:    &captureAudit{},
		notifier: &captureNotifier{},
		clock:    &fixedClock{t: baseTime},
		policy:   config.DefaultPolicy(),
	}
	log := logger.NewNop()
	ids := publicid.NewAllocator()
	guard := idempotency.NewGuard(idempotency.NewMemoryStore(e.clock.Now), e.policy.IdempotencyTTL, log)

	e.payments = NewPaymentService(e.db, e.gw, guard, ids, e.audit, e.policy, log, e.clock.Now)
	e.routes = NewRouteService(e.db, e.payments, ids, e.audit, e.notifier, e.policy, log, e.clock.Now)
	e.bookings = NewBookingService(e.db, e.routes, e.payments, ids, e.audit, e.notifier, e.policy, log, e.clock.Now)
	e.payouts = NewPayoutService(e.db, e.gw, guard, ids, e.audit, e.notifier, e.policy, log, e.clock.Now)
	return e
}

// --- Fixtures ---

var (
	driverP    = auth.Principal{ID: 100, Role: auth.RoleDriver, IsVerified: true}
	passengerA = auth.Principal{ID: 200, Role: auth.RolePassenger, IsVerified: true}
	passengerB = auth.Principal{ID: 201, Role: auth.RolePassenger, IsVerified: true}
	passengerC = auth.Principal{ID: 202, Role: auth.RolePassenger, IsVerified: true}
	adminP     = auth.Principal{ID: 1, Role: auth.RoleAdmin, IsVerified: true}
)

// seedPeople adds an approved driver with a four seat vehicle and three
// passengers.
func (e *engine) seedPeople() {
	e.db.addDriver(models.DriverProfile{
		UserID:     driverP.ID,
		Email:      "driver@campus.edu",
		PayeeEmail: "driver.payee@campus.edu",
		Status:     models.DriverApproved,
		Rating:     4.6,
	})
	e.db.addVehicle(models.Vehicle{DriverID: driverP.ID, Plate: "ABC123", Seats: 4, Active: true})
	for i, p := range []auth.Principal{passengerA, passengerB, passengerC} {
		e.db.addPassenger(models.PassengerProfile{
			UserID: p.ID,
			Email:  fmt.Sprintf("passenger%d@campus.edu", i),
			Rating: 4.8,
		})
	}
}

// seedRoute adds an active route of driverP departing a day after baseTime.
func (e *engine) seedRoute(seats int) models.Route {
	driverID := driverP.ID
	return e.db.addRoute(models.Route{
		DriverID:       &driverID,
		OriginCampus:   "North Campus",
		Destination:    "Downtown",
		DepartureAt:    baseTime.Add(24 * time.Hour),
		SeatsTotal:     seats,
		SeatsAvailable: seats,
		PricePerSeat:   12.5,
		State:          models.RouteActive,
		Stops: []models.Stop{
			{Lat: 4.6097, Lng: -74.0817, Address: "North Campus", Order: 1},
			{Lat: 4.6486, Lng: -74.0628, Address: "Downtown", Order: 2},
		},
	})
}

// seedBooking adds a CONFIRMED booking and takes one seat from the route.
func (e *engine) seedBooking(route models.Route, passengerID uint, method models.PaymentMethod) models.Booking {
	e.db.mu.Lock()
	r := e.db.st.routes[route.ID]
	r.SeatsAvailable--
	e.db.st.routes[route.ID] = r
	e.db.mu.Unlock()

	return e.db.addBooking(models.Booking{
		RouteID:       route.ID,
		PassengerID:   passengerID,
		State:         models.BookingConfirmed,
		OTP:           "123456",
		PaymentMethod: method,
	})
}

func (e *engine) seedPayment(b models.Booking, status models.PaymentStatus, amount float64, paidAt *time.Time, captureID string) models.Payment {
	p := models.Payment{
		ExternalID: fmt.Sprintf("PAY_SEED%04d", b.ID),
		BookingID:  b.ID,
		Amount:     amount,
		Currency:   "USD",
		Method:     b.PaymentMethod,
		Status:     status,
		PaidAt:     paidAt,
	}
	if captureID != "" {
		p.GatewayCaptureID = &captureID
	}
	return e.db.addPayment(p)
}
