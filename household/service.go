// Package household is the facade over users, categories, events and the
// ledger. Handlers and commands go through a Service instead of reaching
// into the stores directly.
package household

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/billbatista/acasinha-chores/apperr"
	"github.com/billbatista/acasinha-chores/category"
	"github.com/billbatista/acasinha-chores/event"
	"github.com/billbatista/acasinha-chores/item"
	"github.com/billbatista/acasinha-chores/ledger"
	"github.com/billbatista/acasinha-chores/metrics"
	"github.com/billbatista/acasinha-chores/rotation"
	"github.com/billbatista/acasinha-chores/user"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultCleaningTask = "Room Cleaning"
	DefaultTrashTask    = "Trash"
	DefaultRecentLimit  = 20
)

var (
	ErrUnknownUser     = apperr.Validation("unknown user")
	ErrUnknownCategory = apperr.Validation("unknown category")
	ErrUnknownItem     = apperr.Validation("unknown item")
	ErrUserNotFound    = apperr.NotFound("user not found")
	ErrNoCategory      = apperr.NotFound("category not found")
)

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	List(ctx context.Context) ([]user.User, error)
}

type CategoryStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*category.Category, error)
	GetByName(ctx context.Context, name string) (*category.Category, error)
	FindByKind(ctx context.Context, kind category.Kind) (*category.Category, error)
}

type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*event.Event, error)
	Recent(ctx context.Context, limit int) ([]event.Event, error)
	ListByCategory(ctx context.Context, categoryID uuid.UUID, limit int) ([]event.Event, error)
	Latest(ctx context.Context, categoryID uuid.UUID) (*event.Event, error)
	HasUserEntrySince(ctx context.Context, userID, categoryID uuid.UUID, since time.Time) (bool, error)
}

type LedgerStore interface {
	SaveExpense(ctx context.Context, evt event.Event, stock *item.Stock, entries []ledger.Entry) error
	Record(ctx context.Context, entry ledger.Entry) error
	List(ctx context.Context) ([]ledger.Entry, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]ledger.Entry, error)
}

type ItemStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*item.Item, error)
}

// Stores groups the persistence the Service reads and writes.
type Stores struct {
	Users      UserStore
	Categories CategoryStore
	Events     EventStore
	Ledger     LedgerStore
	Items      ItemStore
}

type Service struct {
	stores Stores

	now          func() time.Time
	location     *time.Location
	rounding     ledger.Rounding
	rotation     rotation.Config
	cleaningTask string
	trashTask    string
	metrics      *metrics.Metrics
	tracer       trace.Tracer
}

type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the timezone rotation boundaries are computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithRounding(r ledger.Rounding) Option {
	return func(s *Service) { s.rounding = r }
}

func WithRotation(cfg rotation.Config) Option {
	return func(s *Service) { s.rotation = cfg }
}

// WithTaskNames sets the category names of the cleaning rotation and the
// trash task, used when no category carries the matching kind.
func WithTaskNames(cleaning, trash string) Option {
	return func(s *Service) {
		if cleaning != "" {
			s.cleaningTask = cleaning
		}
		if trash != "" {
			s.trashTask = trash
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func New(stores Stores, opts ...Option) *Service {
	s := &Service{
		stores:       stores,
		now:          time.Now,
		location:     time.Local,
		rounding:     ledger.RoundHalfEven,
		rotation:     rotation.DefaultConfig(),
		cleaningTask: DefaultCleaningTask,
		trashTask:    DefaultTrashTask,
		tracer:       otel.Tracer("github.com/billbatista/acasinha-chores/household"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().In(s.location)
}

// ExpenseInput describes an event to record. A nil Cost records a plain
// event; otherwise Cost is split between Participants (everyone when
// empty) and the payer.
type ExpenseInput struct {
	PayerID      uuid.UUID
	CategoryID   uuid.UUID
	Cost         *int64
	Participants []uuid.UUID
	Notes        string
	Stock        *StockInput
}

// StockInput attaches a stock reading to the event.
type StockInput struct {
	ItemID uuid.UUID
	Level  int
}

// ExpenseResult is what RecordExpenseEvent wrote.
type ExpenseResult struct {
	Event   event.Event    `json:"event"`
	Entries []ledger.Entry `json:"entries"`
	Stock   *item.Stock    `json:"stock,omitempty"`
}

// RecordExpenseEvent validates in, splits its cost if any and stores the
// event, its stock reading and its ledger entries together.
func (s *Service) RecordExpenseEvent(ctx context.Context, in ExpenseInput) (*ExpenseResult, error) {
	ctx, span := s.tracer.Start(ctx, "household.RecordExpenseEvent")
	defer span.End()

	res, err := s.recordExpenseEvent(ctx, in)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("event.id", res.Event.ID.String()),
		attribute.Int("ledger.entries", len(res.Entries)),
	)
	return res, nil
}

func (s *Service) recordExpenseEvent(ctx context.Context, in ExpenseInput) (*ExpenseResult, error) {
	payer, err := s.stores.Users.GetByID(ctx, in.PayerID)
	if err != nil {
		return nil, err
	}
	if payer == nil {
		return nil, ErrUnknownUser
	}

	c, err := s.stores.Categories.GetByID(ctx, in.CategoryID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrUnknownCategory
	}

	now := s.clock()
	evt := event.New(payer.ID, c.ID, strings.TrimSpace(in.Notes), now)

	var entries []ledger.Entry
	if in.Cost != nil {
		users, err := s.stores.Users.List(ctx)
		if err != nil {
			return nil, err
		}
		known := make(map[uuid.UUID]bool, len(users))
		for _, u := range users {
			known[u.ID] = true
		}
		for _, id := range in.Participants {
			if !known[id] {
				return nil, apperr.Validation(fmt.Sprintf("unknown participant %s", id))
			}
		}

		shares, err := ledger.Split(*in.Cost, payer.ID, in.Participants, user.IDs(users), s.rounding)
		if err != nil {
			return nil, err
		}
		entries = ledger.ExpenseEntries(evt.ID, payer.ID, shares, now)
	}

	var stock *item.Stock
	if in.Stock != nil {
		it, err := s.stores.Items.GetByID(ctx, in.Stock.ItemID)
		if err != nil {
			return nil, err
		}
		if it == nil {
			return nil, ErrUnknownItem
		}
		reading, err := item.NewStock(it.ID, in.Stock.Level, now)
		if err != nil {
			return nil, err
		}
		stock = &reading
		evt.StockID = uuid.NullUUID{UUID: reading.ID, Valid: true}
	}

	if err := s.stores.Ledger.SaveExpense(ctx, evt, stock, entries); err != nil {
		return nil, fmt.Errorf("saving event: %w", err)
	}

	evt.UserName = payer.Name
	evt.CategoryName = c.Name

	s.metrics.EventRecorded(string(c.Kind))
	if len(entries) > 0 {
		var total int64
		for _, e := range entries {
			total += e.Amount
		}
		s.metrics.ExpenseRecorded(total)
	}

	return &ExpenseResult{Event: evt, Entries: entries, Stock: stock}, nil
}

// RecordSettlement records that payer handed amount to beneficiary.
func (s *Service) RecordSettlement(ctx context.Context, payerID, beneficiaryID uuid.UUID, amount int64) (*ledger.Entry, error) {
	ctx, span := s.tracer.Start(ctx, "household.RecordSettlement")
	defer span.End()

	entry, err := s.recordSettlement(ctx, payerID, beneficiaryID, amount)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	return entry, nil
}

func (s *Service) recordSettlement(ctx context.Context, payerID, beneficiaryID uuid.UUID, amount int64) (*ledger.Entry, error) {
	entry, err := ledger.NewSettlement(payerID, beneficiaryID, amount, s.clock())
	if err != nil {
		return nil, err
	}

	for _, id := range []uuid.UUID{payerID, beneficiaryID} {
		u, err := s.stores.Users.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, ErrUnknownUser
		}
	}

	if err := s.stores.Ledger.Record(ctx, entry); err != nil {
		return nil, fmt.Errorf("saving settlement: %w", err)
	}
	s.metrics.SettlementRecorded()
	return &entry, nil
}

func (s *Service) book(ctx context.Context) (*ledger.Book, error) {
	entries, err := s.stores.Ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.NewBook(entries), nil
}

// Balance returns the net balance of one user.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "household.Balance")
	defer span.End()

	u, err := s.stores.Users.GetByID(ctx, userID)
	if err != nil {
		failSpan(span, err)
		return 0, err
	}
	if u == nil {
		failSpan(span, ErrUserNotFound)
		return 0, ErrUserNotFound
	}

	book, err := s.book(ctx)
	if err != nil {
		failSpan(span, err)
		return 0, err
	}
	return book.Balance(userID), nil
}

// UserBalance is one row of the balance board.
type UserBalance struct {
	UserID   uuid.UUID       `json:"user_id"`
	UserName string          `json:"user_name"`
	Balance  int64           `json:"balance"`
	Standing ledger.Standing `json:"standing"`
}

// Balances returns every user's balance, alphabetically by name.
func (s *Service) Balances(ctx context.Context) ([]UserBalance, error) {
	ctx, span := s.tracer.Start(ctx, "household.Balances")
	defer span.End()

	users, err := s.stores.Users.List(ctx)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	book, err := s.book(ctx)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	balances := book.Balances(user.IDs(users))
	board := make([]UserBalance, 0, len(users))
	for _, u := range users {
		b := balances[u.ID]
		board = append(board, UserBalance{
			UserID:   u.ID,
			UserName: u.Name,
			Balance:  b,
			Standing: ledger.StandingOf(b),
		})
	}
	return board, nil
}

// Entries returns the whole ledger, oldest first.
func (s *Service) Entries(ctx context.Context) ([]ledger.Entry, error) {
	return s.stores.Ledger.List(ctx)
}

// RotationSchedule lays out the turns of the named rotating category. An
// empty name means the configured cleaning task.
func (s *Service) RotationSchedule(ctx context.Context, categoryName string, weeks int) ([]rotation.Assignment, error) {
	ctx, span := s.tracer.Start(ctx, "household.RotationSchedule")
	defer span.End()

	var c *category.Category
	var err error
	if strings.TrimSpace(categoryName) == "" {
		c, err = s.taskCategory(ctx, category.KindRotation, s.cleaningTask)
	} else {
		c, err = s.stores.Categories.GetByName(ctx, categoryName)
	}
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	if c == nil {
		failSpan(span, ErrNoCategory)
		return nil, ErrNoCategory
	}

	schedule, err := s.schedule(ctx, c, rotation.ClampWeeks(weeks))
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	return schedule, nil
}

func (s *Service) schedule(ctx context.Context, c *category.Category, weeks int) ([]rotation.Assignment, error) {
	users, err := s.stores.Users.List(ctx)
	if err != nil {
		return nil, err
	}
	members := make([]rotation.Member, 0, len(users))
	for _, u := range users {
		members = append(members, rotation.Member{ID: u.ID, Name: u.Name})
	}

	last, err := s.lastCompletion(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	return s.rotation.Schedule(members, last, s.clock(), weeks), nil
}

func (s *Service) lastCompletion(ctx context.Context, categoryID uuid.UUID) (*rotation.Completion, error) {
	latest, err := s.stores.Events.Latest(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}
	return &rotation.Completion{
		UserID:   latest.UserID,
		UserName: latest.UserName,
		At:       latest.LoggedAt,
	}, nil
}

// TaskBoard is the status of the tracked chores.
type TaskBoard struct {
	Trash    rotation.Status `json:"trash"`
	Cleaning rotation.Status `json:"cleaning"`
}

// TaskStatus reports the trash recency and the cleaning rotation.
func (s *Service) TaskStatus(ctx context.Context) (*TaskBoard, error) {
	ctx, span := s.tracer.Start(ctx, "household.TaskStatus")
	defer span.End()

	trash, err := s.trashStatus(ctx)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	cleaning, err := s.cleaningStatus(ctx)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	return &TaskBoard{Trash: trash, Cleaning: cleaning}, nil
}

func (s *Service) trashStatus(ctx context.Context) (rotation.Status, error) {
	c, err := s.taskCategory(ctx, category.KindRecency, s.trashTask)
	if err != nil {
		return rotation.Status{}, err
	}
	if c == nil {
		return rotation.MissingCategory(s.trashTask, s.trashTask), nil
	}

	last, err := s.lastCompletion(ctx, c.ID)
	if err != nil {
		return rotation.Status{}, err
	}
	return rotation.RecencyStatus(c.Name, last, s.clock()), nil
}

func (s *Service) cleaningStatus(ctx context.Context) (rotation.Status, error) {
	c, err := s.taskCategory(ctx, category.KindRotation, s.cleaningTask)
	if err != nil {
		return rotation.Status{}, err
	}
	if c == nil {
		return rotation.MissingCategory(s.cleaningTask, ""), nil
	}

	schedule, err := s.schedule(ctx, c, 1)
	if err != nil {
		return rotation.Status{}, err
	}

	now := s.clock()
	completed := false
	if len(schedule) > 0 {
		completed, err = s.stores.Events.HasUserEntrySince(ctx, schedule[0].UserID, c.ID, s.rotation.RecentSince(now))
		if err != nil {
			return rotation.Status{}, err
		}
	}
	return rotation.RotationStatus(c.Name, schedule, completed, now), nil
}

// taskCategory finds the category driving a tracked task: the first one of
// kind, else the one named name.
func (s *Service) taskCategory(ctx context.Context, kind category.Kind, name string) (*category.Category, error) {
	c, err := s.stores.Categories.FindByKind(ctx, kind)
	if err != nil || c != nil {
		return c, err
	}
	return s.stores.Categories.GetByName(ctx, name)
}

// EventWithCost is an event along with the sum of its ledger entries.
type EventWithCost struct {
	event.Event
	Cost int64 `json:"cost"`
}

// RecentEvents returns the latest events, newest first.
func (s *Service) RecentEvents(ctx context.Context, limit int) ([]EventWithCost, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	events, err := s.stores.Events.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return s.withCosts(ctx, events)
}

// CategoryEvents returns the latest events of one category, newest first.
func (s *Service) CategoryEvents(ctx context.Context, categoryID uuid.UUID, limit int) ([]EventWithCost, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	c, err := s.stores.Categories.GetByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNoCategory
	}
	events, err := s.stores.Events.ListByCategory(ctx, categoryID, limit)
	if err != nil {
		return nil, err
	}
	return s.withCosts(ctx, events)
}

func (s *Service) withCosts(ctx context.Context, events []event.Event) ([]EventWithCost, error) {
	book, err := s.book(ctx)
	if err != nil {
		return nil, err
	}

	costs := book.EventCosts()
	out := make([]EventWithCost, 0, len(events))
	for _, evt := range events {
		out = append(out, EventWithCost{Event: evt, Cost: costs[evt.ID]})
	}
	return out, nil
}

// Event returns one event with its cost.
func (s *Service) Event(ctx context.Context, id uuid.UUID) (*EventWithCost, error) {
	evt, err := s.stores.Events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if evt == nil {
		return nil, event.ErrNotFound
	}
	entries, err := s.stores.Ledger.ListByEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	return &EventWithCost{Event: *evt, Cost: ledger.NewBook(entries).EventCost(id)}, nil
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
