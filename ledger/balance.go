package ledger

import (
	"sync"

	"github.com/google/uuid"
)

// Book nets ledger entries into per-user balances.
//
// A balance is everything the user paid out minus everything paid on their
// behalf. Positive = owed money, negative = owes money.
//
// A Book is safe for concurrent use.
type Book struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewBook(entries []Entry) *Book {
	b := &Book{entries: make([]Entry, 0, len(entries))}
	b.entries = append(b.entries, entries...)
	return b
}

// Record appends e to the book.
func (b *Book) Record(e Entry) error {
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
	return nil
}

// Entries returns a copy of the recorded entries.
func (b *Book) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	copied := make([]Entry, len(b.entries))
	copy(copied, b.entries)
	return copied
}

// Balance computes the net balance of one user.
func (b *Book) Balance(userID uuid.UUID) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var balance int64
	for _, e := range b.entries {
		if e.PayerID == userID {
			balance += e.Amount
		}
		if e.BeneficiaryID == userID {
			balance -= e.Amount
		}
	}
	return balance
}

// Balances computes net balances for every member, plus anyone else that
// shows up in the entries. Each user is netted independently; the balances
// only add up to zero when every split includes its payer.
func (b *Book) Balances(memberIDs []uuid.UUID) map[uuid.UUID]int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	balances := make(map[uuid.UUID]int64, len(memberIDs))

	for _, userID := range memberIDs {
		balances[userID] = 0
	}

	for _, e := range b.entries {
		balances[e.PayerID] += e.Amount
		balances[e.BeneficiaryID] -= e.Amount
	}

	return balances
}

// EventCost sums the entries tied to eventID.
func (b *Book) EventCost(eventID uuid.UUID) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var cost int64
	for _, e := range b.entries {
		if e.EventID.Valid && e.EventID.UUID == eventID {
			cost += e.Amount
		}
	}
	return cost
}

// EventCosts sums entries per event in one pass.
func (b *Book) EventCosts() map[uuid.UUID]int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	costs := make(map[uuid.UUID]int64)
	for _, e := range b.entries {
		if e.EventID.Valid {
			costs[e.EventID.UUID] += e.Amount
		}
	}
	return costs
}
