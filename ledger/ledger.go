package ledger

import (
	"time"

	"github.com/billbatista/acasinha-chores/apperr"
	"github.com/google/uuid"
)

// Rounding decides how an expense that doesn't divide evenly is shared.
type Rounding string

const (
	// RoundHalfEven gives every participant round-half-to-even(total/k).
	// The entries may add up to a little more or less than the total (at
	// most k-1 units); that drift is accepted.
	RoundHalfEven Rounding = "half_even"
	// RoundDistribute gives every participant floor(total/k) and hands the
	// remainder out one unit at a time to the first participants, so the
	// entries add up to the total exactly.
	RoundDistribute Rounding = "distribute"
)

// Entry is one directional debt record: payer covered amount for
// beneficiary. A null EventID marks a direct settlement.
type Entry struct {
	ID            uuid.UUID     `json:"id"`
	EventID       uuid.NullUUID `json:"event_id"`
	PayerID       uuid.UUID     `json:"payer_id"`
	BeneficiaryID uuid.UUID     `json:"beneficiary_id"`
	Amount        int64         `json:"amount"` // smallest currency unit
	CreatedAt     time.Time     `json:"created_at"`
}

// IsSettlement reports whether the entry is a direct payment rather than
// part of an event's cost.
func (e Entry) IsSettlement() bool {
	return !e.EventID.Valid
}

// Share is one participant's part of a split expense.
type Share struct {
	BeneficiaryID uuid.UUID `json:"beneficiary_id"`
	Amount        int64     `json:"amount"`
}

var (
	ErrInvalidAmount   = apperr.Validation("amount must be positive")
	ErrNoParticipants  = apperr.Validation("no users to split with")
	ErrShareTooSmall   = apperr.Validation("amount too small to split among participants")
	ErrSelfSettlement  = apperr.Validation("payer and beneficiary must differ")
	ErrUnknownRounding = apperr.Validation("rounding must be half_even or distribute")
)

func ParseRounding(s string) (Rounding, error) {
	switch Rounding(s) {
	case "", RoundHalfEven:
		return RoundHalfEven, nil
	case RoundDistribute:
		return RoundDistribute, nil
	default:
		return "", ErrUnknownRounding
	}
}

// Split divides total among participants on behalf of payer.
//
// An empty participants list means everyone in allUsers shares the cost.
// The payer is always part of the split, appended when missing: the payer
// owes themself a share which cancels out in their balance, leaving only
// what the others owe them as receivable. Duplicate participants are
// dropped and the first-seen order is kept.
func Split(total int64, payer uuid.UUID, participants, allUsers []uuid.UUID, rounding Rounding) ([]Share, error) {
	if total <= 0 {
		return nil, ErrInvalidAmount
	}

	members := participants
	if len(members) == 0 {
		members = allUsers
	}
	if len(members) == 0 {
		return nil, ErrNoParticipants
	}
	members = withPayer(dedupe(members), payer)

	numMembers := int64(len(members))
	baseAmount := total / numMembers
	remainder := total % numMembers

	shares := make([]Share, 0, numMembers)
	switch rounding {
	case RoundHalfEven, "":
		amount := roundHalfEven(baseAmount, remainder, numMembers)
		if amount <= 0 {
			return nil, ErrShareTooSmall
		}
		for _, userID := range members {
			shares = append(shares, Share{BeneficiaryID: userID, Amount: amount})
		}
	case RoundDistribute:
		if baseAmount <= 0 {
			return nil, ErrShareTooSmall
		}
		for i, userID := range members {
			share := baseAmount
			if int64(i) < remainder {
				share++
			}
			shares = append(shares, Share{BeneficiaryID: userID, Amount: share})
		}
	default:
		return nil, ErrUnknownRounding
	}

	return shares, nil
}

// roundHalfEven rounds q + r/k to the nearest integer, ties to even.
func roundHalfEven(q, r, k int64) int64 {
	switch {
	case 2*r > k:
		return q + 1
	case 2*r == k && q%2 != 0:
		return q + 1
	default:
		return q
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func withPayer(ids []uuid.UUID, payer uuid.UUID) []uuid.UUID {
	for _, id := range ids {
		if id == payer {
			return ids
		}
	}
	return append(ids, payer)
}

// ExpenseEntries turns shares into the ledger entries of eventID, all paid
// by payer.
func ExpenseEntries(eventID, payer uuid.UUID, shares []Share, at time.Time) []Entry {
	entries := make([]Entry, 0, len(shares))
	for _, share := range shares {
		entries = append(entries, Entry{
			ID:            uuid.Must(uuid.NewV7()),
			EventID:       uuid.NullUUID{UUID: eventID, Valid: true},
			PayerID:       payer,
			BeneficiaryID: share.BeneficiaryID,
			Amount:        share.Amount,
			CreatedAt:     at.UTC(),
		})
	}
	return entries
}

// NewSettlement records that payer handed amount to beneficiary: the
// payer's balance goes up by amount and the beneficiary's goes down.
func NewSettlement(payer, beneficiary uuid.UUID, amount int64, at time.Time) (Entry, error) {
	if amount <= 0 {
		return Entry{}, ErrInvalidAmount
	}
	if payer == beneficiary {
		return Entry{}, ErrSelfSettlement
	}
	return Entry{
		ID:            uuid.Must(uuid.NewV7()),
		PayerID:       payer,
		BeneficiaryID: beneficiary,
		Amount:        amount,
		CreatedAt:     at.UTC(),
	}, nil
}
