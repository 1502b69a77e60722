// Package returns bounds return quantities by their source lines.
package returns

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/documents"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
	"github.com/odyssey-erp/bookkeeping/internal/valuation"
)

// SourceLine is a purchase or sale line together with its header state.
type SourceLine struct {
	documents.Line
	TenantID        uuid.UUID
	TransactionType documents.Type
	Status          documents.Status
	CounterpartyID  uuid.UUID
}

// Reader loads lineage data.
type Reader interface {
	SourceLine(ctx context.Context, lineID uuid.UUID) (SourceLine, error)
	// ReturnedQuantity sums quantities of POSTED return lines referencing the source line.
	ReturnedQuantity(ctx context.Context, sourceLineID uuid.UUID) (int64, error)
}

// Bound describes how much of a source line can still be returned.
type Bound struct {
	Source          SourceLine `json:"-"`
	Original        int64      `json:"original"`
	AlreadyReturned int64      `json:"alreadyReturned"`
	Returnable      int64      `json:"returnable"`
}

// Priced is a validated return line with its historical cost basis.
type Priced struct {
	Line     documents.Line
	Source   SourceLine
	UnitCost int64
	Amount   int64
}

// Returnable reports the remaining quantity of a source line.
// Original always equals AlreadyReturned + Returnable.
func Returnable(ctx context.Context, r Reader, sourceLineID uuid.UUID) (Bound, error) {
	src, err := r.SourceLine(ctx, sourceLineID)
	if err != nil {
		return Bound{}, err
	}
	already, err := r.ReturnedQuantity(ctx, sourceLineID)
	if err != nil {
		return Bound{}, fmt.Errorf("returns: returned quantity: %w", err)
	}
	return Bound{Source: src, Original: src.Quantity, AlreadyReturned: already, Returnable: src.Quantity - already}, nil
}

// Check validates every line of a return document against its lineage and
// prices it at the discount adjusted cost of the source line.
func Check(ctx context.Context, r Reader, ret *documents.Transaction) ([]Priced, error) {
	if !ret.Type.IsReturn() {
		return nil, fmt.Errorf("returns: %s is not a return", ret.Type)
	}
	if len(ret.Lines) == 0 {
		return nil, shared.Validation("return requires at least one line")
	}
	requested := map[uuid.UUID]int64{}
	bounds := map[uuid.UUID]Bound{}
	out := make([]Priced, 0, len(ret.Lines))
	for _, line := range ret.Lines {
		if line.SourceLineID == nil {
			return nil, shared.Validation("return line %d has no source line", line.Position)
		}
		if line.Quantity <= 0 {
			return nil, shared.Validation("return line %d quantity must be positive", line.Position)
		}
		srcID := *line.SourceLineID
		b, ok := bounds[srcID]
		if !ok {
			var err error
			b, err = Returnable(ctx, r, srcID)
			if err != nil {
				return nil, err
			}
			if err := checkSource(ret, b.Source); err != nil {
				return nil, err
			}
			bounds[srcID] = b
		}
		if line.VariantID != b.Source.VariantID {
			return nil, shared.Validation("return line %d variant differs from source line", line.Position)
		}
		requested[srcID] += line.Quantity
		if requested[srcID] > b.Returnable {
			return nil, shared.Conflict("return of %d exceeds returnable %d (original %d, already returned %d) on source line %s",
				requested[srcID], b.Returnable, b.Original, b.AlreadyReturned, srcID)
		}
		unit := valuation.EffectiveUnitCost(b.Source.LineTotal, b.Source.Quantity, 0)
		out = append(out, Priced{
			Line:     line,
			Source:   b.Source,
			UnitCost: unit,
			Amount:   valuation.LineAmount(b.Source.LineTotal, b.Source.Quantity, line.Quantity),
		})
	}
	return out, nil
}

func checkSource(ret *documents.Transaction, src SourceLine) error {
	switch {
	case src.TenantID != ret.TenantID:
		return shared.NotFound("source line %s", src.ID)
	case src.Status != documents.StatusPosted:
		return shared.Conflict("source line %s belongs to an unposted document", src.ID)
	case src.TransactionType != ret.Type.ReturnSourceType():
		return shared.Conflict("%s must reference a %s line, got %s", ret.Type, ret.Type.ReturnSourceType(), src.TransactionType)
	case src.CounterpartyID != ret.Counterparty():
		return shared.Conflict("source line %s belongs to another counterparty", src.ID)
	}
	return nil
}

// Total sums priced amounts.
func Total(lines []Priced) int64 {
	var total int64
	for _, l := range lines {
		total += l.Amount
	}
	return total
}
