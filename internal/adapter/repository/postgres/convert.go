package postgres

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/cashbook/internal/domain"
	"github.com/iho/cashbook/internal/infrastructure/postgres/generated"
)

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}

	d, _ := decimal.NewFromString(n.Int.String())
	if n.Exp != 0 {
		d = d.Shift(n.Exp)
	}

	return d
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func timeToPgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: domain.DateOf(t), Valid: true}
}

func rowToEntry(row generated.Entry) *domain.Entry {
	return &domain.Entry{
		ID:             row.ID,
		LedgerID:       row.LedgerID,
		Seq:            row.Seq,
		OccurredOn:     domain.DateOf(row.OccurredOn.Time),
		Label:          row.Label,
		Kind:           domain.Kind(row.Kind),
		Amount:         numericToDecimal(row.Amount),
		RunningBalance: numericToDecimal(row.RunningBalance),
		CreatedAt:      row.CreatedAt.Time.UTC(),
	}
}

func entryToCopyParams(e *domain.Entry) generated.CopyEntriesParams {
	return generated.CopyEntriesParams{
		ID:             e.ID,
		LedgerID:       e.LedgerID,
		Seq:            e.Seq,
		OccurredOn:     timeToPgDate(e.OccurredOn),
		Label:          e.Label,
		Kind:           string(e.Kind),
		Amount:         decimalToNumeric(e.Amount),
		RunningBalance: decimalToNumeric(e.RunningBalance),
		CreatedAt:      timeToPgTimestamptz(e.CreatedAt),
	}
}
