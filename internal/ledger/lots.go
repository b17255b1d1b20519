package ledger

import (
	"github.com/ndewijer/investment-ledger/internal/model"
)

// LotMatch attributes part of a buy lot's cost to a sell or cash dividend event.
type LotMatch struct {
	Lot    int     `json:"lot"`   // row of the buy
	Event  int     `json:"event"` // row of the sell or cash dividend
	Amount float64 `json:"amount"`
}

// LotMatrix is the sparse lot/event matching of a ledger of N rows. Only non-zero cells
// are stored, in the order they were matched.
type LotMatrix struct {
	N     int
	Cells []LotMatch
	cols  map[int][]int
}

func (m *LotMatrix) add(lot, event int, amount float64) {
	if amount == 0 {
		return
	}
	if m.cols == nil {
		m.cols = make(map[int][]int)
	}
	m.cols[event] = append(m.cols[event], len(m.Cells))
	m.Cells = append(m.Cells, LotMatch{Lot: lot, Event: event, Amount: amount})
}

// Column returns the cells matched to an event, oldest lot first.
func (m LotMatrix) Column(event int) []LotMatch {
	idx := m.cols[event]
	out := make([]LotMatch, len(idx))
	for i, j := range idx {
		out[i] = m.Cells[j]
	}
	return out
}

// ColumnSum is the cost matched to an event.
func (m LotMatrix) ColumnSum(event int) float64 {
	var sum float64
	for _, j := range m.cols[event] {
		sum += m.Cells[j].Amount
	}
	return sum
}

// RowSum is the cost of a lot matched across all events.
func (m LotMatrix) RowSum(lot int) float64 {
	var sum float64
	for _, c := range m.Cells {
		if c.Lot == lot {
			sum += c.Amount
		}
	}
	return sum
}

// MatchLots links every sell and cash dividend to the buy lots it consumes, oldest first.
//
// A sell consumes whole lots while its remaining share exceeds the lot's share; the lot
// that covers the rest is consumed partially at lot.amount*share/lot.share and stays open.
// A cash dividend takes amount*DS/(open+DS) from every open lot, where DS is the dividend
// share and open the open lots' share, leaving lot shares untouched. A share dividend
// scales every open lot's share by DS/open+1 and adds no cells.
//
// The ledger is assumed valid; see Track.
func MatchLots(rows []model.Transaction) LotMatrix {
	m := LotMatrix{N: len(rows)}
	amount := make([]float64, len(rows))
	share := make([]float64, len(rows))
	for i, row := range rows {
		if row.Kind == model.KindBuy {
			amount[i], share[i] = row.Amount, row.Share
		}
	}

	cursor := 0
	for col, row := range rows {
		switch row.Kind {
		case model.KindSell:
			rest := row.Share
			for lot := cursor; lot < col; lot++ {
				if share[lot] <= 0 {
					continue
				}
				if rest > share[lot] {
					m.add(lot, col, amount[lot])
					rest -= share[lot]
					amount[lot], share[lot] = 0, 0
					cursor = lot + 1
					continue
				}
				part := amount[lot] * rest / share[lot]
				m.add(lot, col, part)
				amount[lot] -= part
				share[lot] -= rest
				cursor = lot
				break
			}
		case model.KindCashDividend:
			open := openShare(share, cursor, col)
			if open+row.Share == 0 {
				continue
			}
			ratio := row.Share / (open + row.Share)
			for lot := cursor; lot < col; lot++ {
				part := amount[lot] * ratio
				m.add(lot, col, part)
				amount[lot] -= part
			}
		case model.KindShareDividend:
			open := openShare(share, cursor, col)
			if open == 0 {
				continue
			}
			scale := row.Share/open + 1
			for lot := cursor; lot < col; lot++ {
				share[lot] *= scale
			}
		}
	}
	return m
}

func openShare(share []float64, from, to int) float64 {
	var sum float64
	for i := from; i < to; i++ {
		sum += share[i]
	}
	return sum
}
