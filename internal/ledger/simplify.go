package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Transfer is one payment that moves a debtor towards zero: From pays To.
type Transfer struct {
	From   string
	To     string
	Amount decimal.Decimal
}

type party struct {
	member  string
	balance decimal.Decimal
	settled bool
}

// Simplify reduces balances to a short list of transfers that zeroes them.
//
// Pairs of members whose balances cancel exactly are matched first. The rest
// are settled greedily: the largest remaining debtor pays the largest
// remaining creditor until one side reaches zero. Balances smaller than
// Epsilon are ignored. The result does not depend on map iteration order.
func Simplify(b BalanceMap) []Transfer {
	parties := make([]*party, 0, len(b))
	for _, m := range b.Members() {
		v := Round2(b[m])
		if negligible(v) {
			continue
		}
		parties = append(parties, &party{member: m, balance: v})
	}
	if len(parties) == 0 {
		return nil
	}

	transfers := matchExact(parties)
	return append(transfers, matchGreedy(parties)...)
}

// matchExact pairs members whose balances are exact negations of each other.
func matchExact(parties []*party) []Transfer {
	// negated balance -> indexes of unsettled parties carrying it
	index := make(map[string][]int, len(parties))
	for i, p := range parties {
		key := moneyKey(p.balance.Neg())
		index[key] = append(index[key], i)
	}

	var transfers []Transfer
	for i, p := range parties {
		if p.settled {
			continue
		}
		key := moneyKey(p.balance)
		candidates := index[key]
		j := -1
		for len(candidates) > 0 {
			c := candidates[0]
			candidates = candidates[1:]
			if c != i && !parties[c].settled {
				j = c
				break
			}
		}
		index[key] = candidates
		if j < 0 {
			continue
		}

		q := parties[j]
		debtor, creditor := p, q
		if p.balance.IsPositive() {
			debtor, creditor = q, p
		}
		transfers = append(transfers, Transfer{
			From:   debtor.member,
			To:     creditor.member,
			Amount: creditor.balance,
		})
		p.settled = true
		q.settled = true
	}
	return transfers
}

// matchGreedy settles the remaining parties largest-first.
func matchGreedy(parties []*party) []Transfer {
	type side struct {
		member    string
		remaining decimal.Decimal
	}
	var creditors, debtors []side
	for _, p := range parties {
		if p.settled {
			continue
		}
		if p.balance.IsPositive() {
			creditors = append(creditors, side{p.member, p.balance})
		} else {
			debtors = append(debtors, side{p.member, p.balance.Neg()})
		}
	}

	byAmountDesc := func(s []side) func(i, j int) bool {
		return func(i, j int) bool {
			if c := s[i].remaining.Cmp(s[j].remaining); c != 0 {
				return c > 0
			}
			return s[i].member < s[j].member
		}
	}
	sort.SliceStable(creditors, byAmountDesc(creditors))
	sort.SliceStable(debtors, byAmountDesc(debtors))

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		d, c := &debtors[i], &creditors[j]
		amount := decimal.Min(d.remaining, c.remaining)
		if !negligible(amount) {
			transfers = append(transfers, Transfer{From: d.member, To: c.member, Amount: amount})
		}
		d.remaining = d.remaining.Sub(amount)
		c.remaining = c.remaining.Sub(amount)
		if negligible(d.remaining) {
			i++
		}
		if negligible(c.remaining) {
			j++
		}
	}
	return transfers
}
