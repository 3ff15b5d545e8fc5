package rating

import (
	"sort"

	"github.com/shopspring/decimal"
)

var (
	leadBonusRate      = decimal.NewFromFloat(0.20)
	calledOutBonusRate = decimal.NewFromFloat(0.10)
	hundred            = decimal.NewFromInt(100)
	cent               = decimal.New(1, -2)
)

type Practitioner struct {
	ID   string
	Name string
}

// Allocation is one practitioner's share of an appointment rating. Amounts are rounded to 2dp.
type Allocation struct {
	PractitionerID string          `json:"practitioner_id"`
	Name           string          `json:"name"`
	Points         decimal.Decimal `json:"points"`
	Percentage     decimal.Decimal `json:"percentage"`
	IsLead         bool            `json:"is_lead"`
	IsCalledOut    bool            `json:"is_called_out"`
	BonusApplied   decimal.Decimal `json:"bonus_applied"`
}

// Distribute splits total across practitioners. Everyone gets an equal base share, the lead
// gets 20% of total on top and a different called-out practitioner 10%, then all shares are
// scaled back so they add up to total. Lead or called-out ids outside the list are ignored.
//
// Points are rounded to 2dp and each percentage is round(points/total*100, 2). When rounding
// leaves either sum more than a cent away from total (or 100), the gap is handed out a cent
// at a time to the entries whose rounding lost the most.
func Distribute(total float64, practitioners []Practitioner, leadID, calledOutID string) []Allocation {
	practitioners = dedupe(practitioners)
	if len(practitioners) == 0 {
		return []Allocation{}
	}

	t := decimal.NewFromFloat(total)
	out := make([]Allocation, len(practitioners))
	if !t.IsPositive() {
		for i, p := range practitioners {
			out[i] = Allocation{PractitionerID: p.ID, Name: p.Name}
		}
		return out
	}

	base := t.Div(decimal.NewFromInt(int64(len(practitioners))))
	raw := make([]decimal.Decimal, len(practitioners))
	provisional := decimal.Zero

	for i, p := range practitioners {
		points := base
		a := Allocation{PractitionerID: p.ID, Name: p.Name, BonusApplied: decimal.Zero}

		switch {
		case leadID != "" && p.ID == leadID:
			bonus := t.Mul(leadBonusRate)
			points = points.Add(bonus)
			a.IsLead = true
			a.BonusApplied = bonus.Round(2)
		case calledOutID != "" && calledOutID != leadID && p.ID == calledOutID:
			bonus := t.Mul(calledOutBonusRate)
			points = points.Add(bonus)
			a.IsCalledOut = true
			a.BonusApplied = bonus.Round(2)
		}

		raw[i] = points
		provisional = provisional.Add(points)
		out[i] = a
	}

	factor := t.Div(provisional)
	exact := make([]decimal.Decimal, len(out))
	for i := range out {
		exact[i] = raw[i].Mul(factor)
		out[i].Points = exact[i].Round(2)
	}
	settle(out, exact, t.Round(2), func(a *Allocation) *decimal.Decimal { return &a.Points })

	for i := range out {
		exact[i] = out[i].Points.Div(t).Mul(hundred)
		out[i].Percentage = exact[i].Round(2)
	}
	settle(out, exact, hundred, func(a *Allocation) *decimal.Decimal { return &a.Percentage })

	return out
}

// settle brings the rounded fields to want when their sum is more than a cent off. Cents go to
// the entries with the largest remainder (exact minus rounded) and are taken from the smallest.
// Ties keep input order.
func settle(out []Allocation, exact []decimal.Decimal, want decimal.Decimal, field func(*Allocation) *decimal.Decimal) {
	sum := decimal.Zero
	for i := range out {
		sum = sum.Add(*field(&out[i]))
	}

	gap := want.Sub(sum)
	if gap.Abs().LessThanOrEqual(cent) {
		return
	}

	step := cent
	if gap.IsNegative() {
		step = cent.Neg()
	}

	order := make([]int, len(out))
	remainders := make([]decimal.Decimal, len(out))
	for i := range out {
		order[i] = i
		remainders[i] = exact[i].Sub(*field(&out[i]))
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := remainders[order[a]], remainders[order[b]]
		if gap.IsPositive() {
			return ra.GreaterThan(rb)
		}
		return ra.LessThan(rb)
	})

	cents := int(gap.Abs().Div(cent).Round(0).IntPart())
	for k := 0; k < cents; k++ {
		v := field(&out[order[k%len(order)]])
		*v = v.Add(step)
	}
}

func dedupe(in []Practitioner) []Practitioner {
	seen := make(map[string]bool, len(in))
	out := make([]Practitioner, 0, len(in))
	for _, p := range in {
		if p.ID == "" || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}
