/*
bonus.go - Quantity-tiered approval bonus

PURPOSE:
  Milestones 1-4 carry a sales-volume component: the approver supplies
  the product quantity sold, and the bonus scales with both which
  milestone it is and which quantity band the sale falls into.

TABLE (points, by form type and quantity band):

  form type | 1-50 | 51-300 | >300
  ----------+------+--------+------
      1     |  10  |   20   |  40
      2     |  20  |   50   | 100
      3     |  50  |  100   | 200
      4     | 100  |  200   | 400

  Form types outside 1-4, or a quantity below 1, contribute zero.
*/
package loyalty

// quantityBands are the upper bounds of the first two bands; anything
// above the second bound falls in the open-ended top band.
const (
	bandOneMax = 50
	bandTwoMax = 300
)

// quantityBonusTable maps form type to its three band values, ordered
// low band, middle band, top band.
var quantityBonusTable = map[FormTypeID][3]int64{
	1: {10, 20, 40},
	2: {20, 50, 100},
	3: {50, 100, 200},
	4: {100, 200, 400},
}

// QuantityBonus returns the tiered bonus for approving formTypeID with the
// given product quantity. Quantity defaults to zero when the approver
// omits it, which yields no bonus.
func QuantityBonus(formTypeID FormTypeID, quantity int) Points {
	bands, ok := quantityBonusTable[formTypeID]
	if !ok || quantity < 1 {
		return ZeroPoints()
	}

	switch {
	case quantity <= bandOneMax:
		return NewPoints(bands[0])
	case quantity <= bandTwoMax:
		return NewPoints(bands[1])
	default:
		return NewPoints(bands[2])
	}
}
