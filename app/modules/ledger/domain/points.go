package ledgerdomain

import "strconv"

// MaxScoringPosition is the last finishing position that earns points.
const MaxScoringPosition = 128

type pointsBand struct {
	upTo   int
	points int
}

// Bands are ordered by upper bound; a position takes the first band whose upper bound it does not exceed.
var pointsBands = []pointsBand{
	{upTo: 1, points: 25},
	{upTo: 2, points: 15},
	{upTo: 3, points: 12},
	{upTo: 4, points: 10},
	{upTo: 8, points: 5},
	{upTo: 15, points: 4},
	{upTo: 31, points: 3},
	{upTo: 64, points: 2},
	{upTo: MaxScoringPosition, points: 1},
}

// PointsForPosition returns the points a finishing position is worth. Positions outside
// 1..MaxScoringPosition are worth 0.
func PointsForPosition(position int) int {
	if position < 1 {
		return 0
	}
	for _, b := range pointsBands {
		if position <= b.upTo {
			return b.points
		}
	}
	return 0
}

// PositionReason is the ledger reason recorded for a position-based award.
func PositionReason(position int) string {
	return "Position #" + strconv.Itoa(position)
}
