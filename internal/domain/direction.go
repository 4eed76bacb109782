package domain

// Direction identifies the leg ordering of a round trip.
type Direction string

const (
	// DirectionAggregatorFirst converts the principal to the intermediate
	// token on the aggregator, then back on the bonding curve.
	DirectionAggregatorFirst Direction = "aggregator_to_curve"

	// DirectionCurveFirst buys the intermediate on the bonding curve, then
	// converts it back on the aggregator.
	DirectionCurveFirst Direction = "curve_to_aggregator"
)

// Flag maps the direction onto the settlement contract's boolean argument:
// true for aggregator first.
func (d Direction) Flag() bool {
	return d == DirectionAggregatorFirst
}

// String implements fmt.Stringer for logs.
func (d Direction) String() string {
	return string(d)
}
