package domain

import (
	"encoding/json"
	"math/big"
)

// Route is one aggregator quote for a single conversion direction. The
// summary blob is treated as opaque: it is fetched from the routing service
// and passed back unmodified when building the swap payload, with only the
// output amount lifted into a typed field.
type Route struct {
	// AmountOut is the quoted output amount in smallest-denomination units.
	AmountOut *big.Int

	// Summary is the raw routeSummary object from the aggregator response.
	Summary json.RawMessage
}
