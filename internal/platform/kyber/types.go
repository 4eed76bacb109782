package kyber

import "encoding/json"

// routeResponse is the envelope of GET /routes. The routeSummary is kept as
// a raw blob: only amountOut is typed, the rest is echoed back verbatim to
// the build endpoint.
type routeResponse struct {
	Data struct {
		RouteSummary json.RawMessage `json:"routeSummary"`
	} `json:"data"`
}

// routeSummaryFields lifts the one field the engine needs out of the
// otherwise opaque summary.
type routeSummaryFields struct {
	AmountOut string `json:"amountOut"`
}

// buildRequest is the body of POST /route/build.
type buildRequest struct {
	RouteSummary      json.RawMessage `json:"routeSummary"`
	Sender            string          `json:"sender"`
	Recipient         string          `json:"recipient"`
	SlippageTolerance int             `json:"slippageTolerance"`
	Deadline          int64           `json:"deadline"`
}

// buildResponse is the envelope of POST /route/build.
type buildResponse struct {
	Data struct {
		Data string `json:"data"` // hex-encoded call payload
	} `json:"data"`
}
