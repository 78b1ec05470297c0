package entities

import "time"

// EnrichedTransaction is a chain transaction with the metrics derived for the live feed.
type EnrichedTransaction struct {
	Hash           string    `json:"hash"`
	From           string    `json:"from"`
	To             string    `json:"to,omitempty"` // Empty for contract creation
	Value          string    `json:"value"`        // Base units, decimal string
	GasFee         string    `json:"gasFee"`       // Effective gas price, decimal string
	ObservedAt     time.Time `json:"observedAt"`   // Local time the record was produced
	BlockNumber    uint64    `json:"blockNumber"`  // Block the hash was discovered in
	MethodSelector *string   `json:"methodSelector,omitempty"`
	Slippage       *float64  `json:"slippage,omitempty"`    // Percent
	PriceImpact    *float64  `json:"priceImpact,omitempty"` // Percent
	Label          string    `json:"label"`
}

// FeedState is what the presentation layer reads.
type FeedState struct {
	Transactions []EnrichedTransaction `json:"transactions"`
	Loading      bool                  `json:"loading"`
	Error        string                `json:"error,omitempty"`
	Paused       bool                  `json:"paused"`
	Visible      bool                  `json:"visible"`
	Cursor       *uint64               `json:"cursor,omitempty"`
}
