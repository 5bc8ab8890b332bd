package market

import "time"

type Candle struct {
	Symbol   string
	Interval string
	Start    time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Turnover float64
}

// Instrument is a tradable linear contract together with the 24h turnover
// used for the liquidity filter. Refreshed every scan cycle, never persisted.
type Instrument struct {
	Symbol     string
	Turnover24 float64
}

// Quote is the latest market snapshot for one symbol.
type Quote struct {
	Symbol   string
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Turnover float64
	At       time.Time
}
