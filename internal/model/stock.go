package model

import "time"

// Stock is the cached record for a screened symbol.
type Stock struct {
	ID          int64
	Name        string
	Symbol      string
	Excluded    bool
	LastUpdated time.Time
}

// ScoreSet holds the three component scores and their weighted total.
type ScoreSet struct {
	MAScore    float64 `json:"ma_score"`
	RSIScore   float64 `json:"rsi_score"`
	BBScore    float64 `json:"bb_score"`
	TotalScore float64 `json:"total_score"`
}

// Score is the persisted ScoreSet of a symbol.
type Score struct {
	Symbol string
	ScoreSet
}

// Result is one row of a screening pass.
type Result struct {
	Name   string  `json:"name"`
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	ScoreSet
}
