package model

type PayoutStatus string

const ( // needs to match `payout_status` in pg
	PayoutStatusOwed      PayoutStatus = "owed"
	PayoutStatusSubmitted PayoutStatus = "submitted"
	PayoutStatusConfirmed PayoutStatus = "confirmed"
	PayoutStatusError     PayoutStatus = "error"
)

// PayoutCredit is one denomination leg owed to a recipient after
// settlement. Credits start owed and move through submitted/confirmed as
// the payout pipeline flushes them.
type PayoutCredit struct {
	EscrowID string       `json:"escrow_id"`
	Addr     Address      `json:"addr"`
	Status   PayoutStatus `json:"status"`
	Balance  Balance      `json:"balance"`
	Height   uint64       `json:"height"`
	TxId     *string      `json:"tx_id,omitempty"`
}

// SettlementEvent is emitted once per escrow, when settlement locks it.
// Ratings carry the host's league records along with the payout result.
type SettlementEvent struct {
	EscrowID  string              `json:"escrow_id"`
	Height    uint64              `json:"height"`
	Payouts   map[Address]Balance `json:"payouts"`
	Remainder Address             `json:"remainder"`
	Forced    bool                `json:"forced"`
	Ratings   []RatingAdjustment  `json:"ratings,omitempty"`
}

// RatingAdjustment is the league-only record the host computes from match
// processing; indexers fold it into cached ratings. It rides along with
// settlement events but plays no part in escrow accounting.
type RatingAdjustment struct {
	Addr        Address `json:"addr"`
	CategoryID  uint64  `json:"category_id"`
	RatingDelta int64   `json:"rating_delta"`
}
