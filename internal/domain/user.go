package domain

import "time"

// User owns zero or more accounts and carries the per-user daily ceilings for
// withdrawal and transfer operations. Users are created lazily on the first
// account-creation request, keyed by phone number, and never updated after.
type User struct {
	ID                   int64     `json:"id"`
	Username             string    `json:"username"`
	Email                string    `json:"email,omitempty"`
	Phone                string    `json:"phone"`
	DailyWithdrawalLimit int64     `json:"daily_withdrawal_limit"` // in minor units
	DailyTransferLimit   int64     `json:"daily_transfer_limit"`   // in minor units
	CreatedAt            time.Time `json:"created_at"`
}
