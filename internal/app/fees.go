package app

// ComputeTransferFee returns the fee charged on a transfer of amount and the
// gross total to debit from the source. The rate is expressed in basis
// points (100 = 1%) and the integer division truncates: a fractional fee
// below one minor unit rounds down to zero.
func ComputeTransferFee(amount int64, feeRateBps int32) (fee, gross int64) {
	fee = amount * int64(feeRateBps) / 10000
	return fee, amount + fee
}
