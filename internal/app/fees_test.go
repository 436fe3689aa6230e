package app

import "testing"

func TestComputeTransferFee(t *testing.T) {
	tests := []struct {
		name      string
		amount    int64
		rateBps   int32
		wantFee   int64
		wantGross int64
	}{
		{name: "one percent", amount: 30000, rateBps: 100, wantFee: 300, wantGross: 30300},
		{name: "fraction truncates down", amount: 1050, rateBps: 100, wantFee: 10, wantGross: 1060},
		{name: "below one unit rounds to zero", amount: 50, rateBps: 100, wantFee: 0, wantGross: 50},
		{name: "ninety nine truncates to zero", amount: 99, rateBps: 100, wantFee: 0, wantGross: 99},
		{name: "zero rate", amount: 30000, rateBps: 0, wantFee: 0, wantGross: 30000},
		{name: "half percent", amount: 10000, rateBps: 50, wantFee: 50, wantGross: 10050},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, gross := ComputeTransferFee(tt.amount, tt.rateBps)
			if fee != tt.wantFee {
				t.Errorf("fee = %d, want %d", fee, tt.wantFee)
			}
			if gross != tt.wantGross {
				t.Errorf("gross = %d, want %d", gross, tt.wantGross)
			}
		})
	}
}
