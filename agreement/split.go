package agreement

import (
	"fmt"

	"github.com/rightsorg/librights-go/fees"
)

// Split is the three-way disbursement of a settled total.
type Split struct {
	TreasuryCut  uint64
	CustodianCut uint64
	HolderCut    uint64
}

// Sum returns the total disbursed.
func (s Split) Sum() uint64 { return s.TreasuryCut + s.CustodianCut + s.HolderCut }

// ComputeSplit carves total into treasury, custodian, and holder cuts.
//
// The treasury takes its basis points off the full total; the custodian
// takes its basis points off the remainder; the holder takes what is
// left, so integer division remainders fall to the holder and the three
// cuts always sum to total exactly.
func ComputeSplit(total, treasuryBps, custodianBps uint64) (Split, error) {
	if treasuryBps > fees.BpsDenominator {
		return Split{}, fmt.Errorf("%w: treasury %d", fees.ErrInvalidBasisPoints, treasuryBps)
	}
	if custodianBps > fees.BpsDenominator {
		return Split{}, fmt.Errorf("%w: custodian %d", fees.ErrInvalidBasisPoints, custodianBps)
	}
	treasuryCut := total * treasuryBps / fees.BpsDenominator
	remaining := total - treasuryCut
	custodianCut := remaining * custodianBps / fees.BpsDenominator
	return Split{
		TreasuryCut:  treasuryCut,
		CustodianCut: custodianCut,
		HolderCut:    remaining - custodianCut,
	}, nil
}
