package ecash

import "time"

// Observer receives protocol events for metrics. Implementations must be safe
// for concurrent use.
type Observer interface {
	CoinIssued()
	CoinAccepted(merchant string, took time.Duration)
	CoinRejected(merchant string, culprit Party)
	VerdictReached(kind VerdictKind)
}

type nopObserver struct{}

func (nopObserver) CoinIssued()                        {}
func (nopObserver) CoinAccepted(string, time.Duration) {}
func (nopObserver) CoinRejected(string, Party)         {}
func (nopObserver) VerdictReached(VerdictKind)         {}
