package services

// CheckoutCommand is everything needed to price and route one purchase.
// DetectedCountry comes from the edge (GeoIP header), not from the client body.
type CheckoutCommand struct {
	ActorID         string
	CreatorID       string
	MediaIDs        []string
	UnlockAll       bool
	Credits         int64
	Currency        string
	DetectedCountry string
}

// SinglePayoutCommand pays out one named wallet regardless of threshold.
type SinglePayoutCommand struct {
	WalletID string
}
