package models

// Queue statuses in lifecycle order.
const (
	StatusWaiting     = "waiting"
	StatusReadyToSeat = "ready_to_seat"
	StatusQRScanned   = "qr_scanned"
	StatusSeated      = "seated"
	StatusFinished    = "finished"
)

var statusRank = map[string]int{
	StatusWaiting:     0,
	StatusReadyToSeat: 1,
	StatusQRScanned:   2,
	StatusSeated:      3,
	StatusFinished:    4,
}

// OccupyingStatuses are entries holding a table, seated or not.
var OccupyingStatuses = []string{StatusReadyToSeat, StatusQRScanned, StatusSeated}

// ReadyStatuses are counted by the nearby check as already served or about to be.
var ReadyStatuses = []string{StatusReadyToSeat, StatusSeated}

// ValidStatus reports whether s is a known queue status.
func ValidStatus(s string) bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether a queue entry may move from one status to
// another. Statuses never move backwards; repeating the current one is allowed.
func CanTransition(from, to string) bool {
	f, ok := statusRank[from]
	if !ok {
		return false
	}
	t, ok := statusRank[to]
	if !ok {
		return false
	}
	if f == statusRank[StatusFinished] {
		return false
	}
	return t >= f
}

// Otp contact types.
const (
	OtpTypePhone = "phone"
	OtpTypeEmail = "email"
)

const (
	// DefaultAverageServiceTime minutes per table turnover
	DefaultAverageServiceTime = 60

	// DefaultNearbyLimit how many waiting entries the nearby check looks at
	DefaultNearbyLimit = 3

	// OtpLength digits in a verification code
	OtpLength = 6

	// DefaultOtpTTL code lifetime in seconds
	DefaultOtpTTL = 5 * 60

	// DefaultOtpSendLimit codes per contact in one window
	DefaultOtpSendLimit = 5

	// DefaultOtpSendWindow throttle window in seconds
	DefaultOtpSendWindow = 15 * 60
)
