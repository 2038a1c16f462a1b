package brackets

import "errors"

// Placeholder is the name used for a slot whose player is not decided yet.
// It is never allowed into a MatchQueue.
const Placeholder = "TBD"

var (
	ErrPlaceholderPlayer    = errors.New("cannot schedule a match with a TBD player")
	ErrEmptyPlayerName      = errors.New("player name must not be empty")
	ErrSamePlayer           = errors.New("a player cannot be matched against themself")
	ErrNoMatches            = errors.New("no matches scheduled")
	ErrNoPendingWithdrawals = errors.New("no withdrawals to process")
	ErrNoPlayers            = errors.New("no players in the knockout stage")
	ErrNoResult             = errors.New("no result available for pairing")
)

func validatePlayerName(name string) error {
	switch name {
	case "":
		return ErrEmptyPlayerName
	case Placeholder:
		return ErrPlaceholderPlayer
	}
	return nil
}
