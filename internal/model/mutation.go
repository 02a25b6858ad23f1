package model

// Mutation is a write-through change to an identity or its stats.
// The set of implementations is closed to this package.
type Mutation interface {
	mutation()
}

// SetTrustLevel changes the actor's trust level
type SetTrustLevel struct {
	Level int
}

// SetBanned bans or unbans the actor. DurationDays of zero means permanent.
type SetBanned struct {
	Banned       bool
	Reason       string
	DurationDays int
}

// AdjustReputation adds Delta (which may be negative) to the reputation score
type AdjustReputation struct {
	Delta  int
	Reason string
}

// SetMinutesPlayed replaces the cumulative playtime total
type SetMinutesPlayed struct {
	Minutes int
}

func (SetTrustLevel) mutation()    {}
func (SetBanned) mutation()        {}
func (AdjustReputation) mutation() {}
func (SetMinutesPlayed) mutation() {}
