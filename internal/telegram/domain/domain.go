package domain

// Flood control levels of bot commands.
const (
	SpamLevelNone = iota
	SpamLevelLow
	SpamLevelSensitive
)
