package commands

type actionResult struct {
	resetSpamFilter bool
}

func (ar *actionResult) ResetSpamFilter() bool {
	return ar != nil && ar.resetSpamFilter
}
