package pipeline

// Listener observes a sync pass. SetupStarted is called once module setup
// begins; exactly one of the terminal methods is called per pass.
type Listener interface {
	SetupStarted()
	SyncSucceeded()
	SyncSkipped()
	SyncFailed(message string)
}

// NopListener ignores every notification.
type NopListener struct{}

func (NopListener) SetupStarted()     {}
func (NopListener) SyncSucceeded()    {}
func (NopListener) SyncSkipped()      {}
func (NopListener) SyncFailed(string) {}
