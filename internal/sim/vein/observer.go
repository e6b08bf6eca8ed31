package vein

// Observer receives run lifecycle notifications. Calls are made from the
// goroutine driving the session and must not block.
type Observer interface {
	RunStarted(info RunInfo)
	StepDone(info RunInfo, rep StepReport)
	RunEnded(info RunInfo, out Outcome)
}

// Observers fans out to each non-nil element in order.
type Observers []Observer

func (os Observers) RunStarted(info RunInfo) {
	for _, o := range os {
		if o != nil {
			o.RunStarted(info)
		}
	}
}

func (os Observers) StepDone(info RunInfo, rep StepReport) {
	for _, o := range os {
		if o != nil {
			o.StepDone(info, rep)
		}
	}
}

func (os Observers) RunEnded(info RunInfo, out Outcome) {
	for _, o := range os {
		if o != nil {
			o.RunEnded(info, out)
		}
	}
}
