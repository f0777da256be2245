package pipeline

// Progress reports per-commit advancement of a repository run.
type Progress interface {
	StartTask(description string, total int) TaskProgress
}

type TaskProgress interface {
	Increment(n int)
	Describe(description string)
	Complete()
}

// NoOpProgress discards progress updates.
type NoOpProgress struct{}

func (NoOpProgress) StartTask(string, int) TaskProgress { return noOpTask{} }

type noOpTask struct{}

func (noOpTask) Increment(int)   {}
func (noOpTask) Describe(string) {}
func (noOpTask) Complete()       {}
