package backup

// Progress receives per-album download progress
type Progress interface {
	Start(label string, total int)
	Advance()
	Finish()
}

// NopProgress discards progress updates
type NopProgress struct{}

func (NopProgress) Start(string, int) {}
func (NopProgress) Advance()          {}
func (NopProgress) Finish()           {}
