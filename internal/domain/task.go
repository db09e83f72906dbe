package domain

// DownloadTask is a single source-URL-to-destination-path download unit.
type DownloadTask struct {
	URL         string       `json:"url" yaml:"url" validate:"required,download_url"`
	Destination string       `json:"destination" yaml:"destination" validate:"required"`
	Source      string       `json:"source" yaml:"source" validate:"required"`
	Name        string       `json:"name" yaml:"name" validate:"required"`
	Hint        ContentClass `json:"hint,omitempty" yaml:"hint,omitempty" validate:"omitempty,oneof=binary text"`
	Attempt     int          `json:"attempt,omitempty" yaml:"-"`
}

// Key returns the stable identity of the task, derived from its source tag and
// logical file name.
func (t DownloadTask) Key() string {
	return t.Source + "_" + t.Name
}
