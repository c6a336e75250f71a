package entity

type MaterialCounter struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	Path    string `json:"path" yaml:"path"`
	Counter int64  `json:"counter" yaml:"counter"`
}
