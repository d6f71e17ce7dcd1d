package internal

// Problem is one coding problem read from the input file.
type Problem struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}
