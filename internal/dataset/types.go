package dataset

// Query is one labeled evaluation query. Expected holds the identifiers
// (document IDs or tool names) considered correct; it may be empty, meaning
// no result is the right answer.
type Query struct {
	ID       string   `json:"id" yaml:"id"`
	Text     string   `json:"query" yaml:"query"`
	Expected []string `json:"expected,omitempty" yaml:"expected,omitempty"`
	Category string   `json:"category,omitempty" yaml:"category,omitempty"`
}

// Dataset is an immutable set of labeled queries evaluated together.
type Dataset struct {
	Name    string  `json:"name" yaml:"name"`
	Queries []Query `json:"queries" yaml:"queries"`
}

// Document is one retrievable item of a corpus.
type Document struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Text     string `json:"text" yaml:"text"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
}

// Corpus is the document collection strategies retrieve from.
type Corpus struct {
	Name      string     `json:"name" yaml:"name"`
	Documents []Document `json:"documents" yaml:"documents"`
}

// IDs returns the document identifiers in corpus order.
func (c *Corpus) IDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Documents))
	for _, d := range c.Documents {
		out = append(out, d.ID)
	}
	return out
}

// SearchText returns the text a lexical or embedding index should see for a
// document: the title and body joined when both are present.
func (d Document) SearchText() string {
	if d.Title == "" {
		return d.Text
	}
	if d.Text == "" {
		return d.Title
	}
	return d.Title + "\n" + d.Text
}
