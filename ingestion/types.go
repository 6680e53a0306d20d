package ingestion

// Document is the extracted text of one input reference. A failed extraction
// leaves Text empty and sets Err; the pipeline keeps going without it.
type Document struct {
	Index  int
	Source string
	Format DocumentFormat
	Text   string
	Err    error
}

// Failed reports whether extraction produced an error.
func (d Document) Failed() bool {
	return d.Err != nil
}

// Chunk is one overlapping window of a document's text. ChunkIndex is the
// window position within the document.
type Chunk struct {
	Text          string
	Source        string
	DocumentIndex int
	ChunkIndex    int
	Embedding     []float32
}
