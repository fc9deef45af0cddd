package agent

import (
	"bytes"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	embeddingDim     = 512
	defaultChunkSize = 800
)

// Passage is an indexed text chunk paired with its embedding vector.
type Passage struct {
	Source    string
	Text      string
	Embedding []float32
}

// Embedder is a local document index searched by cosine similarity over
// hashed bag-of-words vectors.
type Embedder struct {
	mu       sync.RWMutex
	passages []Passage
	logger   zerolog.Logger
}

func NewEmbedder(logger zerolog.Logger) *Embedder {
	return &Embedder{logger: logger}
}

// Index adds every .txt, .md and .pdf file in dir. A missing directory is not
// an error.
func (e *Embedder) Index(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		e.logger.Info().Str("dir", dir).Msg("docs directory not found, search will return no results")
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read docs directory %q", dir)
	}

	var added []Passage
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		text, ok, err := readDocument(filepath.Join(dir, entry.Name()))
		if err != nil {
			return errors.Wrapf(err, "index %q", entry.Name())
		}
		if !ok {
			continue
		}

		for _, c := range splitChunks(text, defaultChunkSize) {
			added = append(added, Passage{Source: entry.Name(), Text: c, Embedding: embed(c)})
		}
	}

	e.mu.Lock()
	e.passages = append(e.passages, added...)
	total := len(e.passages)
	e.mu.Unlock()

	e.logger.Info().Str("dir", dir).Int("passages", len(added)).Int("total", total).Msg("indexed documents")
	return nil
}

// Add indexes a single in-memory document.
func (e *Embedder) Add(source, text string) {
	var added []Passage
	for _, c := range splitChunks(text, defaultChunkSize) {
		added = append(added, Passage{Source: source, Text: c, Embedding: embed(c)})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.passages = append(e.passages, added...)
}

func (e *Embedder) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.passages)
}

// Search returns up to topK passages ranked by similarity to query.
func (e *Embedder) Search(query string, topK int) []Passage {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.passages) == 0 || topK <= 0 {
		return nil
	}

	q := embed(query)

	type scored struct {
		passage Passage
		score   float32
	}
	ranked := make([]scored, 0, len(e.passages))
	for _, p := range e.passages {
		ranked = append(ranked, scored{passage: p, score: cosineSimilarity(q, p.Embedding)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	topK = min(topK, len(ranked))
	out := make([]Passage, topK)
	for i := range out {
		out[i] = ranked[i].passage
	}
	return out
}

// embed hashes words into a fixed-size, L2-normalised vector.
func embed(text string) []float32 {
	vec := make([]float32, embeddingDim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%embeddingDim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm = math.Sqrt(norm); norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

func readDocument(path string) (text string, ok bool, err error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", true, err
		}
		return string(data), true, nil
	case ".pdf":
		text, err := readPDF(path)
		return text, true, err
	}
	return "", false, nil
}

// splitChunks groups paragraphs into chunks of at most maxLen bytes. A single
// paragraph longer than maxLen becomes its own chunk.
func splitChunks(text string, maxLen int) []string {
	paragraphs := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")

	var (
		chunks  []string
		current strings.Builder
	)
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if current.Len() > 0 && current.Len()+len(p)+2 > maxLen {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open pdf")
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", errors.Wrap(err, "extract pdf text")
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", errors.Wrap(err, "read pdf text")
	}
	return buf.String(), nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if d := math.Sqrt(na) * math.Sqrt(nb); d != 0 {
		return float32(dot / d)
	}
	return 0
}
