package annotate

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// oovLogProb is the log-probability assigned to words missing from the
// frequency table.
const oovLogProb = -19.0

// Frequencies maps lowercased word forms to corpus log-probabilities.
type Frequencies map[string]float64

// Lookup returns the log-probability for a word form, falling back to
// the out-of-vocabulary floor.
func (f Frequencies) Lookup(word string) float64 {
	if p, ok := f[strings.ToLower(word)]; ok {
		return p
	}
	return oovLogProb
}

// LoadFrequencies reads a tab-separated "word<TAB>logprob" table.
func LoadFrequencies(path string) (Frequencies, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frequency table: %w", err)
	}
	defer file.Close()

	freqs := make(Frequencies)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		fields := strings.SplitN(scanner.Text(), "\t", 2)
		if len(fields) != 2 || fields[0] == "" {
			continue
		}

		prob, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("bad probability on line %d: %w", line, err)
		}

		freqs[strings.ToLower(fields[0])] = prob
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read frequency table: %w", err)
	}

	return freqs, nil
}
