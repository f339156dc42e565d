package badger

import (
	"fmt"
	"strconv"
	"strings"
)

// Key layout:
//
//	manifest                     live generation manifest (JSON)
//	genseq                       generation number sequence
//	gen:<gen>:vec:<concept id>   vector record
//	gen:<gen>:con:<ordinal>      concept record (JSON), in load order
//
// Generations are zero-padded so keys sort numerically.
const (
	manifestKey     = "manifest"
	generationSeq   = "genseq"
	generationRoot  = "gen:"
	vectorSegment   = "vec:"
	conceptSegment  = "con:"
	generationWidth = 20
)

// makeGenerationPrefix returns the prefix shared by every key of a generation.
func makeGenerationPrefix(gen uint64) []byte {
	return []byte(fmt.Sprintf("%s%0*d:", generationRoot, generationWidth, gen))
}

// makeVectorPrefix returns the prefix of a generation's vector records.
func makeVectorPrefix(gen uint64) []byte {
	return append(makeGenerationPrefix(gen), vectorSegment...)
}

// makeVectorKey generates a key for a vector record.
func makeVectorKey(gen uint64, id string) []byte {
	return append(makeVectorPrefix(gen), id...)
}

// makeConceptPrefix returns the prefix of a generation's concept records.
func makeConceptPrefix(gen uint64) []byte {
	return append(makeGenerationPrefix(gen), conceptSegment...)
}

// makeConceptKey generates a key for the concept at position ordinal.
func makeConceptKey(gen uint64, ordinal int) []byte {
	return append(makeConceptPrefix(gen), fmt.Sprintf("%010d", ordinal)...)
}

// parseGeneration extracts the generation number from any generation key.
func parseGeneration(key []byte) (uint64, bool) {
	rest, ok := strings.CutPrefix(string(key), generationRoot)
	if !ok || len(rest) < generationWidth {
		return 0, false
	}
	gen, err := strconv.ParseUint(rest[:generationWidth], 10, 64)
	return gen, err == nil
}

// idFromKey strips a record prefix from a key.
func idFromKey(key, prefix []byte) string {
	return string(key[len(prefix):])
}
