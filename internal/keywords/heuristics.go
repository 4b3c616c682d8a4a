package keywords

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Heuristics holds the word lists the tokenizer and classifier work from.
// They are empirical and meant to be recalibrated without code changes.
type Heuristics struct {
	StopWords       []string `yaml:"stopWords"`
	EventKeywords   []string `yaml:"eventKeywords"`
	EntityTokens    []string `yaml:"entityTokens"`
	EraMarkers      []string `yaml:"eraMarkers"`
	RomanExceptions []string `yaml:"romanExceptions"`
	MinTokenLength  int      `yaml:"minTokenLength"`
}

// heuristicsFile is the on-disk override shape.
type heuristicsFile struct {
	Heuristics `yaml:",inline"`

	ExtendStopWords    bool `yaml:"extendStopWords"`
	ExtendEntityTokens bool `yaml:"extendEntityTokens"`
}

// DefaultHeuristics returns the calibrated defaults.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		StopWords:       append(append([]string{}, englishStopWords...), italianStopWords...),
		EventKeywords:   append([]string{}, eventKeywords...),
		EntityTokens:    append([]string{}, entityTokens...),
		EraMarkers:      []string{"bc", "bce", "ad", "ce"},
		RomanExceptions: []string{"di", "mi", "ci", "vi", "li", "mix", "dix", "mm", "ml", "cc", "cd", "dc", "xl"},
		MinTokenLength:  3,
	}
}

// LoadHeuristics reads a YAML override file and merges it over the defaults.
// Lists present in the file replace the defaults unless the matching extend
// flag is set, in which case they are appended.
func LoadHeuristics(path string) (Heuristics, error) {
	h := DefaultHeuristics()

	data, err := os.ReadFile(path)
	if err != nil {
		return h, fmt.Errorf("read heuristics file: %w", err)
	}

	var override heuristicsFile
	if err := yaml.Unmarshal(data, &override); err != nil {
		return h, fmt.Errorf("decode heuristics: %w", err)
	}

	h.StopWords = mergeList(h.StopWords, override.StopWords, override.ExtendStopWords)
	h.EntityTokens = mergeList(h.EntityTokens, override.EntityTokens, override.ExtendEntityTokens)
	h.EventKeywords = mergeList(h.EventKeywords, override.EventKeywords, false)
	h.EraMarkers = mergeList(h.EraMarkers, override.EraMarkers, false)
	h.RomanExceptions = mergeList(h.RomanExceptions, override.RomanExceptions, false)
	if override.MinTokenLength > 0 {
		h.MinTokenLength = override.MinTokenLength
	}

	return h, nil
}

func mergeList(base, override []string, extend bool) []string {
	if len(override) == 0 {
		return base
	}
	if extend {
		return append(base, override...)
	}
	return override
}

var englishStopWords = []string{
	"the", "and", "for", "with", "from", "into", "onto", "over", "under", "about",
	"this", "that", "these", "those", "there", "their", "they", "them", "then",
	"than", "what", "when", "where", "which", "while", "who", "whom", "why", "how",
	"are", "was", "were", "been", "being", "have", "has", "had", "does", "did",
	"doing", "will", "would", "should", "could", "can", "may", "might", "must",
	"not", "but", "all", "any", "some", "such", "very", "just", "also", "only",
	"own", "same", "each", "other", "more", "most", "our", "ours", "your", "yours",
	"his", "her", "hers", "its", "out", "off", "upon", "via", "per", "between",
	"through", "during", "before", "after", "above", "below", "again", "once",
	"here", "both", "few", "nor", "too", "you", "she", "him", "one",
}

var italianStopWords = []string{
	"il", "lo", "la", "gli", "le", "uno", "una", "del", "dello", "della", "dei",
	"degli", "delle", "nel", "nello", "nella", "nei", "negli", "nelle", "sul",
	"sullo", "sulla", "sui", "sugli", "sulle", "dal", "dallo", "dalla", "dai",
	"dagli", "dalle", "all", "allo", "alla", "agli", "alle", "con", "per", "tra",
	"fra", "che", "chi", "cui", "non", "come", "dove", "quando", "perche",
	"anche", "ancora", "sono", "sei", "siamo", "siete", "era", "erano", "essere",
	"avere", "hanno", "abbiamo", "questo", "questa", "questi", "queste", "quello",
	"quella", "quelli", "quelle", "loro", "suo", "sua", "suoi", "sue", "mio",
	"mia", "tuo", "tua", "nostro", "nostra", "vostro", "vostra", "piu", "molto",
	"tutto", "tutti", "tutte", "ogni", "senza", "sopra", "sotto", "dopo", "prima",
}

var eventKeywords = []string{
	"battle", "siege", "assassination", "treaty", "dynasty", "revolution",
	"uprising", "incident", "operation", "crisis", "war", "crusade", "coup",
	"massacre",
}

var entityTokens = []string{
	// civilizations and peoples
	"roman", "romans", "rome", "egypt", "egyptian", "egyptians", "greek", "greeks",
	"greece", "sparta", "spartan", "athens", "athenian", "viking", "vikings",
	"norse", "aztec", "aztecs", "maya", "mayan", "inca", "incas", "persia",
	"persian", "mongol", "mongols", "ottoman", "byzantine", "byzantium",
	"babylon", "babylonian", "sumer", "sumerian", "mesopotamia", "assyria",
	"assyrian", "carthage", "carthaginian", "phoenician", "hittite", "celtic",
	"celts", "gaul", "gauls", "saxon", "saxons", "norman", "normans", "samurai",
	"shogun", "qin", "han", "ming", "tang", "etruscan", "macedonian", "troy",
	"trojan", "pompeii", "jerusalem", "constantinople", "england", "france",
	"china", "japan", "india",
	// royal and imperial titles
	"king", "queen", "emperor", "empress", "pharaoh", "sultan", "tsar", "czar",
	"caesar", "pope", "shah", "khan", "prince", "princess", "kaiser", "consul",
}
