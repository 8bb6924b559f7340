package rerank

// ModelInfo describes a known cross-encoder model
type ModelInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxLength   int    `json:"max_length"`
}

// DefaultModel is a good balance of speed and accuracy
const DefaultModel = "ms-marco-MiniLM-L-6-v2"

// knownModels maps short model keys to their full identifiers. This is
// configuration data; any other key is passed through as a custom model name.
var knownModels = map[string]ModelInfo{
	"ms-marco-MiniLM-L-6-v2": {
		Name:        "cross-encoder/ms-marco-MiniLM-L-6-v2",
		Description: "Fast and efficient, good for general use (22M params)",
		MaxLength:   512,
	},
	"ms-marco-MiniLM-L-12-v2": {
		Name:        "cross-encoder/ms-marco-MiniLM-L-12-v2",
		Description: "Better accuracy than L-6, still fast (33M params)",
		MaxLength:   512,
	},
	"bge-reranker-base": {
		Name:        "BAAI/bge-reranker-base",
		Description: "Good balance of performance and accuracy (278M params)",
		MaxLength:   512,
	},
	"bge-reranker-large": {
		Name:        "BAAI/bge-reranker-large",
		Description: "High accuracy, suitable for quality-critical applications (560M params)",
		MaxLength:   512,
	},
	"bge-reranker-v2-m3": {
		Name:        "BAAI/bge-reranker-v2-m3",
		Description: "Multilingual support, good for Chinese and other languages",
		MaxLength:   8192,
	},
}

// AvailableModels returns the registry of known models
func AvailableModels() map[string]ModelInfo {
	models := make(map[string]ModelInfo, len(knownModels))
	for key, info := range knownModels {
		models[key] = info
	}
	return models
}

// ResolveModel looks up a model key in the registry, falling back to a
// custom entry for unknown names.
func ResolveModel(key string) ModelInfo {
	if info, ok := knownModels[key]; ok {
		return info
	}
	return ModelInfo{
		Name:        key,
		Description: "Custom model",
		MaxLength:   512,
	}
}
