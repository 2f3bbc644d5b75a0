package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"essaylens/internal/common/fsutil"
	"essaylens/pkg/types"
)

// LoadDir scans a directory for *.gguf files and builds a registry from filenames.
// ID is the full filename (including extension); Path is the absolute file path.
// Multimodal projector files (mmproj-*) are not models and are skipped. Files
// that match a catalog entry take its display name, family and key.
func LoadDir(dir string) ([]types.Model, error) {
	abs, err := fsutil.ResolvePath(dir)
	if err != nil {
		return nil, err
	}
	if abs == "" {
		return nil, fmt.Errorf("empty models dir")
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	byFile := make(map[string]types.ModelSpec, len(catalog))
	for _, s := range catalog {
		byFile[s.HFFilename] = s
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		lower := strings.ToLower(name)
		if !strings.HasSuffix(lower, ".gguf") || strings.HasPrefix(lower, "mmproj") {
			continue
		}
		m := types.Model{ID: name, Name: name, Path: filepath.Join(abs, name), Quant: quantOf(name)}
		if s, ok := byFile[name]; ok {
			m.Name, m.Family, m.CatalogKey = s.DisplayName, s.Family, s.Key
		}
		models = append(models, m)
	}
	return models, nil
}

// quantOf returns the quantization suffix of a GGUF file name, e.g. Q4_K_M
// for "Qwen3VL-30B-A3B-Instruct-Q4_K_M.gguf" or bf16 for "...-bf16.gguf".
func quantOf(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	i := strings.LastIndexAny(base, "-.")
	if i < 0 {
		return ""
	}
	q := base[i+1:]
	u := strings.ToUpper(q)
	switch {
	case strings.HasPrefix(u, "Q") && len(u) > 1 && u[1] >= '0' && u[1] <= '9':
	case strings.HasPrefix(u, "IQ"), u == "F16", u == "F32", u == "BF16":
	default:
		return ""
	}
	return q
}
