package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/memex-mcp/internal/chunker"
	"github.com/dshills/memex-mcp/internal/embedder"
)

var (
	ErrKnowledgeBaseNotFound     = errors.New("knowledge base not found")
	ErrKnowledgeBaseNotDirectory = errors.New("knowledge base is not a directory")
	ErrKnowledgeBaseNotReadable  = errors.New("knowledge base is not readable")
)

// ConfigFileNames are searched in order, first in the working directory and
// then in ~/.memex
var ConfigFileNames = []string{"memex.yaml", "memex.yml", "memex.json", "memex.toml"}

const (
	GuidesDir   = "guides"
	ContextsDir = "contexts"
	VectorsDir  = ".vectors"
	DBFile      = "embeddings.db"
)

// Config is resolved once at start up and passed by value
type Config struct {
	KnowledgeBase string          `yaml:"knowledgeBase" toml:"knowledgeBase"`
	Embedding     EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	Chunk         ChunkConfig     `yaml:"chunk" toml:"chunk"`
	ErrorDetail   bool            `yaml:"errorDetail" toml:"errorDetail"`
	HTTPAddr      string          `yaml:"httpAddr" toml:"httpAddr"`

	// Source is the config file that was loaded, empty when none
	Source string `yaml:"-" toml:"-"`
}

type EmbeddingConfig struct {
	Provider string   `yaml:"provider" toml:"provider"`
	URL      string   `yaml:"url" toml:"url"`
	Model    string   `yaml:"model" toml:"model"`
	APIKey   string   `yaml:"apiKey" toml:"apiKey"`
	NumCtx   int      `yaml:"numCtx" toml:"numCtx"`
	Timeout  Duration `yaml:"timeout" toml:"timeout"`
}

type ChunkConfig struct {
	Size    int `yaml:"size" toml:"size"`
	Overlap int `yaml:"overlap" toml:"overlap"`
}

// Duration reads "30s" style strings
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(str))
}

// UnmarshalText serves TOML decoding
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Embedding: EmbeddingConfig{
			Provider: embedder.ProviderOllama,
			URL:      embedder.DefaultOllamaURL,
			Model:    embedder.DefaultOllamaModel,
			NumCtx:   embedder.DefaultNumCtx,
			Timeout:  Duration(embedder.DefaultTimeout),
		},
		Chunk: ChunkConfig{
			Size:    chunker.DefaultSize,
			Overlap: chunker.DefaultOverlap,
		},
	}
}

// Load builds the configuration: defaults, then the first config file
// found, then environment variables. The knowledge base path is taken from
// kbFlag, MEMEX_KB, the config file and finally ~/.memex/knowledge-base.
func Load(kbFlag string) (Config, error) {
	home, _ := os.UserHomeDir()

	// .env never overrides variables that are already set
	_ = godotenv.Load()
	if home != "" {
		_ = godotenv.Load(filepath.Join(home, ".memex", ".env"))
	}

	cfg := Default()

	path, err := findConfigFile(home)
	if err != nil {
		return cfg, err
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return cfg, err
		}
		cfg.Source = path
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	switch {
	case kbFlag != "":
		cfg.KnowledgeBase = kbFlag
	case os.Getenv("MEMEX_KB") != "":
		cfg.KnowledgeBase = os.Getenv("MEMEX_KB")
	case cfg.KnowledgeBase != "":
	default:
		if home == "" {
			return cfg, fmt.Errorf("cannot determine home directory for the default knowledge base")
		}
		cfg.KnowledgeBase = filepath.Join(home, ".memex", "knowledge-base")
	}
	cfg.KnowledgeBase = expandHome(cfg.KnowledgeBase, home)

	if abs, err := filepath.Abs(cfg.KnowledgeBase); err == nil {
		cfg.KnowledgeBase = abs
	}
	return cfg, nil
}

func findConfigFile(home string) (string, error) {
	dirs := []string{"."}
	if home != "" {
		dirs = append(dirs, filepath.Join(home, ".memex"))
	}
	for _, dir := range dirs {
		for _, name := range ConfigFileNames {
			path := filepath.Join(dir, name)
			info, err := os.Stat(path)
			if err == nil && !info.IsDir() {
				return path, nil
			}
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("failed to stat %s: %w", path, err)
			}
		}
	}
	return "", nil
}

// decodeFile reads YAML or JSON, JSON being a subset of YAML, and TOML by
// extension
func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if filepath.Ext(path) == ".toml" {
		if err := toml.NewDecoder(f).Decode(cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	}

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("MEMEX_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		cfg.Embedding.URL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("MEMEX_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"OLLAMA_NUM_CTX", &cfg.Embedding.NumCtx},
		{"OLLAMA_CHUNK_SIZE", &cfg.Chunk.Size},
		{"OLLAMA_CHUNK_OVERLAP", &cfg.Chunk.Overlap},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return fmt.Errorf("invalid %s %q: expected a non-negative integer", e.name, v)
		}
		*e.dst = n
	}

	if v := os.Getenv("MEMEX_EMBED_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid MEMEX_EMBED_TIMEOUT %q: %w", v, err)
		}
		cfg.Embedding.Timeout = Duration(d)
	}
	if v := os.Getenv("MEMEX_ERROR_DETAIL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid MEMEX_ERROR_DETAIL %q: %w", v, err)
		}
		cfg.ErrorDetail = b
	}
	return nil
}

func expandHome(path, home string) string {
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// ResolveKnowledgeBase checks that path is a readable directory and returns
// its canonical form
func ResolveKnowledgeBase(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s (run 'memex init' to create it)", ErrKnowledgeBaseNotFound, abs)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrKnowledgeBaseNotReadable, abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrKnowledgeBaseNotDirectory, abs)
	}

	f, err := os.Open(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrKnowledgeBaseNotReadable, abs, err)
	}
	_, err = f.Readdirnames(1)
	_ = f.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: %s: %v", ErrKnowledgeBaseNotReadable, abs, err)
	}

	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return abs, nil
}

// GuidesPath returns the guides directory
func (c Config) GuidesPath() string {
	return filepath.Join(c.KnowledgeBase, GuidesDir)
}

// ContextsPath returns the contexts directory
func (c Config) ContextsPath() string {
	return filepath.Join(c.KnowledgeBase, ContextsDir)
}

// VectorsPath returns the directory holding the index database
func (c Config) VectorsPath() string {
	return filepath.Join(c.KnowledgeBase, VectorsDir)
}

// DBPath returns the index database file
func (c Config) DBPath() string {
	return filepath.Join(c.VectorsPath(), DBFile)
}

// EmbedderConfig converts the embedding settings for embedder.New
func (c Config) EmbedderConfig() embedder.Config {
	ec := embedder.DefaultConfig()
	ec.Provider = c.Embedding.Provider
	ec.URL = c.Embedding.URL
	ec.Model = c.Embedding.Model
	ec.APIKey = c.Embedding.APIKey
	ec.NumCtx = c.Embedding.NumCtx
	ec.Timeout = c.Embedding.Timeout.Duration()
	return ec
}
