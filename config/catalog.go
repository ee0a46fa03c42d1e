package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ProviderModel is a provider/model pair as configured.
type ProviderModel struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// FusionMember is one provider consulted in fusion mode; Label is how its
// answer is introduced in the synthesis prompt.
type FusionMember struct {
	Label    string `yaml:"label"`
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// Catalog lists the models callers may select and the fusion roster.
type Catalog struct {
	AllowedModels []string       `yaml:"allowed_models"`
	Members       []FusionMember `yaml:"fusion_members"`
	Synthesizer   ProviderModel  `yaml:"fusion_synthesizer"`
	Title         ProviderModel  `yaml:"title_model"`
}

func DefaultCatalog() Catalog {
	return Catalog{
		AllowedModels: []string{
			"llama3-70b-8192",
			"llama-3.3-70b-versatile",
			"gemini-2.0-flash",
			"mistralai/Mixtral-8x7B-Instruct-v0.1",
		},
		Members: []FusionMember{
			{Label: "Groq", Provider: "Groq", Model: "llama-3.3-70b-versatile"},
			{Label: "TogetherAI", Provider: "TogetherAI", Model: "mistralai/Mixtral-8x7B-Instruct-v0.1"},
			{Label: "Gemini", Provider: "Gemini", Model: "gemini-2.0-flash"},
		},
		Synthesizer: ProviderModel{Provider: "Gemini", Model: "gemini-2.0-flash"},
		Title:       ProviderModel{Provider: "Gemini", Model: "gemini-2.0-flash"},
	}
}

// LoadCatalog reads a YAML catalog; fields it leaves empty keep their defaults.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("reading model catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parsing model catalog: %w", err)
	}

	def := DefaultCatalog()
	if len(c.AllowedModels) == 0 {
		c.AllowedModels = def.AllowedModels
	}
	if len(c.Members) == 0 {
		c.Members = def.Members
	}
	if c.Synthesizer.Provider == "" {
		c.Synthesizer = def.Synthesizer
	}
	if c.Title.Provider == "" {
		c.Title = def.Title
	}
	for i, m := range c.Members {
		if m.Label == "" {
			c.Members[i].Label = m.Provider
		}
	}
	return c, nil
}

// Allows reports whether a caller may select the model.
func (c Catalog) Allows(model string) bool {
	return slices.Contains(c.AllowedModels, model)
}

// Providers lists every provider the catalog refers to, in first-seen order.
func (c Catalog) Providers() []string {
	var out []string
	add := func(p string) {
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	for _, m := range c.Members {
		add(m.Provider)
	}
	add(c.Synthesizer.Provider)
	add(c.Title.Provider)
	return out
}
