// Package persona holds the agent's identity and renders its system instruction.
package persona

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Package is one service tier the agent can describe.
type Package struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Price    string   `yaml:"price" json:"price"`
	Features []string `yaml:"features" json:"features"`
}

// Persona is the agent identity sent to the live session.
type Persona struct {
	Name        string    `yaml:"name" json:"name"`
	Voice       string    `yaml:"voice" json:"voice,omitempty"`
	Instruction string    `yaml:"instruction" json:"instruction"`
	Packages    []Package `yaml:"packages" json:"packages"`
}

const defaultInstruction = `You are {{.Name}}, a world-class, premium virtual real estate agent.
Your persona is sophisticated, calm, professional, and warm. You speak with concise elegance.
Your interface is a high-end dark mode app, so your language should reflect this exclusivity.

Your goal is to:
1. Qualify leads (Ask about buying vs. selling, budget range, preferred location, and timeline).
2. Explain our service packages ({{.PackageNames}}) when asked about selling.
3. Schedule private viewings or detailed consultations.

When scheduling, simply ask for a preferred date and time.
Do not make up fake property listings unless the user asks for examples, in which case provide generic luxury examples (e.g., "The Obsidian Penthouse downtown").
Keep your responses relatively brief to allow for a natural conversation flow.

If the user is silent, politely ask if they are still there or if they would like to proceed with a consultation.
`

// Default returns the built-in real estate persona.
func Default() Persona {
	return Persona{
		Name:        "Pelumi AI",
		Instruction: defaultInstruction,
		Packages: []Package{
			{
				ID:       "essentials",
				Name:     "The Essentials Collection",
				Price:    "$2,500 listing fee",
				Features: []string{"Professional Photography", "Standard MLS Listing", "Social Media Teaser", "Digital Brochure"},
			},
			{
				ID:       "premium",
				Name:     "The Premium Showcase",
				Price:    "$5,000 listing fee",
				Features: []string{"Drone Aerial Videography", "3D Virtual Tour", "Featured Listing Status", "Dedicated Agent Support", "Open House Catering"},
			},
			{
				ID:       "luxe",
				Name:     "The Luxe Experience",
				Price:    "$12,000 listing fee",
				Features: []string{"Cinematic Property Film", "Private Gala Launch Event", "International Buyer Network Access", "Interior Styling & Staging", "White-Glove Concierge Service"},
			},
		},
	}
}

// Load reads a YAML persona file over the defaults. Fields absent from the file keep their
// default values. An empty path returns the defaults.
func Load(path string) (Persona, error) {
	p := Default()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("read persona file: %w", err)
	}

	var override Persona
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return Persona{}, fmt.Errorf("parse persona file %s: %w", path, err)
	}

	if name := strings.TrimSpace(override.Name); name != "" {
		p.Name = name
	}
	if voice := strings.TrimSpace(override.Voice); voice != "" {
		p.Voice = voice
	}
	if strings.TrimSpace(override.Instruction) != "" {
		p.Instruction = override.Instruction
	}
	if len(override.Packages) > 0 {
		p.Packages = override.Packages
	}

	if _, err := p.SystemInstruction(); err != nil {
		return Persona{}, err
	}
	return p, nil
}

// PackageNames lists the package names in order, comma separated.
func (p Persona) PackageNames() string {
	names := make([]string, 0, len(p.Packages))
	for _, pkg := range p.Packages {
		names = append(names, pkg.Name)
	}
	return strings.Join(names, ", ")
}

// SystemInstruction renders the instruction template against the persona.
func (p Persona) SystemInstruction() (string, error) {
	if strings.TrimSpace(p.Instruction) == "" {
		return "", errors.New("persona instruction is empty")
	}
	tmpl, err := template.New("instruction").Option("missingkey=error").Parse(p.Instruction)
	if err != nil {
		return "", fmt.Errorf("parse persona instruction: %w", err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, p); err != nil {
		return "", fmt.Errorf("render persona instruction: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}
