// Package profile holds the bot identity and per-label triage rule text used
// to assemble the classification prompt. Defaults match the production
// TrakiiBot persona; deployments may override any field from a YAML file.
package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules carries one free-text classification rule per triage label.
type Rules struct {
	Location string `yaml:"location"`
	Speed    string `yaml:"speed"`
	Status   string `yaml:"status"`
	List     string `yaml:"list"`
	Ask      string `yaml:"ask"`
	Ignore   string `yaml:"ignore"`
}

// Profile is the bot identity injected into the triage system prompt.
type Profile struct {
	Name       string `yaml:"name"`
	FullName   string `yaml:"full_name"`
	Background string `yaml:"background"`
	Rules      Rules  `yaml:"rules"`
}

// Default returns the built-in TrakiiBot profile.
func Default() Profile {
	return Profile{
		Name:     "TrakiiBot",
		FullName: "AI TrakiiBot",
		Background: "Agente conversacional AI avanzado que integra ChatGPT, la API de WhatsApp y la API de GPS de Trakki. " +
			"Automatiza consultas y tareas frecuentes, optimiza tiempos mediante aprendizaje automático (RAG) " +
			"y reduce la necesidad de múltiples licencias de software. Conecta fácilmente con otras soluciones tecnológicas, " +
			"mejorando la eficiencia operativa y la experiencia del cliente. Puntos importantes: automatización y ahorro de tiempo, " +
			"reducción de costos operativos, integración tecnológica eficiente, y atención 24/7 para una mejor experiencia del cliente.",
		Rules: Rules{
			Location: "When the user asks about GPS coordinates, location, where the device is, or any synonym for the above on English or Spanish.",
			Speed:    "When the user asks about how fast the device is going, current speed, or any synonym for the above on English or Spanish.",
			Status:   "When the user asks whether the device is online, the battery level, last time it reported data, or any synonym for the above on English or Spanish.",
			List:     "When the user asks to list all devices, see available GPS trackers, or get a catalog of registered units.",
			Ask:      "When the user asks general questions (Who is Trakii, what can you do, how does it work?).",
			Ignore:   "If the message is not related to location, speed or status.",
		},
	}
}

// Load reads a YAML override file on top of the defaults. Fields absent from
// the file keep their default value.
func Load(path string) (Profile, error) {
	p := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("profile: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("profile: parse %s: %w", path, err)
	}
	return p, nil
}
