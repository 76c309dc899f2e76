package provider

import (
	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/besteffort"
)

// detectionOrder lists dialects from the most to the least specific request
// shape. Bedrock and Vertex bodies are Anthropic bodies with an
// anthropic_version marker, so they must be checked before Anthropic.
var detectionOrder = []string{Bedrock, Vertex, Anthropic, OpenAI, Gemini, Ollama}

// Detector picks the dialect of a raw request body by checking dialects in a
// fixed order.
type Detector struct {
	providers []Provider
}

// NewDetector creates a Detector over the builtin dialects. BestEffort is the
// fallback when nothing matches.
func NewDetector() *Detector {
	d := &Detector{}
	for _, name := range detectionOrder {
		p, _ := New(name)
		d.providers = append(d.providers, p)
	}
	return d
}

// Detect returns the first dialect that reports it can handle the payload,
// or BestEffort.
func (d *Detector) Detect(payload []byte) Provider {
	for _, p := range d.providers {
		if p.CanHandle(payload) {
			return p
		}
	}
	return besteffort.New()
}

// DetectRequest detects the dialect and parses the request in one call.
func (d *Detector) DetectRequest(payload []byte) (Provider, *llm.ChatRequest, error) {
	p := d.Detect(payload)
	req, err := p.ParseRequest(payload)
	return p, req, err
}
