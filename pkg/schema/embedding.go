package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// EmbeddingRequest is a unified embedding request. Input is a single string
// or an ordered list of strings.
type EmbeddingRequest struct {
	// Input holds the texts to embed.
	Input EmbeddingInput `json:"input"`

	// Model is the caller-supplied model string (alias or explicit).
	Model string `json:"model,omitempty"`

	// Provider optionally pins the request to one provider.
	Provider string `json:"provider,omitempty"`

	// Dimensions optionally requests a reduced output dimensionality on
	// upstreams that support it.
	Dimensions int `json:"dimensions,omitempty"`
}

// EmbeddingInput is either one string or a list of strings on the wire.
type EmbeddingInput struct {
	// Texts is the normalized list form.
	Texts []string

	// scalar remembers whether the wire form was a single string, so the
	// request round-trips exactly.
	scalar bool
}

// MarshalJSON writes the original wire form back out.
func (in EmbeddingInput) MarshalJSON() ([]byte, error) {
	if in.scalar && len(in.Texts) == 1 {
		return json.Marshal(in.Texts[0])
	}
	return json.Marshal(in.Texts)
}

// UnmarshalJSON accepts a string or a list of strings.
func (in *EmbeddingInput) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		in.Texts = []string{s}
		in.scalar = true
		return nil
	}
	in.scalar = false
	if err := json.Unmarshal(data, &in.Texts); err != nil {
		return fmt.Errorf("embedding input must be a string or a list of strings")
	}
	return nil
}

// SingleInput builds an EmbeddingInput from one string.
func SingleInput(text string) EmbeddingInput {
	return EmbeddingInput{Texts: []string{text}, scalar: true}
}

// ListInput builds an EmbeddingInput from a list of strings.
func ListInput(texts []string) EmbeddingInput {
	return EmbeddingInput{Texts: texts}
}

// Embedding is one vector in a response, indexed by input position.
type Embedding struct {
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// EmbeddingResponse is a unified embedding response. Embeddings preserve
// the order of the request input.
type EmbeddingResponse struct {
	Embeddings []Embedding `json:"embeddings"`
	Model      string      `json:"model"`
	Provider   string      `json:"provider"`
	Usage      Usage       `json:"usage"`
	Timestamp  string      `json:"timestamp,omitempty"`
}

// Stamp sets the response timestamp if unset.
func (r *EmbeddingResponse) Stamp() {
	if r.Timestamp == "" {
		r.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
}
