// Package harness provides a conformance testing framework for the
// atomic operations endpoint. Scenarios are YAML files describing a
// sequence of batch requests against a fresh store, the expected HTTP
// outcomes, and assertions over the final persisted state. Response
// bodies are compared against golden files for byte-level stability.
package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance test: requests replayed in order
// against a fresh store built from the referenced schema.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden files.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the path to a CUE resource definition file, relative to
	// the scenario file location.
	Schema string `yaml:"schema"`

	// IDPrefix seeds the deterministic ID generator. Server-assigned IDs
	// are "<prefix>-1", "<prefix>-2", ... across the whole scenario.
	// Defaults to "gen".
	IDPrefix string `yaml:"id_prefix,omitempty"`

	// Requests are replayed in order against the same store.
	Requests []Request `yaml:"requests"`

	// FinalState asserts on persisted resources after all requests.
	FinalState []StateAssertion `yaml:"final_state,omitempty"`
}

// Request is one HTTP round against the operations endpoint.
type Request struct {
	// Body is the raw JSON operations document.
	Body string `yaml:"body"`

	// ExpectStatus is the required HTTP response status.
	ExpectStatus int `yaml:"expect_status"`

	// Golden, when set, names the golden file the normalized response
	// body is compared against (testdata/golden/<name>.golden).
	Golden string `yaml:"golden,omitempty"`
}

// StateAssertion checks one resource in the final store state. All
// value checks are subset matches: only the listed fields are compared.
type StateAssertion struct {
	// Type and ID locate the resource.
	Type string `yaml:"type"`
	ID   string `yaml:"id"`

	// Absent asserts the resource does not exist; no other checks apply.
	Absent bool `yaml:"absent,omitempty"`

	// Attributes lists expected attribute values.
	Attributes map[string]any `yaml:"attributes,omitempty"`

	// ToOne lists expected to-one linkage; a YAML null expects the
	// relationship to be cleared.
	ToOne map[string]*string `yaml:"to_one,omitempty"`

	// ToMany lists expected to-many linkage, order-insensitive.
	ToMany map[string][]string `yaml:"to_many,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected to catch typos, and required fields are validated.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if len(s.Requests) == 0 {
		return fmt.Errorf("requests list is required and must be non-empty")
	}

	for i, req := range s.Requests {
		if req.Body == "" {
			return fmt.Errorf("requests[%d]: body is required", i)
		}
		if req.ExpectStatus == 0 {
			return fmt.Errorf("requests[%d]: expect_status is required", i)
		}
		if req.Golden != "" && req.ExpectStatus == 204 {
			return fmt.Errorf("requests[%d]: golden cannot be used with a bodyless 204 response", i)
		}
	}

	for i, check := range s.FinalState {
		if check.Type == "" {
			return fmt.Errorf("final_state[%d]: type is required", i)
		}
		if check.ID == "" {
			return fmt.Errorf("final_state[%d]: id is required", i)
		}
		if check.Absent && (len(check.Attributes) > 0 || len(check.ToOne) > 0 || len(check.ToMany) > 0) {
			return fmt.Errorf("final_state[%d]: absent excludes value checks", i)
		}
		if !check.Absent && len(check.Attributes) == 0 && len(check.ToOne) == 0 && len(check.ToMany) == 0 {
			return fmt.Errorf("final_state[%d]: at least one value check is required", i)
		}
	}

	return nil
}
