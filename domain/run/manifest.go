package run

import (
	"godiffexpr/domain/core"
)

// Manifest is the audit record for one pipeline run. The fingerprint is a
// pure function of the input matrix, design and options, so two runs over
// identical inputs always stamp the same fingerprint.
type Manifest struct {
	RunID       core.RunID      `json:"run_id"`
	MatrixHash  core.MatrixHash `json:"matrix_hash"`
	DesignHash  core.DesignHash `json:"design_hash"`
	ConfigHash  core.ConfigHash `json:"config_hash"`
	Fingerprint core.Hash       `json:"fingerprint"`
	Genes       int             `json:"genes"`
	Samples     int             `json:"samples"`
	Warnings    []string        `json:"warnings,omitempty"`
	RuntimeMs   int64           `json:"runtime_ms"`
	CreatedAt   core.Timestamp  `json:"created_at"`
}

// NewManifest stamps a manifest for a run over the given input hashes.
func NewManifest(matrixHash core.MatrixHash, designHash core.DesignHash, configHash core.ConfigHash, genes, samples int) *Manifest {
	fp := core.NewHash([]byte(matrixHash.String() + designHash.String() + configHash.String()))
	return &Manifest{
		RunID:       core.RunID(core.NewID()),
		MatrixHash:  matrixHash,
		DesignHash:  designHash,
		ConfigHash:  configHash,
		Fingerprint: fp,
		Genes:       genes,
		Samples:     samples,
		CreatedAt:   core.Now(),
	}
}

// Warn appends a non-fatal warning to the manifest.
func (m *Manifest) Warn(msg string) {
	m.Warnings = append(m.Warnings, msg)
}

// Validate checks if the manifest is complete.
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewValidationError("manifest", "run_id cannot be empty")
	}
	if m.MatrixHash == "" {
		return core.NewValidationError("manifest", "matrix_hash cannot be empty")
	}
	if m.DesignHash == "" {
		return core.NewValidationError("manifest", "design_hash cannot be empty")
	}
	return nil
}
