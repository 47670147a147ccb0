package weights

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Calibration holds the deploy-time tunable weight sets for both score
// formulas.
type Calibration struct {
	Involvement InvolvementWeights `json:"involvement"`
	Loyalty     LoyaltyWeights     `json:"loyalty"`
}

// CalibrationFile is the JSON structure of the calibration file.
type CalibrationFile struct {
	Version string      `json:"version"` // Config version for future compatibility
	Weights Calibration `json:"weights"`
}

// DefaultCalibration returns the default weight sets for both formulas.
func DefaultCalibration() *Calibration {
	return &Calibration{
		Involvement: DefaultInvolvementWeights(),
		Loyalty:     DefaultLoyaltyWeights(),
	}
}

// LoadCalibration loads formula weights from a JSON calibration file.
// Partial configurations are merged with defaults: only non-zero values
// override. On any error the defaults are returned alongside the error
// so callers degrade gracefully.
func LoadCalibration(filePath string) (*Calibration, error) {
	if filePath == "" {
		return DefaultCalibration(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultCalibration(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var f CalibrationFile
	if err := json.Unmarshal(data, &f); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultCalibration(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	merged := MergeCalibration(DefaultCalibration(), &f.Weights)

	// A calibration that breaks the sum-to-1.0 invariant is rejected,
	// not silently corrected.
	if err := merged.Involvement.Validate(); err != nil {
		return DefaultCalibration(), fmt.Errorf("invalid involvement calibration: %w", err)
	}
	if err := merged.Loyalty.Validate(); err != nil {
		return DefaultCalibration(), fmt.Errorf("invalid loyalty calibration: %w", err)
	}

	slog.Info("loaded scoring calibration", "path", filePath)
	return merged, nil
}

// MergeCalibration merges override weights over base weights. Only
// non-zero override values are applied, allowing partial calibration
// files.
func MergeCalibration(base *Calibration, override *Calibration) *Calibration {
	if base == nil {
		return DefaultCalibration()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base

	if override.Involvement.RoleActivity != 0 {
		result.Involvement.RoleActivity = override.Involvement.RoleActivity
	}
	if override.Involvement.EventParticipation != 0 {
		result.Involvement.EventParticipation = override.Involvement.EventParticipation
	}
	if override.Involvement.NetworkCentrality != 0 {
		result.Involvement.NetworkCentrality = override.Involvement.NetworkCentrality
	}
	if override.Involvement.Initiative != 0 {
		result.Involvement.Initiative = override.Involvement.Initiative
	}
	if override.Involvement.Reliability != 0 {
		result.Involvement.Reliability = override.Involvement.Reliability
	}

	if override.Loyalty.IdentityFit != 0 {
		result.Loyalty.IdentityFit = override.Loyalty.IdentityFit
	}
	if override.Loyalty.BenefitFlow != 0 {
		result.Loyalty.BenefitFlow = override.Loyalty.BenefitFlow
	}
	if override.Loyalty.SharedHistory != 0 {
		result.Loyalty.SharedHistory = override.Loyalty.SharedHistory
	}
	if override.Loyalty.PressureCost != 0 {
		result.Loyalty.PressureCost = override.Loyalty.PressureCost
	}
	if override.Loyalty.Satisfaction != 0 {
		result.Loyalty.Satisfaction = override.Loyalty.Satisfaction
	}

	return &result
}
