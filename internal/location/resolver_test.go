package location

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/ambient-temp-service/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeGenerator struct {
	result models.LocationResult
	err    error
	calls  int
	system string
	prompt string
}

func (f *fakeGenerator) Generate(_ context.Context, system, prompt string) (models.LocationResult, error) {
	f.calls++
	f.system = system
	f.prompt = prompt
	return f.result, f.err
}

func TestResolve_NoLocationFields_NoGeneration(t *testing.T) {
	tests := []struct {
		name string
		md   models.EquipmentMetadata
		want error
	}{
		{"empty metadata", models.EquipmentMetadata{}, ErrNoMetadata},
		{"no location fields", models.EquipmentMetadata{EquipmentID: "VALVE_012_NOLOC", EquipmentType: "Valve"}, ErrNoLocationFields},
		{"whitespace only", models.EquipmentMetadata{EquipmentID: "X", AddressCity: "   "}, ErrNoLocationFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			r := NewResolver(gen, 0, nil)

			_, err := r.Resolve(context.Background(), "X", tt.md)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var re *ResolutionError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, StageValidate, re.Stage)
			assert.Equal(t, 0, gen.calls, "generator must not be called")
		})
	}
}

func TestResolve_ExtractMode(t *testing.T) {
	gen := &fakeGenerator{result: models.LocationResult{
		Location: "New York, NY, USA", Evidence: "address fields", Confidence: 0.95,
		City: "New York", State: "NY", Country: "USA",
	}}
	r := NewResolver(gen, 0.3, nil)

	md := models.EquipmentMetadata{
		EquipmentID: "PUMP_001_NYC", AddressCity: "New York", AddressState: "NY", AddressCountry: "USA",
		FacilityName: "Midtown Mechanical Plant",
	}
	res, err := r.Resolve(context.Background(), "PUMP_001_NYC", md)
	require.NoError(t, err)

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, "New York, NY, USA", res.Location)
	assert.Equal(t, 0.95, res.Confidence, "extract mode is not capped")
	assert.False(t, res.HasConflict)
	assert.Empty(t, res.ConflictDetails)
	assert.Contains(t, gen.prompt, "PUMP_001_NYC")
	assert.Contains(t, gen.prompt, "high confidence")
	assert.Equal(t, SystemPrompt(ModeExtract), gen.system)
}

func TestResolve_InferMode_BoundsConfidence(t *testing.T) {
	tests := []struct {
		name         string
		in           models.LocationResult
		wantConf     float64
		wantEvidence string
	}{
		{"capped", models.LocationResult{Location: "Detroit, MI, USA", Evidence: "company HQ", Confidence: 0.5}, 0.5, "Inferred: company HQ"},
		{"raised", models.LocationResult{Location: "Detroit, MI, USA", Evidence: "inferred from branch", Confidence: 0.05}, 0.1, "inferred from branch"},
		{"within", models.LocationResult{Location: "Detroit, MI, USA", Evidence: "Inferred from region", Confidence: 0.3}, 0.3, "Inferred from region"},
		{"null location untouched", models.LocationResult{Evidence: "no clue", Confidence: 0}, 0, "no clue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{result: tt.in}
			r := NewResolver(gen, 0, nil)
			md := models.EquipmentMetadata{EquipmentID: "MOTOR_003_MINIMAL", CompanyName: "Great Lakes Motors", BranchName: "Detroit Branch"}

			res, err := r.Resolve(context.Background(), "MOTOR_003_MINIMAL", md)
			require.NoError(t, err)
			assert.Equal(t, tt.wantConf, res.Confidence)
			assert.Equal(t, tt.wantEvidence, res.Evidence)
			if res.HasLocation() {
				assert.GreaterOrEqual(t, res.Confidence, InferMinConfidence)
				assert.LessOrEqual(t, res.Confidence, InferMaxConfidence)
			}
			assert.Contains(t, gen.prompt, "0.1 and 0.5")
			assert.Equal(t, SystemPrompt(ModeInfer), gen.system)
		})
	}
}

// A generator that overshoots 0.5 in infer mode is still bounded.
func TestResolve_InferMode_HighConfidenceFromGenerator(t *testing.T) {
	gen := &fakeGenerator{result: models.LocationResult{Location: "Denver, CO, USA", Evidence: "facility name", Confidence: 0.9}}
	r := NewResolver(gen, 0, nil)

	res, err := r.Resolve(context.Background(), "CONV_008_FACILITY_ONLY",
		models.EquipmentMetadata{EquipmentID: "CONV_008_FACILITY_ONLY", FacilityName: "Denver, CO"})
	require.NoError(t, err)
	assert.Equal(t, 0.5, res.Confidence)
	assert.False(t, res.HasConflict, "no physical fields to conflict with")
}

func TestResolve_GenerationFailure(t *testing.T) {
	boom := errors.New("parse failure")
	gen := &fakeGenerator{err: boom}
	r := NewResolver(gen, 0, nil)

	_, err := r.Resolve(context.Background(), "GEN_004_INTL_DE",
		models.EquipmentMetadata{EquipmentID: "GEN_004_INTL_DE", AddressCity: "Berlin"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, StageExtract, re.Stage)
	assert.Equal(t, "GEN_004_INTL_DE", re.EquipmentID)
	assert.Equal(t, "location extraction failed: parse failure", err.Error())
}

func TestResolve_AttachesConflictAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	gen := &fakeGenerator{result: models.LocationResult{Location: "Boston, MA, USA", Evidence: "address", Confidence: 0.8}}
	r := NewResolver(gen, 0, zap.New(core))

	md := models.EquipmentMetadata{
		EquipmentID: "COMP_002_CONFLICT", AddressCity: "Boston", AddressState: "MA", FacilityName: "New York, NY",
	}
	res, err := r.Resolve(context.Background(), "COMP_002_CONFLICT", md)
	require.NoError(t, err)
	assert.True(t, res.HasConflict)
	assert.Contains(t, res.ConflictDetails, "Boston")
	assert.Contains(t, res.ConflictDetails, "New York")

	warn := logs.FilterMessage("location conflict detected").All()
	require.Len(t, warn, 1)
	assert.Equal(t, zapcore.WarnLevel, warn[0].Level)
	assert.Equal(t, "COMP_002_CONFLICT", warn[0].ContextMap()["equipment_id"])
	assert.Equal(t, 1, logs.FilterMessage("location extracted").Len())
}

func TestResolve_LowConfidenceWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	gen := &fakeGenerator{result: models.LocationResult{Location: "Somewhere", Evidence: "weak", Confidence: 0.2}}
	r := NewResolver(gen, 0.3, zap.New(core))

	_, err := r.Resolve(context.Background(), "E", models.EquipmentMetadata{EquipmentID: "E", AddressCountry: "USA"})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("low confidence location").Len())
}

func TestSelectMode(t *testing.T) {
	assert.Equal(t, ModeExtract, SelectMode(models.EquipmentMetadata{AddressFormatted: "1 Main St"}))
	assert.Equal(t, ModeExtract, SelectMode(models.EquipmentMetadata{AddressCountry: "Japan", CompanyName: "X"}))
	assert.Equal(t, ModeInfer, SelectMode(models.EquipmentMetadata{CompanyName: "X", BuildingName: "B"}))
	assert.Equal(t, "extract", ModeExtract.String())
	assert.Equal(t, "infer", ModeInfer.String())
}
