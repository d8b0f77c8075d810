package scoring

import (
	"fmt"
	"strings"
)

// Stage is a canonical funding-round identifier.
type Stage string

const (
	StageSeed    Stage = "seed"
	StagePreA    Stage = "pre_a"
	StageSeriesA Stage = "series_a"
	StageSeriesB Stage = "series_b"
	StageSeriesC Stage = "series_c"
	StagePreIPO  Stage = "pre_ipo"
	StageIPO     Stage = "ipo"
)

// StageOrder is the strict total order over stages, earliest first.
// Gate stage_min conditions compare ranks against this order, so it
// must stay in lockstep with the Stage constants above.
var StageOrder = []Stage{
	StageSeed,
	StagePreA,
	StageSeriesA,
	StageSeriesB,
	StageSeriesC,
	StagePreIPO,
	StageIPO,
}

var stageRank = func() map[Stage]int {
	r := make(map[Stage]int, len(StageOrder))
	for i, s := range StageOrder {
		r[s] = i
	}
	return r
}()

// Rank returns the position of s in the canonical stage order.
// Unknown stages rank below seed.
func (s Stage) Rank() int {
	if r, ok := stageRank[s]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether s ranks at or above min in the stage order.
func (s Stage) AtLeast(min Stage) bool {
	return s.Rank() >= min.Rank()
}

// stageAliases maps normalized free-text stage descriptions (English and
// Korean synonyms) to canonical stages. Keys are lowercased with
// underscores/hyphens collapsed to spaces, matching normalizeStageInput.
var stageAliases = map[string]Stage{
	"pre seed": StageSeed,
	"preseed":  StageSeed,
	"seed":     StageSeed,
	"시드":       StageSeed,
	"프리시드":     StageSeed,

	"pre a":  StagePreA,
	"prea":   StagePreA,
	"프리a":    StagePreA,
	"프리 a":   StagePreA,
	"pre 시리즈a": StagePreA,

	"series a": StageSeriesA,
	"seriesa":  StageSeriesA,
	"a":        StageSeriesA,
	"시리즈a":     StageSeriesA,
	"시리즈 a":    StageSeriesA,

	"series b": StageSeriesB,
	"seriesb":  StageSeriesB,
	"b":        StageSeriesB,
	"b+":       StageSeriesB,
	"b 이상":     StageSeriesB,
	"b이상":      StageSeriesB,
	"시리즈b":     StageSeriesB,
	"시리즈 b":    StageSeriesB,

	"series c": StageSeriesC,
	"seriesc":  StageSeriesC,
	"c":        StageSeriesC,
	"시리즈c":     StageSeriesC,
	"시리즈 c":    StageSeriesC,

	"pre ipo": StagePreIPO,
	"preipo":  StagePreIPO,
	"프리ipo":   StagePreIPO,
	"상장 전":    StagePreIPO,

	"ipo": StageIPO,
	"상장":  StageIPO,
}

// UnknownStageError reports a stage string that matched no alias.
type UnknownStageError struct {
	Input string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown stage: %q", e.Input)
}

// MissingStageConfigError reports a canonical stage with no configured
// weight row. This indicates a broken configuration, not bad input.
type MissingStageConfigError struct {
	Stage Stage
}

func (e *MissingStageConfigError) Error() string {
	return fmt.Sprintf("no stage weights configured for: %q", e.Stage)
}

func normalizeStageInput(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}

// CanonicalStage resolves a free-text stage description to its canonical
// Stage. Matching is case, whitespace, and hyphen insensitive and covers
// Korean and English synonyms. Input that matches no alias fails with
// *UnknownStageError; callers that want a lenient default must apply it
// themselves at their own boundary. Canonicalization is idempotent: a
// canonical stage value always resolves to itself.
func CanonicalStage(raw string) (Stage, error) {
	s := normalizeStageInput(raw)
	if st, ok := stageAliases[s]; ok {
		return st, nil
	}
	// Space-stripped retry covers inputs like "series  b" and "시리즈 B".
	if st, ok := stageAliases[strings.ReplaceAll(s, " ", "")]; ok {
		return st, nil
	}
	return "", &UnknownStageError{Input: raw}
}
