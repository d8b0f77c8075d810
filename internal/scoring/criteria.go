package scoring

// Criterion identifies one of the nine fixed IR evaluation dimensions.
// The set is closed: criteria are never created or destroyed at runtime.
type Criterion string

const (
	ProblemDefinition    Criterion = "problem_definition"
	SolutionProduct      Criterion = "solution_product"
	Market               Criterion = "market"
	BusinessModel        Criterion = "business_model"
	CompetitiveAdvantage Criterion = "competitive_advantage"
	GrowthStrategy       Criterion = "growth_strategy"
	Team                 Criterion = "team"
	FinancialPlan        Criterion = "financial_plan"
	RiskManagement       Criterion = "risk_management"
)

// Criteria lists every criterion in its fixed evaluation order.
var Criteria = []Criterion{
	ProblemDefinition,
	SolutionProduct,
	Market,
	BusinessModel,
	CompetitiveAdvantage,
	GrowthStrategy,
	Team,
	FinancialPlan,
	RiskManagement,
}

var criterionSet = func() map[Criterion]struct{} {
	s := make(map[Criterion]struct{}, len(Criteria))
	for _, c := range Criteria {
		s[c] = struct{}{}
	}
	return s
}()

// IsCriterion reports whether name is one of the fixed criteria.
func IsCriterion(name Criterion) bool {
	_, ok := criterionSet[name]
	return ok
}

// Weights maps each criterion to a numeric importance. A normalized
// vector sums to 100.
type Weights map[Criterion]float64

// Multipliers maps criteria to scaling factors (1.0 = neutral).
type Multipliers map[Criterion]float64
