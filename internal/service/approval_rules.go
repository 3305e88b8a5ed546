package service

import (
	"github.com/synapsedt/synapsedt-api/internal/models"
	"github.com/synapsedt/synapsedt-api/pkg/config"
)

// AutoApproveNotes is recorded as the tester note whenever the evaluator, not
// a human, produces the decision.
const AutoApproveNotes = "Auto-approved based on approval rules"

// riskLevelScores and criticalityScores weight the two risk ratings
// differently: a high risk level counts 4, a high criticality only 3.
var (
	riskLevelScores = map[models.RiskRating]int{
		models.RiskLow:    1,
		models.RiskMedium: 2,
		models.RiskHigh:   4,
	}
	criticalityScores = map[models.RiskRating]int{
		models.RiskLow:    1,
		models.RiskMedium: 2,
		models.RiskHigh:   3,
	}
	securityScores = map[models.SecurityClassification]int{
		models.SecurityPublic:       0,
		models.SecurityInternal:     1,
		models.SecurityConfidential: 2,
		models.SecurityRestricted:   3,
	}
)

const maxRiskScore = 10

// CalculateRiskScore sums the classification weights, capped at 10. Missing
// classification values contribute nothing.
func CalculateRiskScore(infoSecurity *models.SecurityClassification, riskLevel, criticality *models.RiskRating) int {
	score := 0
	if riskLevel != nil {
		score += riskLevelScores[*riskLevel]
	}
	if criticality != nil {
		score += criticalityScores[*criticality]
	}
	if infoSecurity != nil {
		score += securityScores[*infoSecurity]
	}
	if score > maxRiskScore {
		score = maxRiskScore
	}
	return score
}

// ApprovalRuleEvaluator decides, at item-creation time, whether a human
// tester decision can be skipped. The outcome is a pure function of the item
// payload and the configured thresholds.
type ApprovalRuleEvaluator struct {
	confidenceThreshold float64
	maxAutoApproveRisk  int
}

// NewApprovalRuleEvaluator constructs the evaluator from configuration.
func NewApprovalRuleEvaluator(cfg config.ApprovalConfig) *ApprovalRuleEvaluator {
	return &ApprovalRuleEvaluator{
		confidenceThreshold: cfg.ConfidenceThreshold,
		maxAutoApproveRisk:  cfg.MaxAutoApproveRisk,
	}
}

// ShouldAutoApprove applies the rules in order, short-circuiting on the first
// that fires:
//
//  1. a confidence score below the threshold blocks auto-approval entirely;
//  2. public information security auto-approves;
//  3. primary-key items auto-approve;
//  4. otherwise a risk score at or below the configured maximum auto-approves.
//
// Items carrying no classification at all never auto-approve through the risk
// score: they stay pending for a human.
func (e *ApprovalRuleEvaluator) ShouldAutoApprove(item *models.VersionItem) bool {
	if item.LLMConfidence != nil && *item.LLMConfidence < e.confidenceThreshold {
		return false
	}
	if item.InfoSecurity != nil && *item.InfoSecurity == models.SecurityPublic {
		return true
	}
	if item.IsPrimary {
		return true
	}
	if item.InfoSecurity == nil && item.RiskLevel == nil && item.Criticality == nil {
		return false
	}
	return CalculateRiskScore(item.InfoSecurity, item.RiskLevel, item.Criticality) <= e.maxAutoApproveRisk
}
