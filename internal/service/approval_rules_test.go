package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synapsedt/synapsedt-api/internal/models"
	"github.com/synapsedt/synapsedt-api/pkg/config"
)

func secPtr(v models.SecurityClassification) *models.SecurityClassification { return &v }
func riskPtr(v models.RiskRating) *models.RiskRating                       { return &v }
func floatPtr(v float64) *float64                                          { return &v }

func defaultEvaluator() *ApprovalRuleEvaluator {
	return NewApprovalRuleEvaluator(config.ApprovalConfig{ConfidenceThreshold: 0.85, MaxAutoApproveRisk: 5})
}

func TestCalculateRiskScore(t *testing.T) {
	cases := []struct {
		name     string
		infoSec  *models.SecurityClassification
		risk     *models.RiskRating
		crit     *models.RiskRating
		expected int
	}{
		{"all low public", secPtr(models.SecurityPublic), riskPtr(models.RiskLow), riskPtr(models.RiskLow), 2},
		{"all high restricted capped", secPtr(models.SecurityRestricted), riskPtr(models.RiskHigh), riskPtr(models.RiskHigh), 10},
		{"medium internal", secPtr(models.SecurityInternal), riskPtr(models.RiskMedium), riskPtr(models.RiskMedium), 5},
		{"missing values contribute nothing", nil, riskPtr(models.RiskHigh), nil, 4},
		{"empty", nil, nil, nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, CalculateRiskScore(tc.infoSec, tc.risk, tc.crit))
		})
	}
}

func TestShouldAutoApprove(t *testing.T) {
	eval := defaultEvaluator()

	cases := []struct {
		name     string
		item     models.VersionItem
		expected bool
	}{
		{
			name: "public short-circuits before risk scoring",
			item: models.VersionItem{
				InfoSecurity:  secPtr(models.SecurityPublic),
				RiskLevel:     riskPtr(models.RiskHigh),
				Criticality:   riskPtr(models.RiskHigh),
				LLMConfidence: floatPtr(0.9),
			},
			expected: true,
		},
		{
			name: "low confidence blocks everything",
			item: models.VersionItem{
				InfoSecurity:  secPtr(models.SecurityPublic),
				RiskLevel:     riskPtr(models.RiskHigh),
				Criticality:   riskPtr(models.RiskHigh),
				LLMConfidence: floatPtr(0.5),
			},
			expected: false,
		},
		{
			name:     "primary key approves",
			item:     models.VersionItem{IsPrimary: true, InfoSecurity: secPtr(models.SecurityRestricted)},
			expected: true,
		},
		{
			name: "low risk score approves",
			item: models.VersionItem{
				InfoSecurity: secPtr(models.SecurityInternal),
				RiskLevel:    riskPtr(models.RiskLow),
				Criticality:  riskPtr(models.RiskLow),
			},
			expected: true,
		},
		{
			name: "high risk score requires a human",
			item: models.VersionItem{
				InfoSecurity: secPtr(models.SecurityRestricted),
				RiskLevel:    riskPtr(models.RiskHigh),
				Criticality:  riskPtr(models.RiskHigh),
			},
			expected: false,
		},
		{
			name:     "no classification requires a human",
			item:     models.VersionItem{},
			expected: false,
		},
		{
			name: "absent confidence does not block",
			item: models.VersionItem{
				InfoSecurity: secPtr(models.SecurityPublic),
			},
			expected: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := tc.item
			require.Equal(t, tc.expected, eval.ShouldAutoApprove(&item))
		})
	}
}

func TestShouldAutoApproveIsDeterministic(t *testing.T) {
	eval := defaultEvaluator()
	item := models.VersionItem{
		InfoSecurity:  secPtr(models.SecurityInternal),
		RiskLevel:     riskPtr(models.RiskMedium),
		Criticality:   riskPtr(models.RiskLow),
		LLMConfidence: floatPtr(0.91),
	}
	first := eval.ShouldAutoApprove(&item)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, eval.ShouldAutoApprove(&item))
	}
}
