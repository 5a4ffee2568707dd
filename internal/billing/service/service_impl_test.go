package service

import (
	"testing"
	"time"

	clientservicedomain "github.com/mspforge/mspforge/internal/clientservice/domain"
	"github.com/stretchr/testify/assert"
)

func newCalcService() *Service {
	return &Service{}
}

func TestCalculateProrationHalfMonth(t *testing.T) {
	svc := newCalcService()
	service := &clientservicedomain.ClientService{
		MonthlyCost:  300,
		BillingCycle: clientservicedomain.BillingCycleMonthly,
	}

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 15)

	amount, err := svc.CalculateProration(service, start, end)
	assert.NoError(t, err)
	assert.Equal(t, 150.0, amount)
}

func TestCalculateProrationCapsAtFullCost(t *testing.T) {
	svc := newCalcService()

	tests := []struct {
		name  string
		cycle clientservicedomain.BillingCycle
		days  int
	}{
		{"monthly exact", clientservicedomain.BillingCycleMonthly, 30},
		{"monthly over", clientservicedomain.BillingCycleMonthly, 45},
		{"weekly over", clientservicedomain.BillingCycleWeekly, 10},
		{"annually over", clientservicedomain.BillingCycleAnnually, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &clientservicedomain.ClientService{
				MonthlyCost:  120.50,
				BillingCycle: tt.cycle,
			}
			start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			end := start.AddDate(0, 0, tt.days)

			amount, err := svc.CalculateProration(service, start, end)
			assert.NoError(t, err)
			assert.Equal(t, 120.50, amount)
		})
	}
}

func TestCalculateProrationRejectsInvertedPeriod(t *testing.T) {
	svc := newCalcService()
	service := &clientservicedomain.ClientService{
		MonthlyCost:  100,
		BillingCycle: clientservicedomain.BillingCycleMonthly,
	}

	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.CalculateProration(service, start, start.AddDate(0, 0, -1))
	assert.Error(t, err)
}

func TestCalculateCancellationFeeSixMonthsRemaining(t *testing.T) {
	svc := newCalcService()
	cancelDate := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	endDate := cancelDate.AddDate(0, 6, 0)
	service := &clientservicedomain.ClientService{
		MonthlyCost: 100,
		EndDate:     &endDate,
	}

	fee := svc.CalculateCancellationFee(service, cancelDate)
	assert.Equal(t, 300.0, fee) // 100 * 6 * 0.5
}

func TestCalculateCancellationFeeNoEndDate(t *testing.T) {
	svc := newCalcService()
	service := &clientservicedomain.ClientService{MonthlyCost: 100}

	fee := svc.CalculateCancellationFee(service, time.Now().UTC())
	assert.Equal(t, 0.0, fee)
}

func TestCalculateCancellationFeePastEndDate(t *testing.T) {
	svc := newCalcService()
	endDate := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	service := &clientservicedomain.ClientService{
		MonthlyCost: 100,
		EndDate:     &endDate,
	}

	fee := svc.CalculateCancellationFee(service, endDate.AddDate(0, 1, 0))
	assert.Equal(t, 0.0, fee)
}

func TestCalculateContractValue(t *testing.T) {
	svc := newCalcService()
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	endDate := at.AddDate(1, 0, 0)
	service := &clientservicedomain.ClientService{
		MonthlyCost: 250,
		EndDate:     &endDate,
	}

	assert.Equal(t, 3000.0, svc.CalculateContractValue(service, at))
}

func TestWholeMonthsBetween(t *testing.T) {
	a := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 6, wholeMonthsBetween(a, a.AddDate(0, 6, 0)))
	assert.Equal(t, 5, wholeMonthsBetween(a, a.AddDate(0, 6, -1)))
	assert.Equal(t, 0, wholeMonthsBetween(a, a.AddDate(0, 0, 20)))
	assert.Equal(t, 0, wholeMonthsBetween(a, a))
	assert.Equal(t, 0, wholeMonthsBetween(a, a.AddDate(0, -3, 0)))
}
