package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDeriveLoanStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		want     string
	}{
		{
			name:     "overdue outranks pending",
			statuses: []string{InstallmentStatusPaid, InstallmentStatusOverdue, InstallmentStatusPending},
			want:     LoanStatusOverdue,
		},
		{
			name:     "pending keeps loan active",
			statuses: []string{InstallmentStatusPaid, InstallmentStatusPending},
			want:     LoanStatusActive,
		},
		{
			name:     "all paid settles the loan",
			statuses: []string{InstallmentStatusPaid, InstallmentStatusPaid},
			want:     LoanStatusPaid,
		},
		{
			name:     "cancelled installments carry no weight",
			statuses: []string{InstallmentStatusPaid, InstallmentStatusCancelled},
			want:     LoanStatusPaid,
		},
		{
			name:     "no installments",
			statuses: nil,
			want:     LoanStatusPaid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			installments := make([]*Installment, 0, len(tt.statuses))
			for _, status := range tt.statuses {
				installments = append(installments, &Installment{Status: status})
			}
			assert.Equal(t, tt.want, DeriveLoanStatus(installments))
		})
	}
}

func TestDeriveInstallmentStatus(t *testing.T) {
	now := time.Date(2026, 9, 1, 15, 30, 0, 0, time.UTC)
	amount := decimal.NewFromInt(100)

	tests := []struct {
		name    string
		paid    decimal.Decimal
		dueDate time.Time
		want    string
	}{
		{
			name:    "fully paid",
			paid:    decimal.NewFromInt(100),
			dueDate: now.AddDate(0, 0, -10),
			want:    InstallmentStatusPaid,
		},
		{
			name:    "overpaid still paid",
			paid:    decimal.NewFromInt(120),
			dueDate: now.AddDate(0, 0, 5),
			want:    InstallmentStatusPaid,
		},
		{
			name:    "partial and past due",
			paid:    decimal.NewFromInt(40),
			dueDate: now.AddDate(0, 0, -1),
			want:    InstallmentStatusOverdue,
		},
		{
			name:    "unpaid and due in future",
			paid:    decimal.Zero,
			dueDate: now.AddDate(0, 0, 14),
			want:    InstallmentStatusPending,
		},
		{
			name:    "due today is not yet overdue",
			paid:    decimal.Zero,
			dueDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			want:    InstallmentStatusPending,
		},
		{
			name:    "future due date restores pending",
			paid:    decimal.NewFromInt(40),
			dueDate: now.AddDate(0, 0, 7),
			want:    InstallmentStatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveInstallmentStatus(tt.paid, amount, tt.dueDate, now))
		})
	}
}

func TestDeriveInstallmentStatusLocalDayBoundary(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	// Early morning Sep 1 in Jakarta is still Aug 31 in UTC; the Aug 31
	// installment is overdue by the local calendar.
	now := time.Date(2026, 9, 1, 3, 0, 0, 0, jakarta)
	due := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	got := DeriveInstallmentStatus(decimal.Zero, decimal.NewFromInt(100), due, now)

	assert.Equal(t, InstallmentStatusOverdue, got)
}
