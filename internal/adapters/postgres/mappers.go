package postgres

import (
	"github.com/cartlane/affiliate-settlement-service/internal/domain"
)

func toAffiliateModel(a domain.Affiliate) affiliateModel {
	return affiliateModel{
		AffiliateID:   a.AffiliateID,
		Code:          a.Code,
		Slug:          a.Slug,
		Name:          a.Name,
		Email:         a.Email,
		Class:         string(a.Class),
		Status:        string(a.Status),
		PolicyKind:    string(a.PolicyKind),
		PolicyValue:   a.PolicyValue,
		PreferredRail: string(a.PreferredRail),
		AutoDispatch:  a.AutoDispatch,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
		DeactivatedAt: a.DeactivatedAt,
	}
}

func toDomainAffiliate(m affiliateModel) domain.Affiliate {
	return domain.Affiliate{
		AffiliateID:   m.AffiliateID,
		Code:          m.Code,
		Slug:          m.Slug,
		Name:          m.Name,
		Email:         m.Email,
		Class:         domain.AffiliateClass(m.Class),
		Status:        domain.AffiliateStatus(m.Status),
		PolicyKind:    domain.PolicyKind(m.PolicyKind),
		PolicyValue:   m.PolicyValue,
		PreferredRail: domain.RailKind(m.PreferredRail),
		AutoDispatch:  m.AutoDispatch,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		DeactivatedAt: m.DeactivatedAt,
	}
}

func toClickModel(c domain.Click) clickModel {
	return clickModel{
		ClickID:     c.ClickID,
		AffiliateID: c.AffiliateID,
		TargetRef:   c.TargetRef,
		ClientIP:    c.ClientIP,
		UserAgent:   c.UserAgent,
		Device:      string(c.Device),
		Converted:   c.Converted,
		CreatedAt:   c.CreatedAt,
	}
}

func toDomainClick(m clickModel) domain.Click {
	return domain.Click{
		ClickID:     m.ClickID,
		AffiliateID: m.AffiliateID,
		TargetRef:   m.TargetRef,
		ClientIP:    m.ClientIP,
		UserAgent:   m.UserAgent,
		Device:      domain.DeviceClass(m.Device),
		Converted:   m.Converted,
		CreatedAt:   m.CreatedAt,
	}
}

func toCommissionModel(c domain.Commission) commissionModel {
	return commissionModel{
		CommissionID:         c.CommissionID,
		AffiliateID:          c.AffiliateID,
		OrderID:              c.OrderID,
		OrderTotal:           c.OrderTotal,
		Currency:             c.Currency,
		PolicyKind:           string(c.PolicyKind),
		PolicyValue:          c.PolicyValue,
		Amount:               c.Amount,
		Status:               string(c.Status),
		Method:               string(c.Method),
		ProofRef:             c.ProofRef,
		Notes:                c.Notes,
		RequiresManualReview: c.RequiresManualReview,
		FailureMessage:       c.FailureMessage,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
		ApprovedAt:           c.ApprovedAt,
		PaidAt:               c.PaidAt,
		CancelledAt:          c.CancelledAt,
	}
}

func toDomainCommission(m commissionModel) domain.Commission {
	return domain.Commission{
		CommissionID:         m.CommissionID,
		AffiliateID:          m.AffiliateID,
		OrderID:              m.OrderID,
		OrderTotal:           m.OrderTotal,
		Currency:             m.Currency,
		PolicyKind:           domain.PolicyKind(m.PolicyKind),
		PolicyValue:          m.PolicyValue,
		Amount:               m.Amount,
		Status:               domain.CommissionStatus(m.Status),
		Method:               domain.RailKind(m.Method),
		ProofRef:             m.ProofRef,
		Notes:                m.Notes,
		RequiresManualReview: m.RequiresManualReview,
		FailureMessage:       m.FailureMessage,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
		ApprovedAt:           m.ApprovedAt,
		PaidAt:               m.PaidAt,
		CancelledAt:          m.CancelledAt,
	}
}

func toPayoutAccountModel(a domain.PayoutAccount) payoutAccountModel {
	return payoutAccountModel{
		AccountID:         a.AccountID,
		AffiliateID:       a.AffiliateID,
		Rail:              string(a.Rail),
		ExternalAccountID: a.ExternalAccountID,
		PayoutsEnabled:    a.PayoutsEnabled,
		FirstReadyAt:      a.FirstReadyAt,
		LastCheckedAt:     a.LastCheckedAt,
		ConnectedAt:       a.ConnectedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func toDomainPayoutAccount(m payoutAccountModel) domain.PayoutAccount {
	return domain.PayoutAccount{
		AccountID:         m.AccountID,
		AffiliateID:       m.AffiliateID,
		Rail:              domain.RailKind(m.Rail),
		ExternalAccountID: m.ExternalAccountID,
		PayoutsEnabled:    m.PayoutsEnabled,
		FirstReadyAt:      m.FirstReadyAt,
		LastCheckedAt:     m.LastCheckedAt,
		ConnectedAt:       m.ConnectedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toPayoutAttemptModel(a domain.PayoutAttempt) payoutAttemptModel {
	return payoutAttemptModel{
		AttemptID:    a.AttemptID,
		CommissionID: a.CommissionID,
		Rail:         string(a.Rail),
		Outcome:      string(a.Outcome),
		TransferID:   a.TransferID,
		Message:      a.Message,
		CreatedAt:    a.CreatedAt,
	}
}

func toDomainPayoutAttempt(m payoutAttemptModel) domain.PayoutAttempt {
	return domain.PayoutAttempt{
		AttemptID:    m.AttemptID,
		CommissionID: m.CommissionID,
		Rail:         domain.RailKind(m.Rail),
		Outcome:      domain.PayoutOutcome(m.Outcome),
		TransferID:   m.TransferID,
		Message:      m.Message,
		CreatedAt:    m.CreatedAt,
	}
}
