package postgres

import "github.com/Cerjho/canteen-orders/internal/domain"

func orderToDBModel(o *domain.Order) OrderModel {
	return OrderModel{
		ID:                o.ID,
		ParentID:          o.ParentID,
		StudentID:         o.StudentID,
		ClientOrderID:     o.ClientOrderID,
		Status:            string(o.Status),
		PaymentStatus:     string(o.PaymentStatus),
		PaymentMethod:     string(o.PaymentMethod),
		TotalAmount:       o.TotalAmount,
		PaymentDueAt:      o.PaymentDueAt,
		CheckoutSessionID: o.CheckoutSessionID,
		GatewayPaymentID:  o.GatewayPaymentID,
		PaymentGroupID:    o.PaymentGroupID,
		ScheduledFor:      o.ScheduledFor,
		Notes:             o.Notes,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func orderToDomain(m OrderModel) *domain.Order {
	return &domain.Order{
		ID:                m.ID,
		ParentID:          m.ParentID,
		StudentID:         m.StudentID,
		ClientOrderID:     m.ClientOrderID,
		Status:            domain.OrderStatus(m.Status),
		PaymentStatus:     domain.PaymentStatus(m.PaymentStatus),
		PaymentMethod:     domain.PaymentMethod(m.PaymentMethod),
		TotalAmount:       m.TotalAmount,
		PaymentDueAt:      m.PaymentDueAt,
		CheckoutSessionID: m.CheckoutSessionID,
		GatewayPaymentID:  m.GatewayPaymentID,
		PaymentGroupID:    m.PaymentGroupID,
		ScheduledFor:      m.ScheduledFor,
		Notes:             m.Notes,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func itemToDomain(m OrderItemModel) domain.OrderItem {
	return domain.OrderItem{
		OrderID:      m.OrderID,
		ProductID:    m.ProductID,
		Quantity:     m.Quantity,
		PriceAtOrder: m.PriceAtOrder,
	}
}

func txnToDBModel(t *domain.Transaction) TransactionModel {
	return TransactionModel{
		ID:               t.ID,
		ParentID:         t.ParentID,
		OrderID:          t.OrderID,
		Type:             string(t.Type),
		Amount:           t.Amount,
		Method:           string(t.Method),
		Status:           string(t.Status),
		GatewayPaymentID: t.GatewayPaymentID,
		GatewayRefundID:  t.GatewayRefundID,
		Note:             t.Note,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func txnToDomain(m TransactionModel) *domain.Transaction {
	return &domain.Transaction{
		ID:               m.ID,
		ParentID:         m.ParentID,
		OrderID:          m.OrderID,
		Type:             domain.TransactionType(m.Type),
		Amount:           m.Amount,
		Method:           domain.PaymentMethod(m.Method),
		Status:           domain.TransactionStatus(m.Status),
		GatewayPaymentID: m.GatewayPaymentID,
		GatewayRefundID:  m.GatewayRefundID,
		Note:             m.Note,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func walletToDomain(m WalletModel) *domain.WalletAccount {
	return &domain.WalletAccount{
		UserID:    m.UserID,
		Balance:   m.Balance,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func topupToDomain(m TopupModel) *domain.TopupSession {
	return &domain.TopupSession{
		ID:                m.ID,
		ParentID:          m.ParentID,
		Amount:            m.Amount,
		Status:            domain.TopupStatus(m.Status),
		CheckoutSessionID: m.CheckoutSessionID,
		GatewayPaymentID:  m.GatewayPaymentID,
		ExpiresAt:         m.ExpiresAt,
		CompletedAt:       m.CompletedAt,
		CreatedAt:         m.CreatedAt,
	}
}

func productToDomain(m ProductModel) *domain.Product {
	return &domain.Product{
		ID:            m.ID,
		Name:          m.Name,
		Price:         m.Price,
		Available:     m.Available,
		StockQuantity: m.StockQuantity,
	}
}
