package infrastructure

import (
	"fieldops/internal/service/order/domain"
)

// ToDomainOrder 将数据库模型转换为领域模型。
func ToDomainOrder(model *OrderModel) *domain.Order {
	if model == nil {
		return nil
	}
	order := &domain.Order{
		ID:                model.ID,
		Status:            domain.Status(model.Status),
		Version:           model.Version,
		InstallerID:       model.InstallerID,
		BranchID:          model.BranchID,
		PartnerID:         model.PartnerID,
		CustomerName:      model.CustomerName,
		CustomerPhone:     model.CustomerPhone,
		CustomerAddress:   model.CustomerAddress,
		VendorCode:        model.VendorCode,
		AppointmentDate:   model.AppointmentDate,
		PromisedDate:      model.PromisedDate,
		AbsenceRetryCount: model.AbsenceRetryCount,
		CompletedAt:       model.CompletedAt,
		DeletedAt:         model.DeletedAt,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
	for i := range model.Lines {
		order.Lines = append(order.Lines, toDomainLine(&model.Lines[i]))
	}
	return order
}

func toDomainLine(model *OrderLineModel) domain.OrderLine {
	return domain.OrderLine{
		ID:         model.ID,
		OrderID:    model.OrderID,
		ProductSKU: model.ProductSKU,
		Quantity:   model.Quantity,
		SerialNo:   model.SerialNo,
		WasteCode:  model.WasteCode,
	}
}

// FromDomainOrder 将领域模型转换为数据库模型（用于插入）。
func FromDomainOrder(order *domain.Order) *OrderModel {
	if order == nil {
		return nil
	}
	model := &OrderModel{
		ID:                order.ID,
		Status:            string(order.Status),
		Version:           order.Version,
		InstallerID:       order.InstallerID,
		BranchID:          order.BranchID,
		PartnerID:         order.PartnerID,
		CustomerName:      order.CustomerName,
		CustomerPhone:     order.CustomerPhone,
		CustomerAddress:   order.CustomerAddress,
		VendorCode:        order.VendorCode,
		AppointmentDate:   order.AppointmentDate,
		PromisedDate:      order.PromisedDate,
		AbsenceRetryCount: order.AbsenceRetryCount,
		CompletedAt:       order.CompletedAt,
		DeletedAt:         order.DeletedAt,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}
	for i := range order.Lines {
		model.Lines = append(model.Lines, fromDomainLine(&order.Lines[i]))
	}
	return model
}

func fromDomainLine(line *domain.OrderLine) OrderLineModel {
	return OrderLineModel{
		ID:         line.ID,
		OrderID:    line.OrderID,
		ProductSKU: line.ProductSKU,
		Quantity:   line.Quantity,
		SerialNo:   line.SerialNo,
		WasteCode:  line.WasteCode,
	}
}

func toDomainCancellation(model *CancellationModel) *domain.CancellationRecord {
	if model == nil {
		return nil
	}
	return &domain.CancellationRecord{
		OrderID:        model.OrderID,
		Reason:         model.Reason,
		Note:           model.Note,
		CancelledBy:    model.CancelledBy,
		CancelledAt:    model.CancelledAt,
		PreviousStatus: domain.Status(model.PreviousStatus),
		IsReturned:     model.IsReturned,
		ReturnedAt:     model.ReturnedAt,
		ReturnedBy:     model.ReturnedBy,
	}
}

func fromDomainCancellation(row *domain.CancellationRecord) *CancellationModel {
	return &CancellationModel{
		OrderID:        row.OrderID,
		Reason:         row.Reason,
		Note:           row.Note,
		CancelledBy:    row.CancelledBy,
		CancelledAt:    row.CancelledAt,
		PreviousStatus: string(row.PreviousStatus),
		IsReturned:     row.IsReturned,
		ReturnedAt:     row.ReturnedAt,
		ReturnedBy:     row.ReturnedBy,
	}
}
