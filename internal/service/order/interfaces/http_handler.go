package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"fieldops/internal/service/order/application"
	"fieldops/internal/service/order/domain"
)

const serviceName = "order-service"

// OrderHandler 封装了工单服务的 HTTP 处理器。
// 边界层只做解码/编码和错误码映射，业务全部在应用层。
type OrderHandler struct {
	service *application.LifecycleService
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例。
func NewOrderHandler(service *application.LifecycleService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("POST /orders", h.createOrder)
	mux.HandleFunc("GET /orders/{id}", h.getOrder)
	mux.HandleFunc("PATCH /orders/{id}", h.updateOrder)
	mux.HandleFunc("POST /orders/{id}/complete", h.completeOrder)
	mux.HandleFunc("POST /orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("POST /orders/{id}/revert-cancellation", h.revertCancellation)
	mux.HandleFunc("POST /orders/{id}/split", h.splitOrder)
	mux.HandleFunc("POST /orders/{id}/events", h.addEvent)
	mux.HandleFunc("POST /orders/bulk-status", h.bulkStatus)
	mux.HandleFunc("POST /orders/sync", h.syncBatch)
}

type createOrderRequest struct {
	InstallerID     string     `json:"installerId"`
	BranchID        string     `json:"branchId"`
	PartnerID       string     `json:"partnerId"`
	CustomerName    string     `json:"customerName"`
	CustomerPhone   string     `json:"customerPhone"`
	CustomerAddress string     `json:"customerAddress"`
	VendorCode      string     `json:"vendorCode"`
	AppointmentDate *time.Time `json:"appointmentDate"`
	PromisedDate    *time.Time `json:"promisedDate"`
	Lines           []struct {
		ProductSKU string `json:"productSku"`
		Quantity   int    `json:"quantity"`
	} `json:"lines"`
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "http.CreateOrder")
	defer span.End()

	var req createOrderRequest
	if !decode(w, r, &req) {
		return
	}
	draft := &domain.Order{
		InstallerID:     req.InstallerID,
		BranchID:        req.BranchID,
		PartnerID:       req.PartnerID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		VendorCode:      req.VendorCode,
	}
	if req.AppointmentDate != nil {
		draft.AppointmentDate = *req.AppointmentDate
	}
	if req.PromisedDate != nil {
		draft.PromisedDate = *req.PromisedDate
	}
	for _, line := range req.Lines {
		draft.Lines = append(draft.Lines, domain.OrderLine{ProductSKU: line.ProductSKU, Quantity: line.Quantity})
	}

	order, err := h.service.CreateOrder(ctx, draft)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "http.GetOrder")
	defer span.End()

	order, err := h.service.GetOrder(ctx, r.PathValue("id"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type updateOrderRequest struct {
	ExpectedVersion *int64         `json:"expectedVersion"`
	Status          *domain.Status `json:"status"`
	InstallerID     *string        `json:"installerId"`
	BranchID        *string        `json:"branchId"`
	PartnerID       *string        `json:"partnerId"`
	AppointmentDate *time.Time     `json:"appointmentDate"`
	PromisedDate    *time.Time     `json:"promisedDate"`

	ReasonCode        string `json:"reasonCode"`
	SerialsCaptured   bool   `json:"serialsCaptured"`
	WastePickupLogged bool   `json:"wastePickupLogged"`

	Notes     string `json:"notes"`
	ChangedBy string `json:"changedBy"`
}

func (h *OrderHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "http.UpdateOrder")
	defer span.End()

	var req updateOrderRequest
	if !decode(w, r, &req) {
		return
	}
	order, err := h.service.UpdateOrder(ctx, &application.UpdateOrderRequest{
		OrderID:           r.PathValue("id"),
		ExpectedVersion:   req.ExpectedVersion,
		Status:            req.Status,
		InstallerID:       req.InstallerID,
		BranchID:          req.BranchID,
		PartnerID:         req.PartnerID,
		AppointmentDate:   req.AppointmentDate,
		PromisedDate:      req.PromisedDate,
		ReasonCode:        req.ReasonCode,
		SerialsCaptured:   req.SerialsCaptured,
		WastePickupLogged: req.WastePickupLogged,
		Notes:             req.Notes,
		ChangedBy:         req.ChangedBy,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type completeOrderRequest struct {
	ExpectedVersion *int64 `json:"expectedVersion"`
	Serials         []struct {
		LineID    string `json:"lineId"`
		SerialNo  string `json:"serialNo"`
		WasteCode string `json:"wasteCode"`
	} `json:"serials"`
	CompletedBy string `json:"completedBy"`
}

func (h *OrderHandler) completeOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "http.CompleteOrder")
	defer span.End()

	var req completeOrderRequest
	if !decode(w, r, &req) {
		return
	}
	appReq := &application.CompleteOrderRequest{
		OrderID:         r.PathValue("id"),
		ExpectedVersion: req.ExpectedVersion,
		CompletedBy:     req.CompletedBy,
	}
	for _, s := range req.Serials {
		appReq.Serials = append(appReq.Serials, application.LineSerial{
			LineID: s.LineID, SerialNo: s.SerialNo, WasteCode: s.WasteCode,
		})
	}
	order, err := h.service.CompleteOrder(ctx, appReq)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type cancelOrderRequest struct {
	ExpectedVersion *int64 `json:"expectedVersion"`
	Reason          string `json:"reason"`
	Note            string `json:"note"`
	CancelledBy     string `json:"cancelledBy"`
}

func (h *OrderHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "http.CancelOrder")
	defer span.End()

	var req cancelOrderRequest
	if !decode(w, r, &req) {
		return
	}
	order, err := h.service.CancelOrder(ctx, &application.CancelOrderRequest{
		OrderID:         r.PathValue("id"),
		ExpectedVersion: req.ExpectedVersion,
		Reason:          req.Reason,
		Note:            req.Note,
		CancelledBy:     req.CancelledBy,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type revertCancellationRequest struct {
	ExpectedVersion    *int64         `json:"expectedVersion"`
	TargetStatus       *domain.Status `json:"targetStatus"`
	NewAppointmentDate *time.Time     `json:"newAppointmentDate"`
	RevertedBy         string         `json:"revertedBy"`
}

func (h *OrderHandler) revertCancellation(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "http.RevertCancellation")
	defer span.End()

	var req revertCancellationRequest
	if !decode(w, r, &req) {
		return
	}
	order, err := h.service.RevertCancellation(ctx, &application.RevertCancellationRequest{
		OrderID:            r.PathValue("id"),
		ExpectedVersion:    req.ExpectedVersion,
		TargetStatus:       req.TargetStatus,
		NewAppointmentDate: req.NewAppointmentDate,
		RevertedBy:         req.RevertedBy,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type splitOrderRequest struct {
	ExpectedVersion int64 `json:"expectedVersion"`
	Lines           []struct {
		LineID      string `json:"lineId"`
		Assignments []struct {
			InstallerID string `json:"installerId"`
			Quantity    int    `json:"quantity"`
		} `json:"assignments"`
	} `json:"lines"`
	RequestedBy string `json:"requestedBy"`
}

func (h *OrderHandler) splitOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "http.SplitOrder")
	defer span.End()

	var req splitOrderRequest
	if !decode(w, r, &req) {
		return
	}
	appReq := &application.SplitOrderRequest{
		OrderID:         r.PathValue("id"),
		ExpectedVersion: req.ExpectedVersion,
		RequestedBy:     req.RequestedBy,
	}
	for _, line := range req.Lines {
		lineReq := application.SplitLineRequest{LineID: line.LineID}
		for _, a := range line.Assignments {
			lineReq.Assignments = append(lineReq.Assignments, application.SplitAssignment{
				InstallerID: a.InstallerID, Quantity: a.Quantity,
			})
		}
		appReq.Lines = append(appReq.Lines, lineReq)
	}
	result, err := h.service.SplitOrder(ctx, appReq)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"parentOrderId": result.ParentOrderID,
		"childOrderIds": result.ChildOrderIDs,
	})
}

type addEventRequest struct {
	ExpectedVersion int64  `json:"expectedVersion"`
	EventType       string `json:"eventType"`
	Payload         string `json:"payload"`
	CreatedBy       string `json:"createdBy"`
}

func (h *OrderHandler) addEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "http.AddOrderEvent")
	defer span.End()

	var req addEventRequest
	if !decode(w, r, &req) {
		return
	}
	count, err := h.service.AddOrderEvent(ctx, &application.AddOrderEventRequest{
		OrderID:         r.PathValue("id"),
		ExpectedVersion: req.ExpectedVersion,
		EventType:       req.EventType,
		Payload:         req.Payload,
		CreatedBy:       req.CreatedBy,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"eventCount": count})
}

type bulkStatusRequest struct {
	OrderIDs     []string      `json:"orderIds"`
	TargetStatus domain.Status `json:"targetStatus"`
	ReasonCode   string        `json:"reasonCode"`
	Notes        string        `json:"notes"`
	ChangedBy    string        `json:"changedBy"`
}

func (h *OrderHandler) bulkStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "http.BulkUpdateStatus")
	defer span.End()

	var req bulkStatusRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.BulkUpdateStatus(ctx, &application.BulkStatusRequest{
		OrderIDs:     req.OrderIDs,
		TargetStatus: req.TargetStatus,
		ReasonCode:   req.ReasonCode,
		Notes:        req.Notes,
		ChangedBy:    req.ChangedBy,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *OrderHandler) syncBatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "http.SyncBatch")
	defer span.End()

	var req application.SyncRequest
	if !decode(w, r, &req) {
		return
	}
	span.SetAttributes(attribute.Int("sync.batch_size", len(req.Items)))
	resp, err := h.service.SyncBatch(ctx, &req)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func startSpan(r *http.Request, name string) (ctx context.Context, span trace.Span) {
	propagator := otel.GetTextMapPropagator()
	ctx = propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	return otel.Tracer(serviceName).Start(ctx, name)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"code": "BAD_REQUEST", "message": "invalid request body: " + err.Error(),
		})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode http response")
	}
}

// writeError 把封闭的错误类别映射成 HTTP 状态码，错误码原样透出。
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	derr, ok := domain.AsError(err)
	if !ok {
		log.Error().Err(err).Msg("internal error")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"code": "INTERNAL", "message": "internal server error",
		})
		return
	}
	status := http.StatusBadRequest
	switch derr.Kind {
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindNotFound:
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]interface{}{
		"code":    derr.Code,
		"message": derr.Message,
		"details": derr.Details,
	})
}
