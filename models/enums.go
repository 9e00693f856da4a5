package models

// Status columns are stored as plain varchar so the same models run on MySQL
// in production and on SQLite in tests.

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type SettlementType string

const (
	SettlementTypeSupplier SettlementType = "supplier"
	SettlementTypeMom      SettlementType = "mom"
)

type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "pending"
	SettlementStatusConfirmed SettlementStatus = "confirmed"
	SettlementStatusPaid      SettlementStatus = "paid"
	SettlementStatusRejected  SettlementStatus = "rejected"
)

type AuditReportStatus string

const (
	AuditReportStatusPending  AuditReportStatus = "pending"
	AuditReportStatusReviewed AuditReportStatus = "reviewed"
)

type EventType string

const (
	EventTypeSettlementReady   EventType = "settlement_ready"
	EventTypeStatementDisputed EventType = "statement_disputed"
	EventTypePaymentProcessed  EventType = "payment_processed"
	EventTypeAuditReportReady  EventType = "audit_report_ready"
	EventTypeProfitFlagged     EventType = "profit_flagged"
)

type ReferenceType string

const (
	ReferenceTypeOrder      ReferenceType = "order"
	ReferenceTypeSettlement ReferenceType = "settlement"
	ReferenceTypeStatement  ReferenceType = "statement"
	ReferenceTypeAudit      ReferenceType = "audit_report"
)

type AlertLevel string

const (
	AlertLevelNormal AlertLevel = "normal"
	AlertLevelHigh   AlertLevel = "high"
)
